package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

func TestCache_SetGetExpire(t *testing.T) {
	c := NewCache()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	require.True(t, c.IsReady())

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetEx(ctx, "k", time.Hour, []byte("v1")))
	require.NoError(t, c.SetEx(ctx, "k", time.Hour, []byte("v2")))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(v))

	now = now.Add(time.Hour)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, c.SetEx(ctx, "k", time.Minute, value))
	value[0] = 'x'

	got, _, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestCache_ClosedIsUnavailable(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	require.NoError(t, c.Close())
	require.False(t, c.IsReady())

	_, _, err := c.Get(ctx, "k")
	require.True(t, errors.Is(err, proxy.ErrCacheUnavailable))
	require.True(t, errors.Is(c.SetEx(ctx, "k", time.Minute, nil), proxy.ErrCacheUnavailable))
	require.True(t, errors.Is(c.Connect(ctx), proxy.ErrCacheUnavailable))
}
