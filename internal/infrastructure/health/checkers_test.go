package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/health"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/memory"
	tmocks "github.com/avatarctic/bookstore-proxy/test/mocks"
)

func TestCacheHealthChecker(t *testing.T) {
	store := memory.NewCache()
	hc := health.NewCacheHealthChecker("memory", store)
	require.Equal(t, "cache:memory", hc.Name())
	require.NoError(t, hc.Check(context.Background()))

	require.NoError(t, store.Close())
	require.Error(t, hc.Check(context.Background()))

	notReady := &tmocks.CacheMock{IsReadyFn: func() bool { return false }}
	require.EqualError(t, health.NewCacheHealthChecker("redis", notReady).Check(context.Background()), "cache not ready")
}

func TestBackendHealthChecker(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	hc := health.NewBackendHealthChecker(upstream.URL)
	require.Equal(t, "backend", hc.Name())
	require.NoError(t, hc.Check(context.Background()))

	upstream.Close()
	require.Error(t, hc.Check(context.Background()))
}
