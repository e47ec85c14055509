package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-process ports.Cache. It is always ready until closed.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  atomic.Bool
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *Cache) Connect(context.Context) error {
	if c.closed.Load() {
		return proxy.ErrCacheUnavailable
	}
	return nil
}

func (c *Cache) IsReady() bool {
	return !c.closed.Load()
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !c.IsReady() {
		return nil, false, proxy.ErrCacheUnavailable
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *Cache) SetEx(_ context.Context, key string, ttl time.Duration, value []byte) error {
	if !c.IsReady() {
		return proxy.ErrCacheUnavailable
	}
	c.mu.Lock()
	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}
