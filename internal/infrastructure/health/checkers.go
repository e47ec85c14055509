package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/connstate"
)

type stateReporter interface {
	State() connstate.State
}

// cacheHealthChecker reports the cache connection state without touching the store.
type cacheHealthChecker struct {
	name  string
	cache ports.Cache
}

func (c *cacheHealthChecker) Name() string { return c.name }
func (c *cacheHealthChecker) Check(context.Context) error {
	if c.cache.IsReady() {
		return nil
	}
	if sr, ok := c.cache.(stateReporter); ok {
		return fmt.Errorf("cache %s", sr.State())
	}
	return errors.New("cache not ready")
}

// backendHealthChecker treats any HTTP answer from the origin as reachable.
type backendHealthChecker struct {
	origin string
	client *http.Client
}

func (b *backendHealthChecker) Name() string { return "backend" }
func (b *backendHealthChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.origin, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// NewCacheHealthChecker creates a health checker for a cache store.
func NewCacheHealthChecker(name string, cache ports.Cache) ports.HealthChecker {
	return &cacheHealthChecker{name: "cache:" + name, cache: cache}
}

// NewBackendHealthChecker creates a health checker for the backend origin.
func NewBackendHealthChecker(origin string) ports.HealthChecker {
	return &backendHealthChecker{origin: origin, client: &http.Client{}}
}
