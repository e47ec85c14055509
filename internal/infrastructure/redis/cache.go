package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/connstate"
)

// Client is the subset of the go-redis client the cache needs.
type Client interface {
	redis.Cmdable
	Close() error
}

// RedisCache implements ports.Cache using a Redis client.
type RedisCache struct {
	r Client
	// optional key prefix to namespace entries
	prefix  string
	monitor *connstate.Monitor
}

// NewRedisCache creates a new Redis-backed cache. Call Connect before use.
func NewRedisCache(r Client, prefix string, probeInterval time.Duration, logger *logrus.Logger) *RedisCache {
	c := &RedisCache{r: r, prefix: prefix}
	c.monitor = connstate.NewMonitor("redis", func(ctx context.Context) error {
		return r.Ping(ctx).Err()
	}, connstate.Config{Interval: probeInterval}, logger)
	return c
}

func (c *RedisCache) namespaced(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Connect implements Cache.Connect. A failed first ping leaves the cache
// disconnected; the background probe keeps retrying.
func (c *RedisCache) Connect(ctx context.Context) error {
	return c.monitor.Start(ctx)
}

func (c *RedisCache) IsReady() bool {
	return c.monitor.IsReady()
}

// State exposes the connection state for health reporting.
func (c *RedisCache) State() connstate.State {
	return c.monitor.State()
}

// Get implements Cache.Get.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.IsReady() {
		return nil, false, proxy.ErrCacheUnavailable
	}
	ns := c.namespaced(key)
	val, err := c.r.Get(ctx, ns).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		c.observe(err)
		return nil, false, proxy.CacheFailure("get", err)
	}
	return val, true, nil
}

// SetEx implements Cache.SetEx.
func (c *RedisCache) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if !c.IsReady() {
		return proxy.ErrCacheUnavailable
	}
	ns := c.namespaced(key)
	if err := c.r.Set(ctx, ns, value, ttl).Err(); err != nil {
		c.observe(err)
		return proxy.CacheFailure("set", err)
	}
	return nil
}

// Close implements Cache.Close.
func (c *RedisCache) Close() error {
	c.monitor.Stop()
	return c.r.Close()
}

func (c *RedisCache) observe(err error) {
	if isConnectionError(err) {
		c.monitor.ReportFailure(err)
	}
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
