package redis

import (
	"fmt"

	config "github.com/avatarctic/bookstore-proxy/configs"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient creates a new Redis client. It does not dial; connectivity
// is established and tracked by RedisCache.Connect.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		// the connection monitor owns retries
		MaxRetries: -1,
	})
}
