package ports

import (
	"context"
	"time"
)

// Cache defines the key-value store used for upstream responses.
// Implementations must fail fast with proxy.ErrCacheUnavailable while their
// connection is not ready, so callers can skip caching without waiting.
type Cache interface {
	// Connect starts the connection and its background probe. A failed initial
	// connect is reported but leaves the store usable once it recovers.
	Connect(ctx context.Context) error
	// IsReady reports whether the connection is currently usable.
	IsReady() bool
	// Get returns the raw bytes for key. ok=false if not found or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetEx stores value for key, expiring after ttl. Existing values are replaced.
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error
	// Close quits the connection.
	Close() error
}
