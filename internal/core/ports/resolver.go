package ports

import (
	"context"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

// Resolver is one stage of the fallback chain tried after the backend failed.
// It returns ok=false when it has nothing to offer for the request.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, req *proxy.Request, cause error) (*proxy.Response, bool)
}
