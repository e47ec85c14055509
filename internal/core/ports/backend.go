package ports

import (
	"context"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

// Backend forwards a request to the origin API and returns the parsed JSON
// response. Non-2xx, non-JSON and transport failures come back as *proxy.Error.
type Backend interface {
	Forward(ctx context.Context, req *proxy.Request) (*proxy.Response, error)
}
