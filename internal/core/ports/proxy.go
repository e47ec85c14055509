package ports

import (
	"context"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

// ProxyService runs a request through the backend and the fallback chain.
// It always produces a response; failures are encoded as a 503 body.
type ProxyService interface {
	Handle(ctx context.Context, req *proxy.Request) *proxy.Response
}
