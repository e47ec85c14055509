package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
)

// DefaultCacheTTL is how long a cached upstream response stays replayable.
const DefaultCacheTTL = time.Hour

// ProxyServiceConfig groups configuration parameters for the proxy service.
type ProxyServiceConfig struct {
	BackendOrigin string
	CacheTTL      time.Duration
}

// ProxyService forwards requests to the backend, caches successful JSON GET
// responses and walks the resolver chain when the backend fails.
type ProxyService struct {
	backend   ports.Backend
	cache     ports.Cache
	resolvers []ports.Resolver
	origin    string
	ttl       time.Duration
	logger    *logrus.Logger
}

func NewProxyService(backend ports.Backend, cache ports.Cache, resolvers []ports.Resolver, cfg *ProxyServiceConfig, logger *logrus.Logger) *ProxyService {
	ttl := DefaultCacheTTL
	origin := ""
	if cfg != nil {
		if cfg.CacheTTL > 0 {
			ttl = cfg.CacheTTL
		}
		origin = cfg.BackendOrigin
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ProxyService{backend: backend, cache: cache, resolvers: resolvers, origin: origin, ttl: ttl, logger: logger}
}

func (s *ProxyService) Handle(ctx context.Context, req *proxy.Request) *proxy.Response {
	req.Target = proxy.UpstreamURL(s.origin, req.Path, req.RawQuery)
	log := s.logger.WithFields(logrus.Fields{"method": req.Method, "url": req.Target, "request_id": req.RequestID})
	log.Info("proxying request")

	resp, err := s.backend.Forward(ctx, req)
	if err == nil {
		resp.Source = proxy.SourceBackend
		if req.IsGet() && resp.Status == http.StatusOK && proxy.IsObjectPayload(resp.Data) {
			s.store(ctx, req, resp, log)
		}
		return resp
	}

	log.WithError(err).WithField("error_category", proxy.KindOf(err)).Warn("backend request failed; trying fallbacks")
	for _, r := range s.resolvers {
		if r == nil {
			continue
		}
		if out, ok := r.Resolve(ctx, req, err); ok {
			log.WithFields(logrus.Fields{"fallback": r.Name(), "status": out.Status}).Info("served fallback response")
			return out
		}
	}

	log.WithError(err).Error("all fallbacks exhausted; responding 503")
	return proxy.Unavailable(err, req.RequestID)
}

// store writes the response under its upstream URL. Failures never reach the client.
func (s *ProxyService) store(ctx context.Context, req *proxy.Request, resp *proxy.Response, log *logrus.Entry) {
	if s.cache == nil {
		return
	}
	if !s.cache.IsReady() {
		log.Warn("cache unavailable; skipping cache write")
		return
	}
	b, err := json.Marshal(proxy.CacheEntry{Status: resp.Status, Data: resp.Data})
	if err != nil {
		log.WithError(err).Warn("failed to encode cache entry")
		return
	}
	// The client may hang up right after the response; the write still completes.
	if err := s.cache.SetEx(context.WithoutCancel(ctx), req.Target, s.ttl, b); err != nil {
		log.WithError(err).Warn("cache write failed")
		return
	}
	log.WithField("ttl", s.ttl.String()).Info("cached backend response")
}
