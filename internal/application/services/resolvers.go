package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/fallback"
	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
)

// CacheResolver replays the last cached response for a GET request.
type CacheResolver struct {
	cache  ports.Cache
	group  singleflight.Group
	logger *logrus.Logger
}

func NewCacheResolver(cache ports.Cache, logger *logrus.Logger) *CacheResolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &CacheResolver{cache: cache, logger: logger}
}

func (r *CacheResolver) Name() string { return "cache" }

func (r *CacheResolver) Resolve(ctx context.Context, req *proxy.Request, _ error) (*proxy.Response, bool) {
	if r.cache == nil || !req.IsGet() {
		return nil, false
	}
	log := r.logger.WithFields(logrus.Fields{"url": req.Target, "request_id": req.RequestID})
	if !r.cache.IsReady() {
		log.Warn("cache unavailable; skipping cache lookup")
		return nil, false
	}

	// Concurrent fallbacks for one URL share a single read, so it must not
	// die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(req.Target, func() (any, error) {
		raw, ok, err := r.cache.Get(shared, req.Target)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		var entry proxy.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, proxy.CacheFailure("decode", err)
		}
		if entry.Status == 0 {
			return nil, proxy.CacheFailure("decode", errors.New("entry has no status"))
		}
		return &entry, nil
	})
	if err != nil {
		log.WithError(err).Warn("cache read failed")
		return nil, false
	}
	entry, _ := v.(*proxy.CacheEntry)
	if entry == nil {
		log.Info("cache miss")
		return nil, false
	}

	log.WithField("status", entry.Status).Info("cache hit; replaying cached response")
	return &proxy.Response{
		Status: entry.Status,
		Header: http.Header{},
		Data:   entry.Data,
		Source: proxy.SourceCache,
	}, true
}

// MockResolver answers from the static mock table. Only GET requests are
// served unless allMethods is set.
type MockResolver struct {
	table      *fallback.MockTable
	allMethods bool
	logger     *logrus.Logger
}

func NewMockResolver(table *fallback.MockTable, allMethods bool, logger *logrus.Logger) *MockResolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &MockResolver{table: table, allMethods: allMethods, logger: logger}
}

func (r *MockResolver) Name() string { return "mock" }

func (r *MockResolver) Resolve(_ context.Context, req *proxy.Request, _ error) (*proxy.Response, bool) {
	if !req.IsGet() && !r.allMethods {
		return nil, false
	}
	payload, ok := r.table.Lookup(req.Path)
	if !ok {
		r.logger.WithField("path", req.Path).Debug("no mock response for path")
		return nil, false
	}
	r.logger.WithFields(logrus.Fields{"path": req.Path, "request_id": req.RequestID}).Info("serving mock response")
	data := make(json.RawMessage, len(payload))
	copy(data, payload)
	return &proxy.Response{
		Status: http.StatusOK,
		Header: http.Header{},
		Data:   data,
		Source: proxy.SourceMock,
	}, true
}
