package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
)

var (
	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_responses_total",
			Help: "Proxied responses by the stage that produced them",
		},
		[]string{"source", "status"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_cache_operations_total",
			Help: "Cache store operations by outcome",
		},
		[]string{"operation", "result"},
	)
)

func init() {
	prometheus.MustRegister(responsesTotal)
	prometheus.MustRegister(cacheOperationsTotal)
}

// GetResponsesTotal returns the proxy responses counter.
func GetResponsesTotal() *prometheus.CounterVec {
	return responsesTotal
}

// GetCacheOperationsTotal returns the cache operations counter.
func GetCacheOperationsTotal() *prometheus.CounterVec {
	return cacheOperationsTotal
}

// ObserveResponse counts a response handed back to a client.
func ObserveResponse(resp *proxy.Response) {
	if resp == nil {
		return
	}
	responsesTotal.WithLabelValues(string(resp.Source), strconv.Itoa(resp.Status)).Inc()
}

// InstrumentedCache counts every operation of the wrapped store.
type InstrumentedCache struct {
	ports.Cache
}

func NewInstrumentedCache(inner ports.Cache) *InstrumentedCache {
	return &InstrumentedCache{Cache: inner}
}

func (c *InstrumentedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := c.Cache.Get(ctx, key)
	switch {
	case err != nil:
		cacheOperationsTotal.WithLabelValues("get", resultOf(err)).Inc()
	case ok:
		cacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	default:
		cacheOperationsTotal.WithLabelValues("get", "miss").Inc()
	}
	return v, ok, err
}

func (c *InstrumentedCache) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	err := c.Cache.SetEx(ctx, key, ttl, value)
	if err != nil {
		cacheOperationsTotal.WithLabelValues("set", resultOf(err)).Inc()
	} else {
		cacheOperationsTotal.WithLabelValues("set", "ok").Inc()
	}
	return err
}

func resultOf(err error) string {
	if errors.Is(err, proxy.ErrCacheUnavailable) {
		return "unavailable"
	}
	return "error"
}
