package middleware

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/httpserver/helpers"
)

const (
	sourceLocal    = "local"
	endpointOther  = "other"
	wildcardSuffix = "/*"
)

// MetricsMiddleware records request counts and latencies per API endpoint and
// per answering stage (backend, cache, mock, error).
type MetricsMiddleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	// endpoints are known API prefixes, longest first.
	endpoints []string
}

// NewMetricsMiddleware creates a metrics middleware. Proxied requests are
// labelled with the longest endpoint prefix they fall under, which keeps the
// label set bounded no matter how many distinct URLs clients request.
func NewMetricsMiddleware(requestsTotal *prometheus.CounterVec, requestDuration *prometheus.HistogramVec, endpoints []string) *MetricsMiddleware {
	sorted := append([]string(nil), endpoints...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return &MetricsMiddleware{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		endpoints:       sorted,
	}
}

// CollectHTTPMetrics creates middleware that collects HTTP request metrics
func (m *MetricsMiddleware) CollectHTTPMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			method := c.Request().Method
			endpoint := m.endpoint(c)
			source, ok := helpers.GetResponseSource(c)
			if !ok {
				source = sourceLocal
			}
			status := strconv.Itoa(c.Response().Status)

			m.requestsTotal.WithLabelValues(method, endpoint, source, status).Inc()
			m.requestDuration.WithLabelValues(method, endpoint).Observe(duration)

			return err
		}
	}
}

// endpoint maps a request onto a bounded label: a known API prefix for
// proxied paths, the route pattern for everything else.
func (m *MetricsMiddleware) endpoint(c echo.Context) string {
	route := c.Path()
	if route != "" && !strings.HasSuffix(route, wildcardSuffix) {
		return route
	}
	path := c.Request().URL.EscapedPath()
	for _, prefix := range m.endpoints {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix
		}
	}
	if route != "" {
		return route
	}
	return endpointOther
}
