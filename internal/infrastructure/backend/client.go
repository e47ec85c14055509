package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

// Hop-by-hop headers (RFC 9110 section 7.6.1) plus Accept-Encoding, which the
// transport negotiates itself so it can decode the body.
var outboundSkip = map[string]bool{
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Accept-Encoding":     true,
	"Content-Length":      true,
}

var inboundSkip = map[string]bool{
	"Connection":        true,
	"Proxy-Connection":  true,
	"Keep-Alive":        true,
	"Te":                true,
	"Trailer":           true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
	"Content-Encoding":  true,
}

type Config struct {
	Origin string
	// Timeout bounds a single backend call. Zero means the request context
	// alone governs it.
	Timeout time.Duration
}

// Client forwards proxied requests to the fixed backend origin and
// implements ports.Backend.
type Client struct {
	http   *http.Client
	host   string
	logger *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) (*Client, error) {
	u, err := url.Parse(cfg.Origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid backend origin %q", cfg.Origin)
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		http:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		host:   u.Host,
		logger: logger,
	}, nil
}

// Forward sends req to req.Target and classifies the outcome.
func (c *Client) Forward(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
	var body io.Reader
	if req.CarriesBody() {
		payload := req.Body
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		body = bytes.NewReader(payload)
	}

	outbound, err := http.NewRequestWithContext(ctx, req.Method, req.Target, body)
	if err != nil {
		return nil, proxy.Unreachable(err)
	}
	copyHeaders(outbound.Header, req.Header, outboundSkip)
	outbound.Host = c.host
	if req.CarriesBody() {
		outbound.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(outbound)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"target":   req.Target,
			"category": dialCategory(ctx, err),
		}).WithError(err).Debug("backend request failed")
		return nil, proxy.Unreachable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, proxy.Unreachable(fmt.Errorf("read backend response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, proxy.BackendStatus(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !isJSONContentType(resp.Header.Get("Content-Type")) {
		return nil, proxy.NonJSON(resp.StatusCode, fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	out := &proxy.Response{
		Status: resp.StatusCode,
		Header: http.Header{},
	}
	copyHeaders(out.Header, resp.Header, inboundSkip)

	if req.Method == http.MethodHead {
		return out, nil
	}
	if !json.Valid(raw) {
		return nil, proxy.NonJSON(resp.StatusCode, errors.New("invalid JSON body"))
	}
	out.Data = raw
	return out, nil
}

func copyHeaders(dst, src http.Header, skip map[string]bool) {
	for key, values := range src {
		ck := http.CanonicalHeaderKey(key)
		if skip[ck] || ck == "Host" || strings.HasPrefix(ck, "Access-Control-") {
			continue
		}
		for _, value := range values {
			dst.Add(ck, value)
		}
	}
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func dialCategory(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return "client_canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "request_timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "upstream_timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "upstream_connect_failed"
	}
	return "upstream_error"
}
