package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/httpserver/helpers"
	"github.com/avatarctic/bookstore-proxy/internal/infrastructure/metrics"
)

// proxyRequest hands every request under the path prefix to the proxy service.
func (s *Server) proxyRequest(c echo.Context) error {
	r := c.Request()

	// The escaped path keeps encoded separators such as %2F and %3F intact
	// in the upstream URL and the cache key.
	req := &proxy.Request{
		Method:    r.Method,
		Path:      r.URL.EscapedPath(),
		RawQuery:  r.URL.RawQuery,
		Header:    r.Header.Clone(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	if req.CarriesBody() {
		body, err := readJSONBody(r)
		if err != nil {
			return err
		}
		req.Body = body
	}

	resp := s.proxyService.Handle(r.Context(), req)
	metrics.ObserveResponse(resp)
	helpers.SetResponseSource(c, string(resp.Source))
	return writeResponse(c, resp)
}

// readJSONBody returns the request payload, substituting {} for an empty body.
func readJSONBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return nil, httpErr
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, echo.ErrStatusRequestEntityTooLarge
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body").SetInternal(err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(body) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return body, nil
}

func writeResponse(c echo.Context, resp *proxy.Response) error {
	h := c.Response().Header()
	for key, values := range resp.Header {
		if key != echo.HeaderVary {
			h.Del(key)
		}
		for _, v := range values {
			h.Add(key, v)
		}
	}
	if c.Request().Method == http.MethodHead || len(resp.Data) == 0 {
		h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return c.NoContent(resp.Status)
	}
	return c.JSONBlob(resp.Status, resp.Data)
}
