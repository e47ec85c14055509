package proxy_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

func TestUpstreamURL(t *testing.T) {
	require.Equal(t, "http://backend:8000/api/v1/books?page=1",
		proxy.UpstreamURL("http://backend:8000", "/api/v1/books", "page=1"))
	require.Equal(t, "http://backend:8000/api/v1/books",
		proxy.UpstreamURL("http://backend:8000", "/api/v1/books", ""))
}

func TestIsObjectPayload(t *testing.T) {
	require.True(t, proxy.IsObjectPayload(json.RawMessage(`{"books":[]}`)))
	require.True(t, proxy.IsObjectPayload(json.RawMessage(`  [1,2]`)))
	require.False(t, proxy.IsObjectPayload(json.RawMessage(`null`)))
	require.False(t, proxy.IsObjectPayload(json.RawMessage(`"text"`)))
	require.False(t, proxy.IsObjectPayload(json.RawMessage(`42`)))
	require.False(t, proxy.IsObjectPayload(nil))
}

func TestRequest_MethodPredicates(t *testing.T) {
	get := &proxy.Request{Method: http.MethodGet}
	head := &proxy.Request{Method: http.MethodHead}
	post := &proxy.Request{Method: http.MethodPost}
	require.True(t, get.IsGet())
	require.False(t, get.CarriesBody())
	require.False(t, head.CarriesBody())
	require.True(t, post.CarriesBody())
	require.False(t, post.IsGet())
}

func TestError_KindMatching(t *testing.T) {
	wrapped := fmt.Errorf("store: %w", proxy.ErrCacheUnavailable)
	require.True(t, errors.Is(wrapped, proxy.ErrCacheUnavailable))
	require.Equal(t, proxy.KindCacheUnavailable, proxy.KindOf(wrapped))

	statusErr := proxy.BackendStatus(http.StatusBadGateway, "upstream down")
	require.Equal(t, proxy.KindBackendError, proxy.KindOf(statusErr))
	require.Contains(t, statusErr.Error(), "502")
	require.Contains(t, statusErr.Error(), "upstream down")
	require.False(t, errors.Is(statusErr, proxy.ErrCacheUnavailable))

	require.Equal(t, proxy.KindUnknown, proxy.KindOf(errors.New("plain")))
}

func TestUnavailable_Body(t *testing.T) {
	resp := proxy.Unavailable(proxy.Unreachable(errors.New("connection refused")), "req-1")
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)
	require.Equal(t, proxy.SourceError, resp.Source)

	var body proxy.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	require.Equal(t, proxy.UnavailableMessage, body.Message)
	require.Equal(t, string(proxy.KindBackendUnreachable), body.ErrorCategory)
	require.Contains(t, body.Error, "connection refused")
	require.Equal(t, "req-1", body.RequestID)
}
