package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/bookstore-proxy/internal/application/services"
	"github.com/avatarctic/bookstore-proxy/internal/core/domain/fallback"
	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
	"github.com/avatarctic/bookstore-proxy/internal/core/ports"
	tmocks "github.com/avatarctic/bookstore-proxy/test/mocks"
)

const origin = "http://backend.local:8000"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newService(t *testing.T, backend ports.Backend, cache ports.Cache) *impl.ProxyService {
	t.Helper()
	table, err := fallback.NewMockTable(fallback.DefaultPayloads("/api/v1"))
	require.NoError(t, err)
	logger := quietLogger()
	resolvers := []ports.Resolver{
		impl.NewCacheResolver(cache, logger),
		impl.NewMockResolver(table, false, logger),
	}
	return impl.NewProxyService(backend, cache, resolvers, &impl.ProxyServiceConfig{BackendOrigin: origin}, logger)
}

func jsonResponse(status int, body string) *proxy.Response {
	return &proxy.Response{Status: status, Header: http.Header{"Content-Type": {"application/json"}}, Data: json.RawMessage(body)}
}

func TestHandle_CachesSuccessfulGetAndReplaysWhenBackendFails(t *testing.T) {
	cache := &tmocks.CacheMock{}
	backendUp := true
	backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		if backendUp {
			return jsonResponse(http.StatusOK, `{"books":[{"id":1}],"pagination":{"total_count":1}}`), nil
		}
		return nil, proxy.Unreachable(errors.New("connection refused"))
	}}
	svc := newService(t, backend, cache)

	resp := svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/books", RawQuery: "page=1"})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, proxy.SourceBackend, resp.Source)
	require.JSONEq(t, `{"books":[{"id":1}],"pagination":{"total_count":1}}`, string(resp.Data))
	require.Equal(t, []string{origin + "/api/v1/books?page=1"}, cache.Sets)
	require.Equal(t, time.Hour, cache.LastTTL)

	backendUp = false
	resp = svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/books", RawQuery: "page=1"})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, proxy.SourceCache, resp.Source)
	require.JSONEq(t, `{"books":[{"id":1}],"pagination":{"total_count":1}}`, string(resp.Data))
}

func TestHandle_ForwardsTargetURL(t *testing.T) {
	backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}}
	svc := newService(t, backend, &tmocks.CacheMock{})
	svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/cart"})
	require.Equal(t, 1, backend.CallCount())
	require.Equal(t, origin+"/api/v1/cart", backend.Calls[0].Target)
}

func TestHandle_NonGetNeverTouchesCache(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			for _, fail := range []bool{false, true} {
				cache := &tmocks.CacheMock{}
				backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
					if fail {
						return nil, proxy.BackendStatus(http.StatusInternalServerError, "boom")
					}
					return jsonResponse(http.StatusOK, `{"ok":true}`), nil
				}}
				svc := newService(t, backend, cache)
				resp := svc.Handle(context.Background(), &proxy.Request{Method: method, Path: "/api/v1/cart", Body: []byte(`{}`)})
				gets, sets := cache.Calls()
				require.Zero(t, gets)
				require.Zero(t, sets)
				if fail {
					require.Equal(t, http.StatusServiceUnavailable, resp.Status)
				} else {
					require.Equal(t, http.StatusOK, resp.Status)
				}
			}
		})
	}
}

func TestHandle_OnlyStatus200ObjectsAreCached(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		cached bool
	}{
		{name: "200 object", status: http.StatusOK, body: `{"a":1}`, cached: true},
		{name: "200 array", status: http.StatusOK, body: `[1]`, cached: true},
		{name: "201 object", status: http.StatusCreated, body: `{"a":1}`, cached: false},
		{name: "200 scalar", status: http.StatusOK, body: `"plain"`, cached: false},
		{name: "200 null", status: http.StatusOK, body: `null`, cached: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &tmocks.CacheMock{}
			backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			}}
			resp := newService(t, backend, cache).Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/books"})
			require.Equal(t, tt.status, resp.Status)
			_, sets := cache.Calls()
			if tt.cached {
				require.Equal(t, 1, sets)
			} else {
				require.Zero(t, sets)
			}
		})
	}
}

func TestHandle_MockFallbackAndUnavailable(t *testing.T) {
	failures := map[string]error{
		"non-2xx":  proxy.BackendStatus(http.StatusInternalServerError, "oops"),
		"non-json": proxy.NonJSON(http.StatusOK, nil),
	}
	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
				return nil, failure
			}}
			svc := newService(t, backend, &tmocks.CacheMock{})

			resp := svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/books"})
			require.Equal(t, http.StatusOK, resp.Status)
			require.Equal(t, proxy.SourceMock, resp.Source)
			require.JSONEq(t, `{"books":[],"pagination":{"total_count":0}}`, string(resp.Data))

			resp = svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/publishers", RequestID: "r-9"})
			require.Equal(t, http.StatusServiceUnavailable, resp.Status)
			var body proxy.ErrorBody
			require.NoError(t, json.Unmarshal(resp.Data, &body))
			require.Equal(t, "Service temporarily unavailable", body.Message)
			require.Equal(t, failure.Error(), body.Error)
			require.Equal(t, "r-9", body.RequestID)
		})
	}
}

func TestHandle_NonGetFailureSkipsMocks(t *testing.T) {
	backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		return nil, proxy.Unreachable(errors.New("dial tcp: connection refused"))
	}}
	resp := newService(t, backend, &tmocks.CacheMock{}).Handle(context.Background(), &proxy.Request{Method: http.MethodPost, Path: "/api/v1/books"})
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)
	require.Equal(t, proxy.SourceError, resp.Source)
}

func TestHandle_CacheFailuresAreSwallowed(t *testing.T) {
	cache := &tmocks.CacheMock{
		SetExFn: func(ctx context.Context, key string, ttl time.Duration, value []byte) error {
			return errors.New("READONLY You can't write against a read only replica")
		},
		GetFn: func(ctx context.Context, key string) ([]byte, bool, error) {
			return nil, false, errors.New("i/o timeout")
		},
	}
	up := true
	backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		if up {
			return jsonResponse(http.StatusOK, `{"orders":[1]}`), nil
		}
		return nil, proxy.BackendStatus(http.StatusBadGateway, "")
	}}
	svc := newService(t, backend, cache)

	resp := svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/orders"})
	require.Equal(t, http.StatusOK, resp.Status)
	require.JSONEq(t, `{"orders":[1]}`, string(resp.Data))

	up = false
	resp = svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/orders"})
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, proxy.SourceMock, resp.Source)
}

func TestHandle_UnreadyCacheIsSkipped(t *testing.T) {
	cache := &tmocks.CacheMock{IsReadyFn: func() bool { return false }}
	backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		return jsonResponse(http.StatusOK, `{"a":1}`), nil
	}}
	svc := newService(t, backend, cache)
	svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/books"})

	backend.ForwardFn = func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		return nil, proxy.Unreachable(errors.New("refused"))
	}
	svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/api/v1/books"})

	gets, sets := cache.Calls()
	require.Zero(t, gets)
	require.Zero(t, sets)
}

func TestHandle_LastWriteWins(t *testing.T) {
	cache := &tmocks.CacheMock{}
	payload := `{"version":1}`
	backend := &tmocks.BackendMock{ForwardFn: func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		return jsonResponse(http.StatusOK, payload), nil
	}}
	svc := newService(t, backend, cache)
	req := func() *proxy.Request { return &proxy.Request{Method: http.MethodGet, Path: "/api/v1/wishlist"} }

	svc.Handle(context.Background(), req())
	payload = `{"other":2}`
	svc.Handle(context.Background(), req())

	backend.ForwardFn = func(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
		return nil, proxy.Unreachable(errors.New("refused"))
	}
	resp := svc.Handle(context.Background(), req())
	require.Equal(t, proxy.SourceCache, resp.Source)
	require.JSONEq(t, `{"other":2}`, string(resp.Data))
}

func TestHandle_ResolversRunInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string, ok bool) ports.Resolver {
		return &tmocks.ResolverMock{NameValue: name, ResolveFn: func(ctx context.Context, req *proxy.Request, cause error) (*proxy.Response, bool) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			require.Equal(t, proxy.KindBackendUnreachable, proxy.KindOf(cause))
			if ok {
				return jsonResponse(http.StatusAccepted, `{"from":"`+name+`"}`), true
			}
			return nil, false
		}}
	}
	backend := &tmocks.BackendMock{}
	svc := impl.NewProxyService(backend, nil, []ports.Resolver{record("first", false), record("second", true), record("third", true)}, nil, quietLogger())

	resp := svc.Handle(context.Background(), &proxy.Request{Method: http.MethodGet, Path: "/x"})
	require.Equal(t, http.StatusAccepted, resp.Status)
	require.Equal(t, []string{"first", "second"}, order)
}
