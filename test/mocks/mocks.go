package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/avatarctic/bookstore-proxy/internal/core/domain/proxy"
)

// CacheMock is a lightweight mock for ports.Cache. Without Fn overrides it
// behaves like an always-ready in-memory store and records every call.
type CacheMock struct {
	ConnectFn func(ctx context.Context) error
	IsReadyFn func() bool
	GetFn     func(ctx context.Context, key string) ([]byte, bool, error)
	SetExFn   func(ctx context.Context, key string, ttl time.Duration, value []byte) error
	CloseFn   func() error

	mu       sync.Mutex
	data     map[string][]byte
	Gets     []string
	Sets     []string
	LastTTL  time.Duration
	Closed   bool
	Connects int
}

func (m *CacheMock) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.Connects++
	m.mu.Unlock()
	if m.ConnectFn != nil {
		return m.ConnectFn(ctx)
	}
	return nil
}

func (m *CacheMock) IsReady() bool {
	if m.IsReadyFn != nil {
		return m.IsReadyFn()
	}
	return true
}

func (m *CacheMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	m.Gets = append(m.Gets, key)
	m.mu.Unlock()
	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *CacheMock) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	m.mu.Lock()
	m.Sets = append(m.Sets, key)
	m.LastTTL = ttl
	m.mu.Unlock()
	if m.SetExFn != nil {
		return m.SetExFn(ctx, key, ttl, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *CacheMock) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

// Calls returns the number of Get and SetEx calls seen so far.
func (m *CacheMock) Calls() (gets, sets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Gets), len(m.Sets)
}

// BackendMock is a lightweight mock for ports.Backend
type BackendMock struct {
	ForwardFn func(ctx context.Context, req *proxy.Request) (*proxy.Response, error)

	mu    sync.Mutex
	Calls []*proxy.Request
}

func (m *BackendMock) Forward(ctx context.Context, req *proxy.Request) (*proxy.Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.ForwardFn != nil {
		return m.ForwardFn(ctx, req)
	}
	return nil, proxy.Unreachable(context.DeadlineExceeded)
}

// CallCount returns how many requests reached the backend.
func (m *BackendMock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// ResolverMock is a lightweight mock for ports.Resolver
type ResolverMock struct {
	NameValue string
	ResolveFn func(ctx context.Context, req *proxy.Request, cause error) (*proxy.Response, bool)
}

func (m *ResolverMock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock-resolver"
}

func (m *ResolverMock) Resolve(ctx context.Context, req *proxy.Request, cause error) (*proxy.Response, bool) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, req, cause)
	}
	return nil, false
}
