package proxy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures along the fallback chain.
type ErrorKind string

const (
	KindBackendUnreachable   ErrorKind = "backend_unreachable"
	KindBackendError         ErrorKind = "backend_error"
	KindBackendNonJSON       ErrorKind = "backend_non_json"
	KindCacheUnavailable     ErrorKind = "cache_unavailable"
	KindCacheOperationFailed ErrorKind = "cache_operation_failed"
	KindUnknown              ErrorKind = "unknown"
)

// ErrCacheUnavailable is returned by cache stores whose connection is not ready.
var ErrCacheUnavailable = &Error{Kind: KindCacheUnavailable, Err: errors.New("cache connection is not open")}

// Error carries the kind of failure plus the backend status and body when known.
type Error struct {
	Kind   ErrorKind
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBackendError:
		return fmt.Sprintf("backend responded with status %d: %s", e.Status, e.Body)
	case KindBackendNonJSON:
		if e.Err != nil {
			return fmt.Sprintf("backend returned unusable JSON (status %d): %v", e.Status, e.Err)
		}
		return fmt.Sprintf("backend returned a non-JSON response (status %d)", e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can test against the sentinel errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func Unreachable(err error) *Error {
	return &Error{Kind: KindBackendUnreachable, Err: err}
}

func BackendStatus(status int, body string) *Error {
	return &Error{Kind: KindBackendError, Status: status, Body: body}
}

func NonJSON(status int, err error) *Error {
	return &Error{Kind: KindBackendNonJSON, Status: status, Err: err}
}

func CacheFailure(op string, err error) *Error {
	return &Error{Kind: KindCacheOperationFailed, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf extracts the ErrorKind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}
