package proxy

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Source identifies which stage of the chain produced a response.
type Source string

const (
	SourceBackend Source = "backend"
	SourceCache   Source = "cache"
	SourceMock    Source = "mock"
	SourceError   Source = "error"
)

// UnavailableMessage is the message returned once every fallback is exhausted.
const UnavailableMessage = "Service temporarily unavailable"

// Request is an inbound request as seen by the proxy core.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	// Body holds the JSON payload for methods other than GET and HEAD.
	Body []byte
	// Target is the fully-qualified upstream URL; it doubles as the cache key.
	Target    string
	RequestID string
}

// IsGet reports whether the request is eligible for caching.
func (r *Request) IsGet() bool {
	return r.Method == http.MethodGet
}

// CarriesBody reports whether a JSON body is forwarded for the request's method.
func (r *Request) CarriesBody() bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

// Response is what the proxy hands back to the client.
type Response struct {
	Status int
	Header http.Header
	Data   json.RawMessage
	Source Source
}

// CacheEntry is the value stored under an upstream URL.
type CacheEntry struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// UpstreamURL joins the backend origin with the incoming path and query.
func UpstreamURL(origin, path, rawQuery string) string {
	target := origin + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// IsObjectPayload reports whether data is a JSON object or array. Scalars and
// null are not cached.
func IsObjectPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}

// ErrorBody is the JSON body written when no stage could answer.
type ErrorBody struct {
	Message       string `json:"message"`
	Error         string `json:"error"`
	ErrorCategory string `json:"error_category"`
	RequestID     string `json:"request_id,omitempty"`
}

// Unavailable builds the terminal 503 response for cause.
func Unavailable(cause error, requestID string) *Response {
	body := ErrorBody{
		Message:       UnavailableMessage,
		ErrorCategory: string(KindOf(cause)),
		RequestID:     requestID,
	}
	if cause != nil {
		body.Error = cause.Error()
	}
	data, _ := json.Marshal(body)
	return &Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{},
		Data:   data,
		Source: SourceError,
	}
}
