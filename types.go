package flyapi

import (
	"net/http"
)

// Middleware wraps a request. Calling next continues the chain; the first
// middleware added is the outermost.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option configures a Client.
type Option func(*Client)

type contextKey string

const (
	queryClientKey contextKey = "flyapi_query_client"
)

const (
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"
)
