package flyapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeConfiguration   = "ConfigurationError"
	ErrorTypeNotConfigured   = "NotConfiguredError"
	ErrorTypeMissingProvider = "MissingProviderError"
	ErrorTypeTransport       = "TransportError"
	ErrorTypeEncoding        = "EncodingError"
	ErrorTypeValidation      = "ValidationError"
)

// Sentinel errors for errors.Is. Matching is by error type, so any
// *ClientError of the same Type satisfies errors.Is against these.
var (
	// ErrConfiguration is returned when a NetworkConfig or Registry is invalid.
	ErrConfiguration = &ClientError{Type: ErrorTypeConfiguration, Message: "invalid configuration"}

	// ErrNotConfigured is returned when the client or registry has not been configured.
	ErrNotConfigured = &ClientError{Type: ErrorTypeNotConfigured, Message: `apis are not configured, call "ConfigureApis" first`}

	// ErrMissingProvider is returned when UseApis runs outside a Provider scope.
	ErrMissingProvider = &ClientError{Type: ErrorTypeMissingProvider, Message: "query client provider is missing, wrap the call with a Provider scope"}

	// ErrTransport matches every failure reported by the HTTP layer.
	ErrTransport = &ClientError{Type: ErrorTypeTransport, Message: "transport failure"}
)

// ClientError is the single error type returned by flyapi. Type selects the
// error kind; the remaining fields are filled in when they are known.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// HasResponse reports whether a transport error carries an HTTP response.
// A transport error without one is a network-level failure.
func (e *ClientError) HasResponse() bool {
	return e != nil && e.StatusCode > 0
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if len(e.Body) > 0 {
		info += fmt.Sprintf("Body: %s\n", e.Body)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsTransient reports whether err is a transport failure that may succeed when
// repeated: network failures, 429 and 5xx responses.
func IsTransient(err error) bool {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeTransport {
		return false
	}
	if !clientErr.HasResponse() {
		return true
	}
	return clientErr.StatusCode == http.StatusTooManyRequests || clientErr.StatusCode >= 500
}

// IsTransportError reports whether err came from the HTTP layer.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

func newConfigurationError(message string, cause error) *ClientError {
	return &ClientError{
		Type:      ErrorTypeConfiguration,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func newNotConfiguredError(message string) *ClientError {
	return &ClientError{
		Type:      ErrorTypeNotConfigured,
		Message:   message,
		Timestamp: time.Now(),
	}
}
