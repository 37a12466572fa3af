package flyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP transport behind every hook. Relative paths are
// resolved against the base URL, default headers are applied and non-2xx
// responses become TransportError values. It is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	headers         http.Header
	timeout         time.Duration
	middleware      []Middleware
	codec           Codec
	metrics         *MetricsCollector
	logger          Logger
	requestIDGen    func() string
	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers:      http.Header{headerContentType: []string{contentTypeJSON}},
		timeout:      DefaultTimeout,
		middleware:   []Middleware{},
		codec:        DefaultCodec,
		logger:       nopLogger{},
		requestIDGen: generateRequestID,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// NewFromConfig validates cfg and builds a client for it. The request and
// response loggers are installed ahead of any middleware passed in opts.
func NewFromConfig(cfg NetworkConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := []Option{
		WithSimpleLogger(),
		WithBaseURL(cfg.BaseURL()),
		WithTimeout(cfg.TimeoutDuration()),
		WithHeaders(cfg.Headers),
	}
	client := New(append(base, opts...)...)
	if client.validationError != nil {
		return nil, newConfigurationError("invalid client options", client.validationError)
	}
	if client.logger == nil {
		client.logger = nopLogger{}
	}
	client.middleware = append([]Middleware{RequestLogger(client.logger), ResponseLogger(client.logger)}, client.middleware...)

	client.logger.Info("client configured", "baseURL", client.baseURL)
	return client, nil
}

// BaseURL returns the URL relative paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Logger returns the client's logger.
func (c *Client) Logger() Logger {
	return c.logger
}

// Get issues a GET for path with optional query params and returns the body.
func (c *Client) Get(ctx context.Context, path string, params any) (json.RawMessage, error) {
	values, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	target := c.resolveURL(path)
	if len(values) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + values.Encode()
	}
	return c.send(ctx, http.MethodGet, target, nil)
}

// Post issues a POST with body encoded by the client codec.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.send(ctx, http.MethodPost, c.resolveURL(path), body)
}

// Put issues a PUT with body encoded by the client codec.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.send(ctx, http.MethodPut, c.resolveURL(path), body)
}

// Delete issues a DELETE for path.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.send(ctx, http.MethodDelete, c.resolveURL(path), nil)
}

// GetJSON performs Get and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params, out any) error {
	data, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	return c.decode(data, out)
}

// PostJSON performs Post and decodes the body into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	data, err := c.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return c.decode(data, out)
}

func (c *Client) decode(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := c.codec.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrorTypeEncoding, Message: "failed to decode response", Cause: err, Timestamp: time.Now()}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, target string, body any) (json.RawMessage, error) {
	reader, err := encodeBody(c.codec, body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeTransport, Message: "failed to build request", Cause: err, Method: method, URL: target, Timestamp: time.Now()}
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{
			Type:       ErrorTypeTransport,
			Message:    "failed to read response body",
			Cause:      err,
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// Do executes a prepared request through the middleware chain. Non-2xx
// responses are returned as a *ClientError of type TransportError with
// the status code and body; the response itself is then nil.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	start := time.Now()
	endpoint := getEndpointFromRequest(req)

	for key, values := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header[key] = append([]string(nil), values...)
		}
	}
	if req.Body == nil || req.Body == http.NoBody {
		if req.Method == http.MethodGet || req.Method == http.MethodDelete {
			req.Header.Del(headerContentType)
		}
	}
	requestID := req.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = c.requestIDGen()
		req.Header.Set(headerRequestID, requestID)
	}

	c.metrics.RecordRequestStart(req.Method, endpoint)
	resp, err := c.executeMiddleware(req)
	c.metrics.RecordRequestEnd(req.Method, endpoint)

	duration := time.Since(start)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) {
			statusCode = ce.StatusCode
			if ce.RequestID == "" {
				ce.RequestID = requestID
			}
			if ce.Duration == 0 {
				ce.Duration = duration
			}
			c.metrics.RecordError(ce.Type, req.Method, endpoint)
		} else {
			c.metrics.RecordError(ErrorTypeTransport, req.Method, endpoint)
		}
	}
	c.metrics.RecordRequest(req.Method, endpoint, statusCode, duration)

	return resp, err
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	current := RoundTripperFunc(c.roundTrip)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// roundTrip is the innermost step of the chain.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeTransport,
			Message:   "no response received",
			Cause:     err,
			Method:    req.Method,
			URL:       req.URL.String(),
			Timestamp: time.Now(),
		}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return nil, &ClientError{
		Type:       ErrorTypeTransport,
		Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Timestamp:  time.Now(),
	}
}

// resolveURL joins path onto the base URL unless path is already absolute.
func (c *Client) resolveURL(path string) string {
	if c.baseURL == "" || isAbsoluteURL(path) {
		return path
	}
	if path == "" {
		return c.baseURL
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func isAbsoluteURL(path string) bool {
	u, err := url.Parse(path)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func getEndpointFromRequest(req *http.Request) string {
	if req.URL == nil {
		return "unknown"
	}

	host := req.URL.Host
	path := req.URL.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
