package flyapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// RequestLogger logs the method and URL of every request and forwards it unchanged.
func RequestLogger(logger Logger) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		logger.Info("request", "method", req.Method, "url", req.URL.String(), "requestID", req.Header.Get(headerRequestID))
		return next.RoundTrip(req)
	}
}

// ResponseLogger logs response bodies on success. On failure it logs the
// status and body, or a network error when no response arrived, and returns
// the failure unchanged.
func ResponseLogger(logger Logger) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if err != nil {
			var ce *ClientError
			switch {
			case errors.As(err, &ce) && ce.HasResponse():
				logger.Error("response error", "method", req.Method, "url", req.URL.String(), "status", ce.StatusCode, "body", string(ce.Body))
			case errors.As(err, &ce):
				logger.Error("network error", "method", req.Method, "url", req.URL.String(), "error", ce.Message, "cause", ce.Cause)
			default:
				logger.Error("network error", "method", req.Method, "url", req.URL.String(), "error", err)
			}
			return resp, err
		}

		if resp.Body == nil {
			logger.Info("response", "status", resp.StatusCode)
			return resp, nil
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			logger.Error("network error", "method", req.Method, "url", req.URL.String(), "error", readErr)
			return nil, &ClientError{
				Type:       ErrorTypeTransport,
				Message:    "failed to read response body",
				Cause:      readErr,
				Method:     req.Method,
				URL:        req.URL.String(),
				StatusCode: resp.StatusCode,
			}
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		logger.Info("response", "status", resp.StatusCode, "body", string(body))
		return resp, nil
	}
}
