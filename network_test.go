package flyapi

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBaseURL(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      NetworkConfig
		expected string
	}{
		{"https with prefix", NetworkConfig{SSL: true, Domain: "x.com", Port: 443, Prefix: "/v1"}, "https://x.com:443/v1"},
		{"http without prefix", NetworkConfig{Domain: "api.local", Port: 8080}, "http://api.local:8080"},
		{"prefix without slash", NetworkConfig{Domain: "localhost", Port: 80, Prefix: "api/v1"}, "http://localhost:80/api/v1"},
		{"ipv6", NetworkConfig{Domain: "::1", Port: 8080}, "http://[::1]:8080"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.BaseURL(); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestDefaultNetworkConfig(t *testing.T) {
	cfg := DefaultNetworkConfig()

	if cfg.BaseURL() != "http://localhost:80/api/v1" {
		t.Errorf("Expected default base URL http://localhost:80/api/v1, got %s", cfg.BaseURL())
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Expected JSON content type, got %v", cfg.Headers)
	}
	if cfg.TimeoutDuration() != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %v", cfg.TimeoutDuration())
	}
}

func TestWSURL(t *testing.T) {
	cfg := NetworkConfig{SSL: true, Domain: "x.com", Port: 443, WSPort: 8443, Prefix: "/ws"}
	if got := cfg.WSURL(); got != "wss://x.com:8443/ws" {
		t.Errorf("Expected wss://x.com:8443/ws, got %s", got)
	}

	cfg = NetworkConfig{Domain: "x.com", Port: 80}
	if got := cfg.WSURL(); got != "ws://x.com:80" {
		t.Errorf("Expected ws://x.com:80, got %s", got)
	}
}

func TestTimeoutDuration(t *testing.T) {
	if got := (NetworkConfig{}).TimeoutDuration(); got != DefaultTimeout {
		t.Errorf("Expected default timeout %v, got %v", DefaultTimeout, got)
	}
	if got := (NetworkConfig{Timeout: 2500}).TimeoutDuration(); got != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v", got)
	}
}

func TestNetworkConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     NetworkConfig
		wantErr string
	}{
		{"valid", NetworkConfig{Domain: "localhost", Port: 80}, ""},
		{"valid ip", NetworkConfig{Domain: "127.0.0.1", Port: 8080}, ""},
		{"missing domain", NetworkConfig{Port: 80}, "domain is required"},
		{"missing port", NetworkConfig{Domain: "localhost"}, "port is required"},
		{"negative port", NetworkConfig{Domain: "localhost", Port: -1}, "port must be at least 1"},
		{"port too large", NetworkConfig{Domain: "localhost", Port: 70000}, "port must be at most 65535"},
		{"bad ws port", NetworkConfig{Domain: "localhost", Port: 80, WSPort: 70000}, "wsPort must be at most 65535"},
		{"negative timeout", NetworkConfig{Domain: "localhost", Port: 80, Timeout: -5}, "timeout must be at least 0"},
		{"bad domain", NetworkConfig{Domain: "not a host", Port: 80}, "domain failed host validation"},
		{"domain with scheme", NetworkConfig{Domain: "http://x.com", Port: 80}, "domain failed host validation"},
		{"underscore service name", NetworkConfig{Domain: "api_gateway", Port: 8080}, ""},
		{"underscore with suffix", NetworkConfig{Domain: "my_service.internal", Port: 8080}, ""},
		{"ipv6 literal", NetworkConfig{Domain: "::1", Port: 8080}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tc.wantErr)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Expected ConfigurationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
