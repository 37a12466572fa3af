package flyapi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
network:
  ssl: true
  domain: api.example.com
  port: 8443
  wsPort: 9443
  prefix: /v1
  timeout: 2000
  headers:
    Authorization: Bearer token
apis:
  - category: user
    endpoints:
      - name: getUser
        method: GET
        endpoint: /user
      - name: createUser
        method: post
        endpoint: /user
  - category: post
    endpoints:
      - name: list
        method: GET
        endpoint: /posts
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "flyapi.yaml", sampleConfig)

	fc, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, fc.Network.SSL)
	assert.Equal(t, "api.example.com", fc.Network.Domain)
	assert.Equal(t, 8443, fc.Network.Port)
	assert.Equal(t, 9443, fc.Network.WSPort)
	assert.Equal(t, 2000, fc.Network.Timeout)
	assert.Equal(t, "https://api.example.com:8443/v1", fc.Network.BaseURL())
	assert.Equal(t, "wss://api.example.com:9443/v1", fc.Network.WSURL())
	assert.Equal(t, "Bearer token", fc.Network.Headers["authorization"])

	reg := fc.Registry()
	assert.Equal(t, []string{"post", "user"}, reg.Categories())
	require.Len(t, reg["user"], 2)
	assert.Equal(t, "/user", reg["user"][0].Path)
	assert.NoError(t, fc.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "flyapi.yaml", `
apis:
  - category: user
    endpoints:
      - name: getUser
        method: GET
        endpoint: /user
`)

	fc, err := LoadConfig(path)
	require.NoError(t, err)

	defaults := DefaultNetworkConfig()
	assert.Equal(t, defaults.Domain, fc.Network.Domain)
	assert.Equal(t, defaults.Port, fc.Network.Port)
	assert.Equal(t, defaults.Prefix, fc.Network.Prefix)
	assert.Equal(t, defaults.Timeout, fc.Network.Timeout)
	assert.Equal(t, defaults.Headers, fc.Network.Headers)
	assert.Equal(t, "http://localhost:80/api/v1", fc.Network.BaseURL())
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "flyapi.json", `{
  "network": {"domain": "localhost", "port": 3000},
  "apis": [{"category": "auth", "endpoints": [{"name": "login", "method": "POST", "endpoint": "/login"}]}]
}`)

	fc, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, fc.Network.Port)
	ep, ok := fc.Registry().Lookup("auth", "login")
	require.True(t, ok)
	assert.Equal(t, MethodPost, ep.Method)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "flyapi.yaml", sampleConfig)
	t.Setenv("FLYAPI_NETWORK_DOMAIN", "env.example.com")
	t.Setenv("FLYAPI_NETWORK_PORT", "9000")

	fc, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env.example.com", fc.Network.Domain)
	assert.Equal(t, 9000, fc.Network.Port)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	path := writeConfig(t, t.TempDir(), "flyapi.yaml", "network: [unclosed")
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestFileConfigValidate(t *testing.T) {
	fc := &FileConfig{
		Network: DefaultNetworkConfig(),
		Apis: []CategoryConfig{{
			Category:  "user",
			Endpoints: []Endpoint{{Name: "patch", Method: "PATCH", Path: "/user"}},
		}},
	}
	err := fc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `method "PATCH" is not supported`)

	fc.Apis[0].Endpoints[0].Method = MethodPut
	fc.Network.Domain = ""
	err = fc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain is required")
}

func TestFileConfigRegistryMergesRepeatedCategories(t *testing.T) {
	fc := &FileConfig{Apis: []CategoryConfig{
		{Category: "user", Endpoints: []Endpoint{{Name: "a", Method: MethodGet, Path: "/a"}}},
		{Category: "user", Endpoints: []Endpoint{{Name: "b", Method: MethodGet, Path: "/b"}}},
	}}

	reg := fc.Registry()
	require.Len(t, reg["user"], 2)
	assert.Equal(t, "b", reg["user"][1].Name)
}

func TestApplyConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "flyapi.yaml", sampleConfig)
	fc, err := LoadConfig(path)
	require.NoError(t, err)

	s := NewState()
	require.NoError(t, s.ApplyConfig(fc))

	assert.Equal(t, "https://api.example.com:8443/v1", s.Client().BaseURL())
	ep, ok := s.Registry().Lookup("user", "createUser")
	require.True(t, ok)
	assert.Equal(t, MethodPost, ep.Method)
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "flyapi.yaml", sampleConfig)

	fc, err := LoadConfig(path)
	require.NoError(t, err)
	s := NewState()
	require.NoError(t, s.ApplyConfig(fc))

	reloaded := make(chan error, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := WatchConfig(ctx, path, s, func(_ *FileConfig, err error) {
		reloaded <- err
	})
	require.NoError(t, err)
	defer w.Close()

	writeConfig(t, dir, "other.yaml", "ignored: true")
	writeConfig(t, dir, "flyapi.yaml", `
network:
  domain: reloaded.example.com
  port: 8080
apis:
  - category: auth
    endpoints:
      - name: login
        method: POST
        endpoint: /login
`)

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	assert.Equal(t, "http://reloaded.example.com:8080/api/v1", s.Client().BaseURL())
	_, ok := s.Registry().Lookup("auth", "login")
	assert.True(t, ok)
	_, ok = s.Registry().Lookup("user", "getUser")
	assert.False(t, ok)
}

func TestWatchConfigReportsInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "flyapi.yaml", sampleConfig)

	fc, err := LoadConfig(path)
	require.NoError(t, err)
	s := NewState()
	require.NoError(t, s.ApplyConfig(fc))
	before := s.Client()

	reloaded := make(chan error, 4)
	w, err := WatchConfig(context.Background(), path, s, func(_ *FileConfig, err error) {
		reloaded <- err
	})
	require.NoError(t, err)
	defer w.Close()

	writeConfig(t, dir, "flyapi.yaml", `
apis:
  - category: user
    endpoints:
      - name: bad
        method: PATCH
        endpoint: /user
`)

	select {
	case err := <-reloaded:
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
	case <-time.After(5 * time.Second):
		t.Fatal("config reload was not attempted")
	}
	assert.Same(t, before, s.Client(), "failed reload keeps the previous client")
}

func TestWatchConfigStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "flyapi.yaml", sampleConfig)

	ctx, cancel := context.WithCancel(context.Background())
	w, err := WatchConfig(ctx, path, NewState(), nil)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-w.done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, w.Close())
}
