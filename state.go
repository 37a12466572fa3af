package flyapi

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// State holds the active client and endpoint registry. The package-level
// functions operate on a shared default State.
type State struct {
	mu       sync.RWMutex
	client   *Client
	registry Registry
}

// NewState returns an unconfigured State.
func NewState() *State {
	return &State{}
}

// Configure builds a client from cfg and makes it the active client.
func (s *State) Configure(cfg NetworkConfig, opts ...Option) (*Client, error) {
	client, err := NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	return client, nil
}

// ConfigureApis stores registry and configures a client from cfg, or from
// DefaultNetworkConfig when cfg is omitted. Only the first cfg is used.
func (s *State) ConfigureApis(registry Registry, cfg ...NetworkConfig) error {
	config := DefaultNetworkConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}
	normalized, err := prepareRegistry(registry)
	if err != nil {
		return err
	}
	client, err := NewFromConfig(config)
	if err != nil {
		return err
	}
	warnDuplicates(client.Logger(), normalized)

	s.mu.Lock()
	s.registry = normalized
	s.client = client
	s.mu.Unlock()
	return nil
}

// ConfigureApisWithClient stores registry together with an existing client.
func (s *State) ConfigureApisWithClient(registry Registry, client *Client) error {
	if client == nil {
		return newConfigurationError("client is required", nil)
	}
	normalized, err := prepareRegistry(registry)
	if err != nil {
		return err
	}
	warnDuplicates(client.Logger(), normalized)

	s.mu.Lock()
	s.registry = normalized
	s.client = client
	s.mu.Unlock()
	return nil
}

// Client returns the active client, or nil before configuration.
func (s *State) Client() *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Registry returns a copy of the active registry, or nil before configuration.
func (s *State) Registry() Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Clone()
}

func (s *State) activeClient(helper string) (*Client, error) {
	client := s.Client()
	if client == nil {
		return nil, newNotConfiguredError(`client is not configured, call "Configure" before "` + helper + `"`)
	}
	return client, nil
}

// Get issues a GET through the active client.
func (s *State) Get(ctx context.Context, path string, params any) (json.RawMessage, error) {
	client, err := s.activeClient("Get")
	if err != nil {
		return nil, err
	}
	return client.Get(ctx, path, params)
}

// Post issues a POST through the active client. A nil body is sent as {}.
func (s *State) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	client, err := s.activeClient("Post")
	if err != nil {
		return nil, err
	}
	return client.Post(ctx, path, bodyOrEmpty(body))
}

// Put issues a PUT through the active client. A nil body is sent as {}.
func (s *State) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	client, err := s.activeClient("Put")
	if err != nil {
		return nil, err
	}
	return client.Put(ctx, path, bodyOrEmpty(body))
}

var emptyBody = json.RawMessage(`{}`)

func bodyOrEmpty(body any) any {
	if body == nil {
		return emptyBody
	}
	return body
}

// Del issues a DELETE through the active client.
func (s *State) Del(ctx context.Context, path string) (json.RawMessage, error) {
	client, err := s.activeClient("Del")
	if err != nil {
		return nil, err
	}
	return client.Delete(ctx, path)
}

// UseApis returns the hooks of category, keyed by endpoint name. ctx must
// come from a Provider scope. An unknown category logs a warning and
// yields an empty Apis.
func (s *State) UseApis(ctx context.Context, category string) (Apis, error) {
	qc, ok := QueryClientFromContext(ctx)
	if !ok {
		return nil, &ClientError{Type: ErrorTypeMissingProvider, Message: ErrMissingProvider.Message}
	}

	s.mu.RLock()
	client, registry := s.client, s.registry
	s.mu.RUnlock()
	if client == nil || registry == nil {
		return nil, newNotConfiguredError(ErrNotConfigured.Message)
	}

	endpoints, ok := registry[category]
	if !ok {
		client.Logger().Warn("category not found", "category", category)
		return Apis{}, nil
	}

	apis := make(Apis, len(endpoints))
	for _, ep := range endpoints {
		apis[ep.Name] = newHook(category, ep, client, qc)
	}
	return apis, nil
}

func prepareRegistry(registry Registry) (Registry, error) {
	if registry == nil {
		return nil, newConfigurationError("registry is required", nil)
	}
	normalized := registry.Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	return normalized, nil
}

func warnDuplicates(logger Logger, registry Registry) {
	dups := registry.Duplicates()
	categories := make([]string, 0, len(dups))
	for category := range dups {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		for _, name := range dups[category] {
			logger.Warn("duplicate endpoint name, last definition wins", "category", category, "name", name)
		}
	}
}

var defaultState = NewState()

// Default returns the State used by the package-level functions.
func Default() *State {
	return defaultState
}

// Configure builds the active client of the default State.
func Configure(cfg NetworkConfig, opts ...Option) (*Client, error) {
	return defaultState.Configure(cfg, opts...)
}

// ConfigureApis configures the default State.
func ConfigureApis(registry Registry, cfg ...NetworkConfig) error {
	return defaultState.ConfigureApis(registry, cfg...)
}

// ConfigureApisWithClient configures the default State with an existing client.
func ConfigureApisWithClient(registry Registry, client *Client) error {
	return defaultState.ConfigureApisWithClient(registry, client)
}

// UseApis returns the hooks of category from the default State.
func UseApis(ctx context.Context, category string) (Apis, error) {
	return defaultState.UseApis(ctx, category)
}

// Get issues a GET through the default State.
func Get(ctx context.Context, path string, params any) (json.RawMessage, error) {
	return defaultState.Get(ctx, path, params)
}

// Post issues a POST through the default State. A nil body is sent as {}.
func Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return defaultState.Post(ctx, path, body)
}

// Put issues a PUT through the default State. A nil body is sent as {}.
func Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return defaultState.Put(ctx, path, body)
}

// Del issues a DELETE through the default State.
func Del(ctx context.Context, path string) (json.RawMessage, error) {
	return defaultState.Del(ctx, path)
}
