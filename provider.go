package flyapi

import (
	"context"
	"net/http"
	"sync"
)

// WithQueryClient returns a context carrying qc.
func WithQueryClient(ctx context.Context, qc *QueryClient) context.Context {
	return context.WithValue(ctx, queryClientKey, qc)
}

// QueryClientFromContext returns the query client of the enclosing scope.
func QueryClientFromContext(ctx context.Context) (*QueryClient, bool) {
	if ctx == nil {
		return nil, false
	}
	qc, ok := ctx.Value(queryClientKey).(*QueryClient)
	return qc, ok && qc != nil
}

// Provider owns the query client shared by every hook run inside its scope.
// The client stays the same for the provider's lifetime.
type Provider struct {
	client *QueryClient
	owned  bool

	mu     sync.Mutex
	closed bool
}

// NewProvider uses client, or a new QueryClient built from opts when client
// is nil.
func NewProvider(client *QueryClient, opts ...QueryOption) *Provider {
	if client != nil {
		return &Provider{client: client}
	}
	return &Provider{client: NewQueryClient(opts...), owned: true}
}

// Client returns the provider's query client.
func (p *Provider) Client() *QueryClient {
	return p.client
}

// Scope returns ctx carrying the provider's query client.
func (p *Provider) Scope(ctx context.Context) context.Context {
	return WithQueryClient(ctx, p.client)
}

// Run calls fn inside the provider scope and closes the provider when fn returns.
func (p *Provider) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	defer p.Close()
	return fn(p.Scope(ctx))
}

// Middleware scopes every request handled by next.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(p.Scope(r.Context())))
	})
}

// Close drops the cached queries of a client the provider created. A client
// passed to NewProvider is left untouched. Close is idempotent.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.owned {
		p.client.Clear()
	}
}
