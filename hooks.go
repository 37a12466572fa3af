package flyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Hook is a query or mutation bound to one endpoint.
type Hook interface {
	Endpoint() Endpoint
	Category() string
	Method() Method
}

// Apis holds the hooks of one category keyed by endpoint name.
type Apis map[string]Hook

// Names returns the hook names in sorted order.
func (a Apis) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query returns the named hook when it is a query.
func (a Apis) Query(name string) (*QueryHook, bool) {
	h, ok := a[name].(*QueryHook)
	return h, ok
}

// Mutation returns the named hook when it is a mutation.
func (a Apis) Mutation(name string) (*MutationHook, bool) {
	h, ok := a[name].(*MutationHook)
	return h, ok
}

// Prefetch fetches every query of the category concurrently and returns
// the first error.
func (a Apis) Prefetch(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range a.Names() {
		h, ok := a.Query(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			_, err := h.Fetch(gctx)
			return err
		})
	}
	return g.Wait()
}

func newHook(category string, ep Endpoint, client *Client, qc *QueryClient) Hook {
	base := hookBase{category: category, endpoint: ep, client: client, qc: qc}
	if ep.Method.IsQuery() {
		return &QueryHook{hookBase: base}
	}
	return &MutationHook{hookBase: base}
}

type hookBase struct {
	category string
	endpoint Endpoint
	client   *Client
	qc       *QueryClient
}

func (h *hookBase) Endpoint() Endpoint { return h.endpoint }
func (h *hookBase) Category() string   { return h.category }
func (h *hookBase) Method() Method     { return h.endpoint.Method }

// QueryHook reads a GET endpoint through the query cache.
type QueryHook struct {
	hookBase
}

// Key returns the cache key (category, name).
func (h *QueryHook) Key() QueryKey {
	return QueryKey{h.category, h.endpoint.Name}
}

// Use runs the cached read and returns its state.
func (h *QueryHook) Use(ctx context.Context) QueryState {
	return h.qc.Query(ctx, h.Key(), h.fetch(nil))
}

// UseWithParams is Use with query parameters. The encoded parameters are
// part of the cache key.
func (h *QueryHook) UseWithParams(ctx context.Context, params any) QueryState {
	key, err := h.paramsKey(params)
	if err != nil {
		return QueryState{Key: h.Key(), Status: StatusError, Err: err}
	}
	return h.qc.Query(ctx, key, h.fetch(params))
}

// Fetch returns the data for the query, using the cache when fresh.
func (h *QueryHook) Fetch(ctx context.Context) (json.RawMessage, error) {
	return h.qc.Fetch(ctx, h.Key(), h.fetch(nil))
}

// Refetch marks the cached data stale and reads it again.
func (h *QueryHook) Refetch(ctx context.Context) QueryState {
	h.Invalidate()
	return h.Use(ctx)
}

// Invalidate marks the cached data stale, including parameterized variants.
func (h *QueryHook) Invalidate() {
	h.qc.InvalidateQueries(h.Key()...)
}

// Data returns the cached data without fetching.
func (h *QueryHook) Data() (json.RawMessage, bool) {
	return h.qc.GetQueryData(h.Key())
}

func (h *QueryHook) fetch(params any) FetchFunc {
	return func(ctx context.Context) (json.RawMessage, error) {
		return h.client.Get(ctx, h.endpoint.Path, params)
	}
}

func (h *QueryHook) paramsKey(params any) (QueryKey, error) {
	values, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	key := h.Key()
	if len(values) > 0 {
		key = append(key, values.Encode())
	}
	return key, nil
}

// MutationHook writes through a POST, PUT or DELETE endpoint.
type MutationHook struct {
	hookBase
}

// Key returns the mutation key (category, name).
func (h *MutationHook) Key() QueryKey {
	return QueryKey{h.category, h.endpoint.Name}
}

// Use returns a new Mutation. POST and PUT send the variables as the
// request body. DELETE treats the variables as an id appended to the path
// and resolves with no data. The id is path-escaped, so "a/b" is sent as
// one segment "a%2Fb" rather than two.
func (h *MutationHook) Use(opts ...MutationOption) *Mutation {
	opts = append([]MutationOption{WithMutationKey(h.Key()...)}, opts...)
	return h.qc.NewMutation(h.mutate, opts...)
}

// InvalidateCategory is a MutationOption that marks every query of the
// hook's category stale after a successful mutation.
func (h *MutationHook) InvalidateCategory() MutationOption {
	return InvalidateOnSuccess(QueryKey{h.category})
}

func (h *MutationHook) mutate(ctx context.Context, vars any) (json.RawMessage, error) {
	switch h.endpoint.Method {
	case MethodPost:
		return h.client.Post(ctx, h.endpoint.Path, vars)
	case MethodPut:
		return h.client.Put(ctx, h.endpoint.Path, vars)
	case MethodDelete:
		if vars == nil {
			return nil, &ClientError{Type: ErrorTypeValidation, Message: "delete requires an id"}
		}
		path := h.endpoint.Path + "/" + url.PathEscape(fmt.Sprint(vars))
		if _, err := h.client.Delete(ctx, path); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, &ClientError{Type: ErrorTypeValidation, Message: fmt.Sprintf("method %q cannot be used as a mutation", h.endpoint.Method)}
	}
}
