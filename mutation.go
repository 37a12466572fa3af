package flyapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MutationFunc performs a write with the given variables.
type MutationFunc func(ctx context.Context, vars any) (json.RawMessage, error)

// MutationState is a snapshot of a Mutation.
type MutationState struct {
	Data        json.RawMessage
	Err         error
	Status      Status
	Variables   any
	SubmittedAt time.Time
	SettledAt   time.Time
	// Count of Mutate calls since creation or the last Reset.
	Submissions int
}

// IsPending reports whether a Mutate call is running.
func (s MutationState) IsPending() bool { return s.Status == StatusPending }

// IsError reports whether the last Mutate call failed.
func (s MutationState) IsError() bool { return s.Status == StatusError }

// IsSuccess reports whether the last Mutate call succeeded.
func (s MutationState) IsSuccess() bool { return s.Status == StatusSuccess }

// MutateOption attaches per-call callbacks to Mutate.
type MutateOption func(*mutateCallbacks)

type mutateCallbacks struct {
	onSuccess []func(data json.RawMessage, vars any)
	onError   []func(err error, vars any)
	onSettled []func(data json.RawMessage, err error, vars any)
}

// OnSuccess runs fn after a successful Mutate.
func OnSuccess(fn func(data json.RawMessage, vars any)) MutateOption {
	return func(c *mutateCallbacks) {
		c.onSuccess = append(c.onSuccess, fn)
	}
}

// OnError runs fn after a failed Mutate.
func OnError(fn func(err error, vars any)) MutateOption {
	return func(c *mutateCallbacks) {
		c.onError = append(c.onError, fn)
	}
}

// OnSettled runs fn after every Mutate, following OnSuccess or OnError.
func OnSettled(fn func(data json.RawMessage, err error, vars any)) MutateOption {
	return func(c *mutateCallbacks) {
		c.onSettled = append(c.onSettled, fn)
	}
}

// MutationOption configures a Mutation.
type MutationOption func(*Mutation)

// WithMutationKey labels the mutation for logs and metrics.
func WithMutationKey(key ...string) MutationOption {
	return func(m *Mutation) {
		m.key = key
	}
}

// InvalidateOnSuccess marks queries under each prefix stale after a
// successful Mutate.
func InvalidateOnSuccess(prefixes ...QueryKey) MutationOption {
	return func(m *Mutation) {
		m.invalidate = append(m.invalidate, prefixes...)
	}
}

// WithMutationCallbacks sets callbacks applied to every Mutate call before
// the per-call ones.
func WithMutationCallbacks(opts ...MutateOption) MutationOption {
	return func(m *Mutation) {
		m.defaults = append(m.defaults, opts...)
	}
}

// Mutation is a write trigger with observable state. It is safe for
// concurrent use; the state reflects the most recently settled call.
type Mutation struct {
	fn         MutationFunc
	qc         *QueryClient
	key        QueryKey
	invalidate []QueryKey
	defaults   []MutateOption

	mu    sync.Mutex
	state MutationState
}

// NewMutation creates a mutation bound to qc. qc may be nil when no query
// invalidation is configured.
func (qc *QueryClient) NewMutation(fn MutationFunc, opts ...MutationOption) *Mutation {
	m := &Mutation{fn: fn, qc: qc, state: MutationState{Status: StatusIdle}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mutate runs the mutation with vars and returns its data.
func (m *Mutation) Mutate(ctx context.Context, vars any, opts ...MutateOption) (json.RawMessage, error) {
	var cb mutateCallbacks
	for _, opt := range m.defaults {
		opt(&cb)
	}
	for _, opt := range opts {
		opt(&cb)
	}

	m.mu.Lock()
	m.state.Status = StatusPending
	m.state.Variables = vars
	m.state.SubmittedAt = time.Now()
	m.state.Submissions++
	m.mu.Unlock()

	data, err := m.fn(ctx, vars)

	m.mu.Lock()
	m.state.SettledAt = time.Now()
	if err != nil {
		m.state.Status = StatusError
		m.state.Err = err
		m.state.Data = nil
	} else {
		m.state.Status = StatusSuccess
		m.state.Err = nil
		m.state.Data = data
	}
	m.mu.Unlock()

	var metrics *MetricsCollector
	var logger Logger = nopLogger{}
	if m.qc != nil {
		metrics = m.qc.metrics
		logger = m.qc.logger
	}

	if err != nil {
		metrics.RecordMutation(m.key.Category(), StatusError)
		logger.Warn("mutation failed", "key", m.key.String(), "error", err)
		for _, fn := range cb.onError {
			fn(err, vars)
		}
	} else {
		metrics.RecordMutation(m.key.Category(), StatusSuccess)
		if m.qc != nil {
			for _, prefix := range m.invalidate {
				m.qc.InvalidateQueries(prefix...)
			}
		}
		for _, fn := range cb.onSuccess {
			fn(data, vars)
		}
	}
	for _, fn := range cb.onSettled {
		fn(data, err, vars)
	}
	return data, err
}

// State returns a snapshot of the mutation.
func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the mutation to the idle state.
func (m *Mutation) Reset() {
	m.mu.Lock()
	m.state = MutationState{Status: StatusIdle}
	m.mu.Unlock()
}
