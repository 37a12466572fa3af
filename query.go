package flyapi

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/cosarberk/flyapi/internal/backoff"
	"github.com/cosarberk/flyapi/internal/singleflight"
)

// DefaultStaleTime is how long fetched data is served without refetching.
const DefaultStaleTime = 5 * time.Minute

// Status is the lifecycle state of a query or mutation.
type Status int

const (
	// StatusIdle is a mutation that has not run yet.
	StatusIdle Status = iota
	// StatusPending means no data is available yet.
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// QueryState is a snapshot of a cached query.
type QueryState struct {
	Key            QueryKey
	Data           json.RawMessage
	Err            error
	Status         Status
	UpdatedAt      time.Time
	ErrorUpdatedAt time.Time
	FetchCount     int
	FailureCount   int
	IsFetching     bool
	IsInvalidated  bool
}

// IsLoading reports whether the first fetch is still running.
func (s QueryState) IsLoading() bool { return s.Status == StatusPending && s.IsFetching }

// IsError reports whether the last fetch failed.
func (s QueryState) IsError() bool { return s.Status == StatusError }

// IsSuccess reports whether data is available.
func (s QueryState) IsSuccess() bool { return s.Status == StatusSuccess }

// FetchFunc loads the data for a query.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// QueryOption configures a QueryClient.
type QueryOption func(*QueryClient)

// WithStaleTime sets how long data stays fresh. Zero refetches on every
// read; a negative value never goes stale.
func WithStaleTime(d time.Duration) QueryOption {
	return func(qc *QueryClient) {
		qc.staleTime = d
	}
}

// WithRetry sets how many times a failed fetch is repeated.
func WithRetry(n int) QueryOption {
	return func(qc *QueryClient) {
		if n < 0 {
			n = 0
		}
		qc.retry = n
	}
}

// WithRetryBackoff sets the delay policy between fetch retries.
func WithRetryBackoff(policy backoff.Policy) QueryOption {
	return func(qc *QueryClient) {
		qc.backoff = backoff.New(backoff.ExponentialJitter{}, policy)
	}
}

// WithRetryCondition limits retries to errors accepted by fn.
func WithRetryCondition(fn func(error) bool) QueryOption {
	return func(qc *QueryClient) {
		qc.retryIf = fn
	}
}

// WithQueryLogger sets the logger used for fetch failures and retries.
func WithQueryLogger(logger Logger) QueryOption {
	return func(qc *QueryClient) {
		qc.logger = logger
	}
}

// WithQueryMetrics records cache hits, misses and shared fetches.
func WithQueryMetrics(collector *MetricsCollector) QueryOption {
	return func(qc *QueryClient) {
		qc.metrics = collector
	}
}

// QueryClient caches query results by key and merges concurrent fetches.
// It is safe for concurrent use.
type QueryClient struct {
	store     *queryStore
	flight    *singleflight.Group[QueryState]
	staleTime time.Duration
	retry     int
	retryIf   func(error) bool
	backoff   *backoff.Backoff
	logger    Logger
	metrics   *MetricsCollector
}

// NewQueryClient creates an empty cache.
func NewQueryClient(opts ...QueryOption) *QueryClient {
	qc := &QueryClient{
		store:     newQueryStore(),
		flight:    singleflight.New[QueryState](),
		staleTime: DefaultStaleTime,
		retryIf:   func(error) bool { return true },
		backoff:   backoff.New(backoff.ExponentialJitter{}, backoff.DefaultPolicy()),
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		opt(qc)
	}
	if qc.logger == nil {
		qc.logger = nopLogger{}
	}
	return qc
}

// Fetch returns fresh cached data for key without calling fn. Otherwise fn
// runs once for all concurrent callers and its result is stored. A caller
// whose ctx ends stops waiting; the fetch continues for the others.
func (qc *QueryClient) Fetch(ctx context.Context, key QueryKey, fn FetchFunc) (json.RawMessage, error) {
	state, err := qc.fetch(ctx, key, fn)
	if err != nil {
		return nil, err
	}
	return state.Data, nil
}

// Query runs Fetch and returns the snapshot the fetch settled, even if the
// entry was removed from the cache in the meantime. A fetch error is
// reported in the snapshot rather than returned.
func (qc *QueryClient) Query(ctx context.Context, key QueryKey, fn FetchFunc) QueryState {
	state, err := qc.fetch(ctx, key, fn)
	if err != nil && ctx.Err() != nil {
		state, _ = qc.GetQueryState(key)
		state.Err = err
	}
	return state
}

// fetch returns the snapshot of the entry it served or settled.
func (qc *QueryClient) fetch(ctx context.Context, key QueryKey, fn FetchFunc) (QueryState, error) {
	entry := qc.store.getOrCreate(key)
	if _, ok := entry.fresh(qc.staleTime); ok {
		qc.metrics.RecordQueryHit(key.Category())
		return entry.snapshot(), nil
	}
	qc.metrics.RecordQueryMiss(key.Category())

	fetchCtx := context.WithoutCancel(ctx)
	ch := qc.flight.DoChan(key.String(), func() (QueryState, error) {
		entry.update(func(s *QueryState) {
			s.IsFetching = true
			s.FetchCount++
		})
		data, err := qc.runWithRetry(fetchCtx, key, fn)
		entry.update(func(s *QueryState) {
			s.IsFetching = false
			if err != nil {
				s.Err = err
				s.Status = StatusError
				s.ErrorUpdatedAt = time.Now()
				s.FailureCount++
				return
			}
			s.Data = data
			s.Err = nil
			s.Status = StatusSuccess
			s.UpdatedAt = time.Now()
			s.FailureCount = 0
			s.IsInvalidated = false
		})
		qc.metrics.RecordQueriesCached(qc.store.len())
		return entry.snapshot(), err
	})

	select {
	case <-ctx.Done():
		return QueryState{Key: key, Status: StatusPending}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			qc.metrics.RecordSingleflightShared(key.Category())
		}
		return r.Val, r.Err
	}
}

func (qc *QueryClient) runWithRetry(ctx context.Context, key QueryKey, fn FetchFunc) (json.RawMessage, error) {
	for attempt := 0; ; attempt++ {
		data, err := fn(ctx)
		if err == nil {
			return data, nil
		}
		if attempt >= qc.retry || !qc.retryIf(err) {
			qc.logger.Warn("query failed", "key", key.String(), "attempts", attempt+1, "error", err)
			return nil, err
		}
		delay := qc.backoff.Delay(attempt)
		qc.logger.Debug("retrying query", "key", key.String(), "attempt", attempt+1, "backoff", delay)
		if werr := backoff.Sleep(ctx, delay); werr != nil {
			return nil, err
		}
	}
}

// GetQueryData returns the cached data for key, if any.
func (qc *QueryClient) GetQueryData(key QueryKey) (json.RawMessage, bool) {
	entry, ok := qc.store.get(key)
	if !ok {
		return nil, false
	}
	state := entry.snapshot()
	if state.Status != StatusSuccess {
		return nil, false
	}
	return state.Data, true
}

// SetQueryData stores data for key as a successful fetch.
func (qc *QueryClient) SetQueryData(key QueryKey, data json.RawMessage) {
	entry := qc.store.getOrCreate(key)
	entry.update(func(s *QueryState) {
		s.Data = data
		s.Err = nil
		s.Status = StatusSuccess
		s.UpdatedAt = time.Now()
		s.IsInvalidated = false
	})
	qc.metrics.RecordQueriesCached(qc.store.len())
}

// GetQueryState returns a snapshot for key. The zero state has StatusPending.
func (qc *QueryClient) GetQueryState(key QueryKey) (QueryState, bool) {
	entry, ok := qc.store.get(key)
	if !ok {
		return QueryState{Key: key, Status: StatusPending}, false
	}
	return entry.snapshot(), true
}

// InvalidateQueries marks every query whose key starts with prefix as stale
// and returns how many were marked. An empty prefix matches all queries.
func (qc *QueryClient) InvalidateQueries(prefix ...string) int {
	entries := qc.store.matching(prefix)
	for _, entry := range entries {
		entry.update(func(s *QueryState) {
			s.IsInvalidated = true
		})
	}
	return len(entries)
}

// RemoveQueries drops every query whose key starts with prefix. Subscribers
// receive a final pending state.
func (qc *QueryClient) RemoveQueries(prefix ...string) int {
	removed := qc.store.removeMatching(prefix)
	for _, entry := range removed {
		qc.flight.Forget(entry.key.String())
		entry.update(func(s *QueryState) {
			*s = QueryState{Key: entry.key, Status: StatusPending}
		})
	}
	qc.metrics.RecordQueriesCached(qc.store.len())
	return len(removed)
}

// Clear drops every query.
func (qc *QueryClient) Clear() {
	qc.RemoveQueries()
}

// Len returns the number of cached queries.
func (qc *QueryClient) Len() int {
	return qc.store.len()
}

// Subscribe yields the current state of key and then every change until
// ctx ends or the consumer stops. A slow consumer only sees the latest state.
func (qc *QueryClient) Subscribe(ctx context.Context, key QueryKey) iter.Seq[QueryState] {
	return func(yield func(QueryState) bool) {
		entry := qc.store.getOrCreate(key)
		ch, cancel := entry.subscribe()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case state := <-ch:
				if !yield(state) {
					return
				}
			}
		}
	}
}
