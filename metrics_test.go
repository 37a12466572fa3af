package flyapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollectorWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	if collector.GetRegistry() != registry {
		t.Error("Expected collector to expose its registry")
	}

	other := NewMetricsCollectorWithRegistry(prometheus.WrapRegistererWithPrefix("x_", prometheus.NewRegistry()))
	if other.GetRegistry() != nil {
		t.Error("Expected nil registry for a wrapped registerer")
	}
}

func TestNilMetricsCollector(t *testing.T) {
	var collector *MetricsCollector

	collector.RecordRequest("GET", "/", 200, time.Millisecond)
	collector.RecordRequestStart("GET", "/")
	collector.RecordRequestEnd("GET", "/")
	collector.RecordQueryHit("user")
	collector.RecordQueryMiss("user")
	collector.RecordSingleflightShared("user")
	collector.RecordQueriesCached(1)
	collector.RecordMutation("user", StatusSuccess)
	collector.RecordError(ErrorTypeTransport, "GET", "/")

	if collector.GetRegistry() != nil {
		t.Error("Expected nil registry from nil collector")
	}
}

func TestClientRecordsRequestMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(WithBaseURL(server.URL), WithMetricsCollector(collector))

	if _, err := client.Get(context.Background(), "/ok", nil); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	client.Get(context.Background(), "/fail", nil)

	host := strings.TrimPrefix(server.URL, "http://")
	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "200", host+"/ok")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "502", host+"/fail")); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
	if got := testutil.ToFloat64(collector.errorsTotal.WithLabelValues(ErrorTypeTransport, "GET", host+"/fail")); got != 1 {
		t.Errorf("Expected 1 transport error, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requestsInFlight.WithLabelValues("GET", host+"/ok")); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}
}

func TestQueryClientRecordsCacheMetrics(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	qc := NewQueryClient(WithQueryMetrics(collector))
	key := QueryKey{"user", "getUser"}
	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`1`), nil
	}

	qc.Fetch(context.Background(), key, fetch)
	qc.Fetch(context.Background(), key, fetch)
	qc.Fetch(context.Background(), key, fetch)

	if got := testutil.ToFloat64(collector.queryMisses.WithLabelValues("user")); got != 1 {
		t.Errorf("Expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(collector.queryHits.WithLabelValues("user")); got != 2 {
		t.Errorf("Expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(collector.queriesCached); got != 1 {
		t.Errorf("Expected 1 cached query, got %v", got)
	}
}

func TestQueryClientRecordsSharedFetches(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	qc := NewQueryClient(WithQueryMetrics(collector))
	key := QueryKey{"user", "list"}
	release := make(chan struct{})
	fetch := func(ctx context.Context) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`[]`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qc.Fetch(context.Background(), key, fetch)
		}()
	}

	for testutil.ToFloat64(collector.queryMisses.WithLabelValues("user")) < 2 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := testutil.ToFloat64(collector.queriesShared.WithLabelValues("user")); got != 2 {
		t.Errorf("Expected both callers to see a shared result, got %v", got)
	}
}

func TestMutationMetrics(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	qc := NewQueryClient(WithQueryMetrics(collector))

	ok := qc.NewMutation(func(ctx context.Context, vars any) (json.RawMessage, error) {
		return nil, nil
	}, WithMutationKey("user", "createUser"))
	bad := qc.NewMutation(func(ctx context.Context, vars any) (json.RawMessage, error) {
		return nil, errors.New("no")
	}, WithMutationKey("user", "deleteUser"))

	ok.Mutate(context.Background(), nil)
	ok.Mutate(context.Background(), nil)
	bad.Mutate(context.Background(), nil)

	if got := testutil.ToFloat64(collector.mutationsTotal.WithLabelValues("user", "success")); got != 2 {
		t.Errorf("Expected 2 successful mutations, got %v", got)
	}
	if got := testutil.ToFloat64(collector.mutationsTotal.WithLabelValues("user", "error")); got != 1 {
		t.Errorf("Expected 1 failed mutation, got %v", got)
	}
}
