package flyapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for requests, the query
// cache and mutations. A nil collector records nothing.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	queryHits      *prometheus.CounterVec
	queryMisses    *prometheus.CounterVec
	queriesShared  *prometheus.CounterVec
	queriesCached  prometheus.Gauge
	mutationsTotal *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyapi_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flyapi_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flyapi_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		queryHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyapi_query_cache_hits_total",
				Help: "Total number of queries served from fresh cached data",
			},
			[]string{"category"},
		),
		queryMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyapi_query_cache_misses_total",
				Help: "Total number of queries that required a fetch",
			},
			[]string{"category"},
		),
		queriesShared: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyapi_query_fetches_shared_total",
				Help: "Total number of query results shared between concurrent callers",
			},
			[]string{"category"},
		),
		queriesCached: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "flyapi_queries_cached",
				Help: "Current number of entries in the query cache",
			},
		),
		mutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyapi_mutations_total",
				Help: "Total number of mutations by outcome",
			},
			[]string{"category", "status"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flyapi_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
	}
	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordQueryHit increments the cache hit counter.
func (mc *MetricsCollector) RecordQueryHit(category string) {
	if mc == nil {
		return
	}

	mc.queryHits.WithLabelValues(category).Inc()
}

// RecordQueryMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordQueryMiss(category string) {
	if mc == nil {
		return
	}

	mc.queryMisses.WithLabelValues(category).Inc()
}

// RecordSingleflightShared counts a fetch result delivered to merged callers.
func (mc *MetricsCollector) RecordSingleflightShared(category string) {
	if mc == nil {
		return
	}

	mc.queriesShared.WithLabelValues(category).Inc()
}

// RecordQueriesCached sets the cache size gauge.
func (mc *MetricsCollector) RecordQueriesCached(n int) {
	if mc == nil {
		return
	}

	mc.queriesCached.Set(float64(n))
}

// RecordMutation counts a settled mutation.
func (mc *MetricsCollector) RecordMutation(category string, status Status) {
	if mc == nil {
		return
	}

	mc.mutationsTotal.WithLabelValues(category, status.String()).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry. It is nil when the
// collector was built on a Registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
