package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HandlerMetrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

type ServiceMetrics struct {
	MethodCount    *prometheus.CounterVec
	MethodDuration *prometheus.HistogramVec
	Listings       prometheus.Gauge
	FetchFailures  *prometheus.CounterVec
}

type RepositoryMetrics struct {
	QueryCount    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	CacheResults  *prometheus.CounterVec
}

// NewHandlerMetrics registers the HTTP metrics with reg. The /metrics
// endpoint serves reg when it is also a Gatherer.
func NewHandlerMetrics(reg prometheus.Registerer) *HandlerMetrics {
	requestCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handler_requests_total",
			Help: "Total number of HTTP requests handled by the handler layer.",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handler_request_duration_seconds",
			Help:    "Histogram of response latency for handler in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	reg.MustRegister(requestCount, requestDuration)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &HandlerMetrics{
		RequestCount:    requestCount,
		RequestDuration: requestDuration,
		gatherer:        gatherer,
	}
}

func NewServiceMetrics(reg prometheus.Registerer) *ServiceMetrics {
	methodCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_methods_total",
			Help: "Total number of service methods executed.",
		},
		[]string{"method", "status"},
	)

	methodDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "service_method_duration_seconds",
			Help:    "Histogram of service method execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	listings := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_listings",
			Help: "Number of listings held in memory.",
		},
	)

	fetchFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fetch_failures_total",
			Help: "Failed catalog fetches by failure kind.",
		},
		[]string{"kind"},
	)

	reg.MustRegister(methodCount, methodDuration, listings, fetchFailures)

	return &ServiceMetrics{
		MethodCount:    methodCount,
		MethodDuration: methodDuration,
		Listings:       listings,
		FetchFailures:  fetchFailures,
	}
}

func NewRepositoryMetrics(reg prometheus.Registerer) *RepositoryMetrics {
	queryCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_queries_total",
			Help: "Total number of remote store calls executed.",
		},
		[]string{"query", "status"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_query_duration_seconds",
			Help:    "Histogram of remote store call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query", "status"},
	)

	cacheResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_cache_results_total",
			Help: "Snapshot cache lookups by result.",
		},
		[]string{"result"},
	)

	reg.MustRegister(queryCount, queryDuration, cacheResults)

	return &RepositoryMetrics{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		CacheResults:  cacheResults,
	}
}

func (hm *HandlerMetrics) Observe(method, endpoint, status string, start time.Time) {
	duration := time.Since(start).Seconds()
	hm.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	hm.RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}

func (sm *ServiceMetrics) Observe(method, status string, start time.Time) {
	duration := time.Since(start).Seconds()
	sm.MethodCount.WithLabelValues(method, status).Inc()
	sm.MethodDuration.WithLabelValues(method, status).Observe(duration)
}

func (rm *RepositoryMetrics) Observe(query, status string, start time.Time) {
	duration := time.Since(start).Seconds()
	rm.QueryCount.WithLabelValues(query, status).Inc()
	rm.QueryDuration.WithLabelValues(query, status).Observe(duration)
}

func (hm *HandlerMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})
}
