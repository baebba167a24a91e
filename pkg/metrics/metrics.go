// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ComputationsTotal    *prometheus.CounterVec
	ComputeDuration      *prometheus.HistogramVec
	ItemsPerComputation  prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RunsPersistedTotal   *prometheus.CounterVec
	EventsPublishedTotal *prometheus.CounterVec
	JobsProcessedTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ComputationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divergence_computations_total",
				Help: "Divergence computations by alpha branch and result (ok, invalid, degenerate, error).",
			},
			[]string{"branch", "result"},
		),
		ComputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "divergence_compute_seconds",
				Help:    "Kernel latency in seconds by alpha branch.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"branch"},
		),
		ItemsPerComputation: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "divergence_items",
				Help:    "Number of aligned items per computation.",
				Buckets: prometheus.ExponentialBuckets(10, 10, 7),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "comparison_cache_hits_total",
				Help: "Total number of comparison cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "comparison_cache_misses_total",
				Help: "Total number of comparison cache misses.",
			},
		),
		RunsPersistedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comparison_runs_persisted_total",
				Help: "Comparison runs written to PostgreSQL by status.",
			},
			[]string{"status"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comparison_events_published_total",
				Help: "Completion events published to Kafka by status.",
			},
			[]string{"status"},
		),
		JobsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comparison_jobs_processed_total",
				Help: "Comparison jobs consumed from Kafka by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ComputationsTotal,
		m.ComputeDuration,
		m.ItemsPerComputation,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RunsPersistedTotal,
		m.EventsPublishedTotal,
		m.JobsProcessedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a scrape handler for a private registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
