// Package metrics defines the Prometheus metric collectors used by the
// track search service and exposes an HTTP handler for scraping.
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
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	FilterRequestsTotal  *prometheus.CounterVec
	WorkerPending        prometheus.Gauge
	IndexedTracks        prometheus.Gauge
	IndexTermCount       prometheus.Gauge
	IndexBuildDuration   prometheus.Gauge
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	TracksUpsertedTotal  prometheus.Counter
	TracksRemovedTotal   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by execution path (indexed, inline, delegate) and result type.",
			},
			[]string{"path", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds by execution path.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"path"},
		),
		FilterRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filter_requests_total",
				Help: "Total filter invocations by execution mode (inline, delegate, fallback).",
			},
			[]string{"mode"},
		),
		WorkerPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_pending_requests",
				Help: "Delegated filter requests currently awaiting a worker result.",
			},
		),
		IndexedTracks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_tracks",
				Help: "Number of tracks currently in the inverted index.",
			},
		),
		IndexTermCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_term_count",
				Help: "Number of distinct terms currently in the inverted index.",
			},
		),
		IndexBuildDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_build_duration_seconds",
				Help: "Duration of the most recent full index build in seconds.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		TracksUpsertedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracks_upserted_total",
				Help: "Total track upserts applied to the index.",
			},
		),
		TracksRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracks_removed_total",
				Help: "Total track removals applied to the index.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.FilterRequestsTotal,
		m.WorkerPending,
		m.IndexedTracks,
		m.IndexTermCount,
		m.IndexBuildDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.TracksUpsertedTotal,
		m.TracksRemovedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
