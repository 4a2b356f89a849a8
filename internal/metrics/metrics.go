// Package metrics defines the Prometheus collectors for the link engine and
// exposes an HTTP handler for scraping. A nil *Metrics is valid and records
// nothing, so library callers can leave metrics out.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search result types.
const (
	ResultListing = "listing"
	ResultHit     = "hit"
	ResultZero    = "zero_result"
	ResultError   = "error"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	registry *prometheus.Registry

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram
	WritesTotal        *prometheus.CounterVec
	IndexRebuildsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitlinks_search_queries_total",
				Help: "Total search calls by result type (listing, hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blitlinks_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blitlinks_search_results_count",
				Help:    "Number of records returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitlinks_writes_total",
				Help: "Record writes by operation and status.",
			},
			[]string{"op", "status"},
		),
		IndexRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blitlinks_index_rebuilds_total",
				Help: "Full index rebuilds by reason (startup, corruption, external, manual).",
			},
			[]string{"reason"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.WritesTotal,
		m.IndexRebuildsTotal,
	)
	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveSearch records one search call.
func (m *Metrics) ObserveSearch(resultType string, d time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.Observe(d.Seconds())
	if resultType != ResultError {
		m.SearchResultsCount.Observe(float64(results))
	}
}

// ObserveWrite records an insert or update.
func (m *Metrics) ObserveWrite(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.WritesTotal.WithLabelValues(op, status).Inc()
}

// ObserveRebuild records a full index rebuild.
func (m *Metrics) ObserveRebuild(reason string) {
	if m == nil {
		return
	}
	m.IndexRebuildsTotal.WithLabelValues(reason).Inc()
}
