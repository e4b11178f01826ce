// Package metrics provides Prometheus metrics export for the indexing and
// search pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports pipeline metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	// Embedding provider metrics
	embeddingRequests *prometheus.CounterVec
	embeddingLatency  prometheus.Histogram

	// Search metrics
	searchRequests *prometheus.CounterVec
	searchLatency  prometheus.Histogram

	// Indexer metrics
	indexRuns    *prometheus.CounterVec
	indexedUnits *prometheus.CounterVec
}

// Config configures the metrics exporter.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds).
	LatencyBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.embeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentvec",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embedding provider calls",
		},
		[]string{"status"},
	)
	e.embeddingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contentvec",
			Subsystem: "embedding",
			Name:      "latency_seconds",
			Help:      "Embedding provider call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)
	e.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentvec",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of semantic search requests",
		},
		[]string{"metric", "status"},
	)
	e.searchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contentvec",
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Semantic search latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)
	e.indexRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentvec",
			Subsystem: "indexer",
			Name:      "runs_total",
			Help:      "Total number of indexing runs",
		},
		[]string{"status"},
	)
	e.indexedUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentvec",
			Subsystem: "indexer",
			Name:      "units_total",
			Help:      "Total number of field/item units processed by the indexer",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		e.embeddingRequests,
		e.embeddingLatency,
		e.searchRequests,
		e.searchLatency,
		e.indexRuns,
		e.indexedUnits,
	)

	return e
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) ObserveEmbedding(seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.embeddingRequests.WithLabelValues(status).Inc()
	if err == nil {
		e.embeddingLatency.Observe(seconds)
	}
}

func (e *Exporter) ObserveSearch(metric string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.searchRequests.WithLabelValues(metric, status).Inc()
	if err == nil {
		e.searchLatency.Observe(seconds)
	}
}

func (e *Exporter) ObserveIndexRun(failed bool) {
	if failed {
		e.indexRuns.WithLabelValues("failed").Inc()
		return
	}
	e.indexRuns.WithLabelValues("completed").Inc()
}

func (e *Exporter) AddIndexedUnits(processed, failed int) {
	if processed > 0 {
		e.indexedUnits.WithLabelValues("processed").Add(float64(processed))
	}
	if failed > 0 {
		e.indexedUnits.WithLabelValues("failed").Add(float64(failed))
	}
}
