package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "easylish"

// Metrics holds the core metrics for the retrieval engine.
type Metrics struct {
	// SearchesTotal counts search requests by backend source and outcome.
	SearchesTotal *prometheus.CounterVec

	// SearchDuration tracks search latency by backend source.
	SearchDuration *prometheus.HistogramVec

	// EmbeddingFallbacks counts chunks that fell back to the hash embedder
	// after the primary embedder failed.
	EmbeddingFallbacks prometheus.Counter

	// EngineReady reports 1 when the engine has finished initializing.
	EngineReady prometheus.Gauge

	// IndexSize reports the number of entries the active backend serves.
	IndexSize prometheus.Gauge

	// InitDuration tracks how long index builds take.
	InitDuration prometheus.Histogram

	// ErrorsTotal counts errors by component.
	ErrorsTotal *prometheus.CounterVec

	// HealthStatus reports per-component health (1 healthy, 0 unhealthy).
	HealthStatus *prometheus.GaugeVec
}

// NewMetrics creates the core metric set. Collectors are not registered;
// NewMetricsRegistry does that.
func NewMetrics() *Metrics {
	return &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of search requests by source and status",
			},
			[]string{"source", "status"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Search request latency by source",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"source"},
		),
		EmbeddingFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_fallback_chunks_total",
				Help:      "Chunks embedded by the hash fallback after primary embedder failures",
			},
		),
		EngineReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "engine_ready",
				Help:      "Whether the engine is initialized and serving (1) or not (0)",
			},
		),
		IndexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_entries",
				Help:      "Number of subtitle entries in the active backend",
			},
		),
		InitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "init_duration_seconds",
				Help:      "Time spent building the index during initialization",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by component",
			},
			[]string{"component"},
		),
		HealthStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "component_health",
				Help:      "Component health status (1 healthy, 0 unhealthy)",
			},
			[]string{"component"},
		),
	}
}

// RecordSearch records one completed search request.
func (m *Metrics) RecordSearch(source, status string, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(source, status).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordError increments the error counter for a component.
func (m *Metrics) RecordError(component string) {
	m.ErrorsTotal.WithLabelValues(component).Inc()
}

// SetReady updates the engine readiness gauge.
func (m *Metrics) SetReady(ready bool) {
	if ready {
		m.EngineReady.Set(1)
		return
	}
	m.EngineReady.Set(0)
}

// SetHealth updates a component health gauge.
func (m *Metrics) SetHealth(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.HealthStatus.WithLabelValues(component).Set(v)
}
