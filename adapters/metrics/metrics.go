// Package metrics provides Prometheus metrics collection for the
// metering engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for metergate.
type Collector struct {
	// Ingest metrics
	EventsEnqueued prometheus.Counter
	EventsDropped  prometheus.Counter
	EventsApplied  prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Aggregator metrics
	BatchSize     prometheus.Histogram
	BatchFailures prometheus.Counter

	// Persistence metrics
	FlushTotal  prometheus.Counter
	FlushErrors prometheus.Counter

	// Cleanup metrics
	CleanupRuns prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered on the given registry.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		EventsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "events_enqueued_total",
			Help:      "Usage events accepted into the ingest queue",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "events_dropped_total",
			Help:      "Usage events dropped because the ingest queue was full",
		}),
		EventsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "events_applied_total",
			Help:      "Usage events applied to the aggregate stores",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "metergate",
			Name:      "queue_depth",
			Help:      "Events waiting in the ingest queue",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metergate",
			Name:      "batch_size",
			Help:      "Events applied per aggregator batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "batch_failures_total",
			Help:      "Aggregator batches abandoned after a failure",
		}),
		FlushTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "daily_flush_total",
			Help:      "Daily rollup persistence attempts",
		}),
		FlushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "daily_flush_errors_total",
			Help:      "Daily rollup persistence failures (retried next cycle)",
		}),
		CleanupRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "metergate",
			Name:      "cleanup_runs_total",
			Help:      "Completed cleanup passes",
		}),
	}
}
