package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics holds all Prometheus metrics for the activity stream
type StreamMetrics struct {
	// RecordsInsertedTotal counts successfully persisted records by connector
	RecordsInsertedTotal *prometheus.CounterVec

	// RecordsSkippedTotal counts events dropped before the write.
	// Labels: reason={excluded,agent_policy}
	RecordsSkippedTotal *prometheus.CounterVec

	// MetaWriteFailuresTotal counts best-effort metadata rows that failed to write
	MetaWriteFailuresTotal prometheus.Counter

	// QueryDurationSeconds tracks query engine latency distribution
	QueryDurationSeconds prometheus.Histogram
}

// NewStreamMetrics creates and initializes stream metrics
func NewStreamMetrics() *StreamMetrics {
	return &StreamMetrics{
		RecordsInsertedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamlog",
				Subsystem: "ingest",
				Name:      "records_inserted_total",
				Help:      "Total number of activity records persisted, by connector",
			},
			[]string{"connector"},
		),

		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamlog",
				Subsystem: "ingest",
				Name:      "records_skipped_total",
				Help:      "Total number of events dropped before the write, by reason",
			},
			[]string{"reason"},
		),

		MetaWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamlog",
				Subsystem: "ingest",
				Name:      "meta_write_failures_total",
				Help:      "Total number of metadata rows that failed to write (best-effort)",
			},
		),

		QueryDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "streamlog",
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query engine latency distribution in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
				},
			},
		),
	}
}

// Describe implements prometheus.Collector
func (m *StreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RecordsInsertedTotal.Describe(ch)
	m.RecordsSkippedTotal.Describe(ch)
	m.MetaWriteFailuresTotal.Describe(ch)
	m.QueryDurationSeconds.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *StreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RecordsInsertedTotal.Collect(ch)
	m.RecordsSkippedTotal.Collect(ch)
	m.MetaWriteFailuresTotal.Collect(ch)
	m.QueryDurationSeconds.Collect(ch)
}

// Skip reasons for RecordsSkippedTotal
const (
	SkipReasonExcluded    = "excluded"
	SkipReasonAgentPolicy = "agent_policy"
)
