package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Batch reconciliation metrics
	BatchRuns     *prometheus.CounterVec
	BatchItems    *prometheus.CounterVec
	BatchDuration prometheus.Histogram

	// Upstream call metrics
	UpstreamFailures *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Interactive
	CapturesCreated  *prometheus.CounterVec
	BriefingsCreated prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg.
// A nil registerer creates unregistered metrics, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Batch runs by outcome: completed, skipped (lease held), failed (setup error)
		BatchRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_batch_runs_total",
			Help: "Total number of batch reconciliation runs by outcome",
		}, []string{"outcome"}),

		// Batch items by result: processed, failed, skipped
		BatchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_batch_items_total",
			Help: "Total number of captures handled by the batch workflow by result",
		}, []string{"type", "result"}),

		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "janus_batch_duration_seconds",
			Help:    "Batch reconciliation run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		// Upstream failures by upstream and operation
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_upstream_failures_total",
			Help: "Total number of failed calls to external providers",
		}, []string{"upstream", "operation"}),

		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "janus_upstream_request_duration_seconds",
			Help:    "External provider call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // LLM responses can take a while
		}, []string{"upstream", "operation"}),

		CapturesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "janus_captures_created_total",
			Help: "Total number of captures created by type",
		}, []string{"type"}),

		BriefingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "janus_briefings_created_total",
			Help: "Total number of briefings generated",
		}),
	}
}

// RecordBatchRun records a finished batch run
func (m *Metrics) RecordBatchRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.BatchRuns.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.BatchDuration.Observe(seconds)
	}
}

// RecordBatchItem records the result of one capture within a run
func (m *Metrics) RecordBatchItem(captureType, result string) {
	if m == nil {
		return
	}
	m.BatchItems.WithLabelValues(captureType, result).Inc()
}

// RecordUpstreamCall records latency and, on failure, the failure counter
func (m *Metrics) RecordUpstreamCall(upstream, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.UpstreamLatency.WithLabelValues(upstream, operation).Observe(seconds)
	if err != nil {
		m.UpstreamFailures.WithLabelValues(upstream, operation).Inc()
	}
}

// RecordCapture records a newly created capture
func (m *Metrics) RecordCapture(captureType string) {
	if m == nil {
		return
	}
	m.CapturesCreated.WithLabelValues(captureType).Inc()
}

// RecordBriefing records a newly generated briefing
func (m *Metrics) RecordBriefing() {
	if m == nil {
		return
	}
	m.BriefingsCreated.Inc()
}
