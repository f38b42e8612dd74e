// internal/infra/metrics/lifecycle.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contest_lifecycle_batch_runs_total",
		Help: "Batch runs by outcome",
	}, []string{"outcome"}) // outcome=success|partial

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contest_lifecycle_sweep_duration_seconds",
		Help:    "Duration of one sweep per entity kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	sweepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contest_lifecycle_sweep_failures_total",
		Help: "Sweeps that failed before processing their candidates",
	}, []string{"kind"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contest_lifecycle_transitions_total",
		Help: "Per-entity transition attempts by outcome",
	}, []string{"kind", "outcome"}) // outcome=updated|skipped|error

	deliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contest_lifecycle_deliveries_total",
		Help: "Message deliveries created by stage notifications",
	})

	triggerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contest_lifecycle_trigger_requests_total",
		Help: "Batch trigger invocations by source and result",
	}, []string{"source", "result"})
)

// RecordBatchRun counts a finished batch run.
func RecordBatchRun(allSucceeded bool) {
	if allSucceeded {
		batchRunsTotal.WithLabelValues("success").Inc()
		return
	}
	batchRunsTotal.WithLabelValues("partial").Inc()
}

// RecordSweep observes a sweep duration and counts failures.
func RecordSweep(kind string, d time.Duration, failed bool) {
	sweepDuration.WithLabelValues(kind).Observe(d.Seconds())
	if failed {
		sweepFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// RecordTransition counts one candidate outcome.
func RecordTransition(kind, outcome string) {
	transitionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordDeliveries adds n created deliveries.
func RecordDeliveries(n int) {
	if n > 0 {
		deliveriesTotal.Add(float64(n))
	}
}

// RecordTrigger counts a trigger invocation.
func RecordTrigger(source, result string) {
	triggerRequestsTotal.WithLabelValues(source, result).Inc()
}
