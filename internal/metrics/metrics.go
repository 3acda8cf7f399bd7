// Package metrics exposes Prometheus instrumentation for the worker pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for pool, task, and batch
// measurements. A nil *Metrics is valid and records nothing, so callers
// never need to branch on whether instrumentation is enabled.
type Metrics struct {
	PoolCapacity prometheus.Gauge
	WorkersBusy  prometheus.Gauge

	TasksTotal       *prometheus.CounterVec
	TaskRetriesTotal prometheus.Counter
	TaskDuration     prometheus.Histogram

	BatchesRejectedTotal *prometheus.CounterVec
	BatchDuration        prometheus.Histogram
}

// New creates the metric collectors and registers them with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		PoolCapacity: promauto.With(registerer).NewGauge(prometheus.GaugeOpts{
			Name: "searchpool_capacity",
			Help: "Fixed pool capacity",
		}),
		WorkersBusy: promauto.With(registerer).NewGauge(prometheus.GaugeOpts{
			Name: "searchpool_workers_busy",
			Help: "Number of workers currently claimed by a batch",
		}),
		TasksTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchpool_tasks_total",
				Help: "Completed subtasks by outcome",
			},
			[]string{"outcome"},
		),
		TaskRetriesTotal: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Name: "searchpool_task_retries_total",
			Help: "Subtask attempts that failed and were retried",
		}),
		TaskDuration: promauto.With(registerer).NewHistogram(prometheus.HistogramOpts{
			Name:    "searchpool_task_duration_seconds",
			Help:    "Subtask duration from first attempt to final outcome",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BatchesRejectedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchpool_batches_rejected_total",
				Help: "Batches rejected at admission by reason",
			},
			[]string{"reason"},
		),
		BatchDuration: promauto.With(registerer).NewHistogram(prometheus.HistogramOpts{
			Name:    "searchpool_batch_duration_seconds",
			Help:    "Batch duration from admission to aggregation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// SetPoolCapacity records the fixed pool capacity.
func (m *Metrics) SetPoolCapacity(n int) {
	if m == nil {
		return
	}
	m.PoolCapacity.Set(float64(n))
}

// SetBusyWorkers records the number of currently claimed workers.
func (m *Metrics) SetBusyWorkers(n int) {
	if m == nil {
		return
	}
	m.WorkersBusy.Set(float64(n))
}

// ObserveTask records one completed subtask.
func (m *Metrics) ObserveTask(success bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.TasksTotal.WithLabelValues(outcome).Inc()
	m.TaskDuration.Observe(seconds)
}

// IncRetry records one retried attempt.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.TaskRetriesTotal.Inc()
}

// ObserveBatch records one completed batch.
func (m *Metrics) ObserveBatch(seconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(seconds)
}

// ObserveRejection records one admission rejection.
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.BatchesRejectedTotal.WithLabelValues(reason).Inc()
}
