// Package metrics provides Prometheus instrumentation for the dispatch
// core: task submission/completion counters, result-cache operations,
// and subworker load/active-count gauges, each exposed as a free
// function over a package-level promauto collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastworker_tasks_submitted_total",
			Help: "Total number of tasks submitted, by priority.",
		},
		[]string{"priority"},
	)

	tasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastworker_tasks_completed_total",
			Help: "Total number of tasks that finished, by priority and status.",
		},
		[]string{"priority", "status"},
	)

	taskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fastworker_task_duration_seconds",
			Help:    "Task execution duration in seconds.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"task_name"},
	)

	cacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastworker_result_cache_ops_total",
			Help: "Result cache operations, by kind (hit, miss, evict, store).",
		},
		[]string{"kind"},
	)

	subworkerLoad = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fastworker_subworker_load",
			Help: "Outstanding load counter per subworker.",
		},
		[]string{"subworker_id"},
	)

	activeSubworkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fastworker_active_subworkers",
			Help: "Number of subworkers currently marked active.",
		},
	)
)

// RecordSubmitted records a task submission at the given priority.
func RecordSubmitted(priority string) {
	tasksSubmittedTotal.WithLabelValues(priority).Inc()
}

// RecordCompleted records a terminal task outcome and its duration.
func RecordCompleted(priority, status, taskName string, durationSeconds float64) {
	tasksCompletedTotal.WithLabelValues(priority, status).Inc()
	taskDurationSeconds.WithLabelValues(taskName).Observe(durationSeconds)
}

// RecordCacheOp records a result-cache operation outcome.
func RecordCacheOp(kind string) {
	cacheOpsTotal.WithLabelValues(kind).Inc()
}

// SetSubworkerLoad publishes a subworker's current load counter.
func SetSubworkerLoad(subworkerID string, load int) {
	subworkerLoad.WithLabelValues(subworkerID).Set(float64(load))
}

// SetActiveSubworkers publishes the active-subworker count.
func SetActiveSubworkers(count int) {
	activeSubworkers.Set(float64(count))
}
