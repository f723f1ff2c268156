// Package metrics declares the Prometheus collectors shared by the dispatch
// backends, the callback handler and the local worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// TasksDispatchedTotal counts dispatch attempts per backend.
	TasksDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudtask_tasks_dispatched_total",
			Help: "Total number of task dispatch attempts",
		},
		[]string{"backend", "outcome"},
	)

	// CallbackRequestsTotal counts inbound task callbacks by response status.
	CallbackRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudtask_callback_requests_total",
			Help: "Total number of task callbacks handled, by HTTP status",
		},
		[]string{"status"},
	)

	// TaskExecutionSeconds tracks task function run time.
	TaskExecutionSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudtask_task_execution_seconds",
			Help:    "Histogram of task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task", "outcome"},
	)

	// SimulatedCallbacksTotal counts callbacks posted by the local worker.
	SimulatedCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudtask_simulated_callbacks_total",
			Help: "Total number of callbacks posted by the local broker worker",
		},
		[]string{"outcome"},
	)
)

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
