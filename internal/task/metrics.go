package task

import (
	"time"

	"github.com/phrazzld/cloudtask/internal/metrics"
)

func observeExecution(path string, start time.Time, err error) {
	metrics.TaskExecutionSeconds.
		WithLabelValues(path, metrics.Outcome(err)).
		Observe(time.Since(start).Seconds())
}

func observeDispatch(backend string, err error) {
	metrics.TasksDispatchedTotal.WithLabelValues(backend, metrics.Outcome(err)).Inc()
}
