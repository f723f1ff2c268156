package localbroker

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeCallback is the asynq task type of a simulated callback.
const TypeCallback = "cloudtask:callback"

// DefaultQueue is used when no broker queue is configured.
const DefaultQueue = "cloudtask"

// CallbackJob is the asynq payload of a simulated callback.
type CallbackJob struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	// Body is the base64 task payload, posted as is.
	Body string `json:"body"`
}

// NewCallbackTask wraps job in an asynq task.
func NewCallbackTask(job CallbackJob, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal callback job: %w", err)
	}
	return asynq.NewTask(TypeCallback, payload, opts...), nil
}

// ParseCallbackJob decodes the payload of a callback task.
func ParseCallbackJob(t *asynq.Task) (CallbackJob, error) {
	var job CallbackJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return CallbackJob{}, fmt.Errorf("failed to unmarshal callback job: %w", err)
	}
	if job.URL == "" {
		return CallbackJob{}, fmt.Errorf("callback job has no url")
	}
	return job, nil
}
