package task

import (
	"context"
	"time"
)

// Backend delivers a Task to the callback handler.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Enqueue submits the task for immediate delivery.
	Enqueue(ctx context.Context, t *Task) error
}

// Scheduler is implemented by backends that support delayed delivery.
type Scheduler interface {
	Schedule(ctx context.Context, t *Task, at time.Time) error
}

// InlineBackend executes tasks synchronously in the calling goroutine. It is
// selected in testing mode so dispatch runs the function immediately and
// reports its failure.
type InlineBackend struct{}

// NewInlineBackend creates an InlineBackend.
func NewInlineBackend() *InlineBackend {
	return &InlineBackend{}
}

// Name implements Backend.
func (b *InlineBackend) Name() string { return "inline" }

// Enqueue runs the task. Failures wrap ErrExecution.
func (b *InlineBackend) Enqueue(ctx context.Context, t *Task) error {
	_, err := t.ExecuteLocally(ctx)
	return err
}

// Schedule runs the task immediately, ignoring at.
func (b *InlineBackend) Schedule(ctx context.Context, t *Task, _ time.Time) error {
	return b.Enqueue(ctx, t)
}
