package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/cloudtask/internal/task"
)

// MockBackend implements task.Backend for testing. It records every task it
// receives.
type MockBackend struct {
	EnqueueFn func(ctx context.Context, t *task.Task) error

	// DefaultError is returned when EnqueueFn is nil.
	DefaultError error

	mu       sync.Mutex
	enqueued []*task.Task
}

// Name implements task.Backend.
func (m *MockBackend) Name() string { return "mock" }

// Enqueue implements task.Backend.
func (m *MockBackend) Enqueue(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	m.enqueued = append(m.enqueued, t)
	m.mu.Unlock()

	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, t)
	}
	return m.DefaultError
}

// Enqueued returns the tasks passed to Enqueue, in order.
func (m *MockBackend) Enqueued() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*task.Task(nil), m.enqueued...)
}

// MockSchedulingBackend is a MockBackend that also implements task.Scheduler.
type MockSchedulingBackend struct {
	MockBackend

	ScheduleFn func(ctx context.Context, t *task.Task, at time.Time) error

	// ScheduledAt holds the time passed to the last Schedule call.
	ScheduledAt time.Time
}

// Schedule implements task.Scheduler.
func (m *MockSchedulingBackend) Schedule(ctx context.Context, t *task.Task, at time.Time) error {
	m.mu.Lock()
	m.enqueued = append(m.enqueued, t)
	m.ScheduledAt = at
	m.mu.Unlock()

	if m.ScheduleFn != nil {
		return m.ScheduleFn(ctx, t, at)
	}
	return m.DefaultError
}
