package task

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/cloudtask/internal/codec"
	"github.com/phrazzld/cloudtask/internal/config"
)

// Reserved payload envelope keys. Arguments may not use them.
var reservedKeys = []string{"path", "data"}

// Task is one invocation of a registered function: the arguments plus
// everything needed to deliver them to the callback handler. A Task is
// dispatched at most once.
type Task struct {
	desc *Descriptor
	data map[string]any

	queue        string
	url          string
	extraHeaders map[string]string
	naming       Naming
	principal    string
	name         string

	cfg     config.TasksConfig
	backend Backend
	logger  *slog.Logger

	dispatched atomic.Bool
	queuePath  func() string
	taskPath   func() string
}

func newTask(
	cfg config.TasksConfig,
	backend Backend,
	logger *slog.Logger,
	desc *Descriptor,
	args map[string]any,
	opts []Option,
) (*Task, error) {
	for _, key := range reservedKeys {
		if _, ok := args[key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrReservedArgument, key)
		}
	}

	t := &Task{
		desc:         desc,
		data:         maps.Clone(args),
		extraHeaders: make(map[string]string),
		naming:       NoName(),
		principal:    cfg.ServiceAccountEmail,
		cfg:          cfg,
		backend:      backend,
	}
	if t.data == nil {
		t.data = make(map[string]any)
	}

	for _, opt := range desc.defaults {
		opt(t)
	}
	for _, opt := range opts {
		opt(t)
	}

	var err error
	if t.queue == "" {
		if t.queue, err = cfg.DefaultQueue(); err != nil {
			return nil, err
		}
	}
	if t.url == "" {
		if t.url, err = cfg.DefaultURL(); err != nil {
			return nil, err
		}
	}
	if t.name, err = t.naming.resolve(desc); err != nil {
		return nil, err
	}

	t.queuePath = sync.OnceValue(func() string {
		return fmt.Sprintf("projects/%s/locations/%s/queues/%s", t.cfg.Project, t.cfg.Location, t.queue)
	})
	t.taskPath = sync.OnceValue(func() string {
		if t.name == "" {
			return ""
		}
		return t.queuePath() + "/tasks/" + t.name
	})

	t.logger = logger.With(
		"task_path", desc.Path(),
		"queue", t.queue,
		"backend", backend.Name(),
	)
	return t, nil
}

// Descriptor returns the descriptor the task invokes.
func (t *Task) Descriptor() *Descriptor { return t.desc }

// Path returns the descriptor's identity path.
func (t *Task) Path() string { return t.desc.Path() }

// Queue returns the resolved queue name.
func (t *Task) Queue() string { return t.queue }

// URL returns the resolved callback URL.
func (t *Task) URL() string { return t.url }

// Principal returns the identity-token service account, or "".
func (t *Task) Principal() string { return t.principal }

// TaskName returns the resource name of a named task, or "".
func (t *Task) TaskName() string { return t.name }

// QueuePath returns the fully-qualified push-queue resource name.
func (t *Task) QueuePath() string { return t.queuePath() }

// TaskPath returns the fully-qualified task resource name, or "" when the
// task is unnamed.
func (t *Task) TaskPath() string { return t.taskPath() }

// Data returns a copy of the task arguments.
func (t *Task) Data() map[string]any {
	return maps.Clone(t.data)
}

// SetData merges data into the task arguments. Existing keys not present in
// data are kept.
func (t *Task) SetData(data map[string]any) error {
	for _, key := range reservedKeys {
		if _, ok := data[key]; ok {
			return fmt.Errorf("%w: %q", ErrReservedArgument, key)
		}
	}
	maps.Copy(t.data, data)
	return nil
}

// Headers returns the headers sent on the callback: the caller's headers in
// canonical form plus Content-Type and, when a secret is configured, the
// secret header. The fixed headers take precedence.
func (t *Task) Headers() map[string]string {
	headers := make(map[string]string, len(t.extraHeaders)+2)
	for key, value := range t.extraHeaders {
		headers[http.CanonicalHeaderKey(key)] = value
	}
	headers["Content-Type"] = "application/json"
	if t.cfg.Secret != "" {
		headers[SecretHeader] = t.cfg.Secret
	}
	return headers
}

// Payload returns the encoded callback body.
func (t *Task) Payload() ([]byte, error) {
	return codec.Encode(t.desc.Path(), t.data)
}

// Dispatch enqueues the task on the backend chosen at construction.
func (t *Task) Dispatch(ctx context.Context) error {
	return t.dispatch(ctx, func() error {
		return t.backend.Enqueue(ctx, t)
	})
}

// Push is an alias for Dispatch.
func (t *Task) Push(ctx context.Context) error {
	return t.Dispatch(ctx)
}

// Schedule enqueues the task for delivery at the given time. Backends that
// cannot schedule return ErrUnsupportedOperation.
func (t *Task) Schedule(ctx context.Context, at time.Time) error {
	scheduler, ok := t.backend.(Scheduler)
	if !ok {
		return fmt.Errorf("%w: %s backend cannot schedule", ErrUnsupportedOperation, t.backend.Name())
	}
	return t.dispatch(ctx, func() error {
		return scheduler.Schedule(ctx, t, at)
	})
}

// dispatch guards the single-dispatch rule around send. A failed send
// releases the guard so the caller may retry.
func (t *Task) dispatch(ctx context.Context, send func() error) error {
	if !t.dispatched.CompareAndSwap(false, true) {
		return ErrAlreadyDispatched
	}

	err := send()
	observeDispatch(t.backend.Name(), err)
	if err != nil {
		t.dispatched.Store(false)
		t.logger.ErrorContext(ctx, "task dispatch failed", "error", err)
		return err
	}

	t.logger.InfoContext(ctx, "task dispatched", "task_name", t.name)
	return nil
}

// ExecuteLocally runs the task function in-process without a callback.
func (t *Task) ExecuteLocally(ctx context.Context) (any, error) {
	req := &Request{
		Headers:   http.Header{},
		QueueName: t.queue,
		TaskName:  t.name,
		Local:     true,
	}
	for key, value := range t.Headers() {
		if key != SecretHeader {
			req.Headers.Set(key, value)
		}
	}
	return t.desc.Invoke(WithRequest(ctx, req), req, Args(t.Data()))
}
