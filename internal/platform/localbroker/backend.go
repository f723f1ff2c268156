package localbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/task"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Enqueuer is the subset of the asynq client used by the Backend.
// *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Backend enqueues callback jobs on the local broker.
type Backend struct {
	enqueuer Enqueuer
	queue    string
	logger   *slog.Logger
	closers  []func() error
}

var (
	_ task.Backend   = (*Backend)(nil)
	_ task.Scheduler = (*Backend)(nil)
)

// New connects to Redis and creates a Backend. The connection is checked
// with a ping so a missing broker fails at startup.
func New(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to broker at %s: %w", opts.Addr, err)
	}

	return NewFromRedisClient(rdb, cfg.Queue, logger), nil
}

// NewFromRedisClient creates a Backend whose asynq client shares rdb. The
// Backend takes ownership of rdb and closes it on Close; asynq refuses to
// close a client built on a shared connection.
func NewFromRedisClient(rdb redis.UniversalClient, queue string, logger *slog.Logger) *Backend {
	b := NewWithEnqueuer(asynq.NewClientFromRedisClient(rdb), queue, logger)
	b.closers = []func() error{rdb.Close}
	return b
}

// NewWithEnqueuer creates a Backend around an existing Enqueuer. An empty
// queue selects DefaultQueue.
func NewWithEnqueuer(enqueuer Enqueuer, queue string, logger *slog.Logger) *Backend {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		enqueuer: enqueuer,
		queue:    queue,
		logger:   logger.With("component", "localbroker_backend"),
	}
}

// Name implements task.Backend.
func (b *Backend) Name() string { return "localbroker" }

// Enqueue implements task.Backend.
func (b *Backend) Enqueue(ctx context.Context, t *task.Task) error {
	return b.enqueue(ctx, t)
}

// Schedule implements task.Scheduler.
func (b *Backend) Schedule(ctx context.Context, t *task.Task, at time.Time) error {
	return b.enqueue(ctx, t, asynq.ProcessAt(at))
}

// Close releases the broker connection when the Backend owns it.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) enqueue(ctx context.Context, t *task.Task, extra ...asynq.Option) error {
	payload, err := t.Payload()
	if err != nil {
		return fmt.Errorf("%w: %w", task.ErrDispatch, err)
	}

	opts := []asynq.Option{asynq.Queue(b.queue), asynq.MaxRetry(0)}
	if name := t.TaskName(); name != "" {
		opts = append(opts, asynq.TaskID(name))
	}
	opts = append(opts, extra...)

	job, err := NewCallbackTask(CallbackJob{
		URL:     t.URL(),
		Headers: t.Headers(),
		Body:    string(payload),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", task.ErrDispatch, err)
	}

	info, err := b.enqueuer.EnqueueContext(ctx, job, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return fmt.Errorf("%w: %w: %s", task.ErrDispatch, task.ErrDuplicateDispatch, t.TaskName())
		}
		return fmt.Errorf("%w: %w", task.ErrDispatch, err)
	}

	b.logger.DebugContext(ctx, "callback job enqueued",
		"task_path", t.Path(),
		"job_id", info.ID,
		"broker_queue", info.Queue,
	)
	return nil
}
