// Package jobs holds the task functions this service registers at startup.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cloudtask/internal/platform/logger"
	"github.com/phrazzld/cloudtask/internal/task"
)

// MaxFanout caps the number of tasks one Fanout call dispatches.
const MaxFanout = 100

// Jobs holds the registered descriptors.
type Jobs struct {
	Echo   *task.Descriptor
	Fanout *task.Descriptor

	client *task.Client
}

// Register adds the jobs to r. client is used by jobs that dispatch
// follow-up tasks.
func Register(r *task.Registry, client *task.Client) (*Jobs, error) {
	if client == nil {
		return nil, errors.New("task client cannot be nil")
	}

	j := &Jobs{client: client}

	var err error
	if j.Echo, err = r.Register(Echo); err != nil {
		return nil, err
	}
	j.Fanout, err = r.Register(j.fanout,
		task.WithPath("github.com/phrazzld/cloudtask/internal/jobs.Fanout"),
		task.WithName("Fanout"),
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Echo logs its arguments and returns them.
func Echo(ctx context.Context, req *task.Request, args task.Args) (any, error) {
	logger.FromContext(ctx).InfoContext(ctx, "echo task",
		slog.Any("args", map[string]any(args)),
		slog.String("queue_name", req.QueueName),
		slog.Bool("local", req.Local),
	)
	return map[string]any(args), nil
}

type fanoutArgs struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
	Queue   string `json:"queue"`
}

// fanout dispatches Count Echo tasks carrying Message and their index.
func (j *Jobs) fanout(ctx context.Context, _ *task.Request, args task.Args) (any, error) {
	var in fanoutArgs
	if err := args.Bind(&in); err != nil {
		return nil, err
	}
	if in.Count < 0 || in.Count > MaxFanout {
		return nil, fmt.Errorf("count must be between 0 and %d, got %d", MaxFanout, in.Count)
	}

	var opts []task.Option
	if in.Queue != "" {
		opts = append(opts, task.WithQueue(in.Queue))
	}

	for i := range in.Count {
		_, err := j.client.Dispatch(ctx, j.Echo, map[string]any{
			"message": in.Message,
			"index":   i,
		}, opts...)
		if err != nil {
			return i, fmt.Errorf("fanout stopped after %d tasks: %w", i, err)
		}
	}
	return in.Count, nil
}
