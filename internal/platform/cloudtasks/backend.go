package cloudtasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cloudtasksapi "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/task"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// TaskCreator is the subset of the Cloud Tasks client used by the backend.
// *cloudtasksapi.Client satisfies it.
type TaskCreator interface {
	CreateTask(
		ctx context.Context,
		req *cloudtaskspb.CreateTaskRequest,
		opts ...gax.CallOption,
	) (*cloudtaskspb.Task, error)
}

// Backend dispatches tasks to Cloud Tasks.
type Backend struct {
	creator  TaskCreator
	audience string
	logger   *slog.Logger
	closer   func() error
}

var (
	_ task.Backend   = (*Backend)(nil)
	_ task.Scheduler = (*Backend)(nil)
)

// New dials Cloud Tasks and creates a Backend.
//
// Parameters:
//   - ctx: Context for dialing the service
//   - cfg: Task settings; Audience, when set, is placed on OIDC tokens
//   - logger: A structured logger for operation logging
//   - opts: Client options such as credentials or an emulator endpoint
//
// Returns:
//   - A Backend owning the client, to be released with Close
//   - An error if the client cannot be created
func New(
	ctx context.Context,
	cfg config.TasksConfig,
	logger *slog.Logger,
	opts ...option.ClientOption,
) (*Backend, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := cloudtasksapi.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud tasks client: %w", err)
	}

	b, err := NewWithCreator(client, cfg, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	b.closer = client.Close
	return b, nil
}

// NewWithCreator creates a Backend around an existing TaskCreator.
func NewWithCreator(creator TaskCreator, cfg config.TasksConfig, logger *slog.Logger) (*Backend, error) {
	if creator == nil {
		return nil, errors.New("task creator cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Backend{
		creator:  creator,
		audience: cfg.Audience,
		logger:   logger.With("component", "cloudtasks_backend"),
	}, nil
}

// Name implements task.Backend.
func (b *Backend) Name() string { return "cloudtasks" }

// Enqueue implements task.Backend.
func (b *Backend) Enqueue(ctx context.Context, t *task.Task) error {
	return b.create(ctx, t, nil)
}

// Schedule implements task.Scheduler.
func (b *Backend) Schedule(ctx context.Context, t *task.Task, at time.Time) error {
	return b.create(ctx, t, &at)
}

// Close releases the underlying client when the Backend owns it.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

func (b *Backend) create(ctx context.Context, t *task.Task, scheduleAt *time.Time) error {
	body, err := t.RequestBody(scheduleAt)
	if err != nil {
		return fmt.Errorf("%w: %w", task.ErrDispatch, err)
	}

	req := BuildCreateTaskRequest(t.QueuePath(), body, b.audience)
	created, err := b.creator.CreateTask(ctx, req)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %w: %s", task.ErrDispatch, task.ErrDuplicateDispatch, body.Name)
		}
		return fmt.Errorf("%w: %w", task.ErrDispatch, err)
	}

	b.logger.DebugContext(ctx, "cloud task created",
		"task_path", t.Path(),
		"task_name", created.GetName(),
		"queue_path", req.GetParent(),
	)
	return nil
}

// BuildCreateTaskRequest converts a RequestBody into the Cloud Tasks API
// request for the queue at parent.
func BuildCreateTaskRequest(parent string, body *task.RequestBody, audience string) *cloudtaskspb.CreateTaskRequest {
	httpRequest := &cloudtaskspb.HttpRequest{
		Url:        body.HTTPRequest.URL,
		HttpMethod: cloudtaskspb.HttpMethod_POST,
		Headers:    body.HTTPRequest.Headers,
		Body:       []byte(body.HTTPRequest.Body),
	}
	if token := body.HTTPRequest.OIDCToken; token != nil {
		httpRequest.AuthorizationHeader = &cloudtaskspb.HttpRequest_OidcToken{
			OidcToken: &cloudtaskspb.OidcToken{
				ServiceAccountEmail: token.ServiceAccountEmail,
				Audience:            audience,
			},
		}
	}

	pbTask := &cloudtaskspb.Task{
		Name: body.Name,
		MessageType: &cloudtaskspb.Task_HttpRequest{
			HttpRequest: httpRequest,
		},
	}
	if body.ScheduleTime != nil {
		pbTask.ScheduleTime = timestamppb.New(*body.ScheduleTime)
	}

	return &cloudtaskspb.CreateTaskRequest{
		Parent: parent,
		Task:   pbTask,
	}
}
