package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/cloudtask/internal/config"
)

// Client builds Tasks bound to one configuration and dispatch backend.
type Client struct {
	cfg     config.TasksConfig
	backend Backend
	logger  *slog.Logger
}

// NewClient creates a Client. In testing mode backend is replaced by an
// InlineBackend and may be nil.
func NewClient(cfg config.TasksConfig, backend Backend, logger *slog.Logger) (*Client, error) {
	if cfg.Testing {
		backend = NewInlineBackend()
	}
	if backend == nil {
		return nil, errors.New("dispatch backend cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With("component", "task_client"),
	}, nil
}

// Backend returns the backend tasks are dispatched through.
func (c *Client) Backend() Backend { return c.backend }

// New builds a Task for desc with the given arguments. It performs no I/O.
// Missing queue or URL defaults fail with a *config.SettingError.
func (c *Client) New(desc *Descriptor, args map[string]any, opts ...Option) (*Task, error) {
	if desc == nil {
		return nil, errors.New("task descriptor cannot be nil")
	}
	return newTask(c.cfg, c.backend, c.logger, desc, args, opts)
}

// Dispatch builds a Task and dispatches it in one step.
func (c *Client) Dispatch(ctx context.Context, desc *Descriptor, args map[string]any, opts ...Option) (*Task, error) {
	t, err := c.New(desc, args, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Dispatch(ctx); err != nil {
		return t, err
	}
	return t, nil
}
