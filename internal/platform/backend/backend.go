// Package backend selects the dispatch backend for the configured mode.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/platform/cloudtasks"
	"github.com/phrazzld/cloudtask/internal/platform/localbroker"
	"github.com/phrazzld/cloudtask/internal/task"
	"google.golang.org/api/option"
)

// Closer releases a backend's connections.
type Closer func() error

// New returns the backend for cfg.Tasks.Mode(): an inline backend in
// testing mode, the local broker in local mode and Cloud Tasks otherwise.
// The returned Closer is never nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...option.ClientOption) (task.Backend, Closer, error) {
	noop := func() error { return nil }

	switch cfg.Tasks.Mode() {
	case "testing":
		return task.NewInlineBackend(), noop, nil

	case "local":
		b, err := localbroker.New(ctx, cfg.Broker, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create local broker backend: %w", err)
		}
		return b, b.Close, nil

	default:
		b, err := cloudtasks.New(ctx, cfg.Tasks, logger, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create cloud tasks backend: %w", err)
		}
		return b, b.Close, nil
	}
}
