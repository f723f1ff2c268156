package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cloudtask/internal/api"
	apiMiddleware "github.com/phrazzld/cloudtask/internal/api/middleware"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/jobs"
	"github.com/phrazzld/cloudtask/internal/platform/backend"
	"github.com/phrazzld/cloudtask/internal/task"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// application holds the shared dependencies of the server and releases them
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	registry *task.Registry
	client   *task.Client
	jobs     *jobs.Jobs

	callbackHandler *api.CallbackHandler
	tokenValidator  apiMiddleware.TokenValidator

	closeBackend backend.Closer
}

// newApplication wires the registry, the dispatch backend, the task client
// and the callback handler. Extra client options are passed to the Cloud
// Tasks client in remote mode.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	opts ...option.ClientOption,
) (*application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	app := &application{
		config:   cfg,
		logger:   logger,
		registry: task.NewRegistry(logger),
	}

	b, closeBackend, err := backend.New(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	app.closeBackend = closeBackend
	logger.Info("Dispatch backend initialized", "backend", b.Name(), "mode", cfg.Tasks.Mode())

	app.client, err = task.NewClient(cfg.Tasks, b, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task client: %w", err)
	}

	app.jobs, err = jobs.Register(app.registry, app.client)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}
	logger.Info("Tasks registered", "paths", app.registry.Paths())

	if cfg.Tasks.VerifyIdentityToken {
		validator, err := idtoken.NewValidator(ctx)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to create identity token validator: %w", err)
		}
		app.tokenValidator = validator
	}

	app.callbackHandler = api.NewCallbackHandler(app.registry, cfg.Tasks, cfg.Server.MaxBodyBytes, logger)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases backend connections.
func (app *application) cleanup() {
	if app.closeBackend != nil {
		if err := app.closeBackend(); err != nil {
			app.logger.Error("Error closing dispatch backend", "error", err)
		}
		app.closeBackend = nil
	}
	app.logger.Info("Application shutdown completed")
}
