// Package main implements the callback server. It registers the service's
// task functions, selects the dispatch backend for the configured mode and
// serves task callbacks alongside health and metrics endpoints.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("cloudtask server: %v", err)
		os.Exit(1)
	}
}

// run loads configuration, builds the application and serves until ctx is
// canceled.
func run(ctx context.Context) error {
	cfg, l, err := initializeApp()
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"callback_path", cfg.Server.CallbackPath,
		"mode", cfg.Tasks.Mode())
	l.Debug("Task configuration",
		"project", cfg.Tasks.Project,
		"location", cfg.Tasks.Location,
		"default_queue", cfg.Tasks.Queue,
		"secret_present", cfg.Tasks.Secret != "",
		"verify_identity_token", cfg.Tasks.VerifyIdentityToken)

	return cfg, l, nil
}
