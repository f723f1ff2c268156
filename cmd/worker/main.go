// Package main runs the local broker worker. It consumes callback jobs
// enqueued in local mode and posts them to the callback server, standing in
// for the push-queue service during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/platform/localbroker"
	"github.com/phrazzld/cloudtask/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("cloudtask worker: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	if !cfg.Tasks.Local {
		l.Warn("Worker started while local mode is disabled; only locally enqueued jobs are processed")
	}

	worker, err := localbroker.NewWorker(cfg.Broker, localbroker.NewCallbackSimulator(nil, l), l)
	if err != nil {
		return err
	}
	if err := worker.Start(); err != nil {
		return err
	}
	defer worker.Shutdown()

	l.Info("Worker running", "broker_queue", cfg.Broker.Queue, "concurrency", cfg.Broker.Concurrency)

	if cfg.Broker.MetricsAddr != "" {
		return serveMetrics(ctx, cfg.Broker.MetricsAddr, l)
	}

	<-ctx.Done()
	l.Info("Shutting down worker...")
	return nil
}

// metricsRouter serves the Prometheus registry at /metrics.
func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// serveMetrics exposes /metrics until ctx is canceled.
func serveMetrics(ctx context.Context, addr string, l *slog.Logger) error {
	server := &http.Server{Addr: addr, Handler: metricsRouter(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	l.Info("Serving worker metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
