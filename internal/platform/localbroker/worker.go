package localbroker

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/phrazzld/cloudtask/internal/config"
)

// Worker consumes callback jobs from the local broker.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker creates a Worker for the broker configuration. Jobs are
// delivered to simulator.
func NewWorker(cfg config.BrokerConfig, simulator *CallbackSimulator, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker redis url: %w", err)
	}

	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	log := logger.With("component", "localbroker_worker")
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      newAsynqLogger(log),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeCallback, simulator)

	return &Worker{server: server, mux: mux, logger: log}, nil
}

// Start begins processing jobs in background goroutines.
func (w *Worker) Start() error {
	w.logger.Info("starting local broker worker")
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	return nil
}

// Shutdown stops fetching jobs and waits for in-flight callbacks.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("local broker worker stopped")
}

// asynqLogger adapts slog to asynq.Logger. Fatal exits the process, as
// asynq expects.
type asynqLogger struct {
	logger *slog.Logger
	exit   func(code int)
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger, exit: os.Exit}
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...), "fatal", true)
	l.exit(1)
}
