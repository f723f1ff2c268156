package localbroker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hibiken/asynq"
	"github.com/phrazzld/cloudtask/internal/metrics"
)

// CallbackSimulator performs the HTTP callback a push-queue would make. It
// implements asynq.Handler for TypeCallback jobs.
type CallbackSimulator struct {
	client *http.Client
	logger *slog.Logger
}

// NewCallbackSimulator creates a CallbackSimulator. A nil client selects a
// pooled cleanhttp client.
func NewCallbackSimulator(client *http.Client, logger *slog.Logger) *CallbackSimulator {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackSimulator{
		client: client,
		logger: logger.With("component", "callback_simulator"),
	}
}

// ProcessTask posts the job body to its URL. The response is discarded;
// only transport failures are returned to the broker.
func (s *CallbackSimulator) ProcessTask(ctx context.Context, t *asynq.Task) error {
	job, err := ParseCallbackJob(t)
	if err != nil {
		metrics.SimulatedCallbacksTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	err = s.post(ctx, job)
	metrics.SimulatedCallbacksTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return err
}

func (s *CallbackSimulator) post(ctx context.Context, job CallbackJob) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewBufferString(job.Body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	for key, value := range job.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.ErrorContext(ctx, "callback request failed", "url", job.URL, "error", err)
		return fmt.Errorf("callback request to %s failed: %w", job.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.InfoContext(ctx, "callback delivered", "url", job.URL, "status", resp.StatusCode)
	return nil
}
