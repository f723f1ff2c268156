package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/phrazzld/cloudtask/internal/api/shared"
	"github.com/phrazzld/cloudtask/internal/codec"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/metrics"
	"github.com/phrazzld/cloudtask/internal/platform/logger"
	"github.com/phrazzld/cloudtask/internal/redact"
	"github.com/phrazzld/cloudtask/internal/task"
)

// DefaultMaxBodyBytes limits callback bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// TaskResolver looks up registered tasks by path. *task.Registry
// satisfies it.
type TaskResolver interface {
	Resolve(path string) (*task.Descriptor, error)
}

// CallbackHandler executes tasks delivered by the push-queue or the local
// broker worker.
type CallbackHandler struct {
	resolver     TaskResolver
	secretDigest []byte
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewCallbackHandler creates a CallbackHandler. When cfg.Secret is empty the
// secret header is not checked.
func NewCallbackHandler(
	resolver TaskResolver,
	cfg config.TasksConfig,
	maxBodyBytes int64,
	log *slog.Logger,
) *CallbackHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if log == nil {
		log = slog.Default()
	}

	h := &CallbackHandler{
		resolver:     resolver,
		maxBodyBytes: maxBodyBytes,
		logger:       log.With("component", "callback_handler"),
	}
	if cfg.Secret != "" {
		digest := sha256.Sum256([]byte(cfg.Secret))
		h.secretDigest = digest[:]
	}
	return h
}

// ServeHTTP handles one task callback.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		metrics.CallbackRequestsTotal.WithLabelValues(strconv.Itoa(rec.status)).Inc()
	}()
	w = rec
	r = r.WithContext(logger.WithLogger(r.Context(), logger.FromContextOrDefault(r.Context(), h.logger)))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		shared.RespondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	headers := r.Header.Clone()
	secret := headers.Get(task.SecretHeader)
	headers.Del(task.SecretHeader)

	if !h.authorized(secret) {
		h.fail(w, r, fmt.Errorf("%w: secret header mismatch", ErrAuthentication), nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		} else {
			err = fmt.Errorf("%w: %w", codec.ErrDecode, err)
		}
		h.fail(w, r, err, nil)
		return
	}

	payload, err := codec.Decode(body)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if payload == nil {
		h.fail(w, r, ErrMissingBody, nil)
		return
	}

	req := task.NewRequest(headers)
	deliveryAttrs := []slog.Attr{
		slog.String("task_path", payload.Path),
		slog.String("queue_name", req.QueueName),
		slog.String("task_name", req.TaskName),
		slog.Int("retry_count", req.RetryCount),
	}
	if email, ok := shared.GetIdentityEmail(r.Context()); ok && email != "" {
		deliveryAttrs = append(deliveryAttrs, slog.String("identity_email", email))
	}

	desc, err := h.resolver.Resolve(payload.Path)
	if err != nil {
		h.fail(w, r, err, deliveryAttrs)
		return
	}

	ctx := task.WithRequest(r.Context(), req)
	if _, err := desc.Invoke(ctx, req, task.Args(payload.Data)); err != nil {
		h.fail(w, r, err, deliveryAttrs)
		return
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "task executed",
		append(deliveryAttrs, slog.String("trace_id", shared.GetTraceID(ctx)))...)
	shared.RespondWithDetail(w, r, http.StatusOK, "Success")
}

// authorized compares fixed-size digests so the comparison time does not
// depend on the secret's length or content.
func (h *CallbackHandler) authorized(secret string) bool {
	if h.secretDigest == nil {
		return true
	}
	got := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(got[:], h.secretDigest) == 1
}

func (h *CallbackHandler) fail(w http.ResponseWriter, r *http.Request, err error, attrs []slog.Attr) {
	if errors.Is(err, ErrAuthentication) {
		attrs = append(attrs, slog.Any("headers", redact.Headers(r.Header)))
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, attrs...)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
