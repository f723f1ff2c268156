package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/cloudtask/internal/platform/logger"
	"github.com/phrazzld/cloudtask/internal/redact"
)

// DetailResponse is the body of every callback response.
type DetailResponse struct {
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithDetail writes {"detail": message} with the given status code.
func RespondWithDetail(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, DetailResponse{Detail: message})
}

// RespondWithError writes a JSON error response carrying the request's
// trace ID.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithErrorAndLog(w, r, status, message, nil)
}

// RespondWithErrorAndLog writes a JSON error response and logs the redacted
// error. The client only ever sees userMessage.
//
// 5xx responses are logged at ERROR, 403 at WARN (a forged or misconfigured
// caller is an operational concern) and other 4xx at DEBUG.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
	attrs ...slog.Attr,
) {
	traceID := GetTraceID(r.Context())

	logAttrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		logAttrs = append(logAttrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)),
		)
	}
	logAttrs = append(logAttrs, attrs...)

	level := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusForbidden:
		level = slog.LevelWarn
	}
	logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "API error response", logAttrs...)

	RespondWithJSON(w, r, status, DetailResponse{Detail: userMessage, TraceID: traceID})
}
