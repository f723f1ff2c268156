package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/cloudtask/internal/api/shared"
	"github.com/phrazzld/cloudtask/internal/platform/logger"
)

// CloudTraceHeader is set by Google front ends as "TRACE_ID/SPAN_ID;o=1".
const CloudTraceHeader = "X-Cloud-Trace-Context"

// TraceMiddleware adds a trace ID to the request context and a logger tagged
// with it. The push-queue's trace ID is reused when present so callback logs
// correlate with the dispatching request.
func TraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if traceID := cloudTraceID(r.Header.Get(CloudTraceHeader)); traceID != "" {
				ctx = shared.WithTraceID(ctx, traceID)
			} else {
				ctx = shared.SetTraceID(ctx)
			}
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cloudTraceID(header string) string {
	traceID, _, _ := strings.Cut(header, "/")
	return strings.TrimSpace(traceID)
}
