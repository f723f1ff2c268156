package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the API layer.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context.
	TraceIDKey ContextKey = "traceID"

	// IdentityEmailKey is the key for the verified identity-token email.
	IdentityEmailKey ContextKey = "identityEmail"
)

// SetTraceID adds a newly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, uuid.NewString())
}

// WithTraceID adds the given trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithIdentityEmail records the email of a verified caller identity.
func WithIdentityEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, IdentityEmailKey, email)
}

// GetIdentityEmail returns the verified caller email, if any.
func GetIdentityEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(IdentityEmailKey).(string)
	return email, ok
}
