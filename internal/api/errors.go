package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/cloudtask/internal/codec"
	"github.com/phrazzld/cloudtask/internal/task"
)

// Callback request errors.
var (
	// ErrAuthentication is returned when a callback carries a wrong or
	// missing shared secret, or an identity token that does not verify.
	ErrAuthentication = errors.New("callback authentication failed")

	// ErrMissingBody is returned when a callback has no payload.
	ErrMissingBody = errors.New("missing request body")

	// ErrBodyTooLarge is returned when a callback body exceeds the limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrAuthentication):
		return http.StatusForbidden

	case errors.Is(err, ErrMissingBody),
		errors.Is(err, ErrBodyTooLarge),
		errors.Is(err, codec.ErrDecode):
		return http.StatusBadRequest

	// Unknown paths mean the producer runs code this process does not have;
	// a 5xx lets the push-queue retry after the deployment settles.
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, task.ErrExecution):
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, ErrAuthentication):
		return "Forbidden"
	case errors.Is(err, ErrMissingBody):
		return "Missing request body"
	case errors.Is(err, ErrBodyTooLarge):
		return "Request body too large"
	case errors.Is(err, codec.ErrDecode):
		return "Malformed request body"
	case errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, task.ErrExecution):
		return "Task execution failed"
	default:
		return "An unexpected error occurred"
	}
}
