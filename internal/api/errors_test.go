package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/cloudtask/internal/codec"
	"github.com/phrazzld/cloudtask/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"authentication", ErrAuthentication, http.StatusForbidden},
		{"missing body", ErrMissingBody, http.StatusBadRequest},
		{"body too large", ErrBodyTooLarge, http.StatusBadRequest},
		{"malformed payload", codec.ErrDecode, http.StatusBadRequest},
		{"wrapped decode error", fmt.Errorf("%w: unexpected EOF", codec.ErrDecode), http.StatusBadRequest},
		{"unknown task", task.ErrTaskNotFound, http.StatusInternalServerError},
		{"execution failure", fmt.Errorf("%w: boom", task.ErrExecution), http.StatusInternalServerError},
		{"unmapped error", errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStatus, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, "An unexpected error occurred"},
		{"authentication", ErrAuthentication, "Forbidden"},
		{"missing body", ErrMissingBody, "Missing request body"},
		{"body too large", ErrBodyTooLarge, "Request body too large"},
		{"malformed payload", fmt.Errorf("%w: invalid character", codec.ErrDecode), "Malformed request body"},
		{"unknown task", fmt.Errorf("%w: \"pkg.missing\"", task.ErrTaskNotFound), "Task not found"},
		{"execution failure", fmt.Errorf("%w: password=hunter2", task.ErrExecution), "Task execution failed"},
		{"unmapped error", errors.New("dial tcp 10.0.0.1:5432"), "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := GetSafeErrorMessage(tt.err)
			assert.Equal(t, tt.expected, msg)
			assert.NotContains(t, msg, "hunter2")
		})
	}
}
