package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/cloudtask/internal/codec"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/platform/logger"
	"github.com/phrazzld/cloudtask/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         8080,
			LogLevel:     "debug",
			CallbackPath: "/tasks/run",
			MaxBodyBytes: 1 << 20,
		},
		Tasks: config.TasksConfig{
			URL:     "http://localhost:8080/tasks/run",
			Queue:   "default",
			Secret:  "s3cret",
			Testing: true,
		},
		Broker: config.BrokerConfig{
			RedisURL:    "redis://localhost:6379/0",
			Queue:       "cloudtask",
			Concurrency: 1,
		},
	}
}

func newTestApp(t *testing.T) *application {
	t.Helper()
	log, _ := logger.GetTestLogger(t)

	app, err := newApplication(context.Background(), testConfig(), log)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func TestNewApplication_Validation(t *testing.T) {
	log, _ := logger.GetTestLogger(t)

	_, err := newApplication(context.Background(), nil, log)
	assert.Error(t, err)

	_, err = newApplication(context.Background(), testConfig(), nil)
	assert.Error(t, err)
}

func TestNewApplication_LocalModeRequiresBroker(t *testing.T) {
	log, _ := logger.GetTestLogger(t)
	cfg := testConfig()
	cfg.Tasks.Testing = false
	cfg.Tasks.Local = true
	cfg.Broker.RedisURL = "redis://127.0.0.1:1/0"

	_, err := newApplication(context.Background(), cfg, log)
	assert.Error(t, err)
}

func TestRouter_Healthz(t *testing.T) {
	app := newTestApp(t)
	rr := httptest.NewRecorder()

	app.setupRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "testing", body.Mode)
	assert.Equal(t, app.registry.Paths(), body.Tasks)
}

func TestRouter_Metrics(t *testing.T) {
	app := newTestApp(t)
	rr := httptest.NewRecorder()

	app.setupRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Callback(t *testing.T) {
	app := newTestApp(t)
	router := app.setupRouter()

	body, err := codec.Encode(app.jobs.Echo.Path(), map[string]any{"a": "1"})
	require.NoError(t, err)

	t.Run("executes registered task", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tasks/run", bytes.NewReader(body))
		req.Header.Set(task.SecretHeader, "s3cret")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"detail":"Success"}`, rr.Body.String())
	})

	t.Run("rejects wrong method", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tasks/run", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tasks/run", bytes.NewReader(body))
		req.Header.Set(task.SecretHeader, "nope")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

// staticValidator accepts only the token "valid".
type staticValidator struct{ email string }

func (v staticValidator) Validate(_ context.Context, token, _ string) (*idtoken.Payload, error) {
	if token != "valid" {
		return nil, errors.New("invalid token")
	}
	return &idtoken.Payload{Claims: map[string]interface{}{"email": v.email}}, nil
}

func TestRouter_CallbackWithIdentityVerification(t *testing.T) {
	app := newTestApp(t)
	app.tokenValidator = staticValidator{email: app.config.Tasks.ServiceAccountEmail}
	router := app.setupRouter()

	body, err := codec.Encode(app.jobs.Echo.Path(), map[string]any{"a": "1"})
	require.NoError(t, err)

	t.Run("wrong method is 405 before token check", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tasks/run", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("missing token is 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tasks/run", bytes.NewReader(body))
		req.Header.Set(task.SecretHeader, "s3cret")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("valid token executes task", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tasks/run", bytes.NewReader(body))
		req.Header.Set(task.SecretHeader, "s3cret")
		req.Header.Set("Authorization", "Bearer valid")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	app := newTestApp(t)
	app.config.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
