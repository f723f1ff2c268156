package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/cloudtask/internal/codec"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/mocks"
	"github.com/phrazzld/cloudtask/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.TasksConfig {
	return config.TasksConfig{
		URL:                 "https://app.example.com/tasks/run",
		ServiceAccountEmail: "tasks@proj.iam.gserviceaccount.com",
		Secret:              "s3cret",
		Project:             "proj",
		Location:            "europe-west1",
		Queue:               "default",
	}
}

func newTestTask(
	t *testing.T,
	cfg config.TasksConfig,
	backend task.Backend,
	args map[string]any,
	opts ...task.Option,
) *task.Task {
	t.Helper()
	r := task.NewRegistry(nil)
	desc := r.MustRegister(sendEmail, task.WithPath("jobs.SendEmail"), task.WithName("SendEmail"))

	client, err := task.NewClient(cfg, backend, nil)
	require.NoError(t, err)

	tk, err := client.New(desc, args, opts...)
	require.NoError(t, err)
	return tk
}

func TestClient_New_ResolvesDefaults(t *testing.T) {
	t.Parallel()
	tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, map[string]any{"to": "a@b.c"})

	assert.Equal(t, "default", tk.Queue())
	assert.Equal(t, "https://app.example.com/tasks/run", tk.URL())
	assert.Equal(t, "tasks@proj.iam.gserviceaccount.com", tk.Principal())
	assert.Equal(t, "jobs.SendEmail", tk.Path())
	assert.Empty(t, tk.TaskName())
}

func TestClient_New_Options(t *testing.T) {
	t.Parallel()
	tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, nil,
		task.WithQueue("emails"),
		task.WithURL("https://other.example.com/run"),
		task.WithPrincipal("other@proj.iam.gserviceaccount.com"),
	)

	assert.Equal(t, "emails", tk.Queue())
	assert.Equal(t, "https://other.example.com/run", tk.URL())
	assert.Equal(t, "other@proj.iam.gserviceaccount.com", tk.Principal())
	assert.Equal(t, "projects/proj/locations/europe-west1/queues/emails", tk.QueuePath())
}

func TestClient_New_DescriptorDefaults(t *testing.T) {
	t.Parallel()
	r := task.NewRegistry(nil)
	desc := r.MustRegister(sendEmail,
		task.WithPath("jobs.SendEmail"),
		task.WithDefaults(task.WithQueue("emails"), task.WithNaming(task.AutoName())),
	)
	client, err := task.NewClient(testConfig(), &mocks.MockBackend{}, nil)
	require.NoError(t, err)

	tk, err := client.New(desc, nil)
	require.NoError(t, err)
	assert.Equal(t, "emails", tk.Queue())
	assert.Equal(t, "SendEmail", tk.TaskName())

	tk, err = client.New(desc, nil, task.WithQueue("urgent"))
	require.NoError(t, err)
	assert.Equal(t, "urgent", tk.Queue())
}

func TestClient_New_MissingDefaults(t *testing.T) {
	t.Parallel()
	r := task.NewRegistry(nil)
	desc := r.MustRegister(sendEmail, task.WithPath("jobs.SendEmail"))

	tests := []struct {
		name    string
		mutate  func(*config.TasksConfig)
		opts    []task.Option
		wantKey string
	}{
		{
			name:    "queue",
			mutate:  func(c *config.TasksConfig) { c.Queue = "" },
			wantKey: "tasks.queue",
		},
		{
			name:    "url",
			mutate:  func(c *config.TasksConfig) { c.URL = "" },
			wantKey: "tasks.url",
		},
		{
			name:    "queue given explicitly",
			mutate:  func(c *config.TasksConfig) { c.Queue = "" },
			opts:    []task.Option{task.WithQueue("emails")},
			wantKey: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(&cfg)
			client, err := task.NewClient(cfg, &mocks.MockBackend{}, nil)
			require.NoError(t, err)

			_, err = client.New(desc, nil, tc.opts...)
			if tc.wantKey == "" {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, config.ErrConfiguration)
			var settingErr *config.SettingError
			require.ErrorAs(t, err, &settingErr)
			assert.Equal(t, tc.wantKey, settingErr.Key)
		})
	}
}

func TestClient_New_ReservedArguments(t *testing.T) {
	t.Parallel()
	r := task.NewRegistry(nil)
	desc := r.MustRegister(sendEmail, task.WithPath("jobs.SendEmail"))
	client, err := task.NewClient(testConfig(), &mocks.MockBackend{}, nil)
	require.NoError(t, err)

	for _, key := range []string{"path", "data"} {
		_, err := client.New(desc, map[string]any{key: "x"})
		assert.ErrorIs(t, err, task.ErrReservedArgument, key)
	}
}

func TestNewClient_RequiresBackend(t *testing.T) {
	t.Parallel()

	_, err := task.NewClient(testConfig(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Testing = true
	client, err := task.NewClient(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "inline", client.Backend().Name())
}

func TestTask_Naming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		naming       task.Naming
		wantName     string
		wantTaskPath string
		wantErr      error
	}{
		{name: "none", naming: task.NoName()},
		{
			name:         "auto uses descriptor name",
			naming:       task.AutoName(),
			wantName:     "SendEmail",
			wantTaskPath: "projects/proj/locations/europe-west1/queues/default/tasks/SendEmail",
		},
		{
			name:         "explicit name wins",
			naming:       task.Named("welcome-42"),
			wantName:     "welcome-42",
			wantTaskPath: "projects/proj/locations/europe-west1/queues/default/tasks/welcome-42",
		},
		{name: "invalid characters", naming: task.Named("welcome/42"), wantErr: task.ErrInvalidTaskName},
		{name: "empty explicit name", naming: task.Named(""), wantErr: task.ErrInvalidTaskName},
	}

	r := task.NewRegistry(nil)
	desc := r.MustRegister(sendEmail, task.WithPath("jobs.SendEmail"), task.WithName("SendEmail"))

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client, err := task.NewClient(testConfig(), &mocks.MockBackend{}, nil)
			require.NoError(t, err)

			tk, err := client.New(desc, nil, task.WithNaming(tc.naming))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, tk.TaskName())
			assert.Equal(t, tc.wantTaskPath, tk.TaskPath())
			assert.Equal(t, "projects/proj/locations/europe-west1/queues/default", tk.QueuePath())
		})
	}
}

func TestTask_Headers(t *testing.T) {
	t.Parallel()

	t.Run("canonical keys and fixed headers", func(t *testing.T) {
		t.Parallel()
		tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, nil,
			task.WithHeaders(map[string]string{"x-tenant-id": "acme", "content-type": "text/plain"}),
			task.WithHeader("x-dct-secret", "forged"),
		)

		assert.Equal(t, map[string]string{
			"X-Tenant-Id":  "acme",
			"Content-Type": "application/json",
			"X-Dct-Secret": "s3cret",
		}, tk.Headers())
	})

	t.Run("no secret configured", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Secret = ""
		tk := newTestTask(t, cfg, &mocks.MockBackend{}, nil)

		assert.Equal(t, map[string]string{"Content-Type": "application/json"}, tk.Headers())
	})
}

func TestTask_Data(t *testing.T) {
	t.Parallel()
	tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, map[string]any{"to": "a@b.c", "n": 1})

	data := tk.Data()
	data["to"] = "changed"
	assert.Equal(t, "a@b.c", tk.Data()["to"])

	require.NoError(t, tk.SetData(map[string]any{"n": 2, "cc": "d@e.f"}))
	assert.Equal(t, map[string]any{"to": "a@b.c", "n": 2, "cc": "d@e.f"}, tk.Data())

	assert.ErrorIs(t, tk.SetData(map[string]any{"data": 1}), task.ErrReservedArgument)
}

func TestTask_ArgumentsAreCopied(t *testing.T) {
	t.Parallel()
	args := map[string]any{"to": "a@b.c"}
	tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, args)

	args["to"] = "changed"
	assert.Equal(t, "a@b.c", tk.Data()["to"])
}

func TestTask_Payload(t *testing.T) {
	t.Parallel()
	tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, map[string]any{"to": "a@b.c"})

	payload, err := tk.Payload()
	require.NoError(t, err)

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "jobs.SendEmail", decoded.Path)
	assert.Equal(t, map[string]any{"to": "a@b.c"}, decoded.Data)
}

func TestTask_RequestBody(t *testing.T) {
	t.Parallel()

	t.Run("named and scheduled", func(t *testing.T) {
		t.Parallel()
		tk := newTestTask(t, testConfig(), &mocks.MockBackend{}, map[string]any{"to": "a@b.c"},
			task.WithNaming(task.Named("welcome-42")))
		at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))

		body, err := tk.RequestBody(&at)
		require.NoError(t, err)

		payload, err := tk.Payload()
		require.NoError(t, err)

		assert.Equal(t, "projects/proj/locations/europe-west1/queues/default/tasks/welcome-42", body.Name)
		require.NotNil(t, body.ScheduleTime)
		assert.Equal(t, time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC), *body.ScheduleTime)
		assert.Equal(t, "POST", body.HTTPRequest.HTTPMethod)
		assert.Equal(t, "https://app.example.com/tasks/run", body.HTTPRequest.URL)
		assert.Equal(t, tk.Headers(), body.HTTPRequest.Headers)
		assert.Equal(t, string(payload), body.HTTPRequest.Body)
		require.NotNil(t, body.HTTPRequest.OIDCToken)
		assert.Equal(t, "tasks@proj.iam.gserviceaccount.com", body.HTTPRequest.OIDCToken.ServiceAccountEmail)
	})

	t.Run("unnamed immediate without principal", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.ServiceAccountEmail = ""
		tk := newTestTask(t, cfg, &mocks.MockBackend{}, nil)

		body, err := tk.RequestBody(nil)
		require.NoError(t, err)

		raw, err := json.Marshal(body)
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.NotContains(t, fields, "name")
		assert.NotContains(t, fields, "schedule_time")

		httpRequest, ok := fields["http_request"].(map[string]any)
		require.True(t, ok)
		assert.NotContains(t, httpRequest, "oidc_token")
		for _, key := range []string{"http_method", "url", "headers", "body"} {
			assert.Contains(t, httpRequest, key)
		}
	})
}

func TestTask_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("dispatches once", func(t *testing.T) {
		t.Parallel()
		backend := &mocks.MockBackend{}
		tk := newTestTask(t, testConfig(), backend, nil)

		require.NoError(t, tk.Dispatch(context.Background()))
		assert.ErrorIs(t, tk.Push(context.Background()), task.ErrAlreadyDispatched)
		assert.ErrorIs(t, tk.Schedule(context.Background(), time.Now()), task.ErrUnsupportedOperation)
		assert.Len(t, backend.Enqueued(), 1)
	})

	t.Run("failed dispatch can be retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		backend := &mocks.MockBackend{
			EnqueueFn: func(context.Context, *task.Task) error {
				calls++
				if calls == 1 {
					return task.ErrDispatch
				}
				return nil
			},
		}
		tk := newTestTask(t, testConfig(), backend, nil)

		assert.ErrorIs(t, tk.Dispatch(context.Background()), task.ErrDispatch)
		assert.NoError(t, tk.Dispatch(context.Background()))
		assert.ErrorIs(t, tk.Dispatch(context.Background()), task.ErrAlreadyDispatched)
	})
}

func TestTask_Schedule(t *testing.T) {
	t.Parallel()

	t.Run("unsupported backend", func(t *testing.T) {
		t.Parallel()
		backend := &mocks.MockBackend{}
		tk := newTestTask(t, testConfig(), backend, nil)

		err := tk.Schedule(context.Background(), time.Now().Add(time.Hour))
		assert.ErrorIs(t, err, task.ErrUnsupportedOperation)
		assert.Empty(t, backend.Enqueued())

		assert.NoError(t, tk.Dispatch(context.Background()))
	})

	t.Run("scheduling backend", func(t *testing.T) {
		t.Parallel()
		backend := &mocks.MockSchedulingBackend{}
		tk := newTestTask(t, testConfig(), backend, nil)
		at := time.Now().Add(time.Hour)

		require.NoError(t, tk.Schedule(context.Background(), at))
		assert.Equal(t, at, backend.ScheduledAt)
		assert.ErrorIs(t, tk.Dispatch(context.Background()), task.ErrAlreadyDispatched)
	})
}

func TestTask_ExecuteLocally(t *testing.T) {
	t.Parallel()
	r := task.NewRegistry(nil)

	var got *task.Request
	desc := r.MustRegister(func(ctx context.Context, req *task.Request, args task.Args) (any, error) {
		got = req
		fromCtx, ok := task.RequestFromContext(ctx)
		if !ok || fromCtx != req {
			return nil, errors.New("request missing from context")
		}
		return args.String("to"), nil
	}, task.WithPath("jobs.Capture"))

	client, err := task.NewClient(testConfig(), &mocks.MockBackend{}, nil)
	require.NoError(t, err)
	tk, err := client.New(desc, map[string]any{"to": "a@b.c"}, task.WithHeader("x-tenant-id", "acme"))
	require.NoError(t, err)

	result, err := tk.ExecuteLocally(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", result)

	require.NotNil(t, got)
	assert.True(t, got.Local)
	assert.Equal(t, "default", got.QueueName)
	assert.Equal(t, "acme", got.Headers.Get("X-Tenant-Id"))
	assert.Empty(t, got.Headers.Get(task.SecretHeader))
}

func TestTestingMode_ExecutesSynchronously(t *testing.T) {
	t.Parallel()
	r := task.NewRegistry(nil)

	ran := 0
	ok := r.MustRegister(func(context.Context, *task.Request, task.Args) (any, error) {
		ran++
		return nil, nil
	}, task.WithPath("jobs.Count"))
	failing := r.MustRegister(failingTask)

	cfg := testConfig()
	cfg.Testing = true
	client, err := task.NewClient(cfg, nil, nil)
	require.NoError(t, err)

	_, err = client.Dispatch(context.Background(), ok, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	tk, err := client.New(ok, nil)
	require.NoError(t, err)
	require.NoError(t, tk.Schedule(context.Background(), time.Now().Add(time.Hour)))
	assert.Equal(t, 2, ran)

	_, err = client.Dispatch(context.Background(), failing, nil)
	assert.ErrorIs(t, err, task.ErrExecution)
}

func TestNewRequest(t *testing.T) {
	t.Parallel()
	h := map[string][]string{
		"X-Cloudtasks-Queuename":      {"default"},
		"X-Cloudtasks-Taskname":       {"123"},
		"X-Cloudtasks-Taskretrycount": {"2"},
	}

	req := task.NewRequest(h)

	assert.Equal(t, "default", req.QueueName)
	assert.Equal(t, "123", req.TaskName)
	assert.Equal(t, 2, req.RetryCount)
	assert.False(t, req.Local)
}
