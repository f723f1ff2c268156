package localbroker_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/phrazzld/cloudtask/internal/config"
	"github.com/phrazzld/cloudtask/internal/platform/localbroker"
	"github.com/phrazzld/cloudtask/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackSimulator_DiscardsResponseStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	log, logBuf := logger.GetTestLogger(t)
	simulator := localbroker.NewCallbackSimulator(server.Client(), log)
	job, err := localbroker.NewCallbackTask(localbroker.CallbackJob{URL: server.URL, Body: "e30="})
	require.NoError(t, err)

	assert.NoError(t, simulator.ProcessTask(context.Background(), job))
	logger.AssertLogContains(t, logBuf, "callback delivered")
}

func TestCallbackSimulator_TransportFailure(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	log, _ := logger.GetTestLogger(t)
	simulator := localbroker.NewCallbackSimulator(nil, log)
	job, err := localbroker.NewCallbackTask(localbroker.CallbackJob{URL: url, Body: "e30="})
	require.NoError(t, err)

	err = simulator.ProcessTask(context.Background(), job)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestCallbackSimulator_MalformedJob(t *testing.T) {
	t.Parallel()
	log, _ := logger.GetTestLogger(t)
	simulator := localbroker.NewCallbackSimulator(nil, log)

	for _, payload := range []string{"not json", `{"body":"e30="}`} {
		err := simulator.ProcessTask(context.Background(), asynq.NewTask(localbroker.TypeCallback, []byte(payload)))
		assert.ErrorIs(t, err, asynq.SkipRetry, payload)
	}
}

func TestNewWorker_InvalidURL(t *testing.T) {
	t.Parallel()
	log, _ := logger.GetTestLogger(t)

	_, err := localbroker.NewWorker(config.BrokerConfig{RedisURL: "ftp://nope"}, localbroker.NewCallbackSimulator(nil, log), log)
	assert.Error(t, err)
}
