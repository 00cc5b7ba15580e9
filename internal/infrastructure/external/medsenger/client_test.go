package medsenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsenger/education-agent/pkg/retry"
)

func newTestClient(serverURL string) *Client {
	cfg := DefaultClientConfig(serverURL, "test-key")
	cfg.Retrier = retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithJitter(0),
	)
	return NewClient(cfg)
}

func TestClient_SendMessage(t *testing.T) {
	var got sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/agents/message", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state": "success"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	err := client.SendMessage(context.Background(), 500, Message{
		Text:           "Спасибо за заполнение теста!",
		ActionDeadline: 1700000000,
		OnlyPatient:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(500), got.ContractID)
	assert.Equal(t, "test-key", got.APIKey)
	assert.Equal(t, "Спасибо за заполнение теста!", got.Message.Text)
	assert.Equal(t, int64(1700000000), got.Message.ActionDeadline)
	assert.True(t, got.Message.OnlyPatient)
	assert.False(t, got.Message.OnlyDoctor)
}

func TestClient_SendMessage_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"state": "error", "error": "invalid api key"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	err := client.SendText(context.Background(), 500, "привет")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SendMessage_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"state": "success"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	err := client.SendText(context.Background(), 500, "привет")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_SendMessage_PlatformRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with an error envelope still means the message was not accepted.
		_, _ = w.Write([]byte(`{"state": "error", "error": "contract not found"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	err := client.SendText(context.Background(), 999, "привет")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract not found")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&APIError{StatusCode: 500}))
	assert.True(t, isRetryable(&APIError{StatusCode: 429}))
	assert.False(t, isRetryable(&APIError{StatusCode: 422}))
	assert.False(t, isRetryable(nil))
}
