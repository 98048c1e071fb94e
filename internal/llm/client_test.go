package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/providers"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

func testClientConfig(endpoint string) *configuration.Config {
	cfg := configuration.DefaultConfig()
	cfg.Providers = map[string]configuration.ProviderConfig{
		providers.ProviderOpenAI: {
			Endpoint: endpoint,
			APIKey:   "sk-test",
		},
	}
	cfg.RateLimit.Enabled = false
	cfg.CircuitBreaker.Enabled = false
	cfg.Retry.InitialInterval = 1
	cfg.Retry.MaxInterval = 1
	return cfg
}

func TestNewClient_DefaultsWhenNil(t *testing.T) {
	c, err := NewClient(nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClient_CompleteSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "{\"title\":\"Leg Day\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
		}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &transport.Request{
		Prompt:    "generate a workout",
		MaxTokens: 512,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Leg Day")
	assert.Equal(t, int64(30), resp.Usage.TotalTokens)
	assert.Equal(t, int64(1), calls.Load())
}

func TestClient_CompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}],
			"usage": {"total_tokens": 5}
		}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &transport.Request{Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int64(3), calls.Load())
}

func TestClient_CompleteAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "authentication_error"}}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &transport.Request{Prompt: "go"})
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load(), "auth failures must not be retried")
	assert.False(t, llmerrors.IsRetryableError(err))
}

func TestClient_CompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [], "usage": {}}`))
	}))
	defer server.Close()

	c, err := NewClient(testClientConfig(server.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &transport.Request{Prompt: "go"})
	assert.ErrorIs(t, err, llmerrors.ErrEmptyResponse)
}
