package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

func fastConfig() configuration.RetryConfig {
	return configuration.RetryConfig{
		MaxAttempts:     3,
		MaxElapsedTime:  5 * time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		UseJitter:       false,
	}
}

type countingHandler struct {
	calls    atomic.Int64
	failFor  int64
	err      error
	response *transport.Response
}

func (h *countingHandler) Handle(_ context.Context, _ *transport.Request) (*transport.Response, error) {
	n := h.calls.Add(1)
	if n <= h.failFor {
		return nil, h.err
	}
	return h.response, nil
}

func TestRetryMiddleware_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*configuration.RetryConfig)
	}{
		{"zero attempts", func(c *configuration.RetryConfig) { c.MaxAttempts = 0 }},
		{"zero initial interval", func(c *configuration.RetryConfig) { c.InitialInterval = 0 }},
		{"max below initial", func(c *configuration.RetryConfig) { c.MaxInterval = c.InitialInterval / 2 }},
		{"multiplier below one", func(c *configuration.RetryConfig) { c.Multiplier = 0.5 }},
		{"negative elapsed time", func(c *configuration.RetryConfig) { c.MaxElapsedTime = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig()
			tt.mutate(&cfg)
			_, err := NewRetryMiddlewareWithConfig(cfg)
			assert.Error(t, err)
		})
	}
}

func TestRetryMiddleware_RetriesTransientThenSucceeds(t *testing.T) {
	mw, err := NewRetryMiddlewareWithConfig(fastConfig())
	require.NoError(t, err)

	handler := &countingHandler{
		failFor:  2,
		err:      &llmerrors.ProviderError{Provider: "openai", StatusCode: 503, Message: "unavailable", Type: llmerrors.ErrorTypeProvider},
		response: &transport.Response{Content: "ok"},
	}

	resp, err := mw(handler).Handle(context.Background(), &transport.Request{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int64(3), handler.calls.Load())
}

func TestRetryMiddleware_ExhaustsBudgetOnPersistentFailure(t *testing.T) {
	mw, err := NewRetryMiddlewareWithConfig(fastConfig())
	require.NoError(t, err)

	handler := &countingHandler{
		failFor: 100,
		err:     &llmerrors.RateLimitError{Provider: "openai"},
	}

	_, err = mw(handler).Handle(context.Background(), &transport.Request{Provider: "openai"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted after 3 attempts")
	assert.Equal(t, int64(3), handler.calls.Load())
}

func TestRetryMiddleware_AuthFailureShortCircuits(t *testing.T) {
	mw, err := NewRetryMiddlewareWithConfig(fastConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
	}{
		{
			name: "typed auth error",
			err:  &llmerrors.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key", Type: llmerrors.ErrorTypeAuth},
		},
		{
			name: "string pattern auth error",
			err:  errors.New("authentication failed: invalid credentials"),
		},
		{
			name: "validation error",
			err:  &llmerrors.ValidationError{Field: "prompt", Message: "empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &countingHandler{failFor: 100, err: tt.err}
			_, err := mw(handler).Handle(context.Background(), &transport.Request{Provider: "openai"})
			require.Error(t, err)
			assert.Equal(t, int64(1), handler.calls.Load(), "terminal errors must not be retried")
		})
	}
}

func TestRetryMiddleware_ContextCancellation(t *testing.T) {
	mw, err := NewRetryMiddlewareWithConfig(fastConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := &countingHandler{response: &transport.Response{}}
	_, err = mw(handler).Handle(ctx, &transport.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled before retry")
	assert.Equal(t, int64(0), handler.calls.Load())
}

func TestRetryMiddleware_HalfOpenProbeSingleAttempt(t *testing.T) {
	mw, err := NewRetryMiddlewareWithConfig(fastConfig())
	require.NoError(t, err)

	handler := &countingHandler{
		failFor: 100,
		err:     &llmerrors.ProviderError{Provider: "openai", StatusCode: 503, Message: "down", Type: llmerrors.ErrorTypeProvider},
	}

	ctx := context.WithValue(context.Background(), transport.HalfOpenProbeKey, true)
	_, err = mw(handler).Handle(ctx, &transport.Request{Provider: "openai"})
	require.Error(t, err)
	assert.Equal(t, int64(1), handler.calls.Load())
}

func TestRetryMiddleware_RespectsRetryAfter(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxElapsedTime = 10 * time.Second
	mw, err := NewRetryMiddlewareWithConfig(cfg)
	require.NoError(t, err)

	handler := &countingHandler{
		failFor:  1,
		err:      &llmerrors.RateLimitError{Provider: "openai", RetryAfter: 0},
		response: &transport.Response{Content: "ok"},
	}

	start := time.Now()
	resp, err := mw(handler).Handle(context.Background(), &transport.Request{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExponentialBackoff(t *testing.T) {
	cfg := configuration.RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}

	assert.Equal(t, time.Duration(0), ExponentialBackoff(0, cfg))
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, ExponentialBackoff(2, cfg))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(3, cfg))
	assert.Equal(t, time.Second, ExponentialBackoff(10, cfg), "must cap at MaxInterval")

	cfg.UseJitter = true
	for range 20 {
		b := ExponentialBackoff(3, cfg)
		assert.GreaterOrEqual(t, b, time.Duration(0))
		assert.LessOrEqual(t, b, 400*time.Millisecond)
	}
}

func TestParseRetryAfterValue(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfterValue(5))
	assert.Equal(t, 5*time.Second, parseRetryAfterValue(int64(5)))
	assert.Equal(t, 5*time.Second, parseRetryAfterValue(5.0))
	assert.Equal(t, 5*time.Second, parseRetryAfterValue("5"))
	assert.Equal(t, 2*time.Second, parseRetryAfterValue(2*time.Second))
	assert.Equal(t, time.Duration(0), parseRetryAfterValue("not a time"))
	assert.Equal(t, time.Duration(0), parseRetryAfterValue(nil))
}
