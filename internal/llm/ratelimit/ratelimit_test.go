package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

func okHandler() transport.Handler {
	return transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: "ok"}, nil
	})
}

func TestNewMiddleware_ConfigValidation(t *testing.T) {
	_, err := NewMiddleware(configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 0, BurstSize: 1})
	assert.Error(t, err)

	_, err = NewMiddleware(configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 1, BurstSize: 0})
	assert.Error(t, err)

	m, err := NewMiddleware(configuration.RateLimitConfig{Enabled: false})
	require.NoError(t, err)
	m.Stop()
}

func TestMiddleware_AllowsWithinBurst(t *testing.T) {
	m, err := NewMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1,
		BurstSize:       3,
	})
	require.NoError(t, err)
	defer m.Stop()

	handler := m.Wrap()(okHandler())
	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini", Operation: transport.OpWorkoutGeneration}

	for i := range 3 {
		_, err := handler.Handle(context.Background(), req)
		require.NoError(t, err, "request %d within burst must pass", i+1)
	}

	_, err = handler.Handle(context.Background(), req)
	require.Error(t, err)

	var rlErr *llmerrors.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.True(t, rlErr.LocalLimit)
	assert.GreaterOrEqual(t, rlErr.RetryAfter, 1)

	stats := m.GetStats()
	assert.Equal(t, int64(3), stats.Allowed)
	assert.Equal(t, int64(1), stats.Limited)
	assert.Equal(t, 1, stats.Limiters)
}

func TestMiddleware_KeysAreIndependent(t *testing.T) {
	m, err := NewMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1,
		BurstSize:       1,
	})
	require.NoError(t, err)
	defer m.Stop()

	handler := m.Wrap()(okHandler())

	_, err = handler.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	// Different model gets its own bucket.
	_, err = handler.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	m, err := NewMiddleware(configuration.RateLimitConfig{Enabled: false})
	require.NoError(t, err)
	defer m.Stop()

	handler := m.Wrap()(okHandler())
	for range 50 {
		_, err := handler.Handle(context.Background(), &transport.Request{Provider: "openai"})
		require.NoError(t, err)
	}
}

func TestMiddleware_CleanupStale(t *testing.T) {
	m, err := NewMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 10,
		BurstSize:       10,
	})
	require.NoError(t, err)
	defer m.Stop()

	handler := m.Wrap()(okHandler())
	_, err = handler.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	require.Equal(t, 1, m.GetStats().Limiters)

	m.CleanupStale(time.Now().Add(time.Minute))
	assert.Equal(t, 0, m.GetStats().Limiters)
}
