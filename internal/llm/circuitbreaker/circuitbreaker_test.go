package circuitbreaker

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

func testConfig() configuration.CircuitBreakerConfig {
	return configuration.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      50 * time.Millisecond,
	}
}

func failingHandler(err error) transport.Handler {
	return transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return nil, err
	})
}

func succeedingHandler() transport.Handler {
	return transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: "ok"}, nil
	})
}

func TestMiddleware_OpensAfterThreshold(t *testing.T) {
	m := NewMiddleware(testConfig())
	boom := errors.New("provider down")
	handler := m.Wrap()(failingHandler(boom))
	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini"}

	for range 3 {
		_, err := handler.Handle(context.Background(), req)
		require.ErrorIs(t, err, boom)
	}

	state, err := m.GetState("openai:gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)

	// Requests are now rejected without reaching the provider.
	_, err = handler.Handle(context.Background(), req)
	var cbErr *llmerrors.CircuitBreakerError
	require.True(t, errors.As(err, &cbErr))
	assert.Equal(t, "open", cbErr.State)
	assert.Equal(t, "openai", cbErr.Provider)
}

func TestMiddleware_RecoversThroughHalfOpen(t *testing.T) {
	m := NewMiddleware(testConfig())
	key := "openai:gpt-4o-mini"
	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini"}

	boom := errors.New("provider down")
	failing := m.Wrap()(failingHandler(boom))
	for range 3 {
		_, _ = failing.Handle(context.Background(), req)
	}
	state, _ := m.GetState(key)
	require.Equal(t, StateOpen, state)

	// Wait past the open timeout plus the 10% jitter margin.
	time.Sleep(60 * time.Millisecond)

	var sawProbe bool
	probing := m.Wrap()(transport.HandlerFunc(func(ctx context.Context, _ *transport.Request) (*transport.Response, error) {
		if ctx.Value(transport.HalfOpenProbeKey) != nil {
			sawProbe = true
		}
		return &transport.Response{Content: "ok"}, nil
	}))

	// SuccessThreshold successful probes close the breaker.
	for range 2 {
		_, err := probing.Handle(context.Background(), req)
		require.NoError(t, err)
	}
	assert.True(t, sawProbe, "half-open requests must be marked as probes")

	state, err := m.GetState(key)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)
}

func TestMiddleware_HalfOpenFailureReopens(t *testing.T) {
	m := NewMiddleware(testConfig())
	key := "openai:gpt-4o-mini"
	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini"}

	boom := errors.New("still down")
	failing := m.Wrap()(failingHandler(boom))
	for range 3 {
		_, _ = failing.Handle(context.Background(), req)
	}

	time.Sleep(60 * time.Millisecond)

	_, err := failing.Handle(context.Background(), req)
	require.ErrorIs(t, err, boom)

	state, err := m.GetState(key)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	m := NewMiddleware(cfg)

	boom := errors.New("always fails")
	handler := m.Wrap()(failingHandler(boom))
	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini"}

	for range 10 {
		_, err := handler.Handle(context.Background(), req)
		require.ErrorIs(t, err, boom)
	}

	_, err := m.GetState("openai:gpt-4o-mini")
	assert.ErrorIs(t, err, ErrBreakerNotFound)
}

func TestMiddleware_Reset(t *testing.T) {
	m := NewMiddleware(testConfig())
	key := "openai:gpt-4o-mini"
	req := &transport.Request{Provider: "openai", Model: "gpt-4o-mini"}

	failing := m.Wrap()(failingHandler(errors.New("down")))
	for range 3 {
		_, _ = failing.Handle(context.Background(), req)
	}
	state, _ := m.GetState(key)
	require.Equal(t, StateOpen, state)

	require.NoError(t, m.Reset(key))
	state, _ = m.GetState(key)
	assert.Equal(t, StateClosed, state)

	ok := m.Wrap()(succeedingHandler())
	_, err := ok.Handle(context.Background(), req)
	assert.NoError(t, err)
}

func TestMiddleware_StatsAggregation(t *testing.T) {
	m := NewMiddleware(testConfig())

	ok := m.Wrap()(succeedingHandler())
	_, err := ok.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	_, err = ok.Handle(context.Background(), &transport.Request{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, 2, stats.TotalBreakers)
	assert.Equal(t, 2, stats.StateCount["closed"])
	assert.Equal(t, int64(2), stats.RequestsAllowed)
}
