package circuitbreaker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

// DefaultHalfOpenProbes limits concurrent probe requests when recovering.
const DefaultHalfOpenProbes = 1

// Middleware manages one breaker per provider/model key.
type Middleware struct {
	mu       sync.RWMutex
	breakers map[string]*breaker
	config   configuration.CircuitBreakerConfig
}

// NewMiddleware creates circuit breaker middleware from configuration.
func NewMiddleware(cfg configuration.CircuitBreakerConfig) *Middleware {
	return &Middleware{
		breakers: make(map[string]*breaker),
		config:   cfg,
	}
}

// Wrap returns the transport middleware function. Probe requests are marked
// on the context so the retry layer limits them to a single attempt.
func (m *Middleware) Wrap() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !m.config.Enabled {
				return next.Handle(ctx, req)
			}

			key := buildKey(req)
			b := m.getOrCreateBreaker(key)

			result, allowed := b.allow()
			if !allowed {
				return nil, &llmerrors.CircuitBreakerError{
					Provider: req.Provider,
					State:    State(b.state.Load()).String(),
					ResetAt:  time.Unix(0, b.lastFailureTime.Load()).Add(m.config.OpenTimeout).Unix(),
				}
			}
			defer result.cleanup()

			requestCtx := ctx
			if result.probe {
				requestCtx = context.WithValue(ctx, transport.HalfOpenProbeKey, true)
			}

			resp, err := next.Handle(requestCtx, req)
			if err != nil {
				b.recordFailure()
				return nil, err
			}

			b.recordSuccess()
			return resp, nil
		})
	}
}

// buildKey creates the breaker key {provider}:{model}.
func buildKey(req *transport.Request) string {
	var builder strings.Builder
	builder.Grow(len(req.Provider) + len(req.Model) + 1)
	builder.WriteString(req.Provider)
	builder.WriteByte(':')
	builder.WriteString(req.Model)
	return builder.String()
}

func (m *Middleware) getOrCreateBreaker(key string) *breaker {
	m.mu.RLock()
	b, ok := m.breakers[key]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[key]; ok {
		return b
	}

	b = newBreaker(
		m.config.FailureThreshold,
		m.config.SuccessThreshold,
		DefaultHalfOpenProbes,
		m.config.OpenTimeout,
	)
	m.breakers[key] = b
	return b
}

// GetState returns the current state of a breaker by key.
func (m *Middleware) GetState(key string) (State, error) {
	m.mu.RLock()
	b, ok := m.breakers[key]
	m.mu.RUnlock()
	if !ok {
		return StateClosed, ErrBreakerNotFound
	}
	return State(b.state.Load()), nil
}

// Reset forces a breaker back to the closed state.
func (m *Middleware) Reset(key string) error {
	m.mu.RLock()
	b, ok := m.breakers[key]
	m.mu.RUnlock()
	if !ok {
		return ErrBreakerNotFound
	}
	b.transitionTo(StateClosed)
	return nil
}

// Stats aggregates metrics across all breakers.
type Stats struct {
	TotalBreakers    int            `json:"total_breakers"`
	StateCount       map[string]int `json:"state_count"`
	RequestsAllowed  int64          `json:"requests_allowed"`
	RequestsRejected int64          `json:"requests_rejected"`
	StateTransitions int64          `json:"state_transitions"`
}

// GetStats returns system-wide circuit breaker statistics.
func (m *Middleware) GetStats() *Stats {
	stats := &Stats{StateCount: map[string]int{
		StateClosed.String():   0,
		StateOpen.String():     0,
		StateHalfOpen.String(): 0,
	}}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.breakers {
		stats.TotalBreakers++
		stats.StateCount[State(b.state.Load()).String()]++
		stats.RequestsAllowed += b.requestsAllowed.Load()
		stats.RequestsRejected += b.requestsRejected.Load()
		stats.StateTransitions += b.stateTransitions.Load()
	}
	return stats
}
