// Package circuitbreaker protects LLM providers during outages. Each
// provider/model pair gets its own breaker that opens after consecutive
// failures, rejects requests while open, and probes with limited traffic in
// the half-open state before closing again.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

var (
	// ErrUnknownCircuitState is returned when the circuit is in an unknown state.
	ErrUnknownCircuitState = errors.New("unknown circuit state")
	// ErrBreakerNotFound is returned when no breaker exists for a key.
	ErrBreakerNotFound = errors.New("circuit breaker not found")
)

// jitterDivisor caps jitter at 10% of the open timeout.
const jitterDivisor = 10

// State represents the current state of a circuit breaker.
type State int32

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows limited probe requests.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker implements per-provider circuit breaking through atomic state
// transitions, safe for concurrent use without locks.
type breaker struct {
	state           atomic.Int32
	failures        atomic.Int32
	successes       atomic.Int32
	lastFailureTime atomic.Int64
	halfOpenProbes  atomic.Int32

	failureThreshold  int
	successThreshold  int
	openTimeout       time.Duration
	maxHalfOpenProbes int

	requestsAllowed  atomic.Int64
	requestsRejected atomic.Int64
	stateTransitions atomic.Int64
}

func newBreaker(failureThreshold, successThreshold, maxProbes int, openTimeout time.Duration) *breaker {
	b := &breaker{
		failureThreshold:  failureThreshold,
		successThreshold:  successThreshold,
		openTimeout:       openTimeout,
		maxHalfOpenProbes: maxProbes,
	}
	b.state.Store(int32(StateClosed))
	return b
}

// jitter spreads recovery probes so instances don't all test at once.
func (b *breaker) jitter() time.Duration {
	if b.openTimeout <= 0 {
		return 0
	}
	jit := b.openTimeout / jitterDivisor
	if jit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(jit))) // #nosec G404 -- non-cryptographic jitter
}

// allowResult is the outcome of a breaker admission check. Cleanup must be
// called when the request completes to release the probe slot.
type allowResult struct {
	allowed bool
	probe   bool
	cleanup func()
}

// allow decides whether a request may proceed given the current state.
func (b *breaker) allow() (*allowResult, bool) {
	state := State(b.state.Load())

	switch state {
	case StateClosed:
		b.requestsAllowed.Add(1)
		return &allowResult{allowed: true, cleanup: func() {}}, true

	case StateOpen, StateHalfOpen:
		if state == StateOpen {
			lastFailure := time.Unix(0, b.lastFailureTime.Load())
			if time.Since(lastFailure) <= b.openTimeout+b.jitter() {
				b.requestsRejected.Add(1)
				return &allowResult{cleanup: func() {}}, false
			}
			b.transitionTo(StateHalfOpen)
		}
		return b.tryProbe()

	default:
		return &allowResult{cleanup: func() {}}, false
	}
}

// tryProbe attempts to claim a half-open probe slot.
func (b *breaker) tryProbe() (*allowResult, bool) {
	for {
		current := b.halfOpenProbes.Load()
		if int(current) >= b.maxHalfOpenProbes {
			b.requestsRejected.Add(1)
			return &allowResult{cleanup: func() {}}, false
		}
		if b.halfOpenProbes.CompareAndSwap(current, current+1) {
			b.requestsAllowed.Add(1)
			cleanup := func() {
				// Release the slot; saturate at 0 if a transition reset it.
				for {
					cur := b.halfOpenProbes.Load()
					if cur == 0 {
						return
					}
					if b.halfOpenProbes.CompareAndSwap(cur, cur-1) {
						return
					}
				}
			}
			return &allowResult{allowed: true, probe: true, cleanup: cleanup}, true
		}
	}
}

// recordSuccess tracks success counts and closes the breaker once the
// half-open success threshold is reached.
func (b *breaker) recordSuccess() {
	for {
		state := b.state.Load()
		switch State(state) {
		case StateClosed:
			b.failures.Store(0)
			return

		case StateHalfOpen:
			successes := b.successes.Add(1)
			if int(successes) >= b.successThreshold {
				if b.state.CompareAndSwap(state, int32(StateClosed)) {
					b.failures.Store(0)
					b.successes.Store(0)
					b.halfOpenProbes.Store(0)
					b.stateTransitions.Add(1)
					slog.Info("circuit breaker state transition",
						"from", StateHalfOpen.String(),
						"to", StateClosed.String())
					return
				}
				b.successes.Add(-1)
				continue
			}
			return

		case StateOpen:
			return
		}
	}
}

// recordFailure tracks failures, opening the breaker at the threshold. A
// failed half-open probe reopens immediately.
func (b *breaker) recordFailure() {
	b.lastFailureTime.Store(time.Now().UnixNano())

	for {
		state := b.state.Load()
		switch State(state) {
		case StateClosed:
			failures := b.failures.Add(1)
			if int(failures) >= b.failureThreshold {
				if b.state.CompareAndSwap(state, int32(StateOpen)) {
					b.failures.Store(0)
					b.successes.Store(0)
					b.stateTransitions.Add(1)
					slog.Info("circuit breaker state transition",
						"from", StateClosed.String(),
						"to", StateOpen.String())
					return
				}
				continue
			}
			return

		case StateHalfOpen:
			if b.state.CompareAndSwap(state, int32(StateOpen)) {
				b.failures.Store(0)
				b.successes.Store(0)
				b.halfOpenProbes.Store(0)
				b.stateTransitions.Add(1)
				slog.Info("circuit breaker state transition",
					"from", StateHalfOpen.String(),
					"to", StateOpen.String())
				return
			}
			continue

		case StateOpen:
			return
		}
	}
}

// transitionTo forces the breaker into a state, resetting counters.
func (b *breaker) transitionTo(newState State) {
	oldState := State(b.state.Swap(int32(newState)))
	if oldState == newState {
		return
	}

	b.failures.Store(0)
	b.successes.Store(0)
	b.halfOpenProbes.Store(0)
	b.stateTransitions.Add(1)

	slog.Info("circuit breaker state transition",
		"from", oldState.String(),
		"to", newState.String())
}
