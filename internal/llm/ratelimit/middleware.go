// Package ratelimit provides client-side throttling for LLM requests using
// per-key token buckets. Keys combine provider, model, and operation so a
// burst of workout generations against one model cannot starve the rest of
// the pipeline. Stale limiters are cleaned up in the background to keep
// memory bounded in long-running services.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

const (
	// CleanupInterval determines how often stale limiters are removed.
	CleanupInterval = 1 * time.Hour

	// LimiterTTL is the time-to-live for unused limiters.
	LimiterTTL = 1 * time.Hour
)

// timedLimiter wraps a rate limiter with an atomic last-used timestamp so the
// cleanup pass can drop stale entries without holding the write lock for reads.
type timedLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // Unix nanoseconds
}

// Middleware applies local token-bucket rate limiting per request key.
type Middleware struct {
	mu       sync.RWMutex
	limiters map[string]*timedLimiter
	config   configuration.RateLimitConfig
	logger   *slog.Logger

	limited atomic.Int64
	allowed atomic.Int64

	cleanupMu     sync.Mutex
	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	cleanupDone   sync.WaitGroup
}

// NewMiddleware creates the rate limiting middleware and starts its
// background cleanup. Returns an error when the config is inconsistent.
func NewMiddleware(cfg configuration.RateLimitConfig) (*Middleware, error) {
	if cfg.Enabled {
		if cfg.TokensPerSecond <= 0 {
			return nil, fmt.Errorf("tokensPerSecond must be greater than 0, got %f", cfg.TokensPerSecond)
		}
		if cfg.BurstSize <= 0 {
			return nil, fmt.Errorf("burstSize must be greater than 0, got %d", cfg.BurstSize)
		}
	}

	m := &Middleware{
		limiters: make(map[string]*timedLimiter),
		config:   cfg,
		logger:   slog.Default().With("component", "ratelimit"),
	}
	m.start()
	return m, nil
}

// Wrap returns the transport middleware function.
func (m *Middleware) Wrap() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !m.config.Enabled {
				return next.Handle(ctx, req)
			}

			key := buildKey(req)
			if err := m.checkLimit(key); err != nil {
				m.limited.Add(1)
				return nil, err
			}
			m.allowed.Add(1)

			return next.Handle(ctx, req)
		})
	}
}

// buildKey constructs a hierarchical key so limits apply per provider, model,
// and operation rather than globally.
func buildKey(req *transport.Request) string {
	return fmt.Sprintf("%s:%s:%s", req.Provider, req.Model, req.Operation)
}

// checkLimit consults the token bucket for the key. On exhaustion it computes
// a retry delay without consuming a token, which would otherwise leak bucket
// capacity to rejected requests.
func (m *Middleware) checkLimit(key string) error {
	limiter := m.getOrCreateLimiter(key)

	if !limiter.Allow() {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		// Minimum 1 second to prevent tight client retry loops.
		retryAfter := int(math.Ceil(delay.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}

		return &llmerrors.RateLimitError{
			Provider:   "local",
			Limit:      int(m.config.TokensPerSecond),
			RetryAfter: retryAfter,
			LocalLimit: true,
		}
	}

	return nil
}

// getOrCreateLimiter uses double-checked locking: a read lock for the common
// path and a write lock only on first sight of a key.
func (m *Middleware) getOrCreateLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	m.mu.RLock()
	if tl, ok := m.limiters[key]; ok {
		tl.lastUsed.Store(now)
		lim := tl.limiter
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if tl, ok := m.limiters[key]; ok {
		tl.lastUsed.Store(now)
		return tl.limiter
	}

	lim := rate.NewLimiter(rate.Limit(m.config.TokensPerSecond), m.config.BurstSize)
	tl := &timedLimiter{limiter: lim}
	tl.lastUsed.Store(now)
	m.limiters[key] = tl
	return lim
}

// Stats is a snapshot of rate limiter activity.
type Stats struct {
	Limiters int   `json:"limiters"`
	Allowed  int64 `json:"allowed"`
	Limited  int64 `json:"limited"`
}

// GetStats returns current rate limiting statistics.
func (m *Middleware) GetStats() Stats {
	m.mu.RLock()
	count := len(m.limiters)
	m.mu.RUnlock()

	return Stats{
		Limiters: count,
		Allowed:  m.allowed.Load(),
		Limited:  m.limited.Load(),
	}
}

// CleanupStale removes limiters not used since the given time.
func (m *Middleware) CleanupStale(before time.Time) {
	cutoff := before.UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, tl := range m.limiters {
		if tl.lastUsed.Load() < cutoff {
			delete(m.limiters, key)
		}
	}
}

func (m *Middleware) start() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()

	if m.cleanupTicker != nil {
		return
	}

	m.cleanupStop = make(chan struct{})
	m.cleanupTicker = time.NewTicker(CleanupInterval)

	m.cleanupDone.Add(1)
	go m.cleanupLoop()
}

// Stop terminates the background cleanup goroutine. Idempotent.
func (m *Middleware) Stop() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()

	if m.cleanupTicker == nil {
		return
	}

	close(m.cleanupStop)
	m.cleanupTicker.Stop()
	m.cleanupDone.Wait()
	m.cleanupTicker = nil
}

func (m *Middleware) cleanupLoop() {
	defer m.cleanupDone.Done()

	for {
		select {
		case <-m.cleanupTicker.C:
			m.CleanupStale(time.Now().Add(-LimiterTTL))
		case <-m.cleanupStop:
			return
		}
	}
}
