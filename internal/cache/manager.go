package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Lease timing. A lease outlives any sane generation attempt; waiters poll
// the cache while a peer generates and give up when the lease deadline
// passes, at which point they generate themselves.
const (
	DefaultLeaseTimeout = 30 * time.Second

	retryCheckInterval = 100 * time.Millisecond
)

// GenerateFunc produces a workout on a cache miss.
type GenerateFunc func(ctx context.Context) (*domain.GeneratedWorkout, error)

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`

	// HitRate is hits over total lookups, 0 when no lookups happened.
	HitRate float64 `json:"hit_rate"`
}

// Manager coordinates fingerprinting, lookup, lease deduplication, and
// success-only population over a Store. Backend failures degrade to
// generation rather than failing the request.
type Manager struct {
	store        Store
	leaseTimeout time.Duration
	logger       *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewManager wraps a store. A nil store panics early rather than at first use.
func NewManager(store Store) *Manager {
	if store == nil {
		panic("cache: nil store")
	}
	return &Manager{
		store:        store,
		leaseTimeout: DefaultLeaseTimeout,
		logger:       slog.Default().With("component", "cache"),
	}
}

// GetOrGenerate returns the cached workout for the request when present,
// otherwise generates one, caching it on success. Concurrent calls for the
// same fingerprint are deduplicated: one caller generates while the others
// poll for its result. A generation failure is returned as-is and never
// cached.
//
// cached reports whether the result came from the cache.
func (m *Manager) GetOrGenerate(ctx context.Context, req *domain.GenerationRequest, generate GenerateFunc) (workout *domain.GeneratedWorkout, cached bool, err error) {
	key, err := Fingerprint(req)
	if err != nil {
		// An unfingerprintable request bypasses the cache entirely.
		m.errors.Add(1)
		workout, err = generate(ctx)
		return workout, false, err
	}

	if workout, found := m.lookup(ctx, key); found {
		return workout, true, nil
	}
	m.misses.Add(1)

	acquired, leaseErr := m.store.TryLease(ctx, key, m.leaseTimeout)
	if leaseErr != nil {
		m.errors.Add(1)
		m.logger.Warn("lease unavailable, generating without dedup", "error", leaseErr)
		workout, err = generate(ctx)
		return workout, false, err
	}

	if !acquired {
		if workout, found := m.waitForPeer(ctx, key); found {
			return workout, true, nil
		}
		// Peer failed or timed out; fall through and generate ourselves.
	} else {
		defer m.releaseLease(key)
	}

	workout, err = generate(ctx)
	if err != nil {
		return nil, false, err
	}

	if putErr := m.store.Put(ctx, key, workout); putErr != nil {
		m.errors.Add(1)
		m.logger.Warn("cache store failed", "error", putErr)
	}
	return workout, false, nil
}

// Stats returns a snapshot of hit/miss/error counters.
func (m *Manager) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Errors:  m.errors.Load(),
		HitRate: rate,
	}
}

// Clear drops all cached entries.
func (m *Manager) Clear(ctx context.Context) error { return m.store.Clear(ctx) }

// Close closes the underlying store.
func (m *Manager) Close() error { return m.store.Close() }

// lookup wraps store.Get with error degradation and hit accounting.
func (m *Manager) lookup(ctx context.Context, key string) (*domain.GeneratedWorkout, bool) {
	workout, found, err := m.store.Get(ctx, key)
	if err != nil {
		m.errors.Add(1)
		m.logger.Warn("cache lookup failed", "error", err)
		return nil, false
	}
	if found {
		m.hits.Add(1)
	}
	return workout, found
}

// waitForPeer polls the cache while another caller holds the generation
// lease. It returns found=false when the lease window elapses or the context
// ends first.
func (m *Manager) waitForPeer(ctx context.Context, key string) (*domain.GeneratedWorkout, bool) {
	deadline := time.Now().Add(m.leaseTimeout)
	ticker := time.NewTicker(retryCheckInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
			workout, found, err := m.store.Get(ctx, key)
			if err != nil {
				m.errors.Add(1)
				return nil, false
			}
			if found {
				m.hits.Add(1)
				return workout, true
			}
		}
	}
	return nil, false
}

// releaseLease frees the in-flight slot with a short background timeout so
// cleanup survives a cancelled request context.
func (m *Manager) releaseLease(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.ReleaseLease(ctx, key); err != nil {
		m.errors.Add(1)
		m.logger.Warn("lease release failed", "key", key, "error", err)
	}
}
