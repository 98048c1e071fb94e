package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Store errors shared by backends.
var (
	// ErrNilWorkout indicates an attempt to cache a nil workout.
	ErrNilWorkout = errors.New("cannot cache nil workout")
)

// Store is the backend contract. Implementations must be safe for concurrent
// use. Get returns (nil, false, nil) on a clean miss; errors are reserved for
// backend failures so the manager can degrade gracefully.
type Store interface {
	// Get returns the cached workout for key, or found=false on a miss.
	Get(ctx context.Context, key string) (workout *domain.GeneratedWorkout, found bool, err error)

	// Put stores a workout under key. Backends apply their own TTL.
	Put(ctx context.Context, key string, workout *domain.GeneratedWorkout) error

	// TryLease attempts to claim the in-flight generation slot for key.
	// It returns true when this caller should generate; false when another
	// generation for the same key is already running.
	TryLease(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseLease frees the slot claimed by TryLease. Safe to call for a
	// lease that already expired.
	ReleaseLease(ctx context.Context, key string) error

	// Clear drops all cached workouts. Leases are left alone so in-flight
	// generations finish their dedup window undisturbed.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
