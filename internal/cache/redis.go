package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Redis key layout and timeouts.
const (
	redisKeyPrefix   = "fitplan:workout:"
	redisLeaseSuffix = ":lease"

	redisPingTimeout = 2 * time.Second
)

// releaseLeaseScript deletes a lease only when the caller still owns it,
// so a generation that outlives its lease cannot release a successor's claim.
const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisStore caches workouts in Redis with a server-side TTL and uses
// owner-tokened leases for in-flight deduplication across processes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	owners map[string]string // lease key -> owner token
}

// NewRedisStore connects to Redis and verifies reachability. A failed ping is
// returned as an error so the caller can fall back to the in-memory backend.
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "cache"),
		owners: make(map[string]string),
	}, nil
}

// Get fetches and decodes the workout stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.GeneratedWorkout, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var workout domain.GeneratedWorkout
	if err := json.Unmarshal(data, &workout); err != nil {
		// A corrupt entry is unusable; drop it so the slot heals.
		s.logger.Warn("dropping corrupt cache entry", "key", key, "error", err)
		s.client.Del(ctx, redisKeyPrefix+key)
		return nil, false, nil
	}
	return &workout, true, nil
}

// Put stores the workout as JSON with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, key string, workout *domain.GeneratedWorkout) error {
	if workout == nil {
		return ErrNilWorkout
	}

	data, err := json.Marshal(workout)
	if err != nil {
		return fmt.Errorf("marshal workout: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// TryLease claims the cross-process generation slot via SET NX with a unique
// owner token.
func (s *RedisStore) TryLease(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	leaseKey := redisKeyPrefix + key + redisLeaseSuffix
	token := uuid.NewString()

	acquired, err := s.client.SetNX(ctx, leaseKey, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lease: %w", err)
	}
	if acquired {
		s.mu.Lock()
		s.owners[leaseKey] = token
		s.mu.Unlock()
	}
	return acquired, nil
}

// ReleaseLease frees the slot if this store instance still owns it.
func (s *RedisStore) ReleaseLease(ctx context.Context, key string) error {
	leaseKey := redisKeyPrefix + key + redisLeaseSuffix

	s.mu.Lock()
	token, ok := s.owners[leaseKey]
	delete(s.owners, leaseKey)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := s.client.Eval(ctx, releaseLeaseScript, []string{leaseKey}, token).Err(); err != nil {
		return fmt.Errorf("redis release lease: %w", err)
	}
	return nil
}

// Clear deletes all cached workouts under the key prefix. Lease keys share
// the prefix but expire on their own short TTL, so sweeping them too is
// harmless.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis clear scan: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error { return s.client.Close() }
