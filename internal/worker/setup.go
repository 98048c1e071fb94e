// Package worker wires the application together at startup: the LLM client
// with its middleware pipeline, the cache backend selected by config, and
// the feature bus registrations. It keeps assembly logic out of the domain
// packages.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-fitplan/internal/cache"
	"github.com/ahrav/go-fitplan/internal/generation"
	"github.com/ahrav/go-fitplan/internal/llm"
	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	"github.com/ahrav/go-fitplan/pkg/events"
)

// CacheConfig selects and tunes the workout cache backend.
type CacheConfig struct {
	// RedisAddr enables the Redis backend when non-empty; otherwise the
	// bounded in-memory store is used.
	RedisAddr string

	MaxEntries int
	TTL        time.Duration
}

// InitializeLLMClient creates an LLM client with the full middleware
// pipeline. Returns the client for dependency injection rather than setting
// global state.
func InitializeLLMClient(cfg *configuration.Config) (llm.Client, error) {
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize llm client: %w", err)
	}
	return client, nil
}

// InitializeCache builds the cache manager. A Redis backend that proves
// unreachable degrades to the in-memory store with a warning; the cache is
// an optimization and must not block startup.
func InitializeCache(cfg CacheConfig) *cache.Manager {
	if cfg.RedisAddr != "" {
		store, err := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.TTL)
		if err == nil {
			return cache.NewManager(store)
		}
		slog.Warn("redis cache unavailable, falling back to memory", "addr", cfg.RedisAddr, "error", err)
	}
	return cache.NewManager(cache.NewMemoryStore(cfg.MaxEntries, cfg.TTL))
}

// InitializeGenerationService assembles the orchestrator over the given
// client and cache. A nil sink falls back to structured-log emission.
func InitializeGenerationService(client llm.Client, cacheManager *cache.Manager, sink events.EventSink) *generation.Service {
	if sink == nil {
		sink = events.NewSlogSink(nil)
	}
	return generation.NewService(generation.NewLLMTransport(client), cacheManager, sink, generation.Config{})
}
