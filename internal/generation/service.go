// Package generation orchestrates one workout generation end to end:
// validate, build variables, consult the cache, render the prompt, call the
// transport with retry, reconcile the response, cache the result. Callers
// receive either a schema-complete workout or an error; never a partial.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahrav/go-fitplan/internal/cache"
	"github.com/ahrav/go-fitplan/internal/domain"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/prompt"
	"github.com/ahrav/go-fitplan/internal/reconcile"
	"github.com/ahrav/go-fitplan/internal/validation"
	"github.com/ahrav/go-fitplan/pkg/events"
)

// Retry defaults. The transport already retries wire-level failures inside
// one logical call; this budget covers logical attempts, including responses
// that arrive but cannot be used.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultAttemptTimeout = 60 * time.Second

	backoffMultiplier = 2
)

// Config tunes the service's retry loop.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Service is the generation orchestrator.
type Service struct {
	engine     *validation.Engine
	builder    *prompt.Builder
	cache      *cache.Manager
	transport  Transport
	normalizer *reconcile.Normalizer
	events     *emitter
	logger     *slog.Logger
	config     Config

	metrics Metrics
}

// NewService wires the orchestrator. A nil sink disables event emission.
func NewService(t Transport, cacheManager *cache.Manager, sink events.EventSink, cfg Config) *Service {
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	logger := slog.Default().With("component", "generation")
	return &Service{
		engine:     validation.NewEngine(),
		builder:    prompt.NewBuilder(),
		cache:      cacheManager,
		transport:  t,
		normalizer: reconcile.NewNormalizer(),
		events:     &emitter{sink: sink, logger: logger},
		logger:     logger,
		config:     cfg.withDefaults(),
	}
}

// GenerateWorkout runs the full pipeline for one request. Error-severity
// validation issues fail fast with their messages concatenated; warnings are
// logged and never block. Transient transport failures retry up to the
// attempt budget with exponential backoff; authentication-, authorization-,
// and validation-flavored errors short-circuit.
func (s *Service) GenerateWorkout(ctx context.Context, req *domain.GenerationRequest) (*domain.GeneratedWorkout, error) {
	start := time.Now()
	s.metrics.recordRequest()

	result := s.engine.Validate(req)
	if !result.IsValid {
		s.metrics.recordError()
		return nil, &llmerrors.ValidationError{
			Message: strings.Join(result.ErrorMessages(), "; "),
		}
	}
	for _, issue := range result.Warnings() {
		s.logger.Warn("validation warning", "field", issue.Field, "message", issue.Message)
	}

	vars := s.builder.BuildVariables(req)
	if findings := prompt.ValidateVariables(vars, req.WorkoutType); len(findings) > 0 {
		s.logger.Debug("variable diagnostics", "findings", findings)
	}

	template, err := prompt.ForWorkoutType(req.WorkoutType)
	if err != nil {
		s.metrics.recordError()
		return nil, &llmerrors.ValidationError{Message: err.Error()}
	}

	attempts := 0
	workout, cached, err := s.cache.GetOrGenerate(ctx, req, func(ctx context.Context) (*domain.GeneratedWorkout, error) {
		generated, n, genErr := s.generateWithRetry(ctx, template, vars)
		attempts = n
		return generated, genErr
	})
	if err != nil {
		s.metrics.recordError()
		s.events.emit(ctx, EventGenerationFailed, generationFailedEvent{
			Reason:   err.Error(),
			Attempts: attempts,
		})
		return nil, err
	}

	latency := time.Since(start).Milliseconds()
	s.metrics.recordOutcome(cached, latency)

	if cached {
		fingerprint, _ := cache.Fingerprint(req)
		s.logger.Info("cache hit", "workout_id", workout.ID, "fingerprint", fingerprint)
		s.events.emit(ctx, EventCacheHit, cacheHitEvent{
			Fingerprint: fingerprint,
			WorkoutID:   workout.ID,
		})
		return workout, nil
	}

	s.logger.Info("workout generated",
		"workout_id", workout.ID,
		"model", workout.AIModel,
		"attempts", attempts,
		"latency_ms", latency)
	s.events.emit(ctx, EventWorkoutGenerated, workoutGeneratedEvent{
		WorkoutID:     workout.ID,
		Model:         workout.AIModel,
		Attempts:      attempts,
		LatencyMillis: latency,
		Confidence:    workout.Confidence,
		GeneratedAt:   workout.GeneratedAt,
	})
	return workout, nil
}

// generateWithRetry runs transport attempts until one yields a reconcilable
// workout. It returns the attempt count alongside the result for event
// reporting.
func (s *Service) generateWithRetry(ctx context.Context, template string, vars map[string]string) (*domain.GeneratedWorkout, int, error) {
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, attempt - 1, err
			}
		}

		raw, err := s.callTransport(ctx, template, vars)
		if err != nil {
			if isShortCircuit(err) {
				return nil, attempt, err
			}
			lastErr = err
			s.logger.Warn("generation attempt failed", "attempt", attempt, "error", err)
			continue
		}

		workout, err := s.normalizer.Normalize(raw.Content, raw.Model)
		if err != nil {
			// Uninterpretable payloads are not retried; the same parse
			// logic against the same class of garbage will not improve.
			return nil, attempt, &llmerrors.ReconciliationError{Reason: err.Error()}
		}
		return workout, attempt, nil
	}

	return nil, s.config.MaxAttempts,
		fmt.Errorf("generation failed after %d attempts: %w", s.config.MaxAttempts, lastErr)
}

// callTransport runs one attempt under the per-attempt timeout. A timeout
// surfaces as context.DeadlineExceeded, which is retryable.
func (s *Service) callTransport(ctx context.Context, template string, vars map[string]string) (*RawResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()
	return s.transport.GenerateFromTemplate(attemptCtx, prompt.SystemPrompt, template, vars, CallOptions{
		Timeout: s.config.AttemptTimeout,
	})
}

// backoff sleeps the exponential delay for the upcoming attempt, aborting
// early when the request context ends.
func (s *Service) backoff(ctx context.Context, attempt int) error {
	delay := s.config.InitialBackoff
	for i := 2; i < attempt; i++ {
		delay *= backoffMultiplier
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// isShortCircuit reports whether an error must not be retried: typed
// validation and reconciliation failures, plus anything whose message smells
// of auth or input problems.
func isShortCircuit(err error) bool {
	var valErr *llmerrors.ValidationError
	if errors.As(err, &valErr) {
		return true
	}
	var recErr *llmerrors.ReconciliationError
	if errors.As(err, &recErr) {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, indicator := range []string{"validation", "authentication", "authorization", "unauthorized", "invalid api key"} {
		if strings.Contains(message, indicator) {
			return true
		}
	}
	return false
}

// GetMetrics returns the running service counters.
func (s *Service) GetMetrics() MetricsSnapshot { return s.metrics.Snapshot() }

// GetCacheStats returns cache hit/miss statistics.
func (s *Service) GetCacheStats() cache.Stats { return s.cache.Stats() }

// ClearCache drops all cached workouts.
func (s *Service) ClearCache(ctx context.Context) error { return s.cache.Clear(ctx) }

// HealthCheck reports whether the service is fit to take traffic: wired
// dependencies and an error rate under one half of observed requests. An
// idle service is healthy.
func (s *Service) HealthCheck() bool {
	if s.transport == nil || s.cache == nil {
		return false
	}
	snap := s.metrics.Snapshot()
	if snap.TotalRequests == 0 {
		return true
	}
	return float64(snap.ErrorCount)/float64(snap.TotalRequests) < 0.5
}
