package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahrav/go-fitplan/pkg/events"
)

// Event types emitted by the service.
const (
	EventCacheHit         = "generation.cache_hit"
	EventWorkoutGenerated = "generation.workout_generated"
	EventGenerationFailed = "generation.failed"

	eventSource = "generation-service"
)

// cacheHitEvent marks a request served from the cache.
type cacheHitEvent struct {
	Fingerprint string `json:"fingerprint"`
	WorkoutID   string `json:"workout_id"`
}

// workoutGeneratedEvent marks a successful end-to-end generation.
type workoutGeneratedEvent struct {
	WorkoutID     string    `json:"workout_id"`
	Model         string    `json:"model"`
	Attempts      int       `json:"attempts"`
	LatencyMillis int64     `json:"latency_millis"`
	Confidence    float64   `json:"confidence"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// generationFailedEvent marks an exhausted or short-circuited request.
type generationFailedEvent struct {
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
}

// emitter wraps the sink with swallow-and-log semantics: event delivery
// failures are diagnostic noise, never generation failures.
type emitter struct {
	sink   events.EventSink
	logger *slog.Logger
}

func (e *emitter) emit(ctx context.Context, eventType string, payload any) {
	envelope, err := events.NewEnvelope(eventType, eventSource, payload)
	if err != nil {
		e.logger.Warn("event payload marshal failed", "event_type", eventType, "error", err)
		return
	}
	if err := e.sink.Append(ctx, envelope); err != nil {
		e.logger.Warn("event emission failed", "event_type", eventType, "error", err)
	}
}
