// Package events provides the generic event infrastructure for domain event
// emission. It defines the Envelope type wrapping domain events with
// consistent metadata and the EventSink interface for delivery.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped on every envelope built by NewEnvelope.
// Increment following semantic versioning when payload schemas change.
const SchemaVersion = "1.0.0"

// Envelope wraps domain events with consistent metadata. The generic
// container holds any domain-specific payload while keeping standard fields
// for routing, deduplication, and correlation.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing.
	// Examples: "generation.workout_generated", "generation.cache_hit".
	Type string `json:"type"`

	// Source identifies the emitting component, e.g. "generation-service".
	Source string `json:"source"`

	// Version enables schema evolution.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey lets downstream consumers drop duplicates. For
	// generation events this is the request fingerprint.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// TraceID correlates the event with the request that produced it.
	TraceID string `json:"trace_id,omitempty"`

	// Payload carries the domain-specific event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope around a payload, stamping ID, version, and
// timestamp. Marshal errors are returned rather than panicking so emitters
// can log and move on.
func NewEnvelope(eventType, source string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Version:   SchemaVersion,
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// EventSink delivers events to downstream consumers. Implementations must
// return quickly and tolerate duplicates; events are observability, not
// correctness, so callers never fail their primary operation on sink errors.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards all events. Useful in tests and when emission is
// disabled.
type NoOpEventSink struct{}

// Append implements EventSink with no-op behavior.
func (*NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// NewNoOpEventSink creates a sink that drops everything.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }

// SlogSink writes events to structured logs. It is the default sink for
// single-process deployments where no broker is configured.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging through the given logger, or the
// default logger when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "events")}
}

// Append implements EventSink by logging the envelope.
func (s *SlogSink) Append(ctx context.Context, envelope Envelope) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "event",
		slog.String("event_id", envelope.ID),
		slog.String("event_type", envelope.Type),
		slog.String("source", envelope.Source),
		slog.String("trace_id", envelope.TraceID),
		slog.String("payload", string(envelope.Payload)),
	)
	return nil
}
