// Package reconcile maps arbitrarily shaped AI responses onto the canonical
// workout schema. Known shapes are tried in priority order; freeform text
// becomes a low-confidence fallback workout. The output is always
// schema-complete: every phase carries at least one exercise and every
// top-level field holds a usable value. Only truly uninterpretable input
// errors.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// ErrUninterpretable indicates the raw payload is neither a JSON object nor
// a usable text blob. Retrying the same parse would not help, so callers
// must not retry on it.
var ErrUninterpretable = errors.New("uninterpretable ai response")

// Normalizer converts raw AI output into GeneratedWorkout values.
// The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	logger *slog.Logger

	now   func() time.Time // test seams
	newID func() string
}

// NewNormalizer creates a normalizer with real clock and ID generation.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		logger: slog.Default().With("component", "reconcile"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Normalize converts a raw response into a canonical workout. model is
// recorded on the output for provenance. The returned workout is a fresh
// value on every call; a retried generation never mutates a previous result.
func (n *Normalizer) Normalize(raw, model string) (*domain.GeneratedWorkout, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrUninterpretable)
	}

	if source, ok := parsePayload(trimmed); ok {
		candidate, found := unwrap(source)
		if found {
			workout := n.buildWorkout(candidate, model)
			return workout, nil
		}
		// A JSON object with no recognizable workout content degrades to
		// the text fallback rather than erroring.
		n.logger.Warn("no workout shape matched, using text fallback")
	}

	return n.textFallback(trimmed, model), nil
}

// parsePayload decodes the payload as JSON, tolerating markdown code fences
// and surrounding prose. Top-level arrays are treated as flat exercise lists.
func parsePayload(raw string) (map[string]any, bool) {
	candidate := stripCodeFence(raw)

	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		// Models often surround the JSON object with commentary. Extract
		// the outermost braces and retry once.
		start := strings.IndexByte(candidate, '{')
		end := strings.LastIndexByte(candidate, '}')
		if start < 0 || end <= start {
			return nil, false
		}
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &value); err != nil {
			return nil, false
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return v, true
	case []any:
		return map[string]any{"exercises": v}, true
	default:
		return nil, false
	}
}

// stripCodeFence removes a ```json ... ``` wrapper when present.
func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	body := raw
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
