// Package transport defines the request pipeline for LLM calls: the
// provider-agnostic Request/Response types, the Handler abstraction, and the
// Middleware chain that layers retry, rate limiting, circuit breaking, and
// logging around the core HTTP handler.
package transport

import (
	"net/http"
	"time"
)

// OperationType identifies the logical LLM operation being performed.
type OperationType string

const (
	// OpWorkoutGeneration requests a structured workout plan.
	OpWorkoutGeneration OperationType = "workout_generation"
)

// FinishReason normalizes provider-specific completion reasons.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

// Request is the normalized form of one LLM call. The prompt is already
// rendered; the transport layer never sees template variables.
type Request struct {
	// Operation identifies the logical operation for routing and logging.
	Operation OperationType

	// Provider and Model select the upstream endpoint.
	Provider string
	Model    string

	// SystemPrompt and Prompt carry the rendered prompt text.
	SystemPrompt string
	Prompt       string

	// MaxTokens and Temperature are generation parameters.
	MaxTokens   int
	Temperature float64

	// Timeout bounds a single attempt. Zero means the client default.
	Timeout time.Duration

	// IdempotencyKey deduplicates logically-identical calls. Derived from the
	// request fingerprint by the generation service.
	IdempotencyKey string

	// TraceID correlates log lines across the middleware chain.
	TraceID string
}

// NormalizedUsage carries token accounting in provider-agnostic form.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is the normalized provider reply. Content is raw text that may or
// may not be JSON; the reconciler decides downstream.
type Response struct {
	Content            string
	FinishReason       FinishReason
	Model              string
	ProviderRequestIDs []string
	Usage              NormalizedUsage
	Headers            http.Header `json:"-"`
	RawBody            []byte      `json:"-"`
}
