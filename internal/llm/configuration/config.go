// Package configuration holds the LLM client configuration: provider
// credentials, retry and rate-limit policies, circuit breaker thresholds,
// and observability options. Sensitive fields are excluded from JSON
// serialization.
package configuration

import (
	"net/http"
	"time"
)

// Config holds comprehensive configuration for the LLM client.
type Config struct {
	// HTTP client configuration.
	HTTPTimeout time.Duration `json:"http_timeout"`
	HTTPClient  *http.Client  `json:"-"`

	// Provider configurations keyed by provider name.
	Providers map[string]ProviderConfig `json:"providers"`

	// DefaultProvider and DefaultModel are used when the caller does not
	// specify them per request.
	DefaultProvider string `json:"default_provider"`
	DefaultModel    string `json:"default_model"`

	// Retry configuration.
	Retry RetryConfig `json:"retry"`

	// Circuit breaker configuration.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`

	// Rate limiting configuration.
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Observability configuration.
	Observability ObservabilityConfig `json:"observability"`
}

// ProviderConfig holds provider-specific configuration and authentication.
type ProviderConfig struct {
	Endpoint  string            `json:"endpoint"`
	APIKey    string            `json:"-"` // Sensitive, not serialized
	APIKeyEnv string            `json:"api_key_env"`
	Timeout   time.Duration     `json:"timeout"`
	Headers   map[string]string `json:"headers"`
}

// RetryConfig controls retry behavior for failed LLM operations.
// Implements exponential backoff with jitter for optimal retry timing.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts"`     // Maximum attempts including the first
	MaxElapsedTime  time.Duration `json:"max_elapsed_time"` // Total time budget for all attempts
	InitialInterval time.Duration `json:"initial_interval"` // Starting backoff duration
	MaxInterval     time.Duration `json:"max_interval"`     // Maximum backoff duration
	Multiplier      float64       `json:"multiplier"`       // Exponential backoff multiplier
	UseJitter       bool          `json:"use_jitter"`       // Enable full jitter randomization
}

// CircuitBreakerConfig controls circuit breaker behavior for provider
// protection during outages.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	OpenTimeout      time.Duration `json:"open_timeout"`
}

// RateLimitConfig controls the local token bucket applied per attempt.
type RateLimitConfig struct {
	Enabled         bool    `json:"enabled"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	BurstSize       int     `json:"burst_size"`
}

// ObservabilityConfig controls logging behavior for the pipeline.
type ObservabilityConfig struct {
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
	RedactPrompts bool   `json:"redact_prompts"`
}
