package retry

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
)

// calculateBackoff computes the retry delay for an attempt. Provider
// Retry-After guidance takes precedence; otherwise exponential backoff with
// optional full jitter applies. Thread-safe via math/rand/v2.
func (r *retryMiddleware) calculateBackoff(attempt int, err error) time.Duration {
	baseBackoff := r.config.InitialInterval
	if baseBackoff <= 0 {
		baseBackoff = time.Millisecond // prevent hot loop
	}

	for i := 1; i < attempt; i++ {
		multiplier := r.config.Multiplier
		if multiplier < 1.0 {
			multiplier = 1.0
		}
		baseBackoff = time.Duration(float64(baseBackoff) * multiplier)
		if baseBackoff > r.config.MaxInterval {
			baseBackoff = r.config.MaxInterval
			break
		}
	}

	exponentialBackoff := baseBackoff
	if r.config.UseJitter {
		// Full jitter: uniform in [0, backoff].
		jitterMs := rand.Int64N(baseBackoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter
		exponentialBackoff = time.Duration(jitterMs) * time.Millisecond
	}

	if retryAfter := r.extractRetryAfter(err); retryAfter > 0 {
		return retryAfter
	}

	return exponentialBackoff
}

// calculatePureExponentialBackoff ignores retry-after guidance. Used as a
// fallback when the provider-specified delay conflicts with the overall
// time budget.
func (r *retryMiddleware) calculatePureExponentialBackoff(attempt int) time.Duration {
	backoff := r.config.InitialInterval
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * r.config.Multiplier)
		if backoff > r.config.MaxInterval {
			backoff = r.config.MaxInterval
			break
		}
	}

	if r.config.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}

// extractRetryAfter pulls provider-specified retry delays out of error
// values, checking the AfterProvider interface first and then the known
// typed errors.
func (r *retryMiddleware) extractRetryAfter(err error) time.Duration {
	var provider AfterProvider
	if errors.As(err, &provider) {
		return provider.GetRetryAfter()
	}

	var rateLimitErr *llmerrors.RateLimitError
	if errors.As(err, &rateLimitErr) && rateLimitErr.RetryAfter > 0 {
		return time.Duration(rateLimitErr.RetryAfter) * time.Second
	}

	var providerErr *llmerrors.ProviderError
	if errors.As(err, &providerErr) && providerErr.RetryAfter > 0 {
		return time.Duration(providerErr.RetryAfter) * time.Second
	}

	var pipelineErr *llmerrors.PipelineError
	if errors.As(err, &pipelineErr) && pipelineErr.Details != nil {
		if raw, ok := pipelineErr.Details["retry_after"]; ok {
			return parseRetryAfterValue(raw)
		}
	}

	return 0
}

// parseRetryAfterValue converts the retry-after formats providers actually
// send: numeric seconds, RFC timestamps, and native durations.
func parseRetryAfterValue(value any) time.Duration {
	switch v := value.(type) {
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v) * time.Second
	case string:
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
		formats := []string{
			time.RFC1123, time.RFC1123Z,
			time.RFC822, time.RFC822Z,
			time.RFC850, time.ANSIC,
		}
		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				duration := time.Until(t)
				if duration < 0 {
					return 0
				}
				return duration
			}
		}
	case time.Duration:
		return v
	}
	return 0
}

// ExponentialBackoff calculates the delay for a given attempt number under
// the supplied config. Returns zero for non-positive attempts.
func ExponentialBackoff(attempt int, config configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := config.InitialInterval
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.MaxInterval {
			return config.MaxInterval
		}
	}

	if config.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}
