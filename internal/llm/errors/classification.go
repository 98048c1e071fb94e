package errors

import (
	"context"
	"errors"
	"strings"
)

// Classify transforms pipeline errors into PipelineError with retry guidance.
// Examines error types, sentinel errors, and message patterns to determine
// appropriate classification, retry behavior, and structured context.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}

	if pipelineErr := classifyTypedErrors(err); pipelineErr != nil {
		return pipelineErr
	}

	if pipelineErr := classifySentinelErrors(err); pipelineErr != nil {
		return pipelineErr
	}

	return classifyStringPatternErrors(err)
}

// classifyTypedErrors handles strongly-typed error classification.
func classifyTypedErrors(err error) *PipelineError {
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return &PipelineError{
			Type:      providerErr.Type,
			Message:   providerErr.Message,
			Code:      providerErr.Code,
			Retryable: providerErr.IsRetryable(),
			Details: map[string]any{
				"provider":    providerErr.Provider,
				"status_code": providerErr.StatusCode,
			},
			Cause: err,
		}
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &PipelineError{
			Type:      ErrorTypeRateLimit,
			Message:   rateLimitErr.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details: map[string]any{
				"provider":    rateLimitErr.Provider,
				"retry_after": rateLimitErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return &PipelineError{
			Type:      ErrorTypeCircuitBreaker,
			Message:   cbErr.Error(),
			Code:      "CIRCUIT_BREAKER",
			Retryable: true,
			Details: map[string]any{
				"provider": cbErr.Provider,
				"state":    cbErr.State,
			},
			Cause: err,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &PipelineError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Details:   map[string]any{"field": valErr.Field},
			Cause:     err,
		}
	}

	var recErr *ReconciliationError
	if errors.As(err, &recErr) {
		return &PipelineError{
			Type:      ErrorTypeReconciliation,
			Message:   recErr.Error(),
			Code:      "RECONCILIATION",
			Retryable: false,
			Cause:     err,
		}
	}

	return nil
}

// classifySentinelErrors handles sentinel error classification via errors.Is.
func classifySentinelErrors(err error) *PipelineError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &PipelineError{
			Type:      ErrorTypeTimeout,
			Message:   "request timed out",
			Code:      "TIMEOUT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrRateLimitExceeded):
		return &PipelineError{
			Type:      ErrorTypeRateLimit,
			Message:   err.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrCircuitBreakerOpen):
		return &PipelineError{
			Type:      ErrorTypeCircuitBreaker,
			Message:   err.Error(),
			Code:      "CIRCUIT_BREAKER",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrProviderUnavailable):
		return &PipelineError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "PROVIDER_UNAVAILABLE",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrMaxRetriesExceeded):
		return &PipelineError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "MAX_RETRIES",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	}

	return nil
}

// classifyStringPatternErrors handles untyped error classification by
// matching message substrings. Authentication, authorization, and
// validation-flavored messages are terminal; everything transient retries.
func classifyStringPatternErrors(err error) *PipelineError {
	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "rate limit"):
		return &PipelineError{
			Type:      ErrorTypeRateLimit,
			Message:   "rate limit exceeded",
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		return &PipelineError{
			Type:      ErrorTypeTimeout,
			Message:   "request timeout",
			Code:      "TIMEOUT",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "authentication"):
		return &PipelineError{
			Type:      ErrorTypeAuth,
			Message:   "authentication failed",
			Code:      "AUTH_FAILED",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "forbidden") || strings.Contains(errMsg, "permission") || strings.Contains(errMsg, "authorization"):
		return &PipelineError{
			Type:      ErrorTypePermission,
			Message:   "permission denied",
			Code:      "PERMISSION_DENIED",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "validation"):
		return &PipelineError{
			Type:      ErrorTypeValidation,
			Message:   "validation failed",
			Code:      "VALIDATION",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "quota"):
		return &PipelineError{
			Type:      ErrorTypeQuota,
			Message:   "quota exceeded",
			Code:      "QUOTA_EXCEEDED",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection"):
		return &PipelineError{
			Type:      ErrorTypeNetwork,
			Message:   "network error",
			Code:      "NETWORK_ERROR",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	default:
		return &PipelineError{
			Type:      ErrorTypeUnknown,
			Message:   "unknown error",
			Code:      "UNKNOWN",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	}
}
