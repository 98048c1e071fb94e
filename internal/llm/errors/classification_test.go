package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_TypedErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{
			name: "retryable provider error",
			err: &ProviderError{
				Provider:   "openai",
				StatusCode: 503,
				Message:    "service unavailable",
				Type:       ErrorTypeProvider,
			},
			wantType:      ErrorTypeProvider,
			wantRetryable: true,
		},
		{
			name: "auth provider error not retryable",
			err: &ProviderError{
				Provider:   "openai",
				StatusCode: 401,
				Message:    "invalid api key",
				Type:       ErrorTypeAuth,
			},
			wantType:      ErrorTypeAuth,
			wantRetryable: false,
		},
		{
			name:          "rate limit error",
			err:           &RateLimitError{Provider: "openai", RetryAfter: 2},
			wantType:      ErrorTypeRateLimit,
			wantRetryable: true,
		},
		{
			name:          "validation error",
			err:           &ValidationError{Field: "workoutType", Message: "required"},
			wantType:      ErrorTypeValidation,
			wantRetryable: false,
		},
		{
			name:          "reconciliation error",
			err:           &ReconciliationError{Reason: "payload is not an object"},
			wantType:      ErrorTypeReconciliation,
			wantRetryable: false,
		},
		{
			name:          "circuit breaker error",
			err:           &CircuitBreakerError{Provider: "openai", State: "open"},
			wantType:      ErrorTypeCircuitBreaker,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantType, classified.Type)
			assert.Equal(t, tt.wantRetryable, classified.ShouldRetry())
		})
	}
}

func TestClassify_StringPatterns(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{name: "authentication", err: errors.New("authentication token rejected"), wantType: ErrorTypeAuth, wantRetryable: false},
		{name: "authorization", err: errors.New("authorization denied for model"), wantType: ErrorTypePermission, wantRetryable: false},
		{name: "validation", err: errors.New("request validation failed upstream"), wantType: ErrorTypeValidation, wantRetryable: false},
		{name: "timeout", err: errors.New("i/o timeout talking to host"), wantType: ErrorTypeTimeout, wantRetryable: true},
		{name: "connection", err: errors.New("connection refused"), wantType: ErrorTypeNetwork, wantRetryable: true},
		{name: "unknown defaults terminal", err: errors.New("something odd"), wantType: ErrorTypeUnknown, wantRetryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantType, classified.Type)
			assert.Equal(t, tt.wantRetryable, classified.ShouldRetry())
		})
	}
}

func TestClassify_Sentinels(t *testing.T) {
	deadline := fmt.Errorf("wrapped: %w", context.DeadlineExceeded)
	classified := Classify(deadline)
	require.NotNil(t, classified)
	assert.Equal(t, ErrorTypeTimeout, classified.Type)
	assert.True(t, classified.ShouldRetry())

	exhausted := fmt.Errorf("gave up: %w", ErrMaxRetriesExceeded)
	classified = Classify(exhausted)
	require.NotNil(t, classified)
	assert.False(t, classified.ShouldRetry())
}

func TestClassify_NilAndUnwrap(t *testing.T) {
	assert.Nil(t, Classify(nil))

	cause := &ProviderError{Provider: "openai", StatusCode: 500, Message: "boom", Type: ErrorTypeProvider}
	classified := Classify(fmt.Errorf("call failed: %w", cause))
	require.NotNil(t, classified)

	var unwrapped *ProviderError
	assert.True(t, errors.As(classified, &unwrapped))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(ErrRateLimitExceeded))
	assert.True(t, IsRetryableError(&ProviderError{Type: ErrorTypeNetwork}))
	assert.False(t, IsRetryableError(&ValidationError{Message: "nope"}))
	assert.False(t, IsRetryableError(&ReconciliationError{Reason: "nope"}))
}
