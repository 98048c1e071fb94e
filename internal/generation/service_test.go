package generation

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-fitplan/internal/cache"
	"github.com/ahrav/go-fitplan/internal/domain"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
)

const workoutJSON = `{
	"title": "Test Strength Session",
	"warmup": {"exercises": [{"name": "arm circles", "duration": 60}]},
	"mainWorkout": {"exercises": [{"name": "push-ups", "duration": 45, "sets": 3, "restTime": 30}]},
	"cooldown": {"exercises": [{"name": "chest stretch", "duration": 45}]}
}`

// fakeTransport scripts per-call outcomes and counts attempts.
type fakeTransport struct {
	calls   atomic.Int32
	failFor int32
	err     error
	content string
}

func (f *fakeTransport) GenerateFromTemplate(_ context.Context, _, _ string, _ map[string]string, _ CallOptions) (*RawResponse, error) {
	call := f.calls.Add(1)
	if call <= f.failFor {
		return nil, f.err
	}
	content := f.content
	if content == "" {
		content = workoutJSON
	}
	return &RawResponse{Content: content, Model: "test-model"}, nil
}

func generationRequest(t *testing.T) *domain.GenerationRequest {
	t.Helper()
	raw := `{
		"workoutType": "quick",
		"userProfile": {"fitnessLevel": "intermediate"},
		"workoutFocusData": {
			"customization_focus": "strength",
			"customization_duration": 45,
			"customization_energy": 6,
			"customization_equipment": ["dumbbells"]
		}
	}`
	var req domain.GenerationRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return &req
}

func newTestService(t *testing.T, transport Transport) *Service {
	t.Helper()
	manager := cache.NewManager(cache.NewMemoryStore(16, time.Minute))
	return NewService(transport, manager, nil, Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		AttemptTimeout: time.Second,
	})
}

func TestGenerateWorkout_Success(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(t, ft)

	workout, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "Test Strength Session", workout.Title)
	assert.Equal(t, "test-model", workout.AIModel)
	assert.True(t, workout.Complete())
	assert.Equal(t, int32(1), ft.calls.Load())

	metrics := svc.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.CacheMisses)
	assert.Zero(t, metrics.ErrorCount)
}

func TestGenerateWorkout_InvalidRequestFailsFast(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(t, ft)

	req := generationRequest(t)
	req.FocusData.Energy = 99

	_, err := svc.GenerateWorkout(context.Background(), req)
	require.Error(t, err)

	var valErr *llmerrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "energy level")
	assert.Zero(t, ft.calls.Load(), "transport must not be called for invalid requests")
	assert.Equal(t, int64(1), svc.GetMetrics().ErrorCount)
}

func TestGenerateWorkout_WarningsDoNotBlock(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(t, ft)

	// High energy plus long duration warns of overtraining but proceeds.
	req := generationRequest(t)
	raw := `{
		"customization_focus": "cardio",
		"customization_duration": 90,
		"customization_energy": 9,
		"customization_equipment": ["treadmill"]
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), req.FocusData))

	_, err := svc.GenerateWorkout(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, int32(1), ft.calls.Load())
}

func TestGenerateWorkout_RetryBudgetExhausted(t *testing.T) {
	ft := &fakeTransport{failFor: 100, err: errors.New("upstream hiccup")}
	svc := newTestService(t, ft)

	_, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
	require.Error(t, err)

	assert.Equal(t, int32(3), ft.calls.Load(), "exactly the attempt budget")
	assert.Contains(t, err.Error(), "generation failed after 3 attempts")
	assert.Contains(t, err.Error(), "upstream hiccup")
}

func TestGenerateWorkout_TransientFailureThenSuccess(t *testing.T) {
	ft := &fakeTransport{failFor: 2, err: errors.New("temporarily unavailable")}
	svc := newTestService(t, ft)

	workout, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
	require.NoError(t, err)
	assert.True(t, workout.Complete())
	assert.Equal(t, int32(3), ft.calls.Load())
}

func TestGenerateWorkout_AuthErrorShortCircuits(t *testing.T) {
	ft := &fakeTransport{failFor: 100, err: errors.New("authentication failed for provider")}
	svc := newTestService(t, ft)

	_, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), ft.calls.Load(), "non-retryable errors make exactly one attempt")
}

func TestGenerateWorkout_CacheHitSkipsTransport(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(t, ft)
	req := generationRequest(t)

	first, err := svc.GenerateWorkout(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.GenerateWorkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "cache returns the same workout")
	assert.Equal(t, int32(1), ft.calls.Load())

	metrics := svc.GetMetrics()
	assert.Equal(t, int64(1), metrics.CacheHits)
	assert.Equal(t, int64(1), metrics.CacheMisses)
	assert.InDelta(t, 0.5, svc.GetCacheStats().HitRate, 0.001)
}

func TestGenerateWorkout_ClearCacheForcesRegeneration(t *testing.T) {
	ft := &fakeTransport{}
	svc := newTestService(t, ft)
	req := generationRequest(t)

	_, err := svc.GenerateWorkout(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCache(context.Background()))

	_, err = svc.GenerateWorkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ft.calls.Load())
}

func TestGenerateWorkout_PlainTextResponseStillSucceeds(t *testing.T) {
	ft := &fakeTransport{content: "Do three rounds of squats, lunges, and push-ups with stretching after."}
	svc := newTestService(t, ft)

	workout, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
	require.NoError(t, err)
	assert.True(t, workout.Complete())
	assert.Contains(t, workout.Tags, "low-confidence")
}

func TestGenerateWorkout_MinuteEncodedDurationsCorrected(t *testing.T) {
	// Durations in [1,10] are minutes mistyped as seconds and are scaled at
	// reconciliation ingest.
	ft := &fakeTransport{content: `{
		"title": "Strength Builder",
		"warmup": {"exercises": [{"name": "arm circles", "duration": 3}]},
		"mainWorkout": {"exercises": [{"name": "goblet squats", "duration": 45, "sets": 3, "restTime": 30}]},
		"cooldown": {"exercises": [{"name": "quad stretch", "duration": 2}]}
	}`}
	svc := newTestService(t, ft)

	workout, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
	require.NoError(t, err)

	assert.Equal(t, domain.Seconds(180), workout.Warmup.Exercises[0].Duration)
	assert.Equal(t, domain.Seconds(120), workout.Cooldown.Exercises[0].Duration)
	assert.Equal(t, 3, workout.MainWorkout.Exercises[0].Sets)
	assert.Equal(t, domain.Seconds(45), workout.MainWorkout.Exercises[0].Duration,
		"values above the suspicious range pass through")
}

func TestHealthCheck(t *testing.T) {
	ft := &fakeTransport{failFor: 100, err: errors.New("authentication failed")}
	svc := newTestService(t, ft)
	assert.True(t, svc.HealthCheck(), "idle service is healthy")

	for i := 0; i < 4; i++ {
		_, err := svc.GenerateWorkout(context.Background(), generationRequest(t))
		require.Error(t, err)
	}
	assert.False(t, svc.HealthCheck(), "all-failing service is unhealthy")
}
