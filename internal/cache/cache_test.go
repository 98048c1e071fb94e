package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-fitplan/internal/domain"
)

func cacheableRequest(t *testing.T) *domain.GenerationRequest {
	t.Helper()
	raw := `{
		"workoutType": "quick",
		"userProfile": {"fitnessLevel": "intermediate"},
		"workoutFocusData": {
			"customization_focus": "strength",
			"customization_duration": 45,
			"customization_energy": 6,
			"customization_equipment": ["dumbbells", "bench"],
			"customization_soreness": {
				"shoulders": {"selected": true, "rating": 6},
				"back": {"selected": false, "rating": 9}
			}
		}
	}`
	var req domain.GenerationRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return &req
}

func sampleWorkout(id string) *domain.GeneratedWorkout {
	return &domain.GeneratedWorkout{
		ID:    id,
		Title: "Sample Session",
		Warmup: domain.Phase{
			Name: "warmup", Duration: 5,
			Exercises: []domain.Exercise{{Name: "jumping jacks", Duration: 60}},
		},
		MainWorkout: domain.Phase{
			Name: "mainWorkout", Duration: 20,
			Exercises: []domain.Exercise{{Name: "goblet squat", Sets: 3, Reps: 10}},
		},
		Cooldown: domain.Phase{
			Name: "cooldown", Duration: 5,
			Exercises: []domain.Exercise{{Name: "hamstring stretch", Duration: 45}},
		},
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a, err := Fingerprint(cacheableRequest(t))
	require.NoError(t, err)
	b, err := Fingerprint(cacheableRequest(t))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "sha-256 hex")
}

func TestFingerprint_IgnoresPresentationFields(t *testing.T) {
	base, err := Fingerprint(cacheableRequest(t))
	require.NoError(t, err)

	req := cacheableRequest(t)
	req.Overrides = map[string]string{"location": "park"}
	req.UserProfile.Preferences.Style = "circuit"
	req.UserProfile.History = map[string]any{"sessions": 12}

	same, err := Fingerprint(req)
	require.NoError(t, err)
	assert.Equal(t, base, same)
}

func TestFingerprint_NormalizesLists(t *testing.T) {
	base, err := Fingerprint(cacheableRequest(t))
	require.NoError(t, err)

	req := cacheableRequest(t)
	raw := `{"customization_equipment": ["Bench", "  dumbbells ", "bench"]}`
	require.NoError(t, json.Unmarshal([]byte(raw), req.FocusData))

	same, err := Fingerprint(req)
	require.NoError(t, err)
	assert.Equal(t, base, same)
}

func TestFingerprint_SensitiveToGenerationFields(t *testing.T) {
	base, err := Fingerprint(cacheableRequest(t))
	require.NoError(t, err)

	energy := cacheableRequest(t)
	energy.FocusData.Energy = 9
	changed, err := Fingerprint(energy)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	soreness := cacheableRequest(t)
	soreness.FocusData.Soreness["back"] = domain.SorenessRating{Selected: true, Rating: 9}
	changed, err = Fingerprint(soreness)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	duration := cacheableRequest(t)
	require.NoError(t, json.Unmarshal([]byte(`{"customization_duration": 60}`), duration.FocusData))
	changed, err = Fingerprint(duration)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestFingerprint_NilRequest(t *testing.T) {
	_, err := Fingerprint(nil)
	assert.ErrorIs(t, err, domain.ErrNilRequest)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore(10, time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k1", sampleWorkout("w1")))

	_, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)

	current = current.Add(2 * time.Minute)
	_, found, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_EvictsOldestAtCapacity(t *testing.T) {
	store := NewMemoryStore(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k1", sampleWorkout("w1")))
	require.NoError(t, store.Put(ctx, "k2", sampleWorkout("w2")))

	// Touch k1 so k2 becomes the eviction candidate.
	_, _, err := store.Get(ctx, "k1")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "k3", sampleWorkout("w3")))

	_, found, _ := store.Get(ctx, "k2")
	assert.False(t, found, "least recently used entry should be evicted")
	_, found, _ = store.Get(ctx, "k1")
	assert.True(t, found)
	_, found, _ = store.Get(ctx, "k3")
	assert.True(t, found)
}

func TestMemoryStore_RejectsNilWorkout(t *testing.T) {
	store := NewMemoryStore(2, time.Minute)
	assert.ErrorIs(t, store.Put(context.Background(), "k", nil), ErrNilWorkout)
}

func TestMemoryStore_LeaseLifecycle(t *testing.T) {
	store := NewMemoryStore(2, time.Minute)
	ctx := context.Background()

	acquired, err := store.TryLease(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = store.TryLease(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired, "live lease blocks a second claim")

	require.NoError(t, store.ReleaseLease(ctx, "k"))
	acquired, err = store.TryLease(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryStore_ExpiredLeaseReclaimable(t *testing.T) {
	store := NewMemoryStore(2, time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }
	ctx := context.Background()

	acquired, err := store.TryLease(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	current = current.Add(2 * time.Second)
	acquired, err = store.TryLease(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "expired lease is claimable")
}

func TestManager_HitAfterGenerate(t *testing.T) {
	m := NewManager(NewMemoryStore(10, time.Minute))
	ctx := context.Background()
	req := cacheableRequest(t)

	var calls atomic.Int32
	generate := func(context.Context) (*domain.GeneratedWorkout, error) {
		calls.Add(1)
		return sampleWorkout("w1"), nil
	}

	workout, cached, err := m.GetOrGenerate(ctx, req, generate)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "w1", workout.ID)

	workout, cached, err = m.GetOrGenerate(ctx, req, generate)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "w1", workout.ID)
	assert.Equal(t, int32(1), calls.Load())

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestManager_FailureNotCached(t *testing.T) {
	m := NewManager(NewMemoryStore(10, time.Minute))
	ctx := context.Background()
	req := cacheableRequest(t)

	boom := errors.New("provider down")
	_, cached, err := m.GetOrGenerate(ctx, req, func(context.Context) (*domain.GeneratedWorkout, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, cached)

	// Next call must regenerate, not serve a poisoned entry.
	workout, cached, err := m.GetOrGenerate(ctx, req, func(context.Context) (*domain.GeneratedWorkout, error) {
		return sampleWorkout("fresh"), nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "fresh", workout.ID)
}

func TestManager_ConcurrentCallsDeduplicated(t *testing.T) {
	m := NewManager(NewMemoryStore(10, time.Minute))
	ctx := context.Background()
	req := cacheableRequest(t)

	var calls atomic.Int32
	generate := func(context.Context) (*domain.GeneratedWorkout, error) {
		calls.Add(1)
		time.Sleep(150 * time.Millisecond)
		return sampleWorkout("shared"), nil
	}

	const workers = 4
	var wg sync.WaitGroup
	results := make([]*domain.GeneratedWorkout, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = m.GetOrGenerate(ctx, req, generate)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "only one worker should generate")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].ID)
	}
}

// failingStore simulates a dead backend for degradation tests.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (*domain.GeneratedWorkout, bool, error) {
	return nil, false, errors.New("backend down")
}
func (failingStore) Put(context.Context, string, *domain.GeneratedWorkout) error {
	return errors.New("backend down")
}
func (failingStore) TryLease(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("backend down")
}
func (failingStore) ReleaseLease(context.Context, string) error { return errors.New("backend down") }
func (failingStore) Clear(context.Context) error                { return errors.New("backend down") }
func (failingStore) Close() error                               { return nil }

func TestManager_DegradesWhenBackendDown(t *testing.T) {
	m := NewManager(failingStore{})

	workout, cached, err := m.GetOrGenerate(context.Background(), cacheableRequest(t),
		func(context.Context) (*domain.GeneratedWorkout, error) {
			return sampleWorkout("degraded"), nil
		})

	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "degraded", workout.ID)
	assert.Greater(t, m.Stats().Errors, int64(0))
}
