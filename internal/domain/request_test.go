package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRequest() *GenerationRequest {
	return &GenerationRequest{
		WorkoutType: WorkoutQuick,
		UserProfile: &UserProfile{
			FitnessLevel: "intermediate",
			Goals:        []string{"strength"},
		},
		FocusData: &WorkoutFocusData{
			Focus:    NewFlexString("strength"),
			Duration: NewFlexDuration(30),
			Energy:   7,
		},
	}
}

func TestGenerationRequest_GenerationReady(t *testing.T) {
	t.Run("quick request ready", func(t *testing.T) {
		assert.True(t, quickRequest().GenerationReady())
	})

	t.Run("nil request", func(t *testing.T) {
		var r *GenerationRequest
		assert.False(t, r.GenerationReady())
	})

	t.Run("missing fitness level", func(t *testing.T) {
		r := quickRequest()
		r.UserProfile.FitnessLevel = ""
		assert.False(t, r.GenerationReady())
	})

	t.Run("missing focus", func(t *testing.T) {
		r := quickRequest()
		r.FocusData.Focus = FlexString{}
		assert.False(t, r.GenerationReady())
	})

	t.Run("detailed requires areas and equipment", func(t *testing.T) {
		r := quickRequest()
		r.WorkoutType = WorkoutDetailed
		assert.False(t, r.GenerationReady())

		r.FocusData.FocusAreas = []string{"upper body"}
		r.FocusData.Equipment = NewFlexEquipment("dumbbells")
		assert.True(t, r.GenerationReady())
	})
}

func TestGenerationRequest_UnmarshalDualShapes(t *testing.T) {
	payload := `{
		"workoutType": "quick",
		"userProfile": {"fitnessLevel": "beginner"},
		"workoutFocusData": {
			"customization_focus": {"focus": "cardio"},
			"customization_duration": {"duration": 20},
			"customization_energy": 5,
			"customization_equipment": {"specificEquipment": ["mat"]}
		}
	}`

	var req GenerationRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	assert.Equal(t, "cardio", req.FocusData.Focus.Canonical())
	minutes, ok := req.FocusData.Duration.Canonical()
	require.True(t, ok)
	assert.Equal(t, Minutes(20), minutes)
	assert.Equal(t, []string{"mat"}, req.FocusData.Equipment.Canonical())
	assert.True(t, req.GenerationReady())
}

func TestGenerationRequest_CloneIsolation(t *testing.T) {
	orig := quickRequest()
	orig.Overrides = map[string]string{"location": "gym"}

	clone := orig.Clone()
	clone.UserProfile.Goals[0] = "mobility"
	clone.Overrides["location"] = "home"
	clone.FocusData.Energy = 1

	assert.Equal(t, "strength", orig.UserProfile.Goals[0])
	assert.Equal(t, "gym", orig.Overrides["location"])
	assert.Equal(t, 7, orig.FocusData.Energy)
}

func TestParseDifficulty(t *testing.T) {
	assert.Equal(t, DifficultyBeginner, ParseDifficulty("Beginner"))
	assert.Equal(t, DifficultyAdvanced, ParseDifficulty(" advanced "))
	assert.Equal(t, DifficultyIntermediate, ParseDifficulty("extreme"))
	assert.Equal(t, DifficultyIntermediate, ParseDifficulty(""))
}

func TestValidationResult_Summary(t *testing.T) {
	result := NewValidationResult([]ValidationIssue{
		{Field: "a", Message: "bad", Severity: SeverityError},
		{Field: "b", Message: "meh", Severity: SeverityWarning},
		{Field: "c", Message: "fyi", Severity: SeverityInfo},
		{Field: "d", Message: "also bad", Severity: SeverityError},
	})

	assert.False(t, result.IsValid)
	assert.Equal(t, ValidationSummary{Errors: 2, Warnings: 1, Info: 1}, result.Summary)
	assert.Equal(t, []string{"bad", "also bad"}, result.ErrorMessages())

	clean := NewValidationResult([]ValidationIssue{
		{Field: "b", Message: "meh", Severity: SeverityWarning},
	})
	assert.True(t, clean.IsValid)
}

func TestGeneratedWorkout_Invariants(t *testing.T) {
	w := GeneratedWorkout{
		TotalDuration: 30,
		Warmup:        Phase{Duration: 5, Exercises: []Exercise{{Name: "Jumping Jacks"}}},
		MainWorkout:   Phase{Duration: 20, Exercises: []Exercise{{Name: "Push-ups"}}},
		Cooldown:      Phase{Duration: 5, Exercises: []Exercise{{Name: "Stretch"}}},
	}

	assert.True(t, w.Complete())
	assert.Equal(t, Minutes(30), w.PhaseDurationSum())

	w.Cooldown.Exercises = nil
	assert.False(t, w.Complete())
}

func TestExercise_ActiveTime(t *testing.T) {
	ex := Exercise{Duration: 60, Sets: 3, RestTime: 30}
	assert.Equal(t, Seconds(120), ex.ActiveTime())

	single := Exercise{Duration: 45, Sets: 1, RestTime: 30}
	assert.Equal(t, Seconds(45), single.ActiveTime())
}
