package reconcile

import (
	"strconv"
	"strings"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Duration correction bounds. An exercise duration in [1,10] almost always
// means the model answered in minutes where the schema wants seconds. The
// correction applies exactly once, at ingest; downstream code sees only
// unit-tagged values.
const (
	suspiciousDurationMin = 1
	suspiciousDurationMax = 10

	defaultInterExerciseRest domain.Seconds = 15
)

// buildWorkout converts an unwrapped workout-like map into the canonical
// schema, running phase extraction, duration correction, and per-field
// defaulting.
func (n *Normalizer) buildWorkout(m map[string]any, model string) *domain.GeneratedWorkout {
	workout := &domain.GeneratedWorkout{
		ID:                n.newID(),
		Title:             getString(m, "title", "name", "workoutName"),
		Description:       getString(m, "description", "summary"),
		EstimatedCalories: getInt(m, "estimatedCalories", "calories", "caloriesBurned"),
		Difficulty:        domain.ParseDifficulty(getString(m, "difficulty", "level")),
		Equipment:         getStringSlice(m, "equipment", "equipmentNeeded"),
		Reasoning:         getString(m, "reasoning", "rationale", "explanation"),
		PersonalizedNotes: getStringSlice(m, "personalizedNotes", "notes"),
		ProgressionTips:   getStringSlice(m, "progressionTips", "progressions"),
		SafetyReminders:   getStringSlice(m, "safetyReminders", "safetyNotes"),
		Tags:              getStringSlice(m, "tags"),
		Confidence:        getFloat(m, "confidence"),
		GeneratedAt:       n.now(),
		AIModel:           model,
	}

	phases := n.extractPhases(m)
	workout.Warmup = phases["warmup"]
	workout.MainWorkout = phases["mainWorkout"]
	workout.Cooldown = phases["cooldown"]

	n.applyDefaults(workout)
	return workout
}

// extractPhases tries the phase-bearing shapes in order: explicit phase
// keys, a phases[] array with loose name matching, then flat exercise or
// activity lists bucketed by exercise name. Missing phases come back as zero
// values for applyDefaults to synthesize.
func (n *Normalizer) extractPhases(m map[string]any) map[string]domain.Phase {
	out := make(map[string]domain.Phase, 3)

	// Shape 1: explicit per-phase keys, in any of their spellings.
	for key, value := range m {
		kind, ok := canonicalPhaseKind(key)
		if !ok {
			continue
		}
		if _, taken := out[kind]; taken {
			continue
		}
		if phase, ok := n.parsePhase(kind, value); ok {
			out[kind] = phase
		}
	}
	if len(out) > 0 {
		return out
	}

	// Shape 2: phases[] with name matching.
	if rawPhases, ok := m["phases"].([]any); ok {
		for _, rawPhase := range rawPhases {
			pm, ok := rawPhase.(map[string]any)
			if !ok {
				continue
			}
			kind, ok := canonicalPhaseKind(getString(pm, "name", "phase", "type"))
			if !ok {
				kind = "mainWorkout"
			}
			if _, taken := out[kind]; taken {
				continue
			}
			if phase, ok := n.parsePhase(kind, pm); ok {
				out[kind] = phase
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	// Shape 3: a flat exercise list, phases inferred per exercise.
	for _, key := range []string{"exercises", "activities"} {
		rawList, ok := m[key].([]any)
		if !ok || len(rawList) == 0 {
			continue
		}
		buckets := map[string][]domain.Exercise{}
		for _, raw := range rawList {
			em, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			exercise := n.parseExercise(em)
			kind := inferPhaseFromExercise(exercise.Name)
			buckets[kind] = append(buckets[kind], exercise)
		}
		for kind, exercises := range buckets {
			out[kind] = n.finishPhase(kind, domain.Phase{Name: kind, Exercises: exercises})
		}
		if len(out) > 0 {
			return out
		}
	}

	return out
}

// parsePhase accepts either a phase object or a bare exercise array.
func (n *Normalizer) parsePhase(kind string, value any) (domain.Phase, bool) {
	switch v := value.(type) {
	case map[string]any:
		phase := domain.Phase{
			Name:         kind,
			Instructions: getString(v, "instructions"),
			Tips:         getStringSlice(v, "tips"),
		}
		for _, key := range []string{"exercises", "activities", "movements"} {
			rawList, ok := v[key].([]any)
			if !ok {
				continue
			}
			for _, raw := range rawList {
				if em, ok := raw.(map[string]any); ok {
					phase.Exercises = append(phase.Exercises, n.parseExercise(em))
				}
			}
		}
		if len(phase.Exercises) == 0 {
			return domain.Phase{}, false
		}
		return n.finishPhase(kind, phase), true

	case []any:
		phase := domain.Phase{Name: kind}
		for _, raw := range v {
			if em, ok := raw.(map[string]any); ok {
				phase.Exercises = append(phase.Exercises, n.parseExercise(em))
			}
		}
		if len(phase.Exercises) == 0 {
			return domain.Phase{}, false
		}
		return n.finishPhase(kind, phase), true

	default:
		return domain.Phase{}, false
	}
}

// finishPhase recomputes the phase duration from its exercises plus
// inter-exercise rest. The AI-declared phase duration is never trusted.
func (n *Normalizer) finishPhase(kind string, phase domain.Phase) domain.Phase {
	phase.Name = kind
	phase.Duration = phase.ExerciseTime(defaultInterExerciseRest).ToMinutes()
	return phase
}

// parseExercise reads an exercise map, tolerating the alternate key names
// models use, and applies the one-time duration unit correction.
func (n *Normalizer) parseExercise(m map[string]any) domain.Exercise {
	exercise := domain.Exercise{
		ID:          n.newID(),
		Name:        getString(m, "name", "activityName", "exerciseName", "exercise"),
		Description: getString(m, "description", "details"),
		Sets:        getInt(m, "sets"),
		Reps:        getInt(m, "reps", "repetitions"),
		Equipment:   getStringSlice(m, "equipment"),
		Form:        getString(m, "form", "formCues", "technique"),

		Modifications:  getStringSlice(m, "modifications"),
		CommonMistakes: getStringSlice(m, "commonMistakes", "mistakes"),

		PrimaryMuscles:   getStringSlice(m, "primaryMuscles", "muscles"),
		SecondaryMuscles: getStringSlice(m, "secondaryMuscles"),
		MovementType:     parseMovementType(getString(m, "movementType", "type")),

		PersonalizedNotes:     getStringSlice(m, "personalizedNotes"),
		DifficultyAdjustments: getStringSlice(m, "difficultyAdjustments"),
	}

	// durationMinutes names its unit outright; only the ambiguous keys go
	// through the suspicious-range heuristic.
	if minutes := getInt(m, "durationMinutes"); minutes > 0 {
		exercise.Duration = domain.Minutes(minutes).ToSeconds()
	} else {
		exercise.Duration = correctDuration(getInt(m, "duration", "durationSeconds", "time"))
	}
	exercise.RestTime = correctDuration(getInt(m, "restTime", "rest", "restSeconds"))

	if exercise.Name == "" {
		exercise.Name = "exercise"
	}
	return exercise
}

// correctDuration applies the minutes-as-seconds correction for values in
// the suspicious range. Values of zero and values above the range pass
// through untouched.
func correctDuration(value int) domain.Seconds {
	if value >= suspiciousDurationMin && value <= suspiciousDurationMax {
		return domain.Seconds(value * domain.SecondsPerMinute)
	}
	if value < 0 {
		return 0
	}
	return domain.Seconds(value)
}

func parseMovementType(s string) domain.MovementType {
	switch domain.MovementType(strings.ToLower(strings.TrimSpace(s))) {
	case domain.MovementCardio:
		return domain.MovementCardio
	case domain.MovementFlexibility:
		return domain.MovementFlexibility
	case domain.MovementBalance:
		return domain.MovementBalance
	default:
		return domain.MovementStrength
	}
}

// Loose map accessors. JSON numbers arrive as float64; several fields also
// show up as numeric strings ("45" or "45 seconds").

func getString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func getInt(m map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return int(v)
		case string:
			if parsed := leadingInt(v); parsed > 0 {
				return parsed
			}
		}
	}
	return 0
}

func getFloat(m map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if v, ok := m[key].(float64); ok {
			return v
		}
	}
	return 0
}

func getStringSlice(m map[string]any, keys ...string) []string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return []string{trimmed}
			}
		}
	}
	return nil
}

// leadingInt extracts the leading digit run of a string, so "45 seconds"
// parses as 45.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	value, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return value
}
