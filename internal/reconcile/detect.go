package reconcile

import "strings"

// wrapperKeys are tried first, in order. Models wrap the workout under a
// variety of envelope keys depending on how the prompt was phrased.
var wrapperKeys = []string{"workoutPlan", "workout", "data", "plan", "result"}

// unwrap resolves the map that actually describes a workout. Strategies run
// in priority order: explicit wrapper keys, then the root itself when it is
// workout-like. found is false when nothing resembles a workout.
func unwrap(source map[string]any) (map[string]any, bool) {
	for _, key := range wrapperKeys {
		if inner, ok := source[key].(map[string]any); ok && workoutLike(inner) {
			return inner, true
		}
	}
	if workoutLike(source) {
		return source, true
	}
	return nil, false
}

// workoutLike reports whether a map plausibly describes a workout: any
// phase- or exercise-bearing field, or a title plus anything at all.
func workoutLike(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	if hasAnyKey(m, "phases", "exercises", "activities") {
		return true
	}
	for key := range m {
		if _, ok := canonicalPhaseKind(key); ok {
			return true
		}
	}
	// A bare metadata object still counts when it is self-describing.
	return hasAnyKey(m, "title", "name") && hasAnyKey(m, "warmup", "mainWorkout", "cooldown", "description")
}

// canonicalPhaseKind maps the loose phase names models emit onto the three
// canonical phases.
func canonicalPhaseKind(name string) (string, bool) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(name))
	switch {
	case strings.Contains(normalized, "warm"):
		return "warmup", true
	case strings.Contains(normalized, "cool") || strings.Contains(normalized, "stretch"):
		return "cooldown", true
	case strings.Contains(normalized, "main") || normalized == "workout" || normalized == "work":
		return "mainWorkout", true
	default:
		return "", false
	}
}

// inferPhaseFromExercise buckets a flat-list exercise into a phase by its
// name. Anything unrecognized belongs to the main block.
func inferPhaseFromExercise(name string) string {
	normalized := strings.ToLower(name)
	switch {
	case strings.Contains(normalized, "warm"):
		return "warmup"
	case strings.Contains(normalized, "cool") || strings.Contains(normalized, "stretch"):
		return "cooldown"
	default:
		return "mainWorkout"
	}
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
