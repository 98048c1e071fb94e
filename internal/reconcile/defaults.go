package reconcile

import (
	"strings"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Synthesized phase durations in minutes for sources that omit a phase.
const (
	defaultWarmupMinutes   domain.Minutes = 5
	defaultMainMinutes     domain.Minutes = 20
	defaultCooldownMinutes domain.Minutes = 5
)

// Confidence levels recorded on the output.
const (
	defaultConfidence  = 0.8
	fallbackConfidence = 0.2
)

// lowConfidenceTag marks workouts synthesized from unstructured text so the
// UI can badge them.
const lowConfidenceTag = "low-confidence"

// maxFallbackReasoning bounds the reasoning copy taken from a freeform reply.
const maxFallbackReasoning = 500

// applyDefaults makes a workout schema-complete: synthesizes any missing
// phase, fills empty top-level fields, and settles the total duration.
func (n *Normalizer) applyDefaults(w *domain.GeneratedWorkout) {
	if len(w.Warmup.Exercises) == 0 {
		w.Warmup = n.placeholderPhase("warmup", "Light Warmup", "Easy movement to raise heart rate and loosen joints.", defaultWarmupMinutes)
	}
	if len(w.MainWorkout.Exercises) == 0 {
		w.MainWorkout = n.placeholderPhase("mainWorkout", "Main Block", "Bodyweight circuit at a steady, controlled pace.", defaultMainMinutes)
	}
	if len(w.Cooldown.Exercises) == 0 {
		w.Cooldown = n.placeholderPhase("cooldown", "Cooldown Stretch", "Slow full-body stretching to bring the heart rate down.", defaultCooldownMinutes)
	}

	if w.Title == "" {
		w.Title = "Personalized Workout"
	}
	if w.Description == "" {
		w.Description = "A personalized workout session."
	}
	if w.Difficulty == "" {
		w.Difficulty = domain.DifficultyIntermediate
	}
	if len(w.Equipment) == 0 {
		w.Equipment = []string{"bodyweight"}
	}
	if w.Confidence <= 0 || w.Confidence > 1 {
		w.Confidence = defaultConfidence
	}
	if w.PersonalizedNotes == nil {
		w.PersonalizedNotes = []string{}
	}
	if w.ProgressionTips == nil {
		w.ProgressionTips = []string{}
	}
	if w.SafetyReminders == nil {
		w.SafetyReminders = []string{}
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}

	if w.TotalDuration <= 0 {
		w.TotalDuration = w.PhaseDurationSum()
	}
	if w.EstimatedCalories <= 0 {
		// Rough steady-effort estimate; display-only.
		w.EstimatedCalories = int(w.TotalDuration) * 6
	}
}

// placeholderPhase builds a single-exercise phase so the "every phase has at
// least one exercise" invariant holds even for sparse sources.
func (n *Normalizer) placeholderPhase(kind, exerciseName, description string, minutes domain.Minutes) domain.Phase {
	return domain.Phase{
		Name:     kind,
		Duration: minutes,
		Exercises: []domain.Exercise{{
			ID:           n.newID(),
			Name:         exerciseName,
			Description:  description,
			Duration:     minutes.ToSeconds(),
			Sets:         1,
			Equipment:    []string{"bodyweight"},
			MovementType: domain.MovementFlexibility,
		}},
	}
}

// textFallback synthesizes a minimal workout from a freeform reply. The
// reply's text survives, truncated, in the reasoning field.
func (n *Normalizer) textFallback(text, model string) *domain.GeneratedWorkout {
	reasoning := text
	if len(reasoning) > maxFallbackReasoning {
		reasoning = strings.TrimSpace(reasoning[:maxFallbackReasoning]) + "..."
	}

	workout := &domain.GeneratedWorkout{
		ID:          n.newID(),
		Title:       "Personalized Workout",
		Description: "Workout generated from an unstructured coaching reply.",
		Reasoning:   reasoning,
		Confidence:  fallbackConfidence,
		Tags:        []string{lowConfidenceTag},
		GeneratedAt: n.now(),
		AIModel:     model,
	}
	n.applyDefaults(workout)
	return workout
}
