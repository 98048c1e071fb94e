package domain

import (
	"time"
)

// Difficulty is the fixed three-level difficulty enum for generated workouts.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty maps loose AI-supplied difficulty strings onto the enum.
// Unrecognized values fall back to intermediate.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(normalizeToken(s)) {
	case DifficultyBeginner:
		return DifficultyBeginner
	case DifficultyAdvanced:
		return DifficultyAdvanced
	default:
		return DifficultyIntermediate
	}
}

// MovementType classifies an exercise's primary movement pattern.
type MovementType string

const (
	MovementStrength    MovementType = "strength"
	MovementCardio      MovementType = "cardio"
	MovementFlexibility MovementType = "flexibility"
	MovementBalance     MovementType = "balance"
)

// PhaseKind names the three canonical workout phases.
type PhaseKind string

const (
	PhaseWarmup   PhaseKind = "warmup"
	PhaseMain     PhaseKind = "mainWorkout"
	PhaseCooldown PhaseKind = "cooldown"
)

// Exercise is a single movement within a phase. Exercise-level durations are
// second-denominated; see the Seconds type.
type Exercise struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Duration    Seconds `json:"duration"`
	Sets        int     `json:"sets"`
	Reps        int     `json:"reps"`
	RestTime    Seconds `json:"restTime"`

	Equipment []string `json:"equipment"`
	Form      string   `json:"form,omitempty"`

	Modifications  []string `json:"modifications,omitempty"`
	CommonMistakes []string `json:"commonMistakes,omitempty"`

	PrimaryMuscles   []string     `json:"primaryMuscles,omitempty"`
	SecondaryMuscles []string     `json:"secondaryMuscles,omitempty"`
	MovementType     MovementType `json:"movementType"`

	PersonalizedNotes     []string `json:"personalizedNotes,omitempty"`
	DifficultyAdjustments []string `json:"difficultyAdjustments,omitempty"`
}

// ActiveTime returns the total time an exercise occupies within a phase,
// including inter-set rest.
func (e Exercise) ActiveTime() Seconds {
	total := e.Duration
	if e.Sets > 1 {
		total += Seconds(e.Sets-1) * e.RestTime
	}
	return total
}

// Phase is one of the three workout segments. A phase always carries at
// least one exercise; the reconciler synthesizes a placeholder when the
// source has none.
type Phase struct {
	Name         string     `json:"name"`
	Duration     Minutes    `json:"duration"`
	Exercises    []Exercise `json:"exercises"`
	Instructions string     `json:"instructions,omitempty"`
	Tips         []string   `json:"tips,omitempty"`
}

// ExerciseTime sums the phase's exercise active time plus inter-exercise
// rest. This, not the AI-declared phase duration, is the trusted figure.
func (p Phase) ExerciseTime(interExerciseRest Seconds) Seconds {
	var total Seconds
	for i, ex := range p.Exercises {
		total += ex.ActiveTime()
		if i > 0 {
			total += interExerciseRest
		}
	}
	return total
}

// GeneratedWorkout is the canonical output schema. Created once per
// successful generation by the reconciler, immutable thereafter, and cached
// by content fingerprint. A retry produces a brand-new value.
type GeneratedWorkout struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	TotalDuration     Minutes    `json:"totalDuration"`
	EstimatedCalories int        `json:"estimatedCalories"`
	Difficulty        Difficulty `json:"difficulty"`
	Equipment         []string   `json:"equipment"`

	Warmup      Phase `json:"warmup"`
	MainWorkout Phase `json:"mainWorkout"`
	Cooldown    Phase `json:"cooldown"`

	Reasoning         string   `json:"reasoning"`
	PersonalizedNotes []string `json:"personalizedNotes"`
	ProgressionTips   []string `json:"progressionTips"`
	SafetyReminders   []string `json:"safetyReminders"`

	GeneratedAt time.Time `json:"generatedAt"`
	AIModel     string    `json:"aiModel"`
	Confidence  float64   `json:"confidence"`
	Tags        []string  `json:"tags"`
}

// Phases returns the three phases in execution order.
func (w *GeneratedWorkout) Phases() []*Phase {
	return []*Phase{&w.Warmup, &w.MainWorkout, &w.Cooldown}
}

// PhaseDurationSum adds up the three phase durations. Total duration should
// approximate this sum; the mismatch is a soft invariant surfaced as a
// warning, never an error.
func (w *GeneratedWorkout) PhaseDurationSum() Minutes {
	return w.Warmup.Duration + w.MainWorkout.Duration + w.Cooldown.Duration
}

// Complete reports whether the hard output invariant holds: every phase has
// at least one exercise.
func (w *GeneratedWorkout) Complete() bool {
	for _, p := range w.Phases() {
		if len(p.Exercises) == 0 {
			return false
		}
	}
	return true
}

// normalizeToken lowercases and trims a loose enum-ish token.
func normalizeToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '\t' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
