// Package domain provides the core types for workout generation: requests,
// profiles, the canonical generated-workout schema, and validation results.
// Types are designed so a request constructed by the UI layer is never
// mutated by the pipeline; services that need to default optional fields work
// on an enhanced copy.
package domain

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// WorkoutType selects the generation flavor.
type WorkoutType string

const (
	// WorkoutQuick is the fast path driven by focus data alone.
	WorkoutQuick WorkoutType = "quick"

	// WorkoutDetailed additionally consumes the richer profile data and
	// requires focus areas and equipment to be specified.
	WorkoutDetailed WorkoutType = "detailed"
)

// Common request errors returned by domain operations.
var (
	// ErrNilRequest indicates a nil generation request was supplied.
	ErrNilRequest = errors.New("nil generation request")
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// WorkoutPreferences captures stylistic preferences used for prompt
// enrichment only; they never gate generation.
type WorkoutPreferences struct {
	Style     string `json:"style,omitempty"`
	Intensity string `json:"intensity,omitempty"`
	TimeOfDay string `json:"timeOfDay,omitempty"`
}

// Limitations lists the basic constraints the generator must respect.
type Limitations struct {
	Injuries  []string `json:"injuries,omitempty"`
	Equipment []string `json:"equipment,omitempty"`
	Locations []string `json:"locations,omitempty"`
}

// UserProfile is the minimal profile every request carries.
// Enhanced fields exist only to enrich prompts and are opaque to validation.
type UserProfile struct {
	FitnessLevel string             `json:"fitnessLevel" validate:"required"`
	Goals        []string           `json:"goals,omitempty"`
	Preferences  WorkoutPreferences `json:"preferences,omitempty"`
	Limitations  Limitations        `json:"limitations,omitempty"`

	// Enhanced, optional prompt-enrichment fields.
	History         map[string]any `json:"history,omitempty"`
	LearningProfile map[string]any `json:"learningProfile,omitempty"`
}

// SorenessRating records per-area soreness selection from the focus form.
type SorenessRating struct {
	Selected bool `json:"selected"`
	Rating   int  `json:"rating"`
}

// WorkoutFocusData is the per-workout form model. Duration, focus, and
// equipment arrive in dual shapes from independently-edited form versions and
// are held as Flex tagged unions until canonicalized.
type WorkoutFocusData struct {
	Focus      FlexString                `json:"customization_focus"`
	Duration   FlexDuration              `json:"customization_duration"`
	Energy     int                       `json:"customization_energy"`
	Equipment  FlexEquipment             `json:"customization_equipment"`
	Soreness   map[string]SorenessRating `json:"customization_soreness,omitempty"`
	FocusAreas []string                  `json:"customization_areas,omitempty"`
}

// ProfileData is the richer UI-facing profile consumed by detailed workouts.
type ProfileData struct {
	ExperienceLevel    string   `json:"experienceLevel,omitempty"`
	ActivityLevel      string   `json:"physicalActivity,omitempty"`
	PreferredDuration  string   `json:"preferredDuration,omitempty"`
	TimeCommitment     string   `json:"timeCommitment,omitempty"`
	Age                int      `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	Height             string   `json:"height,omitempty"`
	Weight             string   `json:"weight,omitempty"`
	Injuries           []string `json:"injuries,omitempty"`
	AvailableLocations []string `json:"availableLocations,omitempty"`
	AvailableEquipment []string `json:"availableEquipment,omitempty"`
}

// GenerationRequest is the unit of work handed to the generation service.
// It is constructed by the UI layer from two independently-edited form models
// and is immutable once submitted; the service produces an enhanced copy when
// it needs to default optional fields.
type GenerationRequest struct {
	WorkoutType WorkoutType       `json:"workoutType" validate:"required,oneof=quick detailed"`
	UserProfile *UserProfile      `json:"userProfile" validate:"required"`
	FocusData   *WorkoutFocusData `json:"workoutFocusData" validate:"required"`
	ProfileData *ProfileData      `json:"profileData,omitempty"`

	// Overrides are caller-supplied prompt variables that legitimately shadow
	// profile-derived values. Intentional, not a bug.
	Overrides map[string]string `json:"overrides,omitempty"`
}

// ValidateStruct runs the validator/v10 structural checks. The validation
// engine translates failures into issues; callers outside the engine mostly
// want GenerationReady instead.
func (r *GenerationRequest) ValidateStruct() error {
	if r == nil {
		return ErrNilRequest
	}
	return validate.Struct(r)
}

// GenerationReady reports whether the request carries the minimum fields for
// generation: workout type, fitness level, and canonical focus, duration, and
// energy. Detailed workouts additionally require focus areas and equipment.
func (r *GenerationRequest) GenerationReady() bool {
	if r == nil || r.UserProfile == nil || r.FocusData == nil {
		return false
	}
	if r.WorkoutType != WorkoutQuick && r.WorkoutType != WorkoutDetailed {
		return false
	}
	if r.UserProfile.FitnessLevel == "" {
		return false
	}
	if r.FocusData.Focus.IsZero() || r.FocusData.Duration.IsZero() || r.FocusData.Energy == 0 {
		return false
	}
	if r.WorkoutType == WorkoutDetailed {
		if len(r.FocusData.FocusAreas) == 0 || r.FocusData.Equipment.IsZero() {
			return false
		}
	}
	return true
}

// Clone returns a deep-enough copy for safe enhancement. Maps and slices are
// re-allocated; Flex values are value types and copy cleanly.
func (r *GenerationRequest) Clone() *GenerationRequest {
	if r == nil {
		return nil
	}
	out := *r

	if r.UserProfile != nil {
		profile := *r.UserProfile
		profile.Goals = append([]string(nil), r.UserProfile.Goals...)
		profile.Limitations.Injuries = append([]string(nil), r.UserProfile.Limitations.Injuries...)
		profile.Limitations.Equipment = append([]string(nil), r.UserProfile.Limitations.Equipment...)
		profile.Limitations.Locations = append([]string(nil), r.UserProfile.Limitations.Locations...)
		out.UserProfile = &profile
	}

	if r.FocusData != nil {
		focus := *r.FocusData
		focus.FocusAreas = append([]string(nil), r.FocusData.FocusAreas...)
		if r.FocusData.Soreness != nil {
			focus.Soreness = make(map[string]SorenessRating, len(r.FocusData.Soreness))
			for k, v := range r.FocusData.Soreness {
				focus.Soreness[k] = v
			}
		}
		out.FocusData = &focus
	}

	if r.ProfileData != nil {
		profile := *r.ProfileData
		profile.Injuries = append([]string(nil), r.ProfileData.Injuries...)
		profile.AvailableLocations = append([]string(nil), r.ProfileData.AvailableLocations...)
		profile.AvailableEquipment = append([]string(nil), r.ProfileData.AvailableEquipment...)
		out.ProfileData = &profile
	}

	if r.Overrides != nil {
		out.Overrides = make(map[string]string, len(r.Overrides))
		for k, v := range r.Overrides {
			out.Overrides[k] = v
		}
	}

	return &out
}
