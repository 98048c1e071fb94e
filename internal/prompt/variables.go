// Package prompt builds the flat variable set consumed by the workout prompt
// templates. It merges environmental defaults, profile data, workout focus
// data, and caller overrides into one map, canonicalizing the dual-shaped
// fields along the way.
package prompt

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Variable keys shared by the quick and detailed templates.
const (
	VarFitnessLevel = "fitness_level"
	VarWorkoutType  = "workout_type"
	VarFocus        = "focus"
	VarDuration     = "duration_minutes"
	VarEnergy       = "energy_level"
	VarEquipment    = "equipment"
	VarGoals        = "goals"
	VarInjuries     = "injuries"
	VarSoreness     = "sore_areas"
	VarFocusAreas   = "focus_areas"
	VarStyle        = "style"
	VarIntensity    = "intensity"
	VarLocation     = "location"
	VarTimeOfDay    = "time_of_day"
	VarWeather      = "weather"
	VarNoiseLevel   = "noise_level"
)

// environmentalDefaults is the lowest-priority tier. These exist so templates
// never render empty placeholders when the profile carries no setting.
var environmentalDefaults = map[string]string{
	VarLocation:   "home",
	VarTimeOfDay:  "any",
	VarWeather:    "indoor",
	VarNoiseLevel: "moderate",
	VarDuration:   "30",
	VarEnergy:     "5",
	VarFocus:      "general fitness",
	VarStyle:      "balanced",
	VarIntensity:  "moderate",
}

// Builder constructs template variables from generation requests.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a variable builder.
func NewBuilder() *Builder {
	return &Builder{logger: slog.Default().With("component", "prompt")}
}

// BuildVariables merges four priority tiers, later tiers overriding earlier
// ones: environmental defaults, profile-derived values, focus-derived values,
// caller overrides. Overrides legitimately shadow profile data; callers use
// them to pin a variable regardless of what the forms said.
func (b *Builder) BuildVariables(req *domain.GenerationRequest) map[string]string {
	vars := make(map[string]string, len(environmentalDefaults)+8)

	for k, v := range environmentalDefaults {
		vars[k] = v
	}
	vars[VarWorkoutType] = string(req.WorkoutType)

	b.applyProfileTier(vars, req)
	b.applyFocusTier(vars, req)

	for k, v := range req.Overrides {
		vars[k] = v
	}

	vars[VarEquipment] = strings.Join(b.filterEquipment(vars[VarFocus], req), ", ")

	return vars
}

// applyProfileTier extracts variables from the user profile and, when
// present, the richer UI-facing profile data.
func (b *Builder) applyProfileTier(vars map[string]string, req *domain.GenerationRequest) {
	profile := req.UserProfile
	if profile == nil {
		return
	}

	if profile.FitnessLevel != "" {
		vars[VarFitnessLevel] = profile.FitnessLevel
	}
	if len(profile.Goals) > 0 {
		vars[VarGoals] = strings.Join(profile.Goals, ", ")
	}
	if profile.Preferences.Style != "" {
		vars[VarStyle] = profile.Preferences.Style
	}
	if profile.Preferences.Intensity != "" {
		vars[VarIntensity] = profile.Preferences.Intensity
	}
	if profile.Preferences.TimeOfDay != "" {
		vars[VarTimeOfDay] = profile.Preferences.TimeOfDay
	}
	if len(profile.Limitations.Injuries) > 0 {
		vars[VarInjuries] = strings.Join(profile.Limitations.Injuries, ", ")
	}
	if len(profile.Limitations.Locations) > 0 {
		vars[VarLocation] = profile.Limitations.Locations[0]
	}

	if pd := req.ProfileData; pd != nil {
		if pd.ExperienceLevel != "" {
			vars[VarFitnessLevel] = pd.ExperienceLevel
		}
		if minutes := parseDurationString(pd.PreferredDuration); minutes > 0 {
			vars[VarDuration] = strconv.FormatInt(int64(minutes), 10)
		}
		if len(pd.Injuries) > 0 {
			vars[VarInjuries] = strings.Join(pd.Injuries, ", ")
		}
		if len(pd.AvailableLocations) > 0 {
			vars[VarLocation] = pd.AvailableLocations[0]
		}
	}
}

// applyFocusTier extracts variables from the workout focus form,
// canonicalizing the dual-shaped fields. Coerced fallbacks are logged and
// kept; a mis-shaped focus field must not sink the whole build.
func (b *Builder) applyFocusTier(vars map[string]string, req *domain.GenerationRequest) {
	focus := req.FocusData
	if focus == nil {
		return
	}

	if f := focus.Focus.Canonical(); f != "" {
		if focus.Focus.WasCoerced() {
			b.logger.Warn("focus field had unknown shape, coerced to string", "value", f)
		}
		vars[VarFocus] = f
	}

	if minutes, ok := focus.Duration.Canonical(); ok {
		vars[VarDuration] = strconv.FormatInt(int64(minutes), 10)
	}

	if focus.Energy > 0 {
		vars[VarEnergy] = strconv.Itoa(focus.Energy)
	}

	if len(focus.FocusAreas) > 0 {
		vars[VarFocusAreas] = strings.Join(focus.FocusAreas, ", ")
	}

	if sore := soreAreas(focus.Soreness); len(sore) > 0 {
		vars[VarSoreness] = strings.Join(sore, ", ")
	}
}

// parseDurationString extracts leading digits from UI strings like
// "45 minutes" or "30-45". Returns 0 when no number is present.
func parseDurationString(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	minutes, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return minutes
}

// soreAreas returns the selected sore areas sorted for deterministic output.
func soreAreas(soreness map[string]domain.SorenessRating) []string {
	if len(soreness) == 0 {
		return nil
	}
	areas := make([]string, 0, len(soreness))
	for area, rating := range soreness {
		if rating.Selected {
			areas = append(areas, fmt.Sprintf("%s (%d/10)", area, rating.Rating))
		}
	}
	sort.Strings(areas)
	return areas
}

// focusEquipmentHints maps canonical focus values to equipment keywords
// relevant to that focus. Equipment not matching any hint for the focus is
// filtered out of the prompt to keep the plan on-topic.
var focusEquipmentHints = map[string][]string{
	"strength":    {"dumbbell", "barbell", "kettlebell", "band", "bench", "rack", "machine", "cable", "bodyweight"},
	"cardio":      {"treadmill", "bike", "rower", "rope", "elliptical", "bodyweight"},
	"flexibility": {"mat", "band", "strap", "block", "roller", "bodyweight"},
	"mobility":    {"mat", "band", "roller", "bodyweight"},
}

// filterEquipment computes the subset of the profile's equipment relevant to
// the canonical focus. Any failure to filter falls back to bodyweight rather
// than failing the build.
func (b *Builder) filterEquipment(focus string, req *domain.GenerationRequest) []string {
	available := b.availableEquipment(req)
	if len(available) == 0 {
		return []string{"bodyweight"}
	}

	hints, ok := focusEquipmentHints[strings.ToLower(strings.TrimSpace(focus))]
	if !ok {
		// Unknown focus keeps the full list; filtering only narrows when it
		// knows what the focus needs.
		return available
	}

	var filtered []string
	for _, item := range available {
		lowered := strings.ToLower(item)
		for _, hint := range hints {
			if strings.Contains(lowered, hint) {
				filtered = append(filtered, item)
				break
			}
		}
	}

	if len(filtered) == 0 {
		b.logger.Debug("no equipment matched focus, falling back to bodyweight", "focus", focus)
		return []string{"bodyweight"}
	}
	return filtered
}

// availableEquipment gathers equipment from the focus form first, then the
// profile tiers.
func (b *Builder) availableEquipment(req *domain.GenerationRequest) []string {
	if req.FocusData != nil {
		if items := req.FocusData.Equipment.Canonical(); len(items) > 0 {
			return items
		}
	}
	if req.ProfileData != nil && len(req.ProfileData.AvailableEquipment) > 0 {
		return req.ProfileData.AvailableEquipment
	}
	if req.UserProfile != nil && len(req.UserProfile.Limitations.Equipment) > 0 {
		return req.UserProfile.Limitations.Equipment
	}
	return nil
}

// ValidateVariables reports missing or placeholder values for diagnostics.
// It never gates generation; the caller logs the findings and proceeds.
func ValidateVariables(vars map[string]string, workoutType domain.WorkoutType) []string {
	required := []string{VarFitnessLevel, VarWorkoutType, VarFocus, VarDuration, VarEnergy, VarEquipment}
	if workoutType == domain.WorkoutDetailed {
		required = append(required, VarFocusAreas)
	}

	var findings []string
	for _, key := range required {
		value, ok := vars[key]
		if !ok || strings.TrimSpace(value) == "" {
			findings = append(findings, fmt.Sprintf("variable %q is missing or empty", key))
		}
	}
	return findings
}
