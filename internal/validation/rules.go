package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Duration bounds in minutes.
const (
	minDuration = 5
	maxDuration = 180

	longDetailedDuration  = 90
	shortDetailedDuration = 15
)

// Energy bounds on the 1-10 scale.
const (
	minEnergy = 1
	maxEnergy = 10
)

// Cross-field thresholds for the business rule.
const (
	highEnergy            = 8
	lowEnergy             = 3
	overtrainingDuration  = 60
	underRecoveryDuration = 30
)

// coreFieldsRule checks structural validity: required fields present and
// enum values legal. It delegates to the struct tags and translates the
// findings into issues.
type coreFieldsRule struct{}

func (r *coreFieldsRule) Name() string { return "core-fields" }

func (r *coreFieldsRule) Check(req *domain.GenerationRequest) []domain.ValidationIssue {
	err := req.ValidateStruct()
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.ValidationIssue{{
			Field:    "request",
			Message:  err.Error(),
			Severity: domain.SeverityError,
		}}
	}

	issues := make([]domain.ValidationIssue, 0, len(verrs))
	for _, verr := range verrs {
		issues = append(issues, domain.ValidationIssue{
			Field:       fieldPath(verr.Namespace()),
			Message:     describeTagFailure(verr),
			Severity:    domain.SeverityError,
			Remediation: "complete the missing form fields and resubmit",
		})
	}
	return issues
}

// fieldPath strips the root struct name from a validator namespace like
// "GenerationRequest.UserProfile.FitnessLevel".
func fieldPath(namespace string) string {
	if idx := strings.IndexByte(namespace, '.'); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describeTagFailure(verr validator.FieldError) string {
	switch verr.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", verr.Param())
	default:
		return fmt.Sprintf("failed %s validation", verr.Tag())
	}
}

// workoutDataRule checks the focus form: duration and energy ranges, focus
// presence. Absent focus data is an error, not a panic.
type workoutDataRule struct{}

func (r *workoutDataRule) Name() string { return "workout-data" }

func (r *workoutDataRule) Check(req *domain.GenerationRequest) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	focus := req.FocusData
	if focus == nil {
		// coreFieldsRule already reports the missing section.
		return nil
	}

	if f := focus.Focus.Canonical(); f == "" {
		issues = append(issues, domain.ValidationIssue{
			Field:    "workoutFocusData.customization_focus",
			Message:  "focus must be a non-empty string",
			Severity: domain.SeverityError,
		})
	}

	if minutes, ok := focus.Duration.Canonical(); ok {
		switch {
		case minutes < minDuration || minutes > maxDuration:
			issues = append(issues, domain.ValidationIssue{
				Field:    "workoutFocusData.customization_duration",
				Message:  fmt.Sprintf("duration must be between %d and %d minutes, got %d", minDuration, maxDuration, minutes),
				Severity: domain.SeverityError,
			})
		case req.WorkoutType == domain.WorkoutDetailed && minutes > longDetailedDuration:
			issues = append(issues, domain.ValidationIssue{
				Field:    "workoutFocusData.customization_duration",
				Message:  fmt.Sprintf("durations over %d minutes reduce workout quality", longDetailedDuration),
				Severity: domain.SeverityWarning,
			})
		case req.WorkoutType == domain.WorkoutDetailed && minutes < shortDetailedDuration:
			issues = append(issues, domain.ValidationIssue{
				Field:    "workoutFocusData.customization_duration",
				Message:  fmt.Sprintf("durations under %d minutes rarely cover all focus areas", shortDetailedDuration),
				Severity: domain.SeverityWarning,
			})
		}
	} else {
		issues = append(issues, domain.ValidationIssue{
			Field:    "workoutFocusData.customization_duration",
			Message:  "duration is required",
			Severity: domain.SeverityError,
		})
	}

	if focus.Energy < minEnergy || focus.Energy > maxEnergy {
		issues = append(issues, domain.ValidationIssue{
			Field:    "workoutFocusData.customization_energy",
			Message:  fmt.Sprintf("energy level must be between %d and %d, got %d", minEnergy, maxEnergy, focus.Energy),
			Severity: domain.SeverityError,
		})
	}

	if req.WorkoutType == domain.WorkoutDetailed {
		if len(focus.FocusAreas) == 0 {
			issues = append(issues, domain.ValidationIssue{
				Field:    "workoutFocusData.customization_areas",
				Message:  "detailed workouts require at least one focus area",
				Severity: domain.SeverityError,
			})
		}
		if len(focus.Equipment.Canonical()) == 0 {
			issues = append(issues, domain.ValidationIssue{
				Field:    "workoutFocusData.customization_equipment",
				Message:  "detailed workouts require an equipment selection",
				Severity: domain.SeverityError,
			})
		}
	}

	return issues
}

// businessLogicRule performs cross-field checks that catch plans likely to
// harm the user or disappoint them. All findings are advisory.
type businessLogicRule struct{}

func (r *businessLogicRule) Name() string { return "business-logic" }

func (r *businessLogicRule) Check(req *domain.GenerationRequest) []domain.ValidationIssue {
	focus := req.FocusData
	if focus == nil {
		return nil
	}

	var issues []domain.ValidationIssue
	minutes, hasDuration := focus.Duration.Canonical()

	if hasDuration && focus.Energy >= highEnergy && minutes > overtrainingDuration {
		issues = append(issues, domain.ValidationIssue{
			Field:    "workoutFocusData",
			Message:  "high energy with a long duration risks overtraining",
			Severity: domain.SeverityWarning,
			Help:     "consider splitting the session or lowering the duration",
		})
	}

	if hasDuration && focus.Energy >= minEnergy && focus.Energy <= lowEnergy && minutes > underRecoveryDuration {
		issues = append(issues, domain.ValidationIssue{
			Field:    "workoutFocusData",
			Message:  "low energy with a long duration suggests insufficient recovery",
			Severity: domain.SeverityWarning,
			Help:     "a shorter session or active recovery may serve better today",
		})
	}

	focusValue := strings.ToLower(focus.Focus.Canonical())
	equipment := focus.Equipment.Canonical()
	if focusValue == "strength" && bodyweightOnly(equipment) {
		issues = append(issues, domain.ValidationIssue{
			Field:    "workoutFocusData.customization_equipment",
			Message:  "bodyweight-only equipment limits strength progression",
			Severity: domain.SeverityWarning,
			Help:     "adding resistance bands or dumbbells enables progressive overload",
		})
	}

	if focusValue == "strength" && req.UserProfile != nil &&
		strings.EqualFold(req.UserProfile.FitnessLevel, "beginner") {
		issues = append(issues, domain.ValidationIssue{
			Field:    "userProfile.fitnessLevel",
			Message:  "strength training as a beginner: the plan will emphasize form over load",
			Severity: domain.SeverityInfo,
		})
	}

	return issues
}

// bodyweightOnly reports whether the equipment list is non-empty and reduced
// to bodyweight entries.
func bodyweightOnly(equipment []string) bool {
	if len(equipment) == 0 {
		return false
	}
	for _, item := range equipment {
		normalized := strings.ToLower(strings.TrimSpace(item))
		if normalized != "bodyweight" && normalized != "body weight" && normalized != "none" {
			return false
		}
	}
	return true
}
