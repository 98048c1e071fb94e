package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// SystemPrompt frames every generation call. The JSON-only instruction keeps
// the reconciler's job tractable; it still tolerates prose replies.
const SystemPrompt = `You are an expert fitness coach. Design safe, effective workouts ` +
	`tailored to the user's fitness level, available equipment, and stated limitations. ` +
	`Respond with a single JSON object describing the workout: title, description, ` +
	`difficulty, estimated calories, and warmup, mainWorkout, and cooldown phases, each ` +
	`with a list of exercises (name, description, duration in seconds, sets, reps, rest ` +
	`time in seconds, equipment, form cues). Do not include any text outside the JSON object.`

// quickTemplate serves the quick workout flow: minimal inputs, fast plan.
const quickTemplate = `Create a {{duration_minutes}}-minute {{focus}} workout for a ` +
	`{{fitness_level}} user with energy level {{energy_level}}/10.
Available equipment: {{equipment}}.
Location: {{location}}. Time of day: {{time_of_day}}.
Injuries or limitations: {{injuries}}.
Sore areas to avoid loading: {{sore_areas}}.`

// detailedTemplate serves the detailed flow and leans on the richer profile.
const detailedTemplate = `Create a {{duration_minutes}}-minute {{focus}} workout for a ` +
	`{{fitness_level}} user with energy level {{energy_level}}/10.
Target areas: {{focus_areas}}.
Training goals: {{goals}}.
Preferred style: {{style}} at {{intensity}} intensity.
Available equipment: {{equipment}}.
Location: {{location}}. Time of day: {{time_of_day}}. Conditions: {{weather}}, noise level {{noise_level}}.
Injuries or limitations: {{injuries}}.
Sore areas to avoid loading: {{sore_areas}}.
Include personalized notes, progression tips, and safety reminders.`

var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// Render substitutes {{name}} placeholders from the variable map. Unknown
// placeholders render as "not specified" so a sparse request still produces
// a coherent prompt.
func Render(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.Trim(match, "{}")
		if value, ok := vars[name]; ok && strings.TrimSpace(value) != "" {
			return value
		}
		return "not specified"
	})
}

// ForWorkoutType returns the template matching the workout type.
func ForWorkoutType(t domain.WorkoutType) (string, error) {
	switch t {
	case domain.WorkoutQuick:
		return quickTemplate, nil
	case domain.WorkoutDetailed:
		return detailedTemplate, nil
	default:
		return "", fmt.Errorf("no template for workout type %q", t)
	}
}
