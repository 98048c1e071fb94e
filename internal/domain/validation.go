package domain

// Severity ranks a validation issue. Only error-severity issues block
// generation; warnings and info are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationIssue is one finding from a validation rule.
type ValidationIssue struct {
	// Field is the dotted path of the offending field, e.g.
	// "workoutFocusData.customization_duration".
	Field string `json:"field"`

	// Message is the human-readable finding.
	Message string `json:"message"`

	// Severity determines whether the issue blocks generation.
	Severity Severity `json:"severity"`

	// Remediation optionally names a concrete corrective action the UI can
	// offer ("reduce duration", "select equipment").
	Remediation string `json:"remediation,omitempty"`

	// Help optionally carries longer-form explanatory text.
	Help string `json:"help,omitempty"`
}

// ValidationSummary counts issues by severity.
type ValidationSummary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// ValidationResult aggregates rule findings. IsValid is true iff the error
// count is zero; warnings and info never block.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Issues  []ValidationIssue `json:"issues"`
	Summary ValidationSummary `json:"summary"`
}

// NewValidationResult builds a result from accumulated issues, computing the
// summary and validity flag.
func NewValidationResult(issues []ValidationIssue) ValidationResult {
	result := ValidationResult{Issues: issues}
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			result.Summary.Errors++
		case SeverityWarning:
			result.Summary.Warnings++
		case SeverityInfo:
			result.Summary.Info++
		}
	}
	result.IsValid = result.Summary.Errors == 0
	return result
}

// Warnings returns all warning-severity issues, in order.
func (r ValidationResult) Warnings() []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			out = append(out, issue)
		}
	}
	return out
}

// ErrorMessages returns the messages of all error-severity issues, in order.
// The generation service concatenates these into its rejection message.
func (r ValidationResult) ErrorMessages() []string {
	var msgs []string
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			msgs = append(msgs, issue.Message)
		}
	}
	return msgs
}
