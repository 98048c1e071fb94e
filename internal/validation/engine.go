// Package validation checks generation requests before they reach the LLM.
// Rules are pure: they inspect the request and report typed issues with
// severities. The engine never panics and never returns an error; malformed
// input becomes error-severity issues in the result.
package validation

import (
	"fmt"

	"github.com/ahrav/go-fitplan/internal/domain"
)

// Rule inspects one aspect of a generation request.
type Rule interface {
	// Name identifies the rule in logs.
	Name() string
	// Check returns any issues found. A nil or empty slice means the rule
	// passed.
	Check(req *domain.GenerationRequest) []domain.ValidationIssue
}

// Engine runs an ordered list of rules over a request.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the standard rule set: structural core
// fields, workout-data ranges, and cross-field business checks.
func NewEngine() *Engine {
	return &Engine{
		rules: []Rule{
			&coreFieldsRule{},
			&workoutDataRule{},
			&businessLogicRule{},
		},
	}
}

// NewEngineWithRules creates an engine with a custom rule list, mainly for
// tests.
func NewEngineWithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Validate runs all rules and aggregates their issues. It is total: any
// well-typed request, including one with nil sections, yields a result
// rather than a panic.
func (e *Engine) Validate(req *domain.GenerationRequest) domain.ValidationResult {
	var issues []domain.ValidationIssue

	if req == nil {
		issues = append(issues, domain.ValidationIssue{
			Field:    "request",
			Message:  "request is nil",
			Severity: domain.SeverityError,
		})
		return domain.NewValidationResult(issues)
	}

	for _, rule := range e.rules {
		issues = append(issues, e.runRule(rule, req)...)
	}

	return domain.NewValidationResult(issues)
}

// runRule contains rule panics so one defective rule cannot take down the
// whole validation pass.
func (e *Engine) runRule(rule Rule, req *domain.GenerationRequest) (issues []domain.ValidationIssue) {
	defer func() {
		if r := recover(); r != nil {
			issues = []domain.ValidationIssue{{
				Field:    "request",
				Message:  fmt.Sprintf("rule %s failed: %v", rule.Name(), r),
				Severity: domain.SeverityError,
			}}
		}
	}()

	return rule.Check(req)
}
