// Package workflow executes declarative step graphs: feature calls composed
// with parallel, sequential, and conditional structures. The top-level loop
// runs steps in declaration order with advisory dependency gating; composite
// steps honor gating strictly. Execution is cooperative: cancellation takes
// effect between steps, never by interrupting one.
package workflow

import (
	"time"
)

// StepType names the supported step kinds.
type StepType string

const (
	StepFeatureCall StepType = "feature-call"
	StepParallel    StepType = "parallel"
	StepSequential  StepType = "sequential"
	StepConditional StepType = "conditional"
)

// StepStatus tracks one step through its lifecycle.
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusRunning   StepStatus = "running"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// WorkflowStatus tracks the whole execution.
type WorkflowStatus string

const (
	WorkflowStarted   WorkflowStatus = "started"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// FailurePolicy decides what a failing step does to the workflow.
type FailurePolicy string

const (
	// PolicyStop aborts the workflow on the first unrecovered failure.
	PolicyStop FailurePolicy = "stop"

	// PolicyFallback runs the step's declared fallback in its place; a step
	// without a fallback still stops the workflow.
	PolicyFallback FailurePolicy = "fallback"
)

// ConditionOperator selects how a conditional step compares values.
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "eq"
	OpNotEquals ConditionOperator = "ne"
	OpGreater   ConditionOperator = "gt"
	OpLess      ConditionOperator = "lt"
	OpExists    ConditionOperator = "exists"
	OpCustom    ConditionOperator = "custom"
)

// Condition is evaluated against the execution context. Field is a dotted
// path into accumulated step outputs and initial data. Custom predicates are
// code, not data, so they do not survive serialization.
type Condition struct {
	Field    string            `json:"field,omitempty" yaml:"field,omitempty"`
	Operator ConditionOperator `json:"operator" yaml:"operator"`
	Value    any               `json:"value,omitempty" yaml:"value,omitempty"`

	Predicate func(ctx *Context) bool `json:"-" yaml:"-"`
}

// Step is one node of the declarative graph. Exactly the fields matching
// Type are consulted; the rest stay zero.
type Step struct {
	ID   string   `json:"id" yaml:"id"`
	Type StepType `json:"type" yaml:"type"`

	// DependsOn lists step IDs that must have completed. The top-level loop
	// treats unmet dependencies as advisory and marks the step skipped.
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`

	// Feature-call fields.
	Feature   string         `json:"feature,omitempty" yaml:"feature,omitempty"`
	Operation string         `json:"operation,omitempty" yaml:"operation,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Per-step overrides. Zero means inherit the engine defaults.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries int           `json:"retries,omitempty" yaml:"retries,omitempty"`

	// Fallback runs in this step's place when it fails under PolicyFallback.
	Fallback *Step `json:"fallback,omitempty" yaml:"fallback,omitempty"`

	// Composite bodies.
	Steps          []Step `json:"steps,omitempty" yaml:"steps,omitempty"`
	MaxConcurrency int    `json:"maxConcurrency,omitempty" yaml:"maxConcurrency,omitempty"`

	// Conditional branches.
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Then      []Step     `json:"then,omitempty" yaml:"then,omitempty"`
	Else      []Step     `json:"else,omitempty" yaml:"else,omitempty"`
}

// Config is a whole workflow declaration.
type Config struct {
	Name      string        `json:"name" yaml:"name"`
	Steps     []Step        `json:"steps" yaml:"steps"`
	OnFailure FailurePolicy `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`
}

// StepResult records one step's outcome inside a result or context.
type StepResult struct {
	StepID    string        `json:"step_id"`
	Status    StepStatus    `json:"status"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Result is the aggregate outcome of one execution.
type Result struct {
	WorkflowName string                `json:"workflow_name"`
	ExecutionID  string                `json:"execution_id"`
	Status       WorkflowStatus        `json:"status"`
	StepResults  map[string]StepResult `json:"step_results"`
	Error        string                `json:"error,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     time.Duration         `json:"duration"`
}

// EventType names workflow lifecycle events.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow-started"
	EventWorkflowCompleted EventType = "workflow-completed"
	EventWorkflowFailed    EventType = "workflow-failed"
	EventWorkflowCancelled EventType = "workflow-cancelled"
	EventStepStarted       EventType = "step-started"
	EventStepCompleted     EventType = "step-completed"
	EventStepFailed        EventType = "step-failed"
)

// Event is delivered to registered listeners. Listener failures are
// contained; orchestration never depends on listener behavior.
type Event struct {
	Type         EventType `json:"type"`
	WorkflowName string    `json:"workflow_name"`
	ExecutionID  string    `json:"execution_id"`
	StepID       string    `json:"step_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Listener receives lifecycle events.
type Listener func(event Event)
