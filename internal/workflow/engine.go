package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Engine defaults.
const (
	DefaultStepTimeout = 30 * time.Second
)

// Engine errors.
var (
	ErrNilInvoker       = errors.New("workflow: nil feature invoker")
	ErrUnknownStepType  = errors.New("workflow: unknown step type")
	ErrExecutionUnknown = errors.New("workflow: unknown execution")
	ErrCancelled        = errors.New("workflow: execution cancelled")
)

// FeatureInvoker dispatches feature-call steps. The feature bus satisfies
// this through a thin adapter; tests use fakes.
type FeatureInvoker interface {
	Invoke(ctx context.Context, feature, operation string, params map[string]any) (any, error)
}

// execution tracks one in-flight workflow for cooperative cancellation.
type execution struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// Engine executes workflow configs against a feature invoker.
type Engine struct {
	invoker     FeatureInvoker
	stepTimeout time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	executions map[string]*execution

	listenerMu sync.RWMutex
	listeners  []Listener
}

// NewEngine creates an engine. The invoker is required.
func NewEngine(invoker FeatureInvoker) (*Engine, error) {
	if invoker == nil {
		return nil, ErrNilInvoker
	}
	return &Engine{
		invoker:     invoker,
		stepTimeout: DefaultStepTimeout,
		logger:      slog.Default().With("component", "workflow"),
		executions:  make(map[string]*execution),
	}, nil
}

// AddListener registers a lifecycle event listener.
func (e *Engine) AddListener(l Listener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// ExecuteWorkflow runs a config to completion. Top-level steps run in
// declaration order; a step whose dependencies have not completed is marked
// skipped, not failed. The returned Result always carries per-step statuses,
// even when the workflow itself failed or was cancelled.
func (e *Engine) ExecuteWorkflow(ctx context.Context, config Config, initialData map[string]any) (*Result, error) {
	executionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	exec := &execution{cancel: cancel}
	e.mu.Lock()
	e.executions[executionID] = exec
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.executions, executionID)
		e.mu.Unlock()
	}()

	wctx := newContext(executionID, initialData)
	result := &Result{
		WorkflowName: config.Name,
		ExecutionID:  executionID,
		Status:       WorkflowStarted,
		StartedAt:    time.Now(),
	}
	e.emit(Event{Type: EventWorkflowStarted, WorkflowName: config.Name, ExecutionID: executionID})

	var failure error
	for i := range config.Steps {
		if exec.cancelled.Load() {
			result.Status = WorkflowCancelled
			result.Error = ErrCancelled.Error()
			result.StepResults = wctx.Results()
			result.Duration = time.Since(result.StartedAt)
			e.emit(Event{Type: EventWorkflowCancelled, WorkflowName: config.Name, ExecutionID: executionID})
			return result, ErrCancelled
		}

		step := &config.Steps[i]
		if !wctx.completed(step.DependsOn) {
			wctx.SetResult(StepResult{StepID: step.ID, Status: StatusSkipped, StartedAt: time.Now()})
			continue
		}

		stepResult := e.runStep(runCtx, config, step, wctx)
		wctx.SetResult(stepResult)

		if stepResult.Status == StatusFailed {
			failure = fmt.Errorf("step %s failed: %s", step.ID, stepResult.Error)
			break
		}
	}

	result.StepResults = wctx.Results()
	result.Duration = time.Since(result.StartedAt)

	if failure != nil {
		// A failure racing CancelWorkflow is the cancellation surfacing
		// through the in-flight step, not a workflow failure.
		if exec.cancelled.Load() {
			result.Status = WorkflowCancelled
			result.Error = ErrCancelled.Error()
			e.emit(Event{Type: EventWorkflowCancelled, WorkflowName: config.Name, ExecutionID: executionID})
			return result, ErrCancelled
		}
		result.Status = WorkflowFailed
		result.Error = failure.Error()
		e.emit(Event{Type: EventWorkflowFailed, WorkflowName: config.Name, ExecutionID: executionID})
		return result, failure
	}

	result.Status = WorkflowCompleted
	e.emit(Event{Type: EventWorkflowCompleted, WorkflowName: config.Name, ExecutionID: executionID})
	return result, nil
}

// CancelWorkflow flags an execution for cooperative cancellation and cancels
// its context. In-flight steps are not forcibly interrupted; the top-level
// loop stops before the next step.
func (e *Engine) CancelWorkflow(executionID string) error {
	e.mu.Lock()
	exec, ok := e.executions[executionID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionUnknown, executionID)
	}
	exec.cancelled.Store(true)
	exec.cancel()
	return nil
}

// runStep dispatches on step type and applies the failure policy. The
// returned result is final: fallback substitution already happened.
func (e *Engine) runStep(ctx context.Context, config Config, step *Step, wctx *Context) StepResult {
	e.emit(Event{Type: EventStepStarted, WorkflowName: config.Name, ExecutionID: wctx.ExecutionID, StepID: step.ID})

	result := e.executeStep(ctx, config, step, wctx)

	if result.Status == StatusFailed && config.OnFailure == PolicyFallback && step.Fallback != nil {
		e.logger.Info("running fallback step",
			"step", step.ID, "fallback", step.Fallback.ID, "error", result.Error)
		fallbackResult := e.executeStep(ctx, config, step.Fallback, wctx)
		// The fallback stands in for the original step under its ID.
		fallbackResult.StepID = step.ID
		result = fallbackResult
	}

	eventType := EventStepCompleted
	if result.Status == StatusFailed {
		eventType = EventStepFailed
	}
	e.emit(Event{Type: eventType, WorkflowName: config.Name, ExecutionID: wctx.ExecutionID, StepID: step.ID})
	return result
}

// executeStep runs a single step body with retries and timeout.
func (e *Engine) executeStep(ctx context.Context, config Config, step *Step, wctx *Context) StepResult {
	result := StepResult{StepID: step.ID, Status: StatusRunning, StartedAt: time.Now()}

	var output any
	var err error
	attempts := step.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		output, err = e.stepBody(ctx, config, step, wctx)
		if err == nil || errors.Is(err, context.Canceled) {
			break
		}
	}

	result.Duration = time.Since(result.StartedAt)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}
	result.Status = StatusCompleted
	result.Output = output
	return result
}

// stepBody evaluates one step kind once.
func (e *Engine) stepBody(ctx context.Context, config Config, step *Step, wctx *Context) (any, error) {
	switch step.Type {
	case StepFeatureCall:
		timeout := step.Timeout
		if timeout <= 0 {
			timeout = e.stepTimeout
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return e.invoker.Invoke(callCtx, step.Feature, step.Operation, step.Params)

	case StepParallel:
		return e.executeParallelStep(ctx, config, step, wctx)

	case StepSequential:
		return e.executeSequential(ctx, config, step.Steps, wctx)

	case StepConditional:
		return e.executeConditional(ctx, config, step, wctx)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, step.Type)
	}
}

// emit delivers an event to every listener, containing panics so a broken
// listener cannot break orchestration.
func (e *Engine) emit(event Event) {
	event.Timestamp = time.Now()

	e.listenerMu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.listenerMu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Warn("event listener panicked", "event_type", event.Type, "panic", r)
				}
			}()
			listener(event)
		}()
	}
}
