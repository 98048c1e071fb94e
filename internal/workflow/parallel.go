package workflow

import (
	"context"
	"fmt"
	"sync"
)

// DefaultMaxConcurrency bounds parallel fan-out when a step does not set its
// own limit.
const DefaultMaxConcurrency = 4

// Task is one unit of work for ExecuteParallel.
type Task func(ctx context.Context) (any, error)

// TaskResult pairs a task's index with its outcome. Failures are recorded,
// never propagated as panics; one failing task does not abort its siblings.
type TaskResult struct {
	Index  int        `json:"index"`
	Status StepStatus `json:"status"`
	Output any        `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ExecuteParallel runs tasks with at most maxConcurrency in flight. Excess
// tasks queue until a running one finishes. All results come back in task
// order regardless of individual failures.
func ExecuteParallel(ctx context.Context, tasks []Task, maxConcurrency int) []TaskResult {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	results := make([]TaskResult, len(tasks))
	semaphore := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			output, err := runTask(ctx, task)
			if err != nil {
				results[i] = TaskResult{Index: i, Status: StatusFailed, Error: err.Error()}
				return
			}
			results[i] = TaskResult{Index: i, Status: StatusCompleted, Output: output}
		}(i, task)
	}

	wg.Wait()
	return results
}

// runTask contains task panics as failures.
func runTask(ctx context.Context, task Task) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// executeParallelStep fans the step's children out as tasks. Each child runs
// as a full step (its own retries, timeout, type dispatch) and records its
// result into the shared context; failed children become failed entries in
// the step output while siblings run to completion.
func (e *Engine) executeParallelStep(ctx context.Context, config Config, step *Step, wctx *Context) (any, error) {
	children := step.Steps
	tasks := make([]Task, len(children))
	for i := range children {
		child := &children[i]
		tasks[i] = func(ctx context.Context) (any, error) {
			result := e.executeStep(ctx, config, child, wctx)
			wctx.SetResult(result)
			if result.Status == StatusFailed {
				return nil, fmt.Errorf("step %s: %s", child.ID, result.Error)
			}
			return result.Output, nil
		}
	}

	return ExecuteParallel(ctx, tasks, step.MaxConcurrency), nil
}
