package workflow

import (
	"strconv"
	"strings"
	"sync"
)

// Context is the per-execution state: initial data plus accumulated step
// results. One execution owns its context exclusively; contexts are never
// shared across concurrent runs, but the parallel composite writes results
// from several goroutines, hence the lock.
type Context struct {
	ExecutionID string

	mu          sync.RWMutex
	data        map[string]any
	stepResults map[string]StepResult
}

func newContext(executionID string, initialData map[string]any) *Context {
	data := make(map[string]any, len(initialData))
	for k, v := range initialData {
		data[k] = v
	}
	return &Context{
		ExecutionID: executionID,
		data:        data,
		stepResults: make(map[string]StepResult),
	}
}

// SetResult records a step outcome.
func (c *Context) SetResult(result StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepResults[result.StepID] = result
}

// ResultFor returns a step's recorded outcome.
func (c *Context) ResultFor(stepID string) (StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.stepResults[stepID]
	return result, ok
}

// Results returns a copy of all recorded step results.
func (c *Context) Results() map[string]StepResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]StepResult, len(c.stepResults))
	for k, v := range c.stepResults {
		out[k] = v
	}
	return out
}

// completed reports whether every listed dependency finished successfully.
func (c *Context) completed(stepIDs []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range stepIDs {
		result, ok := c.stepResults[id]
		if !ok || result.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Lookup resolves a dotted path against initial data and step outputs.
// "stepID.field.sub" reaches into a step's output; a bare key reads initial
// data first, then step outputs. Numeric segments index into slices.
func (c *Context) Lookup(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	segments := strings.Split(path, ".")
	head := segments[0]

	var current any
	if v, ok := c.data[head]; ok {
		current = v
	} else if result, ok := c.stepResults[head]; ok {
		current = result.Output
	} else {
		return nil, false
	}

	for _, segment := range segments[1:] {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
