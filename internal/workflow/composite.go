package workflow

import (
	"context"
	"fmt"
)

// executeSequential runs a step list in order, honoring dependency gating
// strictly: an unmet dependency skips the step. A failed child stops the
// sequence.
func (e *Engine) executeSequential(ctx context.Context, config Config, steps []Step, wctx *Context) (any, error) {
	var last any
	for i := range steps {
		step := &steps[i]
		if !wctx.completed(step.DependsOn) {
			wctx.SetResult(StepResult{StepID: step.ID, Status: StatusSkipped})
			continue
		}

		result := e.executeStep(ctx, config, step, wctx)
		wctx.SetResult(result)
		if result.Status == StatusFailed {
			return nil, fmt.Errorf("step %s: %s", step.ID, result.Error)
		}
		last = result.Output
	}
	return last, nil
}

// executeConditional evaluates the step's condition against the context and
// runs the matching branch sequentially. A missing condition takes the then
// branch.
func (e *Engine) executeConditional(ctx context.Context, config Config, step *Step, wctx *Context) (any, error) {
	branch := step.Then
	if step.Condition != nil && !evaluateCondition(step.Condition, wctx) {
		branch = step.Else
	}
	return e.executeSequential(ctx, config, branch, wctx)
}

// evaluateCondition resolves the condition's field path and applies the
// operator. Unresolvable paths evaluate false for every operator except a
// negative existence check.
func evaluateCondition(cond *Condition, wctx *Context) bool {
	if cond.Operator == OpCustom {
		return cond.Predicate != nil && cond.Predicate(wctx)
	}

	value, found := wctx.Lookup(cond.Field)
	switch cond.Operator {
	case OpExists:
		return found
	case OpEquals:
		return found && looseEqual(value, cond.Value)
	case OpNotEquals:
		return found && !looseEqual(value, cond.Value)
	case OpGreater:
		a, aok := asFloat(value)
		b, bok := asFloat(cond.Value)
		return found && aok && bok && a > b
	case OpLess:
		a, aok := asFloat(value)
		b, bok := asFloat(cond.Value)
		return found && aok && bok && a < b
	default:
		return false
	}
}

// looseEqual compares across the numeric representations JSON and YAML
// decoding produce; everything else falls back to string formatting.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
