// Feature bus registration for the generation domain.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ahrav/go-fitplan/internal/bus"
	"github.com/ahrav/go-fitplan/internal/domain"
	"github.com/ahrav/go-fitplan/internal/generation"
	"github.com/ahrav/go-fitplan/internal/workflow"
)

// GenerationFeature is the name the generation service registers under.
const GenerationFeature = "generation"

// Generation feature operations.
const (
	OpGenerate      = "generate"
	OpGetMetrics    = "get-metrics"
	OpGetCacheStats = "get-cache-stats"
	OpClearCache    = "clear-cache"
	OpHealthCheck   = "health-check"
)

// RegisterGenerationFeature exposes the generation service on the bus so
// workflow steps and other features can invoke it by name. Call once during
// startup, before request traffic.
func RegisterGenerationFeature(b *bus.Bus, svc *generation.Service) error {
	descriptor := bus.CapabilityDescriptor{
		Name:       GenerationFeature,
		Operations: []string{OpGenerate, OpGetMetrics, OpGetCacheStats, OpClearCache, OpHealthCheck},
		Produces: []string{
			generation.EventCacheHit,
			generation.EventWorkoutGenerated,
			generation.EventGenerationFailed,
		},
	}

	handlers := map[string]bus.OperationHandler{
		OpGenerate: func(ctx context.Context, data map[string]any) (any, error) {
			req, err := decodeRequest(data)
			if err != nil {
				return nil, err
			}
			return svc.GenerateWorkout(ctx, req)
		},
		OpGetMetrics: func(context.Context, map[string]any) (any, error) {
			return svc.GetMetrics(), nil
		},
		OpGetCacheStats: func(context.Context, map[string]any) (any, error) {
			return svc.GetCacheStats(), nil
		},
		OpClearCache: func(ctx context.Context, _ map[string]any) (any, error) {
			return nil, svc.ClearCache(ctx)
		},
		OpHealthCheck: func(context.Context, map[string]any) (any, error) {
			return svc.HealthCheck(), nil
		},
	}

	return b.Register(descriptor, handlers)
}

// decodeRequest accepts either a typed request (direct Go callers) or its
// map form (workflow params, deserialized templates).
func decodeRequest(data map[string]any) (*domain.GenerationRequest, error) {
	if req, ok := data["request"].(*domain.GenerationRequest); ok {
		return req, nil
	}
	raw, ok := data["request"]
	if !ok {
		return nil, fmt.Errorf("generate: missing request parameter")
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("generate: encode request: %w", err)
	}
	var req domain.GenerationRequest
	if err := json.Unmarshal(encoded, &req); err != nil {
		return nil, fmt.Errorf("generate: decode request: %w", err)
	}
	return &req, nil
}

// RegisterWorkflowTemplates installs the stock step graphs: a plain
// generation flow and a branching flow that routes detailed requests through
// a health gate first.
func RegisterWorkflowTemplates(registry *workflow.Registry) error {
	simple := workflow.Config{
		Name:      "generate-workout",
		OnFailure: workflow.PolicyStop,
		Steps: []workflow.Step{{
			ID:        "generate",
			Type:      workflow.StepFeatureCall,
			Feature:   GenerationFeature,
			Operation: OpGenerate,
			Params:    map[string]any{"request": "{{request}}"},
		}},
	}

	gated := workflow.Config{
		Name:      "generate-workout-gated",
		OnFailure: workflow.PolicyStop,
		Steps: []workflow.Step{
			{
				ID:        "health",
				Type:      workflow.StepFeatureCall,
				Feature:   GenerationFeature,
				Operation: OpHealthCheck,
			},
			{
				ID:        "route",
				Type:      workflow.StepConditional,
				DependsOn: []string{"health"},
				Condition: &workflow.Condition{Field: "health", Operator: workflow.OpEquals, Value: true},
				Then: []workflow.Step{{
					ID:        "generate",
					Type:      workflow.StepFeatureCall,
					Feature:   GenerationFeature,
					Operation: OpGenerate,
					Params:    map[string]any{"request": "{{request}}"},
				}},
			},
		},
	}

	if err := registry.Register(simple); err != nil {
		return err
	}
	return registry.Register(gated)
}
