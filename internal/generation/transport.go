package generation

import (
	"context"
	"time"

	"github.com/ahrav/go-fitplan/internal/llm"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
	"github.com/ahrav/go-fitplan/internal/prompt"
)

// CallOptions tune a single transport call.
type CallOptions struct {
	// Timeout bounds the call; zero uses the transport's default.
	Timeout time.Duration
}

// RawResponse is the transport's answer: content that is either parseable
// JSON or plain text. The reconciler handles both.
type RawResponse struct {
	Content string
	Model   string
}

// Transport sends a rendered prompt to the model provider. The production
// implementation wraps the LLM client pipeline; tests substitute fakes.
type Transport interface {
	GenerateFromTemplate(ctx context.Context, systemPrompt, template string, vars map[string]string, opts CallOptions) (*RawResponse, error)
}

// LLMTransport adapts the llm.Client pipeline to the Transport contract.
type LLMTransport struct {
	client llm.Client
}

// NewLLMTransport wraps an LLM client.
func NewLLMTransport(client llm.Client) *LLMTransport {
	return &LLMTransport{client: client}
}

// GenerateFromTemplate renders the template with the variable set and runs
// one logical completion through the middleware chain.
func (t *LLMTransport) GenerateFromTemplate(ctx context.Context, systemPrompt, template string, vars map[string]string, opts CallOptions) (*RawResponse, error) {
	resp, err := t.client.Complete(ctx, &transport.Request{
		Operation:    transport.OpWorkoutGeneration,
		SystemPrompt: systemPrompt,
		Prompt:       prompt.Render(template, vars),
		Timeout:      opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &RawResponse{Content: resp.Content, Model: resp.Model}, nil
}
