package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

// loggingMiddleware captures the request lifecycle with structured logs.
// Prompt content is redacted by default; only lengths are logged.
type loggingMiddleware struct {
	logger        *slog.Logger
	redactPrompts bool
}

// NewLoggingMiddleware creates observability middleware for the pipeline.
func NewLoggingMiddleware(cfg configuration.ObservabilityConfig, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	lm := &loggingMiddleware{
		logger:        logger.With("component", "llm"),
		redactPrompts: cfg.RedactPrompts,
	}
	return lm.middleware
}

func (m *loggingMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		requestID := req.TraceID
		if requestID == "" {
			requestID = uuid.New().String()
		}

		m.logRequest(req, requestID)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		if err != nil {
			m.logFailure(req, err, requestID, duration)
		} else if resp != nil {
			m.logSuccess(req, resp, requestID, duration)
		}

		return resp, err
	})
}

func (m *loggingMiddleware) logRequest(req *transport.Request, requestID string) {
	fields := []any{
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
		"timeout_seconds", req.Timeout.Seconds(),
	}

	if m.redactPrompts {
		fields = append(fields, "prompt_length", len(req.Prompt))
		if req.SystemPrompt != "" {
			fields = append(fields, "system_prompt_length", len(req.SystemPrompt))
		}
	} else {
		fields = append(fields, "prompt", req.Prompt)
		if req.SystemPrompt != "" {
			fields = append(fields, "system_prompt", req.SystemPrompt)
		}
	}

	m.logger.Info("LLM request started", fields...)
}

func (m *loggingMiddleware) logFailure(req *transport.Request, err error, requestID string, duration time.Duration) {
	errorType := string(llmerrors.ErrorTypeUnknown)
	if classified := llmerrors.Classify(err); classified != nil {
		errorType = string(classified.Type)
	}

	m.logger.Error("LLM request failed",
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"duration_ms", duration.Milliseconds(),
		"error_type", errorType,
		"error", err.Error())
}

func (m *loggingMiddleware) logSuccess(req *transport.Request, resp *transport.Response, requestID string, duration time.Duration) {
	fields := []any{
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"duration_ms", duration.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"provider_request_ids", strings.Join(resp.ProviderRequestIDs, ","),
	}

	if m.redactPrompts {
		fields = append(fields, "response_length", len(resp.Content))
	} else {
		content := resp.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fields = append(fields, "response_preview", content)
	}

	m.logger.Info("LLM request completed", fields...)
}
