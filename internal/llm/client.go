// Package llm provides a resilient HTTP client for the LLM providers that
// generate workout plans. Requests flow through a composable middleware
// pipeline: logging and circuit breaking per logical call, retry around the
// attempt stack, and rate limiting per attempt.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ahrav/go-fitplan/internal/llm/circuitbreaker"
	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-fitplan/internal/llm/errors"
	"github.com/ahrav/go-fitplan/internal/llm/providers"
	"github.com/ahrav/go-fitplan/internal/llm/ratelimit"
	"github.com/ahrav/go-fitplan/internal/llm/retry"
	"github.com/ahrav/go-fitplan/internal/llm/transport"
)

// Client executes normalized LLM requests through the resilience pipeline.
type Client interface {
	// Complete sends a rendered prompt to the configured provider and
	// returns the raw completion. The response content may or may not be
	// valid JSON; interpreting it is the reconciler's job.
	Complete(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

type client struct {
	config  *configuration.Config
	handler transport.Handler

	rateLimiter *ratelimit.Middleware
	breakers    *circuitbreaker.Middleware
}

// NewClient creates a production-ready LLM client. A nil config gets
// defaults. Provider API keys are resolved from the environment when
// APIKeyEnv is set and APIKey is empty.
func NewClient(cfg *configuration.Config) (Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}

	resolveAPIKeys(cfg)

	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          configuration.DefaultMaxIdleConns,
				IdleConnTimeout:       configuration.DefaultIdleTimeoutSeconds * time.Second,
				TLSHandshakeTimeout:   configuration.DefaultTLSTimeoutSeconds * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: cfg.HTTPTimeout,
		}
	}

	coreHandler := transport.NewHTTPHandler(httpClient, router)

	// Attempt-level middleware runs once per retry attempt.
	rateLimiter, err := ratelimit.NewMiddleware(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	attemptHandler := transport.Chain(coreHandler, rateLimiter.Wrap())

	retryMiddleware, err := retry.NewRetryMiddlewareWithConfig(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}
	retryHandler := retryMiddleware(attemptHandler)

	// Call-level middleware runs once per logical call, wrapping all
	// attempts. The breaker counts one failure per exhausted call.
	breakers := circuitbreaker.NewMiddleware(cfg.CircuitBreaker)
	handler := transport.Chain(retryHandler,
		NewLoggingMiddleware(cfg.Observability, nil),
		breakers.Wrap(),
	)

	return &client{
		config:      cfg,
		handler:     handler,
		rateLimiter: rateLimiter,
		breakers:    breakers,
	}, nil
}

// Complete implements Client.
func (c *client) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Provider == "" {
		req.Provider = c.config.DefaultProvider
	}
	if req.Model == "" {
		req.Model = c.config.DefaultModel
	}
	if req.Operation == "" {
		req.Operation = transport.OpWorkoutGeneration
	}

	resp, err := c.handler.Handle(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Content == "" {
		return nil, llmerrors.ErrEmptyResponse
	}
	return resp, nil
}

// resolveAPIKeys fills in APIKey from the named environment variable for
// providers configured with APIKeyEnv.
func resolveAPIKeys(cfg *configuration.Config) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" && pc.APIKeyEnv != "" {
			pc.APIKey = os.Getenv(pc.APIKeyEnv)
			cfg.Providers[name] = pc
		}
	}
}
