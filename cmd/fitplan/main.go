// Command fitplan generates one workout from a request document. It reads a
// generation request as JSON from a file or stdin, assembles the full
// pipeline, and writes the generated workout to stdout.
//
// Usage:
//
//	fitplan -request request.json
//	cat request.json | fitplan
//
// The OPENAI_API_KEY environment variable supplies provider credentials.
// Set -redis to cache workouts in Redis instead of process memory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ahrav/go-fitplan/internal/bus"
	"github.com/ahrav/go-fitplan/internal/domain"
	"github.com/ahrav/go-fitplan/internal/llm/configuration"
	"github.com/ahrav/go-fitplan/internal/worker"
	"github.com/ahrav/go-fitplan/internal/workflow"
)

func main() {
	requestPath := flag.String("request", "", "path to the request JSON (default stdin)")
	redisAddr := flag.String("redis", "", "redis address for the workout cache (default in-memory)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall generation deadline")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*requestPath, *redisAddr, *timeout); err != nil {
		slog.Error("generation failed", "error", err)
		os.Exit(1)
	}
}

func run(requestPath, redisAddr string, timeout time.Duration) error {
	request, err := readRequest(requestPath)
	if err != nil {
		return err
	}

	client, err := worker.InitializeLLMClient(configuration.DefaultConfig())
	if err != nil {
		return err
	}
	cacheManager := worker.InitializeCache(worker.CacheConfig{RedisAddr: redisAddr})
	defer cacheManager.Close()

	svc := worker.InitializeGenerationService(client, cacheManager, nil)

	b := bus.New()
	if err := worker.RegisterGenerationFeature(b, svc); err != nil {
		return err
	}
	registry := workflow.NewRegistry()
	if err := worker.RegisterWorkflowTemplates(registry); err != nil {
		return err
	}

	cfg, err := registry.Instantiate("generate-workout", map[string]any{"request": request})
	if err != nil {
		return err
	}
	engine, err := workflow.NewEngine(b)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := engine.ExecuteWorkflow(ctx, cfg, nil)
	if err != nil {
		return err
	}

	workout, ok := result.StepResults["generate"].Output.(*domain.GeneratedWorkout)
	if !ok {
		return fmt.Errorf("workflow completed without a workout")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(workout)
}

// readRequest decodes the request document into a generic map so the workflow
// template can substitute it; validation happens inside the service.
func readRequest(path string) (map[string]any, error) {
	var reader io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var request map[string]any
	if err := json.NewDecoder(reader).Decode(&request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return request, nil
}
