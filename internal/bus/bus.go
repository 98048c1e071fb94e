// Package bus provides the feature registry: independently registered
// capabilities discover each other, handle request/response invocations by
// name and operation, and exchange events over prioritized subscriptions
// without compile-time coupling.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultRequestTimeout bounds a request when the caller does not set one.
const DefaultRequestTimeout = 30 * time.Second

// Bus errors.
var (
	ErrFeatureExists     = errors.New("bus: feature already registered")
	ErrFeatureUnknown    = errors.New("bus: unknown feature")
	ErrOperationUnknown  = errors.New("bus: unknown operation")
	ErrRequestTimeout    = errors.New("bus: request timed out")
	ErrMissingHandler    = errors.New("bus: operation declared without handler")
	ErrDescriptorInvalid = errors.New("bus: descriptor requires a name and at least one operation")
)

// OperationHandler executes one feature operation.
type OperationHandler func(ctx context.Context, data map[string]any) (any, error)

// CapabilityDescriptor advertises what a feature offers: the operations it
// exposes and the event types it produces and consumes. Descriptors are
// discovery metadata; the bus enforces only the operations list.
type CapabilityDescriptor struct {
	Name       string   `json:"name"`
	Operations []string `json:"operations"`
	Produces   []string `json:"produces,omitempty"`
	Consumes   []string `json:"consumes,omitempty"`
}

// registeredFeature pairs a descriptor with its operation handlers.
type registeredFeature struct {
	descriptor CapabilityDescriptor
	handlers   map[string]OperationHandler
}

// Bus is the registry. Registration calls are expected to happen before
// concurrent request/publish traffic, but the bus locks anyway so a late
// registration cannot corrupt the maps.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	features map[string]*registeredFeature

	subMu  sync.RWMutex
	subs   []*Subscription
	nextID int

	health healthTracker
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		logger:   slog.Default().With("component", "bus"),
		features: make(map[string]*registeredFeature),
	}
}

// Register adds a feature. Every declared operation must carry a handler.
func (b *Bus) Register(descriptor CapabilityDescriptor, handlers map[string]OperationHandler) error {
	if descriptor.Name == "" || len(descriptor.Operations) == 0 {
		return ErrDescriptorInvalid
	}
	for _, op := range descriptor.Operations {
		if _, ok := handlers[op]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingHandler, descriptor.Name, op)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.features[descriptor.Name]; exists {
		return fmt.Errorf("%w: %s", ErrFeatureExists, descriptor.Name)
	}

	owned := make(map[string]OperationHandler, len(handlers))
	for op, h := range handlers {
		owned[op] = h
	}
	b.features[descriptor.Name] = &registeredFeature{descriptor: descriptor, handlers: owned}
	b.logger.Info("feature registered", "feature", descriptor.Name, "operations", descriptor.Operations)
	return nil
}

// Unregister removes a feature by name.
func (b *Bus) Unregister(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.features[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFeatureUnknown, name)
	}
	delete(b.features, name)
	return nil
}

// Descriptors lists the registered capability descriptors for discovery.
func (b *Bus) Descriptors() []CapabilityDescriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]CapabilityDescriptor, 0, len(b.features))
	for _, f := range b.features {
		out = append(out, f.descriptor)
	}
	return out
}

// Request invokes a feature operation directly, racing the handler against
// the timeout. A timeout is terminal at this layer; the bus never retries.
func (b *Bus) Request(ctx context.Context, feature, operation string, data map[string]any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	b.mu.RLock()
	registered, ok := b.features[feature]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeatureUnknown, feature)
	}
	handler, ok := registered.handlers[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrOperationUnknown, feature, operation)
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := safeInvoke(callCtx, handler, data)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		b.health.record(time.Since(start), out.err != nil)
		return out.result, out.err
	case <-callCtx.Done():
		b.health.record(time.Since(start), true)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s.%s after %s", ErrRequestTimeout, feature, operation, timeout)
		}
		return nil, callCtx.Err()
	}
}

// Invoke satisfies the workflow engine's FeatureInvoker contract with the
// default timeout.
func (b *Bus) Invoke(ctx context.Context, feature, operation string, params map[string]any) (any, error) {
	return b.Request(ctx, feature, operation, params, 0)
}

// safeInvoke contains handler panics as errors.
func safeInvoke(ctx context.Context, handler OperationHandler, data map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bus: handler panicked: %v", r)
		}
	}()
	return handler(ctx, data)
}
