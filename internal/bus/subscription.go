package bus

import (
	"context"
	"sort"
	"time"
)

// EventErrorOccurred is republished when a subscription handler fails, so
// error-handling features can observe failures without coupling to the
// publisher.
const EventErrorOccurred = "error-occurred"

// Event is the payload delivered to subscription handlers.
type Event struct {
	Type      string         `json:"type"`
	Source    string         `json:"source,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventHandler consumes one published event.
type EventHandler func(ctx context.Context, event Event) error

// EventFilter optionally narrows a subscription beyond its event type.
type EventFilter func(event Event) bool

// Subscription binds a handler to an event type with a delivery priority.
type Subscription struct {
	ID        int
	EventType string
	Priority  int
	Filter    EventFilter

	handler EventHandler
}

// Subscribe registers a handler for an event type. Higher priority runs
// first; a nil filter matches every event of the type. The returned ID feeds
// Unsubscribe.
func (b *Bus) Subscribe(eventType string, priority int, filter EventFilter, handler EventHandler) int {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.nextID++
	sub := &Subscription{
		ID:        b.nextID,
		EventType: eventType,
		Priority:  priority,
		Filter:    filter,
		handler:   handler,
	}
	b.subs = append(b.subs, sub)
	sort.SliceStable(b.subs, func(i, j int) bool { return b.subs[i].Priority > b.subs[j].Priority })
	return sub.ID
}

// Unsubscribe removes a subscription by ID. Unknown IDs are no-ops.
func (b *Bus) Unsubscribe(id int) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for i, sub := range b.subs {
		if sub.ID == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish fans an event out synchronously to all matching subscriptions in
// priority order, awaiting every handler before returning. Handler errors
// are caught, logged, and republished as an error-occurred event; they never
// reach the publisher.
func (b *Bus) Publish(ctx context.Context, eventType string, data map[string]any, source string) {
	event := Event{
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}

	for _, sub := range b.matching(event) {
		if err := b.deliver(ctx, sub, event); err != nil {
			b.logger.Warn("subscription handler failed",
				"event_type", eventType, "subscription", sub.ID, "error", err)

			// Errors from error-occurred handlers are logged only, or one
			// bad handler would echo forever.
			if eventType != EventErrorOccurred {
				b.Publish(ctx, EventErrorOccurred, map[string]any{
					"original_event": eventType,
					"error":          err.Error(),
				}, source)
			}
		}
	}
}

// matching snapshots the subscriptions for an event, already in priority
// order.
func (b *Bus) matching(event Event) []*Subscription {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	var out []*Subscription
	for _, sub := range b.subs {
		if sub.EventType != event.Type {
			continue
		}
		if sub.Filter != nil && !sub.Filter(event) {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// deliver runs one handler with panic containment.
func (b *Bus) deliver(ctx context.Context, sub *Subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &handlerPanicError{value: r}
		}
	}()
	return sub.handler(ctx, event)
}

type handlerPanicError struct{ value any }

func (e *handlerPanicError) Error() string {
	return "bus: subscription handler panicked"
}
