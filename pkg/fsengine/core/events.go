package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Event is something an engine call reports while it runs. Type selects the
// handlers that receive it.
type Event interface {
	Type() string
}

// EventHandler receives published events.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event Event) error

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// SubscriptionID identifies a subscription for Unsubscribe. Zero is never
// handed out.
type SubscriptionID uint64

// EventBus delivers engine events to the observers of a session.
type EventBus interface {
	Subscribe(eventType string, handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	Publish(ctx context.Context, event Event) error
}

// topic is embedded by the operation events to name their type.
type topic string

func (t topic) Type() string { return string(t) }

type subscription struct {
	id      SubscriptionID
	topic   string
	handler EventHandler
}

// MemoryEventBus delivers events synchronously, in subscription order, on
// the publishing goroutine.
type MemoryEventBus struct {
	mu     sync.RWMutex
	last   SubscriptionID
	subs   []subscription
	logger zerolog.Logger
}

// NewMemoryEventBus returns an empty bus.
func NewMemoryEventBus(logger zerolog.Logger) *MemoryEventBus {
	return &MemoryEventBus{logger: logger}
}

// Subscribe registers handler for events of eventType.
func (bus *MemoryEventBus) Subscribe(eventType string, handler EventHandler) SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.last++
	bus.subs = append(bus.subs, subscription{id: bus.last, topic: eventType, handler: handler})
	bus.logger.Debug().Str("event_type", eventType).Uint64("subscription", uint64(bus.last)).Msg("subscribed")
	return bus.last
}

// Unsubscribe drops the subscription; unknown ids are ignored.
func (bus *MemoryEventBus) Unsubscribe(id SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs = slices.DeleteFunc(bus.subs, func(s subscription) bool { return s.id == id })
}

// Publish hands event to every handler subscribed to its type. A failing
// handler does not stop delivery; the failures are returned joined.
// Handlers may subscribe or unsubscribe while being called.
func (bus *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	bus.mu.RLock()
	var targets []subscription
	for _, s := range bus.subs {
		if s.topic == event.Type() {
			targets = append(targets, s)
		}
	}
	bus.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if err := s.handler.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("subscription %d: %w", s.id, err))
		}
	}
	if len(errs) > 0 {
		bus.logger.Trace().Str("event_type", event.Type()).Int("failed", len(errs)).Msg("event handlers failed")
	}
	return errors.Join(errs...)
}
