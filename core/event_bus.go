package core

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Well-known bus event names emitted by the dispatcher and gateway.
const (
	BusEventDeliverySucceeded = "delivery.succeeded"
	BusEventDeliveryFailed    = "delivery.failed"
	BusEventInboundProcessed  = "inbound.processed"
)

// InMemoryEventBus is a synchronous, process-local bus. Handlers registered
// under "" receive every event. Publish aggregates handler errors instead of
// short-circuiting so one misbehaving subscriber cannot hide an event from
// the rest.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]EventHandler),
	}
}

func (b *InMemoryEventBus) Subscribe(name string, handler EventHandler) {
	if b == nil || handler == nil {
		return
	}
	key := strings.TrimSpace(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key] = append(b.handlers[key], handler)
}

func (b *InMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}
	name := strings.TrimSpace(event.Name)

	b.mu.RLock()
	subscribers := make([]EventHandler, 0, len(b.handlers[name])+len(b.handlers[""]))
	subscribers = append(subscribers, b.handlers[name]...)
	if name != "" {
		subscribers = append(subscribers, b.handlers[""]...)
	}
	b.mu.RUnlock()

	var handlerErr error
	for _, handler := range subscribers {
		if handler == nil {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			handlerErr = errors.Join(handlerErr, err)
		}
	}
	return handlerErr
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

var _ EventBus = (*InMemoryEventBus)(nil)
