package shared

import (
	"errors"
	"sync"
	"time"
)

// WildcardEvent registers a handler for every event name
const WildcardEvent = "*"

// DomainEvent represents an event that has occurred in the domain
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// EventDispatcher dispatches domain events to handlers
type EventDispatcher interface {
	Dispatch(event DomainEvent) error
	Register(eventName string, handler EventHandler)
}

// EventHandler handles domain events
type EventHandler func(event DomainEvent) error

// Dispatcher is an in-process EventDispatcher.
// Handlers run synchronously on the dispatching goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Register adds a handler for eventName, or for all events with WildcardEvent
func (d *Dispatcher) Register(eventName string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventName] = append(d.handlers[eventName], handler)
}

// Dispatch runs every matching handler. All handlers run even when one fails;
// their errors are joined.
func (d *Dispatcher) Dispatch(event DomainEvent) error {
	d.mu.RLock()
	named := d.handlers[event.EventName()]
	wildcard := d.handlers[WildcardEvent]
	handlers := make([]EventHandler, 0, len(named)+len(wildcard))
	handlers = append(handlers, named...)
	handlers = append(handlers, wildcard...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
