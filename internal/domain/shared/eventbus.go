package shared

import "context"

// EventHandler reacts to ledger events after the transaction that raised
// them has committed. A handler error never rolls back the ledger.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler wants when it is
	// subscribed without explicit types.
	EventTypes() []string
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc struct {
	fn    func(ctx context.Context, event DomainEvent) error
	types []string
}

// NewEventHandlerFunc wraps fn as a handler for eventTypes
func NewEventHandlerFunc(fn func(ctx context.Context, event DomainEvent) error, eventTypes ...string) *EventHandlerFunc {
	return &EventHandlerFunc{fn: fn, types: eventTypes}
}

func (h *EventHandlerFunc) Handle(ctx context.Context, event DomainEvent) error {
	return h.fn(ctx, event)
}

func (h *EventHandlerFunc) EventTypes() []string {
	return h.types
}

// EventPublisher is the side the ledger services see
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus delivers published events to subscribed handlers
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
