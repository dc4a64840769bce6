package shared

import "context"

// EventHandler reacts to domain events. The product watcher queues offer
// updates from catalog events and the shipment service marks orders shipped
// from order events.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler subscribes to by default. An
	// empty list subscribes it to every type.
	EventTypes() []string
}

// EventPublisher is what the storefront webhook endpoint publishes to.
// Publish may queue events and return before any handler runs.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus routes published events to subscribed handlers. Handler errors
// and panics are logged by the bus and never reach the publisher.
type EventBus interface {
	EventPublisher
	// Subscribe registers handler for eventTypes, or for its own EventTypes
	// when none are given
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	// Start begins asynchronous dispatch and Stop drains what is queued
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
