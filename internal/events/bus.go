package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(RoundCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the concrete type, so dispatch on it here
	switch e := ev.(type) {
	case SessionStartedEvent:
		event.Publish(b.dispatcher, e)
	case SessionStoppedEvent:
		event.Publish(b.dispatcher, e)
	case RoundCompletedEvent:
		event.Publish(b.dispatcher, e)
	case RetrieveTimeoutEvent:
		event.Publish(b.dispatcher, e)
	case TriggerFailedEvent:
		event.Publish(b.dispatcher, e)
	case PropertyDistributionFailedEvent:
		event.Publish(b.dispatcher, e)
	case DecoderFallbackEvent:
		event.Publish(b.dispatcher, e)
	case FrameSavedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e RetrieveTimeoutEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RoundCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RetrieveTimeoutEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TriggerFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PropertyDistributionFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DecoderFallbackEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameSavedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
