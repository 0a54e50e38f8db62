package events

import "github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/types"

// Event represents a structured state change emitted by the control plane.
type Event interface {
	EventType() string
}

// Typed is implemented by events that can be rendered into the wire-friendly
// attribute map consumed by the stream and audit sinks.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. audit, stream).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(e Event) { f(e) }

// MultiEmitter fans a single event out to every configured emitter in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(e Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}

// Render converts an event to its attribute form. Events that do not implement
// Typed are rendered with their type only.
func Render(e Event) *types.Event {
	if e == nil {
		return nil
	}
	if typed, ok := e.(Typed); ok {
		if rendered := typed.Event(); rendered != nil {
			return rendered
		}
	}
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{}}
}
