package sim

// VTimeInSec is a point in virtual time, in seconds.
type VTimeInSec float64

// An Event is an action scheduled to take place at a point in virtual time.
type Event interface {
	// Time returns when the event takes place.
	Time() VTimeInSec

	// Handler returns the handler that processes the event.
	Handler() Handler

	// IsSecondary marks events that run after all the same-time primary
	// events. Upcall delivery uses secondary events so that upcalls observe
	// the state left behind by the syscalls of the same instant.
	IsSecondary() bool
}

// A Handler processes the events scheduled on it.
//
// An event belongs to exactly one handler: the component that scheduled it.
// A handler must not mutate another component from its Handle method.
type Handler interface {
	Handle(e Event) error
}

// EventBase carries the fields shared by all events. Concrete events embed
// it and add their payload.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates an EventBase for a primary event that takes place at
// time t and is processed by handler.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// NewSecondaryEventBase creates an EventBase for an event that runs after
// all the same-time primary events.
func NewSecondaryEventBase(t VTimeInSec, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true

	return e
}

// Time returns when the event takes place.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler that processes the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event runs after the same-time primary
// events.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}
