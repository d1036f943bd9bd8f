package sim

import (
	"log"
	"reflect"
)

// An EventLogger prints a line for every event the engine triggers. Attach
// it to an engine when a scenario needs a readable event-by-event log.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger creates an EventLogger that writes into logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := &EventLogger{}
	h.Logger = logger

	return h
}

// Func logs the event time, type, and handling component.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	if comp, ok := evt.Handler().(Component); ok {
		h.Logger.Printf("%.10f, %s -> %s",
			evt.Time(), reflect.TypeOf(evt), comp.Name())
		return
	}

	h.Logger.Printf("%.10f, %s", evt.Time(), reflect.TypeOf(evt))
}
