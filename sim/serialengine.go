package sim

import (
	"log"
	"reflect"
	"sync"
)

// A SerialEngine triggers events one at a time, in time order. Kernel code
// relies on this serialization: two events can never interleave, so
// check-then-act sequences inside one event handler are atomic steps.
type SerialEngine struct {
	HookableBase

	nowLock sync.RWMutex
	now     VTimeInSec

	primary   EventQueue
	secondary EventQueue

	paused     bool
	pausedLock sync.Mutex
	stepLock   sync.Mutex

	runLock sync.Mutex

	endHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine with empty event queues.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		primary:   NewEventQueue(),
		secondary: NewEventQueue(),
	}
}

// Schedule accepts an event to be triggered in the future. Scheduling an
// event earlier than the current virtual time is an invariant violation and
// panics.
func (e *SerialEngine) Schedule(evt Event) {
	if evt.Time() < e.readNow() {
		log.Panic("scheduling an event earlier than current time")
	}

	if evt.IsSecondary() {
		e.secondary.Push(evt)
		return
	}

	e.primary.Push(evt)
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.nowLock.RLock()
	defer e.nowLock.RUnlock()

	return e.now
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.nowLock.Lock()
	defer e.nowLock.Unlock()

	e.now = t
}

// Run triggers all the scheduled events, including the ones scheduled while
// running, until both queues drain.
func (e *SerialEngine) Run() error {
	e.runLock.Lock()
	defer e.runLock.Unlock()

	for e.primary.Len() > 0 || e.secondary.Len() > 0 {
		e.stepLock.Lock()
		e.triggerNextEvent()
		e.stepLock.Unlock()
	}

	return nil
}

func (e *SerialEngine) triggerNextEvent() {
	evt := e.popNextEvent()

	if now := e.readNow(); evt.Time() < now {
		log.Panicf(
			"cannot run event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}
	e.writeNow(evt.Time())

	ctx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(ctx)

	_ = evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)
}

// popNextEvent takes the earliest event across both queues. At equal times
// the primary event wins, so secondary events only run after all the
// same-time primary events have settled.
func (e *SerialEngine) popNextEvent() Event {
	if e.primary.Len() == 0 {
		return e.secondary.Pop()
	}

	if e.secondary.Len() == 0 {
		return e.primary.Pop()
	}

	if e.primary.Peek().Time() <= e.secondary.Peek().Time() {
		return e.primary.Pop()
	}

	return e.secondary.Pop()
}

// Pause blocks the engine before it triggers the next event. An already
// paused engine stays paused.
func (e *SerialEngine) Pause() {
	e.pausedLock.Lock()
	defer e.pausedLock.Unlock()

	if e.paused {
		return
	}

	e.stepLock.Lock()
	e.paused = true
}

// Continue lets a paused engine trigger events again.
func (e *SerialEngine) Continue() {
	e.pausedLock.Lock()
	defer e.pausedLock.Unlock()

	if !e.paused {
		return
	}

	e.stepLock.Unlock()
	e.paused = false
}

// CurrentTime returns the virtual time of the event being triggered, or of
// the last triggered event when the engine is between events.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}

// RegisterSimulationEndHandler adds a handler to run when Finished is
// called.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.endHandlers = append(e.endHandlers, handler)
}

// Finished runs the registered SimulationEndHandlers. Call it once, after
// Run returns for the last time.
func (e *SerialEngine) Finished() {
	now := e.readNow()
	for _, h := range e.endHandlers {
		h.Handle(now)
	}
}
