package sim

// A TimeTeller reports the current virtual time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// An EventScheduler accepts events to be triggered in the future.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler runs cleanup work after the simulation completes.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine drives the discrete-event simulation. It owns the virtual clock
// and triggers scheduled events in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run triggers scheduled events until none is left.
	Run() error

	// Pause stops the engine from triggering events until Continue is
	// called.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// RegisterSimulationEndHandler adds a handler to run when the
	// simulation completes.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished marks the simulation as complete and runs the registered
	// SimulationEndHandlers.
	Finished()
}
