package kernel

import (
	"log"
	"reflect"

	"github.com/esyslab/tsukuba/sim"
)

type scriptEvent struct {
	*sim.EventBase

	action func()
}

// A Script runs user-provided actions at fixed points in virtual time. It
// stands in for process code in scenarios and tests, issuing syscalls
// against a kernel at scripted times.
type Script struct {
	*sim.ComponentBase

	engine sim.Engine
}

// NewScript creates a script that schedules its actions on engine.
func NewScript(name string, engine sim.Engine) *Script {
	return &Script{
		ComponentBase: sim.NewComponentBase(name),
		engine:        engine,
	}
}

// At schedules action to run at time t.
func (s *Script) At(t sim.VTimeInSec, action func()) {
	s.engine.Schedule(&scriptEvent{
		EventBase: sim.NewEventBase(t, s),
		action:    action,
	})
}

// Handle runs the scheduled action.
func (s *Script) Handle(e sim.Event) error {
	evt, ok := e.(*scriptEvent)
	if !ok {
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	evt.action()

	return nil
}
