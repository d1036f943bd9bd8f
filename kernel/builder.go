package kernel

import (
	"log"

	"github.com/esyslab/tsukuba/sim"
)

// A Builder can build kernels.
type Builder struct {
	engine              sim.Engine
	upcallQueueCapacity int
}

// MakeBuilder creates a new builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		upcallQueueCapacity: 8,
	}
}

// WithEngine sets the event engine that serializes kernel execution.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithUpcallQueueCapacity sets how many upcalls a process can have pending
// before new ones are dropped.
func (b Builder) WithUpcallQueueCapacity(c int) Builder {
	b.upcallQueueCapacity = c
	return b
}

// Build creates a kernel with an empty process table and an empty driver
// table.
func (b Builder) Build(name string) *Kernel {
	if b.engine == nil {
		log.Panic("kernel cannot be built without an engine")
	}

	if b.upcallQueueCapacity <= 0 {
		log.Panic("upcall queue capacity must be positive")
	}

	sim.NameMustBeValid(name)

	return &Kernel{
		name:                name,
		engine:              b.engine,
		upcallQueueCapacity: b.upcallQueueCapacity,
		processes:           make(map[ProcessID]*Process),
		drivers:             make(map[DriverNum]Driver),
	}
}
