package kernel

import (
	"github.com/esyslab/tsukuba/sim"
)

// ProcessID identifies a process. IDs are never reused within one kernel, so
// a stale ID held by a driver keeps naming the process it was issued for. The
// zero ID is reserved and never names a process.
type ProcessID uint32

// ProcessState tells whether a process can still run upcalls.
type ProcessState int

// The states a process can be in.
const (
	ProcessRunning ProcessState = iota
	ProcessTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessRunning:
		return "running"
	case ProcessTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// A Process is one userspace process as the kernel sees it: an identity, a
// lifecycle state, and a queue of upcalls waiting for a scheduler slot.
type Process struct {
	name  string
	pid   ProcessID
	state ProcessState

	upcallQueue    sim.Buffer
	droppedUpcalls uint64
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

// PID returns the process identifier.
func (p *Process) PID() ProcessID {
	return p.pid
}

// State returns the lifecycle state of the process.
func (p *Process) State() ProcessState {
	return p.state
}

// UpcallQueue exposes the pending-upcall queue so that tooling can observe
// its fill level.
func (p *Process) UpcallQueue() sim.Buffer {
	return p.upcallQueue
}

// DroppedUpcalls returns the number of upcalls discarded because the queue
// was full.
func (p *Process) DroppedUpcalls() uint64 {
	return p.droppedUpcalls
}
