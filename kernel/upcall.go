package kernel

// An UpcallFunc is the userspace handler behind an upcall. The three
// arguments are defined by the driver that schedules the upcall.
type UpcallFunc func(arg0, arg1, arg2 uint32)

// An UpcallID names the subscription slot an upcall was registered at.
type UpcallID struct {
	Driver DriverNum
	Slot   uint32
}

// An Upcall is a process-owned handler that drivers schedule to deliver
// asynchronous events. The zero value is the null upcall: scheduling it is a
// silent no-op.
type Upcall struct {
	PID ProcessID
	ID  UpcallID
	Fn  UpcallFunc
}

// IsNull tells if the upcall has no handler attached.
func (u Upcall) IsNull() bool {
	return u.Fn == nil
}

// A pendingUpcall sits in a process's upcall queue until the scheduler drains
// the queue.
type pendingUpcall struct {
	upcall Upcall
	args   [3]uint32
	taskID string
}
