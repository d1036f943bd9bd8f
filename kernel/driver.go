package kernel

// DriverNum identifies a syscall driver. The numbers are part of the syscall
// ABI and are assigned per driver, not per instance.
type DriverNum uint32

// A Driver is a kernel component that processes can talk to through the
// command and subscribe syscalls. Implementations must complete every call
// synchronously and without blocking.
type Driver interface {
	// Command executes one numeric command on behalf of the requesting
	// process. Implementations return the outcome synchronously and never
	// retry internally.
	Command(cmd, arg uint32, pid ProcessID) CommandResult

	// Subscribe swaps the upcall registered at the given subscription slot
	// with the one supplied, returning the previous upcall so the caller can
	// retire it. On failure, the supplied upcall is returned unconsumed
	// together with the error.
	Subscribe(slot uint32, upcall Upcall, pid ProcessID) (Upcall, error)
}
