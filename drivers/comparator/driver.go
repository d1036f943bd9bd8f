// Package comparator implements the analog comparator syscall driver. The
// driver multiplexes one comparator peripheral between processes with a
// single ownership token: the first process to issue a gated command claims
// the comparator, later requesters are turned away with BUSY, and the token
// is released when a comparison event is consumed or the owner terminates.
package comparator

import (
	"github.com/esyslab/tsukuba/hw/acmp"
	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/tracing"
)

// DefaultDriverNum is the driver number the comparator driver registers at.
const DefaultDriverNum = kernel.DriverNum(0x0007)

// Command numbers of the comparator driver.
const (
	CmdChannelCount   = 0
	CmdComparison     = 1
	CmdStartComparing = 2
	CmdStopComparing  = 3
)

// SubscribeFired is the subscription slot for comparison events.
const SubscribeFired = 0

// appState is the per-process grant region of the driver. It holds the
// upcall registered at the fired slot.
type appState struct {
	callback kernel.Upcall
}

var _ kernel.Driver = (*Driver)(nil)
var _ acmp.Client = (*Driver)(nil)
var _ kernel.ProcessWatcher = (*Driver)(nil)

// A Driver arbitrates one analog comparator peripheral between processes.
type Driver struct {
	name string

	kernel   *kernel.Kernel
	hw       acmp.Comparator
	channels []acmp.Channel
	grant    *kernel.Grant[appState]

	// owner is the process holding the comparator, or zero when the
	// comparator is free. PIDs start at one, so the zero value reads as
	// free.
	owner kernel.ProcessID
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// Command executes one comparator command.
//
// Command 0 reports the number of channels and is answered before any
// ownership logic, so a process can probe for the driver while another one
// holds it. Every other command goes through the ownership gate first and
// channel validation second, before the command number is examined: an
// unknown command with an out-of-range channel argument fails with INVALID,
// not NOSUPPORT.
func (d *Driver) Command(
	cmd, arg uint32,
	pid kernel.ProcessID,
) kernel.CommandResult {
	if cmd == CmdChannelCount {
		return kernel.CommandSuccessU32(uint32(len(d.channels)))
	}

	if !d.claim(pid) {
		return kernel.CommandFailure(kernel.ErrBusy)
	}
	d.step("claim")

	if int(arg) >= len(d.channels) {
		return kernel.CommandFailure(kernel.ErrInvalid)
	}

	switch cmd {
	case CmdComparison:
		d.step("hw")

		if d.hw.Comparison(d.channels[arg]) {
			return kernel.CommandSuccessU32(1)
		}

		return kernel.CommandSuccessU32(0)

	case CmdStartComparing:
		d.step("hw")
		return resultFromHardware(d.hw.StartComparing(d.channels[arg]))

	case CmdStopComparing:
		d.step("hw")
		return resultFromHardware(d.hw.StopComparing(d.channels[arg]))

	default:
		return kernel.CommandFailure(kernel.ErrNoSupport)
	}
}

// claim implements the ownership gate. The comparator is free when no owner
// is recorded, when the recorded owner's grant is gone, or when the owner is
// the requester itself; claiming re-affirms the owner in all three cases.
// The check and the claim form one atomic step because the kernel serializes
// syscall execution.
func (d *Driver) claim(pid kernel.ProcessID) bool {
	free := d.owner == 0 || d.owner == pid

	if !free {
		err := d.grant.Enter(d.owner, func(*appState) {})
		free = err != nil
	}

	if !free {
		return false
	}

	d.owner = pid

	return true
}

// Subscribe swaps the upcall registered at the fired slot. Subscription is
// not gated by ownership, so a process can install its handler before
// claiming the comparator.
func (d *Driver) Subscribe(
	slot uint32,
	upcall kernel.Upcall,
	pid kernel.ProcessID,
) (kernel.Upcall, error) {
	if slot != SubscribeFired {
		return upcall, kernel.ErrNoSupport
	}

	var previous kernel.Upcall
	err := d.grant.Enter(pid, func(s *appState) {
		previous = s.callback
		s.callback = upcall
	})
	if err != nil {
		return upcall, kernel.ErrNoMem
	}

	return previous, nil
}

// Fired consumes the ownership token and forwards the event to the owner's
// registered handler. The owner is read exactly once: whichever process held
// the comparator when the event arrived receives it, and the comparator is
// free afterwards even if delivery goes nowhere. Process code never runs
// here; the handler goes through the owner's upcall queue.
func (d *Driver) Fired(channelIndex int) {
	owner := d.owner
	d.owner = 0

	if owner == 0 {
		return
	}

	var callback kernel.Upcall
	err := d.grant.Enter(owner, func(s *appState) {
		callback = s.callback
	})
	if err != nil {
		return
	}

	d.kernel.ScheduleUpcall(callback, uint32(channelIndex), 0, 0)
}

// ProcessTerminated releases the ownership token when the owner goes away,
// rather than leaving the comparator busy until the next claim probes the
// dead owner's grant.
func (d *Driver) ProcessTerminated(pid kernel.ProcessID) {
	if d.owner == pid {
		d.owner = 0
	}
}

func (d *Driver) step(what string) {
	if id := d.kernel.SyscallTaskID(); id != "" {
		tracing.AddTaskStep(id, d.kernel, what)
	}
}

// resultFromHardware converts a hardware status into a command result,
// propagating the hardware-reported code verbatim.
func resultFromHardware(err error) kernel.CommandResult {
	if err == nil {
		return kernel.CommandSuccess()
	}

	return kernel.CommandFailure(kernel.ErrorCodeFromError(err))
}
