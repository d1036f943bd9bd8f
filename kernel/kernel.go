package kernel

import (
	"fmt"
	"log"
	"reflect"

	"github.com/esyslab/tsukuba/sim"
	"github.com/esyslab/tsukuba/tracing"
)

// HookPosCommandStart is triggered right before a command syscall enters a
// driver.
var HookPosCommandStart = &sim.HookPos{Name: "CommandStart"}

// HookPosCommandReturn is triggered when a command syscall returns.
var HookPosCommandReturn = &sim.HookPos{Name: "CommandReturn"}

// HookPosSubscribeStart is triggered right before a subscribe syscall enters
// a driver.
var HookPosSubscribeStart = &sim.HookPos{Name: "SubscribeStart"}

// HookPosSubscribeReturn is triggered when a subscribe syscall returns.
var HookPosSubscribeReturn = &sim.HookPos{Name: "SubscribeReturn"}

// HookPosUpcallSchedule is triggered when an upcall is queued on a process.
var HookPosUpcallSchedule = &sim.HookPos{Name: "UpcallSchedule"}

// HookPosUpcallDeliver is triggered when a queued upcall runs.
var HookPosUpcallDeliver = &sim.HookPos{Name: "UpcallDeliver"}

// HookPosUpcallDrop is triggered when an upcall is discarded because the
// target queue is full.
var HookPosUpcallDrop = &sim.HookPos{Name: "UpcallDrop"}

// A SyscallRecord is the hook payload describing one syscall.
type SyscallRecord struct {
	PID    ProcessID
	Driver DriverNum
	Call   string
	Num    uint32
	Arg    uint32

	// Result is only meaningful at HookPosCommandReturn.
	Result CommandResult

	// Err is only meaningful at HookPosSubscribeReturn.
	Err error
}

// An UpcallRecord is the hook payload describing one upcall.
type UpcallRecord struct {
	PID  ProcessID
	ID   UpcallID
	Args [3]uint32
}

// A ProcessWatcher is notified after a process has been torn down. Drivers
// register watchers so they can drop references that name the dead process,
// such as an ownership token.
type ProcessWatcher interface {
	ProcessTerminated(pid ProcessID)
}

// grantRegion is the teardown-release view the kernel keeps of each Grant.
type grantRegion interface {
	release(pid ProcessID)
}

type deliverUpcallsEvent struct {
	*sim.EventBase

	process *Process
}

func newDeliverUpcallsEvent(
	t sim.VTimeInSec,
	handler sim.Handler,
	process *Process,
) *deliverUpcallsEvent {
	return &deliverUpcallsEvent{sim.NewSecondaryEventBase(t, handler), process}
}

// A Kernel owns the process table and the driver table, routes syscalls to
// drivers, and drains per-process upcall queues. All kernel execution is
// serialized by the event engine; only upcall delivery is deferred, through
// secondary events, so that process code never runs inside an interrupt
// handler.
type Kernel struct {
	sim.HookableBase

	name   string
	engine sim.Engine

	upcallQueueCapacity int
	syscallTaskID       string

	nextPID     ProcessID
	processes   map[ProcessID]*Process
	processList []*Process

	drivers    map[DriverNum]Driver
	driverNums []DriverNum

	watchers []ProcessWatcher
	grants   []grantRegion
}

// Name returns the name of the kernel.
func (k *Kernel) Name() string {
	return k.name
}

// CreateProcess adds a process to the process table and returns it. The
// process starts running with an empty upcall queue.
func (k *Kernel) CreateProcess(name string) *Process {
	sim.NameMustBeValid(name)

	k.nextPID++
	p := &Process{
		name:  name,
		pid:   k.nextPID,
		state: ProcessRunning,
		upcallQueue: sim.NewBuffer(
			sim.BuildName(name, "UpcallQueue"),
			k.upcallQueueCapacity,
		),
	}

	k.processes[p.pid] = p
	k.processList = append(k.processList, p)

	return p
}

// Process looks up a process by ID.
func (k *Kernel) Process(pid ProcessID) (*Process, bool) {
	p, ok := k.processes[pid]
	return p, ok
}

// Processes returns all the processes ever created, in creation order.
func (k *Kernel) Processes() []*Process {
	return k.processList
}

func (k *Kernel) processIsLive(pid ProcessID) bool {
	p, ok := k.processes[pid]
	return ok && p.state == ProcessRunning
}

// TerminateProcess tears a process down: the process stops running, its
// pending upcalls are discarded, its grant regions are released, and every
// registered ProcessWatcher is notified.
func (k *Kernel) TerminateProcess(pid ProcessID) {
	p, ok := k.processes[pid]
	if !ok {
		log.Panicf("process %d does not exist", pid)
	}

	if p.state == ProcessTerminated {
		log.Panicf("process %s is already terminated", p.name)
	}

	p.state = ProcessTerminated
	p.upcallQueue.Clear()

	for _, g := range k.grants {
		g.release(pid)
	}

	for _, w := range k.watchers {
		w.ProcessTerminated(pid)
	}
}

// RegisterDriver installs a driver at the given driver number.
func (k *Kernel) RegisterDriver(num DriverNum, d Driver) {
	if _, ok := k.drivers[num]; ok {
		log.Panicf("driver number %#x is already registered", uint32(num))
	}

	k.drivers[num] = d
	k.driverNums = append(k.driverNums, num)
}

// Driver looks up a driver by number.
func (k *Kernel) Driver(num DriverNum) (Driver, bool) {
	d, ok := k.drivers[num]
	return d, ok
}

// DriverNums returns the numbers of all registered drivers, in registration
// order.
func (k *Kernel) DriverNums() []DriverNum {
	return k.driverNums
}

// AddProcessWatcher registers a watcher for process teardown notifications.
func (k *Kernel) AddProcessWatcher(w ProcessWatcher) {
	k.watchers = append(k.watchers, w)
}

// SyscallTaskID returns the tracing task of the syscall currently being
// dispatched, or an empty string outside dispatch. Drivers use it to attach
// steps to the syscall task.
func (k *Kernel) SyscallTaskID() string {
	return k.syscallTaskID
}

func (k *Kernel) addGrantRegion(g grantRegion) {
	k.grants = append(k.grants, g)
}

// Command routes one command syscall to the driver registered at num. An
// unknown driver number or a caller that is not a live process fails with
// ErrNoDevice without reaching any driver.
func (k *Kernel) Command(
	num DriverNum,
	cmd, arg uint32,
	pid ProcessID,
) CommandResult {
	d, ok := k.drivers[num]
	if !ok {
		return CommandFailure(ErrNoDevice)
	}

	if !k.processIsLive(pid) {
		return CommandFailure(ErrNoDevice)
	}

	rec := SyscallRecord{
		PID:    pid,
		Driver: num,
		Call:   "command",
		Num:    cmd,
		Arg:    arg,
	}
	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosCommandStart,
		Item:   rec,
	})

	taskID := sim.GetIDGenerator().Generate()
	k.syscallTaskID = taskID
	tracing.StartTask(taskID, "", k,
		"syscall", fmt.Sprintf("command[%d]", cmd), rec)

	result := d.Command(cmd, arg, pid)

	tracing.EndTask(taskID, k)
	k.syscallTaskID = ""

	rec.Result = result
	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosCommandReturn,
		Item:   rec,
	})

	return result
}

// Subscribe routes one subscribe syscall to the driver registered at num. It
// wraps the raw handler into an Upcall owned by the calling process and
// returns the upcall previously registered at the slot.
func (k *Kernel) Subscribe(
	num DriverNum,
	slot uint32,
	fn UpcallFunc,
	pid ProcessID,
) (Upcall, error) {
	d, ok := k.drivers[num]
	if !ok {
		return Upcall{}, ErrNoDevice
	}

	if !k.processIsLive(pid) {
		return Upcall{}, ErrNoDevice
	}

	upcall := Upcall{
		PID: pid,
		ID:  UpcallID{Driver: num, Slot: slot},
		Fn:  fn,
	}

	rec := SyscallRecord{
		PID:    pid,
		Driver: num,
		Call:   "subscribe",
		Num:    slot,
	}
	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosSubscribeStart,
		Item:   rec,
	})

	taskID := sim.GetIDGenerator().Generate()
	k.syscallTaskID = taskID
	tracing.StartTask(taskID, "", k,
		"syscall", fmt.Sprintf("subscribe[%d]", slot), rec)

	previous, err := d.Subscribe(slot, upcall, pid)

	tracing.EndTask(taskID, k)
	k.syscallTaskID = ""

	rec.Err = err
	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosSubscribeReturn,
		Item:   rec,
	})

	return previous, err
}

// ScheduleUpcall queues an upcall on its owning process and arranges for the
// queue to be drained after all the same-time primary events. It never runs
// the handler inline. Scheduling the null upcall, or scheduling onto a dead
// process, is a silent no-op. The return value tells whether the upcall was
// queued.
func (k *Kernel) ScheduleUpcall(u Upcall, arg0, arg1, arg2 uint32) bool {
	if u.IsNull() {
		return false
	}

	p, ok := k.processes[u.PID]
	if !ok || p.state != ProcessRunning {
		return false
	}

	rec := UpcallRecord{
		PID:  u.PID,
		ID:   u.ID,
		Args: [3]uint32{arg0, arg1, arg2},
	}

	if !p.upcallQueue.CanPush() {
		p.droppedUpcalls++
		k.InvokeHook(sim.HookCtx{
			Domain: k,
			Pos:    HookPosUpcallDrop,
			Item:   rec,
		})

		return false
	}

	taskID := sim.GetIDGenerator().Generate()
	p.upcallQueue.Push(pendingUpcall{
		upcall: u,
		args:   [3]uint32{arg0, arg1, arg2},
		taskID: taskID,
	})

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosUpcallSchedule,
		Item:   rec,
	})
	tracing.StartTaskWithSpecificLocation(taskID, "", k,
		"upcall",
		fmt.Sprintf("driver[%#x].slot[%d]", uint32(u.ID.Driver), u.ID.Slot),
		p.Name(), rec)

	evt := newDeliverUpcallsEvent(k.engine.CurrentTime(), k, p)
	k.engine.Schedule(evt)

	return true
}

// Handle defines how the kernel handles events.
func (k *Kernel) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *deliverUpcallsEvent:
		return k.deliverUpcalls(e)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

func (k *Kernel) deliverUpcalls(evt *deliverUpcallsEvent) error {
	p := evt.process

	for p.state == ProcessRunning && p.upcallQueue.Size() > 0 {
		pending := p.upcallQueue.Pop().(pendingUpcall)

		k.InvokeHook(sim.HookCtx{
			Domain: k,
			Pos:    HookPosUpcallDeliver,
			Item: UpcallRecord{
				PID:  pending.upcall.PID,
				ID:   pending.upcall.ID,
				Args: pending.args,
			},
		})

		pending.upcall.Fn(pending.args[0], pending.args[1], pending.args[2])

		tracing.EndTask(pending.taskID, k)
	}

	return nil
}
