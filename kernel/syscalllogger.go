package kernel

import (
	"log"

	"github.com/esyslab/tsukuba/sim"
)

// SyscallLogger is a hook that prints every syscall and upcall crossing the
// kernel boundary.
type SyscallLogger struct {
	sim.LogHookBase

	timeTeller sim.TimeTeller
}

// NewSyscallLogger returns a new SyscallLogger which will write into the
// logger.
func NewSyscallLogger(
	logger *log.Logger,
	timeTeller sim.TimeTeller,
) *SyscallLogger {
	h := new(SyscallLogger)
	h.Logger = logger
	h.timeTeller = timeTeller
	return h
}

// Func writes the syscall information into the logger.
func (h *SyscallLogger) Func(ctx sim.HookCtx) {
	now := h.timeTeller.CurrentTime()

	switch ctx.Pos {
	case HookPosCommandReturn:
		rec := ctx.Item.(SyscallRecord)
		if rec.Result.IsSuccess() {
			h.Logger.Printf("%.10f, pid[%d], driver[%#x], command[%d](%d) -> %d",
				now, rec.PID, uint32(rec.Driver), rec.Num, rec.Arg,
				rec.Result.ReturnValue())
		} else {
			h.Logger.Printf("%.10f, pid[%d], driver[%#x], command[%d](%d) -> %s",
				now, rec.PID, uint32(rec.Driver), rec.Num, rec.Arg,
				rec.Result.Code())
		}
	case HookPosSubscribeReturn:
		rec := ctx.Item.(SyscallRecord)
		if rec.Err == nil {
			h.Logger.Printf("%.10f, pid[%d], driver[%#x], subscribe[%d] -> ok",
				now, rec.PID, uint32(rec.Driver), rec.Num)
		} else {
			h.Logger.Printf("%.10f, pid[%d], driver[%#x], subscribe[%d] -> %s",
				now, rec.PID, uint32(rec.Driver), rec.Num, rec.Err)
		}
	case HookPosUpcallDeliver:
		rec := ctx.Item.(UpcallRecord)
		h.Logger.Printf("%.10f, pid[%d], upcall driver[%#x].slot[%d](%d, %d, %d)",
			now, rec.PID, uint32(rec.ID.Driver), rec.ID.Slot,
			rec.Args[0], rec.Args[1], rec.Args[2])
	case HookPosUpcallDrop:
		rec := ctx.Item.(UpcallRecord)
		h.Logger.Printf("%.10f, pid[%d], upcall driver[%#x].slot[%d] dropped",
			now, rec.PID, uint32(rec.ID.Driver), rec.ID.Slot)
	}
}
