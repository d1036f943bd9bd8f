package kernel

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/esyslab/tsukuba/sim"
)

type recordingHook struct {
	ctxs []sim.HookCtx
}

func (h *recordingHook) Func(ctx sim.HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("Kernel", func() {
	var (
		mockCtrl *gomock.Controller
		engine   sim.Engine
		k        *Kernel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		k = MakeBuilder().WithEngine(engine).Build("Kernel")
	})

	Context("process table", func() {
		It("should assign sequential PIDs starting from 1", func() {
			p1 := k.CreateProcess("ProcA")
			p2 := k.CreateProcess("ProcB")

			Expect(p1.PID()).To(Equal(ProcessID(1)))
			Expect(p2.PID()).To(Equal(ProcessID(2)))
		})

		It("should list processes in creation order", func() {
			p1 := k.CreateProcess("ProcA")
			p2 := k.CreateProcess("ProcB")

			Expect(k.Processes()).To(Equal([]*Process{p1, p2}))
		})

		It("should look up processes by PID", func() {
			p := k.CreateProcess("ProcA")

			found, ok := k.Process(p.PID())
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(p))

			_, ok = k.Process(ProcessID(99))
			Expect(ok).To(BeFalse())
		})

		It("should reject invalid process names", func() {
			Expect(func() { k.CreateProcess("proc a") }).To(Panic())
		})

		It("should not reuse PIDs after termination", func() {
			p1 := k.CreateProcess("ProcA")
			k.TerminateProcess(p1.PID())

			p2 := k.CreateProcess("ProcB")
			Expect(p2.PID()).To(Equal(ProcessID(2)))
		})
	})

	Context("driver table", func() {
		It("should register and look up drivers", func() {
			d := NewMockDriver(mockCtrl)
			k.RegisterDriver(DriverNum(0x7), d)

			found, ok := k.Driver(DriverNum(0x7))
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(d))
		})

		It("should panic on duplicated driver numbers", func() {
			d := NewMockDriver(mockCtrl)
			k.RegisterDriver(DriverNum(0x7), d)

			Expect(func() {
				k.RegisterDriver(DriverNum(0x7), NewMockDriver(mockCtrl))
			}).To(Panic())
		})
	})

	Context("command syscall", func() {
		var (
			d *MockDriver
			p *Process
		)

		BeforeEach(func() {
			d = NewMockDriver(mockCtrl)
			k.RegisterDriver(DriverNum(0x7), d)
			p = k.CreateProcess("ProcA")
		})

		It("should route commands to the driver", func() {
			d.EXPECT().
				Command(uint32(1), uint32(4), p.PID()).
				Return(CommandSuccessU32(42))

			res := k.Command(DriverNum(0x7), 1, 4, p.PID())

			Expect(res.IsSuccess()).To(BeTrue())
			Expect(res.ReturnValue()).To(Equal(uint32(42)))
		})

		It("should fail with NODEVICE for unknown drivers", func() {
			res := k.Command(DriverNum(0x99), 0, 0, p.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(ErrNoDevice))
		})

		It("should fail with NODEVICE for terminated callers", func() {
			k.TerminateProcess(p.PID())

			res := k.Command(DriverNum(0x7), 0, 0, p.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(ErrNoDevice))
		})

		It("should announce the syscall through hooks", func() {
			hook := &recordingHook{}
			k.AcceptHook(hook)

			d.EXPECT().
				Command(uint32(2), uint32(0), p.PID()).
				Return(CommandFailure(ErrBusy))

			k.Command(DriverNum(0x7), 2, 0, p.PID())

			Expect(hook.ctxs).To(HaveLen(2))
			Expect(hook.ctxs[0].Pos).To(BeIdenticalTo(HookPosCommandStart))
			Expect(hook.ctxs[1].Pos).To(BeIdenticalTo(HookPosCommandReturn))

			rec := hook.ctxs[1].Item.(SyscallRecord)
			Expect(rec.PID).To(Equal(p.PID()))
			Expect(rec.Call).To(Equal("command"))
			Expect(rec.Num).To(Equal(uint32(2)))
			Expect(rec.Result.Code()).To(Equal(ErrBusy))
		})
	})

	Context("subscribe syscall", func() {
		var (
			d *MockDriver
			p *Process
		)

		BeforeEach(func() {
			d = NewMockDriver(mockCtrl)
			k.RegisterDriver(DriverNum(0x7), d)
			p = k.CreateProcess("ProcA")
		})

		It("should wrap the handler into a process-owned upcall", func() {
			var seen Upcall
			d.EXPECT().
				Subscribe(uint32(0), gomock.Any(), p.PID()).
				DoAndReturn(func(
					slot uint32, u Upcall, pid ProcessID,
				) (Upcall, error) {
					seen = u
					return Upcall{}, nil
				})

			_, err := k.Subscribe(DriverNum(0x7), 0,
				func(a0, a1, a2 uint32) {}, p.PID())

			Expect(err).ToNot(HaveOccurred())
			Expect(seen.PID).To(Equal(p.PID()))
			Expect(seen.ID).To(Equal(
				UpcallID{Driver: DriverNum(0x7), Slot: 0}))
			Expect(seen.IsNull()).To(BeFalse())
		})

		It("should return the previously registered upcall", func() {
			previous := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
			}
			d.EXPECT().
				Subscribe(uint32(0), gomock.Any(), p.PID()).
				Return(previous, nil)

			got, err := k.Subscribe(DriverNum(0x7), 0, nil, p.PID())

			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(previous))
		})

		It("should fail with NODEVICE for unknown drivers", func() {
			_, err := k.Subscribe(DriverNum(0x99), 0, nil, p.PID())

			Expect(err).To(MatchError(ErrNoDevice))
		})
	})

	Context("upcall delivery", func() {
		var p *Process

		BeforeEach(func() {
			p = k.CreateProcess("ProcA")
		})

		It("should run the upcall after all same-time events", func() {
			var order []string

			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn: func(a0, a1, a2 uint32) {
					order = append(order, "upcall")
				},
			}

			script := NewScript("Script", engine)
			script.At(1.0, func() {
				Expect(k.ScheduleUpcall(upcall, 1, 2, 3)).To(BeTrue())
				order = append(order, "event")
			})
			script.At(1.0, func() {
				order = append(order, "event")
			})

			Expect(engine.Run()).To(Succeed())
			Expect(order).To(Equal([]string{"event", "event", "upcall"}))
		})

		It("should pass the arguments through", func() {
			var args [3]uint32

			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn: func(a0, a1, a2 uint32) {
					args = [3]uint32{a0, a1, a2}
				},
			}

			script := NewScript("Script", engine)
			script.At(1.0, func() {
				k.ScheduleUpcall(upcall, 7, 8, 9)
			})

			Expect(engine.Run()).To(Succeed())
			Expect(args).To(Equal([3]uint32{7, 8, 9}))
		})

		It("should silently drop the null upcall", func() {
			Expect(k.ScheduleUpcall(Upcall{}, 0, 0, 0)).To(BeFalse())
			Expect(p.UpcallQueue().Size()).To(Equal(0))
		})

		It("should silently drop upcalls for terminated processes", func() {
			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn:  func(a0, a1, a2 uint32) {},
			}

			k.TerminateProcess(p.PID())

			Expect(k.ScheduleUpcall(upcall, 0, 0, 0)).To(BeFalse())
		})

		It("should deliver queued upcalls in FIFO order", func() {
			var delivered []uint32

			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn: func(a0, a1, a2 uint32) {
					delivered = append(delivered, a0)
				},
			}

			script := NewScript("Script", engine)
			script.At(1.0, func() {
				k.ScheduleUpcall(upcall, 0, 0, 0)
				k.ScheduleUpcall(upcall, 1, 0, 0)
				k.ScheduleUpcall(upcall, 2, 0, 0)
			})

			Expect(engine.Run()).To(Succeed())
			Expect(delivered).To(Equal([]uint32{0, 1, 2}))
		})

		It("should drop the newest upcall when the queue is full", func() {
			k = MakeBuilder().
				WithEngine(engine).
				WithUpcallQueueCapacity(2).
				Build("Kernel")
			p = k.CreateProcess("ProcA")

			var delivered []uint32
			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn: func(a0, a1, a2 uint32) {
					delivered = append(delivered, a0)
				},
			}

			script := NewScript("Script", engine)
			script.At(1.0, func() {
				Expect(k.ScheduleUpcall(upcall, 0, 0, 0)).To(BeTrue())
				Expect(k.ScheduleUpcall(upcall, 1, 0, 0)).To(BeTrue())
				Expect(k.ScheduleUpcall(upcall, 2, 0, 0)).To(BeFalse())
			})

			Expect(engine.Run()).To(Succeed())
			Expect(delivered).To(Equal([]uint32{0, 1}))
			Expect(p.DroppedUpcalls()).To(Equal(uint64(1)))
		})

		It("should let an upcall issue a syscall", func() {
			d := NewMockDriver(mockCtrl)
			k.RegisterDriver(DriverNum(0x7), d)
			d.EXPECT().
				Command(uint32(1), uint32(0), p.PID()).
				Return(CommandSuccess())

			var nested CommandResult
			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn: func(a0, a1, a2 uint32) {
					nested = k.Command(DriverNum(0x7), 1, 0, p.PID())
				},
			}

			script := NewScript("Script", engine)
			script.At(1.0, func() {
				k.ScheduleUpcall(upcall, 0, 0, 0)
			})

			Expect(engine.Run()).To(Succeed())
			Expect(nested.IsSuccess()).To(BeTrue())
		})
	})

	Context("process teardown", func() {
		var p *Process

		BeforeEach(func() {
			p = k.CreateProcess("ProcA")
		})

		It("should discard pending upcalls", func() {
			ran := false
			upcall := Upcall{
				PID: p.PID(),
				ID:  UpcallID{Driver: DriverNum(0x7), Slot: 0},
				Fn:  func(a0, a1, a2 uint32) { ran = true },
			}

			script := NewScript("Script", engine)
			script.At(1.0, func() {
				k.ScheduleUpcall(upcall, 0, 0, 0)
				k.TerminateProcess(p.PID())
			})

			Expect(engine.Run()).To(Succeed())
			Expect(ran).To(BeFalse())
			Expect(p.State()).To(Equal(ProcessTerminated))
			Expect(p.UpcallQueue().Size()).To(Equal(0))
		})

		It("should notify process watchers", func() {
			w := NewMockProcessWatcher(mockCtrl)
			k.AddProcessWatcher(w)

			w.EXPECT().ProcessTerminated(p.PID())

			k.TerminateProcess(p.PID())
		})

		It("should panic when terminating an unknown process", func() {
			Expect(func() {
				k.TerminateProcess(ProcessID(99))
			}).To(Panic())
		})

		It("should panic when terminating a process twice", func() {
			k.TerminateProcess(p.PID())

			Expect(func() {
				k.TerminateProcess(p.PID())
			}).To(Panic())
		})
	})
})
