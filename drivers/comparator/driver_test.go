package comparator

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/esyslab/tsukuba/hw/acmp"
	"github.com/esyslab/tsukuba/hw/idealacmp"
	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/sim"
)

type stubChannel struct {
	name string
}

func (c *stubChannel) Name() string {
	return c.name
}

var _ = Describe("Driver", func() {
	var (
		mockCtrl *gomock.Controller
		engine   sim.Engine
		k        *kernel.Kernel
		hw       *MockComparator
		channels []acmp.Channel
		d        *Driver

		alice *kernel.Process
		bob   *kernel.Process
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		k = kernel.MakeBuilder().WithEngine(engine).Build("Kernel")

		hw = NewMockComparator(mockCtrl)
		channels = []acmp.Channel{
			&stubChannel{name: "Channel[0]"},
			&stubChannel{name: "Channel[1]"},
		}

		hw.EXPECT().SetClient(gomock.Any())
		d = MakeBuilder().
			WithKernel(k).
			WithHardware(hw).
			WithChannels(channels).
			Build("ACMPDriver")

		alice = k.CreateProcess("Alice")
		bob = k.CreateProcess("Bob")
	})

	// claim issues a comparison command that claims the comparator for p.
	claim := func(p *kernel.Process, ch int) {
		hw.EXPECT().Comparison(channels[ch]).Return(false)

		res := k.Command(DefaultDriverNum, CmdComparison, uint32(ch), p.PID())
		ExpectWithOffset(1, res.IsSuccess()).To(BeTrue())
	}

	Context("channel count", func() {
		It("should report the channel count", func() {
			res := k.Command(DefaultDriverNum, CmdChannelCount, 0, alice.PID())

			Expect(res.IsSuccess()).To(BeTrue())
			Expect(res.ReturnValue()).To(Equal(uint32(2)))
		})

		It("should answer while another process holds the comparator", func() {
			claim(bob, 0)

			res := k.Command(DefaultDriverNum, CmdChannelCount, 0, alice.PID())

			Expect(res.IsSuccess()).To(BeTrue())
			Expect(res.ReturnValue()).To(Equal(uint32(2)))
		})
	})

	Context("ownership", func() {
		It("should turn away a second process with BUSY", func() {
			claim(alice, 0)

			res := k.Command(DefaultDriverNum, CmdComparison, 0, bob.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(kernel.ErrBusy))
		})

		It("should let the owner issue further commands", func() {
			claim(alice, 0)
			claim(alice, 1)
		})

		It("should release the comparator when the owner terminates", func() {
			claim(alice, 0)

			k.TerminateProcess(alice.PID())

			claim(bob, 0)
		})

		It("should treat a stale owner as free", func() {
			d.owner = kernel.ProcessID(4242)

			claim(bob, 0)
		})
	})

	Context("comparison command", func() {
		BeforeEach(func() {
			claim(alice, 0)
		})

		It("should map a high comparison to one", func() {
			hw.EXPECT().Comparison(channels[1]).Return(true)

			res := k.Command(DefaultDriverNum, CmdComparison, 1, alice.PID())

			Expect(res.IsSuccess()).To(BeTrue())
			Expect(res.ReturnValue()).To(Equal(uint32(1)))
		})

		It("should map a low comparison to zero", func() {
			hw.EXPECT().Comparison(channels[1]).Return(false)

			res := k.Command(DefaultDriverNum, CmdComparison, 1, alice.PID())

			Expect(res.IsSuccess()).To(BeTrue())
			Expect(res.ReturnValue()).To(Equal(uint32(0)))
		})
	})

	Context("start and stop", func() {
		It("should propagate start success", func() {
			hw.EXPECT().StartComparing(channels[0]).Return(nil)

			res := k.Command(
				DefaultDriverNum, CmdStartComparing, 0, alice.PID())

			Expect(res.IsSuccess()).To(BeTrue())
		})

		It("should propagate the hardware status on start", func() {
			hw.EXPECT().StartComparing(channels[0]).
				Return(kernel.ErrAlready)

			res := k.Command(
				DefaultDriverNum, CmdStartComparing, 0, alice.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(kernel.ErrAlready))
		})

		It("should propagate stop success on an idle channel", func() {
			hw.EXPECT().StopComparing(channels[1]).Return(nil)

			res := k.Command(
				DefaultDriverNum, CmdStopComparing, 1, alice.PID())

			Expect(res.IsSuccess()).To(BeTrue())
		})
	})

	Context("validation", func() {
		It("should reject an out-of-range channel", func() {
			res := k.Command(DefaultDriverNum, CmdComparison, 2, alice.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(kernel.ErrInvalid))
		})

		It("should claim the comparator even when the channel is bad", func() {
			k.Command(DefaultDriverNum, CmdComparison, 2, alice.PID())

			res := k.Command(DefaultDriverNum, CmdComparison, 0, bob.PID())

			Expect(res.Code()).To(Equal(kernel.ErrBusy))
		})

		It("should fail an unknown command with NOSUPPORT", func() {
			res := k.Command(DefaultDriverNum, 9, 0, alice.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(kernel.ErrNoSupport))
		})

		It("should report INVALID for an unknown command with a bad "+
			"channel", func() {
			res := k.Command(DefaultDriverNum, 9, 7, alice.PID())

			Expect(res.IsSuccess()).To(BeFalse())
			Expect(res.Code()).To(Equal(kernel.ErrInvalid))
		})
	})

	Context("subscribe", func() {
		It("should install a handler and return the null upcall", func() {
			previous, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
				func(a0, a1, a2 uint32) {}, alice.PID())

			Expect(err).ToNot(HaveOccurred())
			Expect(previous.IsNull()).To(BeTrue())
		})

		It("should return the previous handler on swap", func() {
			var calls []string

			_, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
				func(a0, a1, a2 uint32) {
					calls = append(calls, "first")
				}, alice.PID())
			Expect(err).ToNot(HaveOccurred())

			previous, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
				func(a0, a1, a2 uint32) {
					calls = append(calls, "second")
				}, alice.PID())
			Expect(err).ToNot(HaveOccurred())

			Expect(previous.IsNull()).To(BeFalse())
			previous.Fn(0, 0, 0)
			Expect(calls).To(Equal([]string{"first"}))
		})

		It("should keep subscriptions per process", func() {
			var calls []string

			_, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
				func(a0, a1, a2 uint32) {
					calls = append(calls, "alice")
				}, alice.PID())
			Expect(err).ToNot(HaveOccurred())

			_, err = k.Subscribe(DefaultDriverNum, SubscribeFired,
				func(a0, a1, a2 uint32) {
					calls = append(calls, "bob")
				}, bob.PID())
			Expect(err).ToNot(HaveOccurred())

			previous, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
				nil, alice.PID())
			Expect(err).ToNot(HaveOccurred())

			previous.Fn(0, 0, 0)
			Expect(calls).To(Equal([]string{"alice"}))
		})

		It("should reject an unknown slot with NOSUPPORT", func() {
			invoked := false

			returned, err := k.Subscribe(DefaultDriverNum, 1,
				func(a0, a1, a2 uint32) { invoked = true }, alice.PID())

			Expect(err).To(MatchError(kernel.ErrNoSupport))
			returned.Fn(0, 0, 0)
			Expect(invoked).To(BeTrue())
		})

		It("should fail without a live grant region", func() {
			upcall := kernel.Upcall{
				PID: kernel.ProcessID(99),
				ID: kernel.UpcallID{
					Driver: DefaultDriverNum,
					Slot:   SubscribeFired,
				},
				Fn: func(a0, a1, a2 uint32) {},
			}

			returned, err := d.Subscribe(
				SubscribeFired, upcall, kernel.ProcessID(99))

			Expect(err).To(MatchError(kernel.ErrNoMem))
			Expect(returned.IsNull()).To(BeFalse())
		})
	})

	Context("fired", func() {
		It("should deliver the event through the upcall queue", func() {
			var delivered [][3]uint32

			_, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
				func(a0, a1, a2 uint32) {
					delivered = append(delivered, [3]uint32{a0, a1, a2})
				}, alice.PID())
			Expect(err).ToNot(HaveOccurred())

			claim(alice, 0)

			d.Fired(1)
			Expect(delivered).To(BeEmpty())

			Expect(engine.Run()).To(Succeed())
			Expect(delivered).To(Equal([][3]uint32{{1, 0, 0}}))

			claim(bob, 0)
		})

		It("should free the comparator even when the owner has no "+
			"handler", func() {
			claim(alice, 0)

			d.Fired(0)

			claim(bob, 0)
		})

		It("should drop the event when no owner is recorded", func() {
			d.Fired(0)

			Expect(engine.Run()).To(Succeed())

			claim(bob, 0)
		})

		It("should drop the event when the owner's grant is gone", func() {
			d.owner = kernel.ProcessID(4242)

			d.Fired(0)

			Expect(d.owner).To(Equal(kernel.ProcessID(0)))
		})
	})

	Context("running against the ideal comparator", func() {
		It("should arbitrate two contending processes", func() {
			engine := sim.NewSerialEngine()
			k := kernel.MakeBuilder().WithEngine(engine).Build("Kernel")

			comp := idealacmp.MakeBuilder().
				WithEngine(engine).
				WithFreq(1 * sim.MHz).
				WithNumChannels(2).
				WithChannelSource(0, idealacmp.Steps(2.5e-6, 0, 2)).
				Build("ACMP")

			MakeBuilder().
				WithKernel(k).
				WithHardware(comp).
				WithChannels(comp.Channels()).
				Build("ACMPDriver")

			alice := k.CreateProcess("Alice")
			bob := k.CreateProcess("Bob")

			var aliceEvents [][3]uint32
			script := kernel.NewScript("Script", engine)

			// Alice probes the driver, installs her handler, and starts
			// comparing on channel 0. The first rising edge arrives at 3us.
			script.At(0, func() {
				res := k.Command(
					DefaultDriverNum, CmdChannelCount, 0, alice.PID())
				Expect(res.ReturnValue()).To(Equal(uint32(2)))

				_, err := k.Subscribe(DefaultDriverNum, SubscribeFired,
					func(a0, a1, a2 uint32) {
						aliceEvents = append(
							aliceEvents, [3]uint32{a0, a1, a2})

						res := k.Command(DefaultDriverNum,
							CmdStopComparing, 0, alice.PID())
						Expect(res.IsSuccess()).To(BeTrue())

						k.TerminateProcess(alice.PID())
					}, alice.PID())
				Expect(err).ToNot(HaveOccurred())

				res = k.Command(
					DefaultDriverNum, CmdStartComparing, 0, alice.PID())
				Expect(res.IsSuccess()).To(BeTrue())
			})

			// Bob contends while Alice holds the comparator.
			script.At(1e-6, func() {
				res := k.Command(
					DefaultDriverNum, CmdStartComparing, 1, bob.PID())
				Expect(res.Code()).To(Equal(kernel.ErrBusy))
			})

			// Alice is gone by now, so Bob gets his turn.
			script.At(5e-6, func() {
				res := k.Command(
					DefaultDriverNum, CmdComparison, 1, bob.PID())
				Expect(res.IsSuccess()).To(BeTrue())
				Expect(res.ReturnValue()).To(Equal(uint32(0)))
			})

			Expect(engine.Run()).To(Succeed())
			Expect(aliceEvents).To(Equal([][3]uint32{{0, 0, 0}}))
		})
	})
})

var _ = Describe("Builder", func() {
	var (
		mockCtrl *gomock.Controller
		k        *kernel.Kernel
		hw       *MockComparator
		channels []acmp.Channel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		k = kernel.MakeBuilder().
			WithEngine(sim.NewSerialEngine()).
			Build("Kernel")
		hw = NewMockComparator(mockCtrl)
		channels = []acmp.Channel{&stubChannel{name: "Channel[0]"}}
	})

	It("should require a kernel", func() {
		Expect(func() {
			MakeBuilder().
				WithHardware(hw).
				WithChannels(channels).
				Build("ACMPDriver")
		}).To(Panic())
	})

	It("should require the hardware", func() {
		Expect(func() {
			MakeBuilder().
				WithKernel(k).
				WithChannels(channels).
				Build("ACMPDriver")
		}).To(Panic())
	})

	It("should require at least one channel", func() {
		Expect(func() {
			MakeBuilder().
				WithKernel(k).
				WithHardware(hw).
				Build("ACMPDriver")
		}).To(Panic())
	})

	It("should register at a custom driver number", func() {
		hw.EXPECT().SetClient(gomock.Any())

		MakeBuilder().
			WithKernel(k).
			WithHardware(hw).
			WithChannels(channels).
			WithDriverNum(kernel.DriverNum(0x9)).
			Build("ACMPDriver")

		p := k.CreateProcess("ProcA")
		res := k.Command(kernel.DriverNum(0x9), CmdChannelCount, 0, p.PID())
		Expect(res.ReturnValue()).To(Equal(uint32(1)))
	})
})
