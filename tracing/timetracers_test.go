package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/esyslab/tsukuba/sim"
)

var _ = Describe("TotalTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		tracer     *TotalTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		tracer = NewTotalTimeTracer(timeTeller,
			func(t Task) bool { return t.Kind == "syscall" })
	})

	It("should sum the time of completed tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1.0))
		tracer.StartTask(Task{ID: "1", Kind: "syscall"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(3.0))
		tracer.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(4.0))
		tracer.StartTask(Task{ID: "2", Kind: "syscall"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(5.0))
		tracer.EndTask(Task{ID: "2"})

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(3.0)))
	})

	It("should ignore filtered-out tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1.0))
		tracer.StartTask(Task{ID: "1", Kind: "upcall"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(3.0))
		tracer.EndTask(Task{ID: "1"})

		Expect(tracer.TotalTime()).To(Equal(sim.VTimeInSec(0.0)))
	})
})

var _ = Describe("AverageTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		tracer     *AverageTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		tracer = NewAverageTimeTracer(timeTeller,
			func(t Task) bool { return true })
	})

	It("should average the time of completed tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1.0))
		tracer.StartTask(Task{ID: "1", Kind: "syscall"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2.0))
		tracer.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2.0))
		tracer.StartTask(Task{ID: "2", Kind: "syscall"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(5.0))
		tracer.EndTask(Task{ID: "2"})

		Expect(tracer.AverageTime()).To(Equal(sim.VTimeInSec(2.0)))
		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
	})
})

var _ = Describe("BusyTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		tracer     *BusyTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		tracer = NewBusyTimeTracer(timeTeller, nil)
	})

	It("should only count overlapped time once", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1.0))
		tracer.StartTask(Task{ID: "1", Kind: "sample"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(2.0))
		tracer.StartTask(Task{ID: "2", Kind: "sample"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(3.0))
		tracer.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(4.0))
		tracer.EndTask(Task{ID: "2"})

		Expect(tracer.BusyTime()).To(Equal(sim.VTimeInSec(3.0)))
	})

	It("should terminate incomplete tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(sim.VTimeInSec(1.0))
		tracer.StartTask(Task{ID: "1", Kind: "sample"})

		tracer.TerminateAllTasks(5.0)

		Expect(tracer.BusyTime()).To(Equal(sim.VTimeInSec(4.0)))
	})
})
