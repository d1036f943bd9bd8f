package tracing

import (
	"sync"

	"github.com/esyslab/tsukuba/sim"
)

// TotalTimeTracer sums the durations of completed tasks of interest.
// Overlapping tasks both contribute their full duration; use BusyTimeTracer
// to count overlap once.
type TotalTimeTracer struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter

	lock      sync.Mutex
	startTime map[string]sim.VTimeInSec
	totalTime sim.VTimeInSec
}

// NewTotalTimeTracer creates a TotalTimeTracer that considers the tasks
// accepted by filter.
func NewTotalTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	return &TotalTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		startTime:  make(map[string]sim.VTimeInSec),
	}
}

// TotalTime returns the summed duration of the completed tasks.
func (t *TotalTimeTracer) TotalTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// StartTask records the start time of a task.
func (t *TotalTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime[task.ID] = task.StartTime
}

// StepTask does nothing.
func (t *TotalTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask adds the task duration to the total.
func (t *TotalTimeTracer) EndTask(task Task) {
	end := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.startTime[task.ID]
	if !ok {
		return
	}

	t.totalTime += end - start
	delete(t.startTime, task.ID)
}
