package tracing

import (
	"sync"

	"github.com/esyslab/tsukuba/sim"
)

// AverageTimeTracer reports the mean duration of completed tasks of
// interest, along with how many completed.
type AverageTimeTracer struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter

	lock      sync.Mutex
	startTime map[string]sim.VTimeInSec
	totalTime sim.VTimeInSec
	taskCount uint64
}

// NewAverageTimeTracer creates an AverageTimeTracer that considers the tasks
// accepted by filter.
func NewAverageTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		startTime:  make(map[string]sim.VTimeInSec),
	}
}

// AverageTime returns the mean duration of the completed tasks, or zero if
// none completed.
func (t *AverageTimeTracer) AverageTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.taskCount == 0 {
		return 0
	}

	return t.totalTime / sim.VTimeInSec(t.taskCount)
}

// TotalCount returns the number of completed tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// StartTask records the start time of a task.
func (t *AverageTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime[task.ID] = task.StartTime
}

// StepTask does nothing.
func (t *AverageTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask folds the task duration into the average.
func (t *AverageTimeTracer) EndTask(task Task) {
	end := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.startTime[task.ID]
	if !ok {
		return
	}

	t.totalTime += end - start
	t.taskCount++
	delete(t.startTime, task.ID)
}
