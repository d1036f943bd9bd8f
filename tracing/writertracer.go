package tracing

import (
	"sync"

	"github.com/esyslab/tsukuba/sim"
	"github.com/tebeka/atexit"
)

// A TraceWriter can persist completed tasks to external storage.
type TraceWriter interface {
	// Init prepares the storage. It must be called before the first Write.
	Init()

	// Write persists one completed task.
	Write(task Task)

	// Flush writes all the buffered tasks out.
	Flush()
}

// WriterTracer is a tracer that streams completed tasks into a TraceWriter.
type WriterTracer struct {
	mu         sync.Mutex
	timeTeller sim.TimeTeller
	writer     TraceWriter

	startTime, endTime sim.VTimeInSec

	tracingTasks map[string]Task
}

// NewWriterTracer creates a WriterTracer and initializes the writer.
func NewWriterTracer(
	timeTeller sim.TimeTeller,
	writer TraceWriter,
) *WriterTracer {
	writer.Init()

	t := &WriterTracer{
		timeTeller:   timeTeller,
		writer:       writer,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() { t.writer.Flush() })

	return t
}

// SetTimeRange sets the time range of the tracer. Only tasks overlapping the
// range are recorded.
func (t *WriterTracer) SetTimeRange(startTime, endTime sim.VTimeInSec) {
	t.startTime = startTime
	t.endTime = endTime
}

// StartTask records the start of a task.
func (t *WriterTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask does nothing.
func (t *WriterTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask writes the completed task into the writer.
func (t *WriterTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task.EndTime = t.timeTeller.CurrentTime()

	if t.startTime > 0 && task.EndTime < t.startTime {
		delete(t.tracingTasks, task.ID)
		return
	}

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	originalTask.EndTime = task.EndTime
	t.writer.Write(originalTask)

	delete(t.tracingTasks, task.ID)
}
