package tracing

import (
	"fmt"
	"sync"
)

// A TaskPrinter formats one task for human consumption.
type TaskPrinter interface {
	Print(task Task)
}

type defaultTaskPrinter struct{}

func (p *defaultTaskPrinter) Print(task Task) {
	fmt.Printf("%s-%s@%s\n", task.Kind, task.What, task.Location)
}

// BackTraceTracer keeps the tasks that have started but not ended, so that
// when something goes wrong the chain of parent tasks that led to a task can
// be printed.
type BackTraceTracer struct {
	printer      TaskPrinter
	lock         sync.Mutex
	tracingTasks map[string]Task
}

// NewBackTraceTracer creates a BackTraceTracer. A nil printer falls back to
// a plain kind-what-location format.
func NewBackTraceTracer(printer TaskPrinter) *BackTraceTracer {
	if printer == nil {
		printer = &defaultTaskPrinter{}
	}

	return &BackTraceTracer{
		printer:      printer,
		tracingTasks: make(map[string]Task),
	}
}

// StartTask remembers an in-flight task.
func (t *BackTraceTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.tracingTasks[task.ID] = task
}

// StepTask does nothing.
func (t *BackTraceTracer) StepTask(task Task) {
	// Do Nothing
}

// EndTask forgets a completed task.
func (t *BackTraceTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.tracingTasks, task.ID)
}

// DumpBackTrace prints the task and each of its in-flight ancestors, child
// first.
func (t *BackTraceTracer) DumpBackTrace(task Task) {
	for {
		t.printer.Print(task)

		if task.ParentID == "" {
			return
		}

		parent, ok := t.tracingTasks[task.ParentID]
		if !ok {
			return
		}

		task = parent
	}
}
