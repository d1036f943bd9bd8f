package tracing

import (
	"sync"
)

// StepCountTracer counts how often each step name is recorded, and how many
// distinct tasks recorded each step name at least once.
type StepCountTracer struct {
	filter TaskFilter

	lock          sync.Mutex
	inflightSteps map[string]map[string]bool
	stepNames     []string
	stepCount     map[string]uint64
	taskCount     map[string]uint64
}

// NewStepCountTracer creates a StepCountTracer that considers the tasks
// accepted by filter.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	return &StepCountTracer{
		filter:        filter,
		inflightSteps: make(map[string]map[string]bool),
		stepCount:     make(map[string]uint64),
		taskCount:     make(map[string]uint64),
	}
}

// GetStepNames returns the step names seen so far, in first-seen order.
func (t *StepCountTracer) GetStepNames() []string {
	return t.stepNames
}

// GetStepCount returns how many times the named step was recorded.
func (t *StepCountTracer) GetStepCount(stepName string) uint64 {
	return t.stepCount[stepName]
}

// GetTaskCount returns how many tasks recorded the named step at least once.
func (t *StepCountTracer) GetTaskCount(stepName string) uint64 {
	return t.taskCount[stepName]
}

// StartTask begins tracking the steps of a task.
func (t *StepCountTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.inflightSteps[task.ID] = make(map[string]bool)
}

// StepTask counts one step.
func (t *StepCountTracer) StepTask(task Task) {
	step := task.Steps[0]

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, seen := t.stepCount[step.What]; !seen {
		t.stepNames = append(t.stepNames, step.What)
	}
	t.stepCount[step.What]++

	recorded, ok := t.inflightSteps[task.ID]
	if !ok {
		return
	}

	if !recorded[step.What] {
		recorded[step.What] = true
		t.taskCount[step.What]++
	}
}

// EndTask stops tracking the task.
func (t *StepCountTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	delete(t.inflightSteps, task.ID)
}
