package tracing

import "github.com/esyslab/tsukuba/sim"

// A TaskStep is a named milestone within a task, such as an upcall moving
// from enqueued to delivered.
type TaskStep struct {
	Time sim.VTimeInSec `json:"time"`
	What string         `json:"what"`
}

// A Task is a unit of work with a start and an end time. Tasks of this
// simulator include syscalls served by a kernel, upcalls pending on a
// process, and sampling work performed by hardware.
type Task struct {
	ID         string         `json:"id"`
	ParentID   string         `json:"parent_id"`
	Kind       string         `json:"kind"`
	What       string         `json:"what"`
	Location   string         `json:"location"`
	StartTime  sim.VTimeInSec `json:"start_time"`
	EndTime    sim.VTimeInSec `json:"end_time"`
	Steps      []TaskStep     `json:"steps"`
	Detail     interface{}    `json:"-"`
	ParentTask *Task          `json:"-"`
}

// A TaskFilter selects the tasks a tracer is interested in. A task is
// considered when the filter returns true.
type TaskFilter func(t Task) bool
