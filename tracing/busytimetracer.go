package tracing

import (
	"sort"

	"github.com/esyslab/tsukuba/sim"
)

type busyInterval struct {
	start, end sim.VTimeInSec
	completed  bool
}

// BusyTimeTracer measures the time a domain spends with at least one task of
// interest in flight. Overlapping tasks count once, so the result is the
// union of the task intervals, not their sum.
type BusyTimeTracer struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter

	inflight  map[string]*busyInterval
	intervals []*busyInterval
	busyTime  sim.VTimeInSec
}

// NewBusyTimeTracer creates a BusyTimeTracer that considers the tasks
// accepted by filter. A nil filter accepts every task.
func NewBusyTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]*busyInterval),
	}
}

// BusyTime returns the accumulated busy time.
func (t *BusyTimeTracer) BusyTime() sim.VTimeInSec {
	return t.busyTime
}

// TerminateAllTasks force-completes every in-flight task at the given time.
// Call it at simulation end so unterminated tasks still count.
func (t *BusyTimeTracer) TerminateAllTasks(now sim.VTimeInSec) {
	for id, iv := range t.inflight {
		iv.end = now
		iv.completed = true
		delete(t.inflight, id)
	}

	t.collapse(now)
}

// StartTask records the start of a task.
func (t *BusyTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	iv := &busyInterval{start: task.StartTime}
	t.intervals = append(t.intervals, iv)
	t.inflight[task.ID] = iv
}

// StepTask does nothing.
func (t *BusyTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of a task and folds fully-settled intervals into
// the busy time.
func (t *BusyTimeTracer) EndTask(task Task) {
	end := t.timeTeller.CurrentTime()

	iv, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	iv.end = end
	iv.completed = true
	delete(t.inflight, task.ID)

	t.collapse(end)
}

// collapse folds completed intervals that end at or before now into the busy
// time. It waits while an incomplete interval is still open before now,
// because that interval may yet merge with the completed ones.
func (t *BusyTimeTracer) collapse(now sim.VTimeInSec) {
	for _, iv := range t.intervals {
		if !iv.completed && iv.start < now {
			return
		}
	}

	settled := make([]*busyInterval, 0, len(t.intervals))
	remaining := t.intervals[:0]
	for _, iv := range t.intervals {
		if iv.completed && iv.end <= now {
			settled = append(settled, iv)
		} else {
			remaining = append(remaining, iv)
		}
	}
	t.intervals = remaining

	t.busyTime += unionLength(settled)
}

// unionLength merges overlapping intervals and returns the total covered
// time.
func unionLength(intervals []*busyInterval) sim.VTimeInSec {
	if len(intervals) == 0 {
		return 0
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	total := sim.VTimeInSec(0)
	curStart := intervals[0].start
	curEnd := intervals[0].end

	for _, iv := range intervals[1:] {
		if iv.start > curEnd {
			total += curEnd - curStart
			curStart = iv.start
			curEnd = iv.end
			continue
		}

		if iv.end > curEnd {
			curEnd = iv.end
		}
	}

	return total + (curEnd - curStart)
}
