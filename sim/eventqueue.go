package sim

import (
	"container/heap"
	"container/list"
	"sync"
)

// An EventQueue holds future events sorted by trigger time.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

// EventQueueImpl is a thread-safe, heap-backed EventQueue.
type EventQueueImpl struct {
	sync.Mutex
	events eventHeap
}

// NewEventQueue creates an empty heap-backed event queue.
func NewEventQueue() *EventQueueImpl {
	q := &EventQueueImpl{events: eventHeap{}}

	heap.Init(&q.events)

	return q
}

// Push inserts an event into the queue.
func (q *EventQueueImpl) Push(evt Event) {
	q.Lock()
	defer q.Unlock()

	heap.Push(&q.events, evt)
}

// Pop removes and returns the event with the earliest trigger time.
func (q *EventQueueImpl) Pop() Event {
	q.Lock()
	defer q.Unlock()

	return heap.Pop(&q.events).(Event)
}

// Len returns the number of events waiting in the queue.
func (q *EventQueueImpl) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}

// Peek returns the earliest event without removing it.
func (q *EventQueueImpl) Peek() Event {
	q.Lock()
	defer q.Unlock()

	return q.events[0]
}

type eventHeap []Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].Time() < h[j].Time()
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]

	return evt
}

// An InsertionQueue is an EventQueue kept sorted by insertion. It beats the
// heap-backed queue when most events are scheduled close to the queue tail.
type InsertionQueue struct {
	lock sync.RWMutex
	l    *list.List
}

// NewInsertionQueue creates an empty insertion-sorted event queue.
func NewInsertionQueue() *InsertionQueue {
	return &InsertionQueue{l: list.New()}
}

// Push inserts an event, keeping the queue sorted by trigger time.
func (q *InsertionQueue) Push(evt Event) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		if ele.Value.(Event).Time() > evt.Time() {
			q.l.InsertBefore(evt, ele)
			return
		}
	}

	q.l.PushBack(evt)
}

// Pop removes and returns the event with the earliest trigger time.
func (q *InsertionQueue) Pop() Event {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.l.Remove(q.l.Front()).(Event)
}

// Len returns the number of events waiting in the queue.
func (q *InsertionQueue) Len() int {
	q.lock.RLock()
	defer q.lock.RUnlock()

	return q.l.Len()
}

// Peek returns the earliest event without removing it.
func (q *InsertionQueue) Peek() Event {
	q.lock.RLock()
	defer q.lock.RUnlock()

	return q.l.Front().Value.(Event)
}
