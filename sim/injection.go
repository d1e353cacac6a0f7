package sim

import "container/heap"

// injection is an event the host asked to deliver to a named model.
type injection struct {
	target string
	event  Event
	seqID  uint64
}

// InjectionQueue is a min-heap of pending host injections.
// Ordering: event time → sequence number (FIFO among equal times).
type InjectionQueue struct {
	items []injection
	next  uint64
}

// NewInjectionQueue creates an empty queue.
func NewInjectionQueue() *InjectionQueue {
	q := &InjectionQueue{items: make([]injection, 0)}
	heap.Init(q)
	return q
}

// Len implements heap.Interface
func (q *InjectionQueue) Len() int { return len(q.items) }

// Less implements heap.Interface with deterministic ordering
func (q *InjectionQueue) Less(i, j int) bool {
	ti, tj := q.items[i].event.Time(), q.items[j].event.Time()
	if ti != tj {
		return ti < tj
	}
	return q.items[i].seqID < q.items[j].seqID
}

// Swap implements heap.Interface
func (q *InjectionQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

// Push implements heap.Interface
func (q *InjectionQueue) Push(x any) { q.items = append(q.items, x.(injection)) }

// Pop implements heap.Interface
func (q *InjectionQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[0 : n-1]
	return item
}

// Schedule adds an injection for target.
func (q *InjectionQueue) Schedule(target string, ev Event) {
	q.next++
	heap.Push(q, injection{target: target, event: ev, seqID: q.next})
}

// PeekTime returns the time of the earliest injection, or Infinity.
func (q *InjectionQueue) PeekTime() Time {
	if q.Len() == 0 {
		return Infinity
	}
	return q.items[0].event.Time()
}

func (q *InjectionQueue) popNext() (injection, bool) {
	if q.Len() == 0 {
		return injection{}, false
	}
	return heap.Pop(q).(injection), true
}
