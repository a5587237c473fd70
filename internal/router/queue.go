package router

import "container/heap"

// task is one queued unit of dispatch work: priority-ordered, FIFO within a
// priority (lower priority number dispatches first; ties break by sequence).
type task struct {
	priority int
	seq      int64
	run      func()
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// priorityQueue is a small typed wrapper so callers never touch the raw
// container/heap interface.
type priorityQueue struct {
	h taskHeap
}

func newPriorityQueue() *priorityQueue {
	q := &priorityQueue{}
	heap.Init(&q.h)
	return q
}

func (q *priorityQueue) push(t *task) {
	heap.Push(&q.h, t)
}

func (q *priorityQueue) pop() (*task, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*task), true
}

func (q *priorityQueue) len() int { return q.h.Len() }
