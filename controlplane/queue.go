package controlplane

import (
	"container/list"
	"sync"

	"github.com/neul-labs/fastworker-go/task"
)

// PriorityQueue holds one FIFO deque per priority level, used to re-enqueue
// a task at the head of its lane when forwarding to a subworker fails.
// Nothing currently drains these lanes; a task pushed here is held for
// future redistribution while the current request is still served by
// falling back to local execution.
type PriorityQueue struct {
	mu    sync.Mutex
	lanes map[task.Priority]*list.List
}

// NewPriorityQueue builds an empty PriorityQueue with one lane per
// recognized priority.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{lanes: make(map[task.Priority]*list.List, 4)}
	for _, p := range [4]task.Priority{task.PriorityCritical, task.PriorityHigh, task.PriorityNormal, task.PriorityLow} {
		pq.lanes[p] = list.New()
	}
	return pq
}

// PushFront re-enqueues t at the head of its priority lane.
func (pq *PriorityQueue) PushFront(t *task.Task) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	lane, ok := pq.lanes[t.Priority]
	if !ok {
		lane = list.New()
		pq.lanes[t.Priority] = lane
	}
	lane.PushFront(t)
}

// PopFront removes and returns the task at the head of priority's lane,
// if any.
func (pq *PriorityQueue) PopFront(p task.Priority) (*task.Task, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	lane, ok := pq.lanes[p]
	if !ok {
		return nil, false
	}
	elem := lane.Front()
	if elem == nil {
		return nil, false
	}
	lane.Remove(elem)
	return elem.Value.(*task.Task), true
}

// Len reports how many tasks are queued in priority's lane.
func (pq *PriorityQueue) Len(p task.Priority) int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	lane, ok := pq.lanes[p]
	if !ok {
		return 0
	}
	return lane.Len()
}
