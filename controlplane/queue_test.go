package controlplane

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neul-labs/fastworker-go/task"
)

func TestPriorityQueue_PushFrontThenPopFrontIsLIFO(t *testing.T) {
	q := NewPriorityQueue()
	first := task.New("a", nil, nil, task.PriorityHigh)
	second := task.New("b", nil, nil, task.PriorityHigh)

	q.PushFront(first)
	q.PushFront(second)

	assert.Equal(t, 2, q.Len(task.PriorityHigh))

	got, ok := q.PopFront(task.PriorityHigh)
	assert.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	got, ok = q.PopFront(task.PriorityHigh)
	assert.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	_, ok = q.PopFront(task.PriorityHigh)
	assert.False(t, ok)
}

func TestPriorityQueue_LanesAreIndependentByPriority(t *testing.T) {
	q := NewPriorityQueue()
	q.PushFront(task.New("a", nil, nil, task.PriorityCritical))

	assert.Equal(t, 1, q.Len(task.PriorityCritical))
	assert.Equal(t, 0, q.Len(task.PriorityLow))
}

func TestPriorityQueue_PopFrontEmptyReturnsFalse(t *testing.T) {
	q := NewPriorityQueue()
	_, ok := q.PopFront(task.PriorityNormal)
	assert.False(t, ok)
}
