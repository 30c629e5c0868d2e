package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tk := New("echo", nil, nil, PriorityNormal)
		assert.False(t, seen[tk.ID], "task ID collided")
		seen[tk.ID] = true
	}
}

func TestNew_DefaultsInvalidPriorityToNormal(t *testing.T) {
	tk := New("echo", nil, nil, Priority("urgent"))
	assert.Equal(t, PriorityNormal, tk.Priority)
}

func TestNew_NilArgsAndKwargsBecomeEmpty(t *testing.T) {
	tk := New("echo", nil, nil, PriorityHigh)
	assert.NotNil(t, tk.Args)
	assert.NotNil(t, tk.Kwargs)
	assert.Empty(t, tk.Args)
	assert.Empty(t, tk.Kwargs)
}

func TestNew_StartsPending(t *testing.T) {
	tk := New("echo", nil, nil, PriorityLow)
	assert.Equal(t, StatusPending, tk.Status)
	assert.Nil(t, tk.StartedAt)
	assert.Nil(t, tk.CompletedAt)
}

func TestPriority_Offset(t *testing.T) {
	assert.Equal(t, 0, PriorityCritical.Offset())
	assert.Equal(t, 1, PriorityHigh.Offset())
	assert.Equal(t, 2, PriorityNormal.Offset())
	assert.Equal(t, 3, PriorityLow.Offset())
	assert.Equal(t, 2, Priority("bogus").Offset())
}

func TestPriority_Valid(t *testing.T) {
	assert.True(t, PriorityCritical.Valid())
	assert.False(t, Priority("bogus").Valid())
}

func TestFailure_SetsCompletedAt(t *testing.T) {
	r := Failure("abc", "boom")
	assert.Equal(t, StatusFailure, r.Status)
	assert.Equal(t, "boom", r.Error)
	assert.NotNil(t, r.CompletedAt)
}

func TestPending_IsPendingWithNoTimestamps(t *testing.T) {
	r := Pending("abc")
	assert.Equal(t, StatusPending, r.Status)
	assert.Nil(t, r.StartedAt)
	assert.Nil(t, r.CompletedAt)
}
