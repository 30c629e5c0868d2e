package controlplane

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neul-labs/fastworker-go/task"
)

func TestResultCache_StoreAndGet(t *testing.T) {
	c := NewResultCache(10, time.Minute, nil)
	result := &task.Result{TaskID: "abc", Status: task.StatusSuccess, Result: 42}
	c.Store(result)

	got, ok := c.Get("abc")
	assert.True(t, ok)
	assert.Equal(t, result, got)
}

func TestResultCache_MissReturnsFalse(t *testing.T) {
	c := NewResultCache(10, time.Minute, nil)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestResultCache_BoundedBySize(t *testing.T) {
	c := NewResultCache(2, time.Minute, nil)
	c.Store(&task.Result{TaskID: "a", Status: task.StatusSuccess})
	c.Store(&task.Result{TaskID: "b", Status: task.StatusSuccess})
	c.Store(&task.Result{TaskID: "c", Status: task.StatusSuccess})

	assert.Equal(t, 2, c.Len())
	// "a" was the least recently used entry and should have been evicted.
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestResultCache_GetTouchesEntrySavingItFromEviction(t *testing.T) {
	c := NewResultCache(3, time.Minute, nil)
	c.Store(&task.Result{TaskID: "0", Status: task.StatusSuccess})
	c.Store(&task.Result{TaskID: "1", Status: task.StatusSuccess})
	c.Store(&task.Result{TaskID: "2", Status: task.StatusSuccess})

	// Touch "0" so it is no longer the least recently used entry.
	_, ok := c.Get("0")
	assert.True(t, ok)

	c.Store(&task.Result{TaskID: "3", Status: task.StatusSuccess})

	// "1" is now the least recently used entry and should have been evicted.
	_, ok = c.Get("1")
	assert.False(t, ok)

	for _, id := range []string{"0", "2", "3"} {
		_, ok := c.Get(id)
		assert.True(t, ok, "expected %s to survive eviction", id)
	}
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	c := NewResultCache(10, 20*time.Millisecond, nil)
	c.Store(&task.Result{TaskID: "abc", Status: task.StatusSuccess})

	_, ok := c.Get("abc")
	assert.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("abc")
	assert.False(t, ok)
}
