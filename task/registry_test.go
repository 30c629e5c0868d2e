package task

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *testLogger) Debug(msg string, kv ...any) { l.record(msg) }
func (l *testLogger) Info(msg string, kv ...any)  { l.record(msg) }
func (l *testLogger) Warn(msg string, kv ...any)  { l.record(msg) }
func (l *testLogger) Error(msg string, kv ...any) { l.record(msg) }

func (l *testLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *testLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, log := range l.logs {
		if strings.Contains(log, substr) {
			return true
		}
	}
	return false
}

func TestRegistry_RegisterAndInvokeSync(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFunc("echo", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return args[0], nil
	})

	result, err := r.Invoke(context.Background(), "echo", []any{"hi"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestRegistry_RegisterAndInvokeAsync(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterAsyncFunc("delayed", func(ctx context.Context, args []any, kwargs map[string]any) <-chan AsyncResult {
		ch := make(chan AsyncResult, 1)
		ch <- AsyncResult{Value: 42}
		return ch
	})

	result, err := r.Invoke(context.Background(), "delayed", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRegistry_InvokeUnknownTask(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Invoke(context.Background(), "missing", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_OverwriteLogsWarning(t *testing.T) {
	logger := &testLogger{}
	r := NewRegistry(logger)
	r.RegisterFunc("echo", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return 1, nil
	})
	r.RegisterFunc("echo", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return 2, nil
	})

	assert.True(t, logger.contains("task_registry_overwrite"))

	result, err := r.Invoke(context.Background(), "echo", nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, result)
}

func TestRegistry_HasAndList(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.Has("echo"))
	r.RegisterFunc("echo", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, nil
	})
	assert.True(t, r.Has("echo"))
	assert.Equal(t, []string{"echo"}, r.List())
}

func TestRegistry_AsyncRespectsContextCancellation(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterAsyncFunc("never", func(ctx context.Context, args []any, kwargs map[string]any) <-chan AsyncResult {
		return make(chan AsyncResult)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Invoke(ctx, "never", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
