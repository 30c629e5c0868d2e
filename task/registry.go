package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/neul-labs/fastworker-go/internal/logging"
)

// Func is a synchronous task callable: given a context and the Task's
// positional/keyword arguments, it returns a result or an error.
type Func func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// AsyncFunc is an asynchronous task callable, a tagged variant alongside
// Func rather than a uniform promotion of every task onto a thread pool:
// it returns a channel the execution engine awaits exactly once.
type AsyncFunc func(ctx context.Context, args []any, kwargs map[string]any) <-chan AsyncResult

// AsyncResult is the value delivered on an AsyncFunc's channel.
type AsyncResult struct {
	Value any
	Err   error
}

// entry holds exactly one of Sync or Async, never both.
type entry struct {
	name  string
	sync  Func
	async AsyncFunc
}

// Registry is a process-wide (or per-instance, via dependency injection)
// mapping from task name to callable. Registration is last-wins: an
// overwrite logs a warning instead of erroring, so re-registering a name
// during development or a hot-reload never panics a running process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  logging.Logger
}

// NewRegistry builds an empty Registry. A nil logger disables the
// overwrite warning.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Registry{entries: make(map[string]*entry), logger: logger}
}

// RegisterFunc registers a synchronous callable under name. Last
// registration wins; an overwrite of an existing name is logged as a
// warning, never rejected.
func (r *Registry) RegisterFunc(name string, fn Func) {
	r.register(&entry{name: name, sync: fn})
}

// RegisterAsyncFunc registers an asynchronous callable under name.
func (r *Registry) RegisterAsyncFunc(name string, fn AsyncFunc) {
	r.register(&entry{name: name, async: fn})
}

func (r *Registry) register(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.name]; exists {
		r.logger.Warn("task_registry_overwrite", "task_name", e.name)
	}
	r.entries[e.name] = e
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// List returns every registered task name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// ErrNotFound is returned (wrapped with the task name) when Invoke is
// called for an unregistered name.
var ErrNotFound = fmt.Errorf("task not found")

// Invoke dispatches to the registered callable by shape: if it is
// asynchronous, the result is awaited from its channel (or ctx
// cancellation); otherwise it is invoked inline.
func (r *Registry) Invoke(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("Task %s not found: %w", name, ErrNotFound)
	}
	if e.async != nil {
		select {
		case res := <-e.async(ctx, args, kwargs):
			return res.Value, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.sync(ctx, args, kwargs)
}
