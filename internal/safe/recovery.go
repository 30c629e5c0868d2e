// Package safe provides panic recovery wrappers used across the dispatch
// core so a panicking task function or background activity degrades to a
// logged failure instead of crashing the owning process.
package safe

import (
	"fmt"
	"runtime/debug"

	"github.com/neul-labs/fastworker-go/internal/logging"
)

// PanicError wraps a recovered panic value and the stack trace captured
// at the point of recovery, so callers can tell a recovered panic apart
// from an ordinary error fn returned on its own.
type PanicError struct {
	Operation string
	Value     any
	Stack     string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

// ExecuteWithResult runs fn with panic recovery, returning both the value
// and error fn would have produced, or a zero value and a *PanicError if
// fn panicked. This is the primary guard around task-function invocation
// in the execution engine: a panicking task becomes a FAILURE Result,
// never a crashed endpoint loop.
func ExecuteWithResult[T any](logger logging.Logger, operation string, fn func() (T, error)) (T, error) {
	var result T
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				if logger != nil {
					logger.Error("panic_recovered", "operation", operation, "panic", r, "stack", stack)
				}
				err = &PanicError{Operation: operation, Value: r, Stack: stack}
			}
		}()
		result, err = fn()
	}()
	return result, err
}

// Execute runs fn with panic recovery, converting a panic into a
// *PanicError. Implemented on top of ExecuteWithResult with a discarded
// result type.
func Execute(logger logging.Logger, operation string, fn func() error) error {
	_, err := ExecuteWithResult(logger, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Go spawns fn in a goroutine guarded by panic recovery. Every background
// activity in this module (sweepers, heartbeat loops, submission retries,
// the pending drainer) is started through Go instead of a bare `go` so one
// misbehaving activity cannot take the process down.
func Go(logger logging.Logger, operation string, fn func(), onPanic func(recovered any)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("goroutine_panic_recovered", "operation", operation, "panic", r, "stack", string(debug.Stack()))
				}
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
