// Package engine implements the shared task execution path used by both
// the subworker and the control plane's local-execution fallback, with
// panic-safe invocation and completion-callback delivery.
package engine

import (
	"context"
	"time"

	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/internal/safe"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

// Engine executes registered tasks and delivers completion callbacks.
type Engine struct {
	registry *task.Registry
	logger   logging.Logger
}

// New builds an Engine over registry.
func New(registry *task.Registry, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Engine{registry: registry, logger: logger}
}

// Execute runs t's registered task function with panic recovery, stamping
// started/completed timestamps and building the resulting Result. It
// never returns an error itself: execution failures are carried inside
// the returned Result.
func (e *Engine) Execute(ctx context.Context, t *task.Task) *task.Result {
	started := time.Now().UTC()

	value, err := safe.ExecuteWithResult(e.logger, "task:"+t.Name, func() (any, error) {
		return e.registry.Invoke(ctx, t.Name, t.Args, t.Kwargs)
	})

	completed := time.Now().UTC()
	result := &task.Result{
		TaskID:      t.ID,
		StartedAt:   &started,
		CompletedAt: &completed,
		Callback:    t.Callback,
	}
	if err != nil {
		result.Status = task.StatusFailure
		result.Error = err.Error()
		e.logger.Error("task_execution_failed", "task_id", t.ID, "task_name", t.Name, "error", err)
	} else {
		result.Status = task.StatusSuccess
		result.Result = value
	}
	return result
}

// SendCallback delivers a flat CallbackPayload to the Pair address named
// in the task's CallbackInfo, if any. The payload carries the caller's
// callback data but never the callback address itself. A missing or
// unreachable callback address is logged, never fatal to the caller.
func (e *Engine) SendCallback(result *task.Result, encode func(*task.CallbackPayload) ([]byte, error)) {
	if result.Callback == nil || result.Callback.Address == "" {
		return
	}
	pair, err := transport.DialPair(result.Callback.Address)
	if err != nil {
		e.logger.Warn("callback_dial_failed", "task_id", result.TaskID, "address", result.Callback.Address, "error", err)
		return
	}
	defer pair.Close()

	payload := &task.CallbackPayload{
		TaskID:       result.TaskID,
		Status:       result.Status,
		Result:       result.Result,
		Error:        result.Error,
		StartedAt:    result.StartedAt,
		CompletedAt:  result.CompletedAt,
		CallbackData: result.Callback.Data,
	}
	data, err := encode(payload)
	if err != nil {
		e.logger.Error("callback_encode_failed", "task_id", result.TaskID, "error", err)
		return
	}
	if err := pair.Send(data); err != nil {
		e.logger.Warn("callback_send_failed", "task_id", result.TaskID, "address", result.Callback.Address, "error", err)
	}
}
