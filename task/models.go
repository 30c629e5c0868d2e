// Package task defines the core dispatch entities: Task, Result, and the
// priority/status enums they carry.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Priority is one of four dispatch priority levels. Priority names the
// endpoint a task is submitted/served on; it confers no scheduling
// preemption (see DESIGN.md Open Question resolutions).
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Offset returns the port offset for this priority relative to a base
// address: critical, high, normal, and low occupy base+0 through base+3.
func (p Priority) Offset() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2 // unknown priorities degrade to NORMAL's slot
	}
}

// Valid reports whether p is one of the four recognized priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Status is a Task's lifecycle state. It advances monotonically:
// Pending -> Started -> {Success, Failure}. No backward transition.
type Status string

const (
	StatusPending Status = "pending"
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// CallbackInfo is an optional completion-notification descriptor attached
// to a Task: a Pair-socket address to dial plus an opaque data payload
// echoed back verbatim in the callback message.
type CallbackInfo struct {
	Address string         `json:"address"`
	Data    map[string]any `json:"data,omitempty"`
}

// Task is a submitted unit of work. ID is generated once, at construction,
// and is immutable thereafter.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Args        []any          `json:"args"`
	Kwargs      map[string]any `json:"kwargs"`
	Priority    Priority       `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Status      Status         `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Callback    *CallbackInfo  `json:"callback,omitempty"`
}

// New constructs a Task with a fresh UUID identifier, Pending status, and
// created_at = now. Priority defaults to Normal if p is not one of the
// four recognized values.
func New(name string, args []any, kwargs map[string]any, p Priority) *Task {
	if !p.Valid() {
		p = PriorityNormal
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return &Task{
		ID:        uuid.NewString(),
		Name:      name,
		Args:      args,
		Kwargs:    kwargs,
		Priority:  p,
		CreatedAt: time.Now().UTC(),
		Status:    StatusPending,
	}
}

// Result is the reply carried back to the client and stored in the
// control-plane cache.
type Result struct {
	TaskID      string        `json:"task_id"`
	Status      Status        `json:"status"`
	Result      any           `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Callback    *CallbackInfo `json:"callback,omitempty"`
}

// CallbackPayload is the flat message delivered to a task's callback
// address: a Result with its Callback descriptor collapsed down to the
// caller-supplied data, omitting the address itself.
type CallbackPayload struct {
	TaskID       string         `json:"task_id"`
	Status       Status         `json:"status"`
	Result       any            `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CallbackData map[string]any `json:"callback_data,omitempty"`
}

// Pending builds the placeholder Result a client stores immediately upon
// non-blocking submission.
func Pending(taskID string) *Result {
	return &Result{TaskID: taskID, Status: StatusPending}
}

// Failure builds a FAILURE Result with the given error message, stamping
// completed_at = now.
func Failure(taskID, errMsg string) *Result {
	now := time.Now().UTC()
	return &Result{TaskID: taskID, Status: StatusFailure, Error: errMsg, CompletedAt: &now}
}
