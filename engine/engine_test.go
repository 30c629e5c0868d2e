package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

func TestExecute_Success(t *testing.T) {
	registry := task.NewRegistry(nil)
	registry.RegisterFunc("double", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return args[0].(int) * 2, nil
	})
	e := New(registry, logging.Noop())

	tk := task.New("double", []any{21}, nil, task.PriorityNormal)
	result := e.Execute(context.Background(), tk)

	assert.Equal(t, task.StatusSuccess, result.Status)
	assert.Equal(t, 42, result.Result)
	assert.Empty(t, result.Error)
	assert.NotNil(t, result.StartedAt)
	assert.NotNil(t, result.CompletedAt)
	assert.False(t, result.CompletedAt.Before(*result.StartedAt))
}

func TestExecute_TaskFunctionError(t *testing.T) {
	registry := task.NewRegistry(nil)
	registry.RegisterFunc("fail", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	e := New(registry, logging.Noop())

	tk := task.New("fail", nil, nil, task.PriorityNormal)
	result := e.Execute(context.Background(), tk)

	assert.Equal(t, task.StatusFailure, result.Status)
	assert.Contains(t, result.Error, "boom")
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	registry := task.NewRegistry(nil)
	registry.RegisterFunc("panics", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		panic("unexpected")
	})
	e := New(registry, logging.Noop())

	tk := task.New("panics", nil, nil, task.PriorityNormal)
	result := e.Execute(context.Background(), tk)

	assert.Equal(t, task.StatusFailure, result.Status)
	assert.Contains(t, result.Error, "unexpected")
}

func TestExecute_UnregisteredTaskBecomesFailure(t *testing.T) {
	registry := task.NewRegistry(nil)
	e := New(registry, logging.Noop())

	tk := task.New("missing", nil, nil, task.PriorityNormal)
	result := e.Execute(context.Background(), tk)

	assert.Equal(t, task.StatusFailure, result.Status)
	assert.Contains(t, result.Error, "not found")
}

func TestSendCallback_NoCallbackIsNoop(t *testing.T) {
	e := New(task.NewRegistry(nil), logging.Noop())
	result := &task.Result{TaskID: "abc", Status: task.StatusSuccess}
	e.SendCallback(result, func(p *task.CallbackPayload) ([]byte, error) { return nil, nil })
}

func TestSendCallback_DeliversToListeningPair(t *testing.T) {
	const addr = "tcp://127.0.0.1:18734"

	pairCh := make(chan *transport.Pair, 1)
	go func() {
		p, err := transport.ListenPair(addr)
		if err == nil {
			pairCh <- p
		}
	}()

	e := New(task.NewRegistry(nil), logging.Noop())
	result := &task.Result{
		TaskID: "abc",
		Status: task.StatusSuccess,
		Callback: &task.CallbackInfo{
			Address: addr,
			Data:    map[string]any{"order_id": "42"},
		},
	}

	var received *task.CallbackPayload
	go func() {
		// Give ListenPair a moment to bind before dialing.
		time.Sleep(20 * time.Millisecond)
		e.SendCallback(result, func(p *task.CallbackPayload) ([]byte, error) {
			received = p
			return []byte(p.TaskID), nil
		})
	}()

	var pair *transport.Pair
	select {
	case pair = <-pairCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback connection")
	}
	defer pair.Close()

	frame, err := pair.Recv()
	assert.NoError(t, err)
	assert.Equal(t, "abc", string(frame))
	assert.Equal(t, map[string]any{"order_id": "42"}, received.CallbackData)
}
