package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/neul-labs/fastworker-go/metrics"
	"github.com/neul-labs/fastworker-go/serializer"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

// serveLoop runs one priority endpoint's accept loop: receive a task,
// decide local-vs-distributed execution, reply, forever.
func (cp *ControlPlane) serveLoop(ln *transport.ReqRepListener, priority task.Priority) {
	for {
		ex, err := ln.Accept()
		if err != nil {
			select {
			case <-cp.done:
				return
			default:
				cp.logger.Error("reqrep_accept_failed", "priority", priority, "error", err)
				continue
			}
		}
		go cp.handleExchange(ex, priority)
	}
}

func (cp *ControlPlane) handleExchange(ex *transport.Exchange, priority task.Priority) {
	defer ex.Close()

	data, err := ex.Recv()
	if err != nil {
		cp.logger.Error("task_recv_failed", "priority", priority, "error", err)
		return
	}

	var t task.Task
	if err := serializer.Deserialize(cp.logger, cp.format, data, &t); err != nil {
		cp.logger.Error("task_decode_failed", "priority", priority, "error", err)
		return
	}
	cp.logger.Info("task_received", "task_id", t.ID, "task_name", t.Name, "priority", priority)
	metrics.RecordSubmitted(string(priority))

	var result *task.Result
	if sw, ok := cp.registry.Select(); ok {
		result = cp.dispatchToSubworker(&t, sw)
	} else {
		result = cp.executeLocally(&t)
		metrics.RecordCompleted(string(t.Priority), string(result.Status), t.Name, durationSeconds(result))
	}

	cp.cache.Store(result)

	out, err := serializer.Serialize(cp.logger, cp.format, result)
	if err != nil {
		cp.logger.Error("result_encode_failed", "task_id", t.ID, "error", err)
		return
	}
	if err := ex.Send(out); err != nil {
		cp.logger.Error("result_send_failed", "task_id", t.ID, "error", err)
	}
}

// dispatchToSubworker forwards t to sw's priority-specific endpoint and
// waits for the result. Any failure along the way (bad address, dial,
// encode, send, or recv) re-enqueues t at the head of its priority lane
// for later redistribution and falls back to executing it locally for
// the current request; task functions are expected to be idempotent
// since this can race a subworker that actually received and is still
// running the same task.
func (cp *ControlPlane) dispatchToSubworker(t *task.Task, sw SubworkerInfo) *task.Result {
	addr, err := priorityAddress(sw.Address, t.Priority)
	if err != nil {
		cp.logger.Error("subworker_address_invalid", "subworker_id", sw.ID, "error", err)
		return cp.requeueAndExecuteLocally(t)
	}

	client, err := transport.DialReqRep(addr)
	if err != nil {
		cp.logger.Error("subworker_dial_failed", "subworker_id", sw.ID, "error", err)
		return cp.requeueAndExecuteLocally(t)
	}
	defer client.Close()

	cp.registry.IncrementLoad(sw.ID)
	metrics.SetSubworkerLoad(sw.ID, sw.Load+1)
	defer func() {
		cp.registry.DecrementLoad(sw.ID)
	}()

	data, err := serializer.Serialize(cp.logger, cp.format, t)
	if err != nil {
		cp.logger.Error("task_encode_failed", "task_id", t.ID, "error", err)
		return cp.requeueAndExecuteLocally(t)
	}
	if err := client.Send(data); err != nil {
		cp.logger.Warn("subworker_send_failed", "subworker_id", sw.ID, "error", err)
		return cp.requeueAndExecuteLocally(t)
	}

	replyData, err := client.RecvTimeout(subworkerReplyTimeout)
	if err != nil {
		cp.logger.Warn("subworker_recv_failed", "subworker_id", sw.ID, "task_id", t.ID, "error", err)
		return cp.requeueAndExecuteLocally(t)
	}

	var result task.Result
	if err := serializer.Deserialize(cp.logger, cp.format, replyData, &result); err != nil {
		cp.logger.Error("result_decode_failed", "task_id", t.ID, "error", err)
		return task.Failure(t.ID, fmt.Sprintf("invalid result from subworker: %v", err))
	}
	cp.logger.Info("task_completed_by_subworker", "task_id", t.ID, "subworker_id", sw.ID)
	return &result
}

// executeLocally runs t through the shared engine and delivers its
// completion callback, for tasks the control plane executes itself
// rather than forwarding to a subworker.
func (cp *ControlPlane) executeLocally(t *task.Task) *task.Result {
	result := cp.engine.Execute(context.Background(), t)
	cp.engine.SendCallback(result, func(p *task.CallbackPayload) ([]byte, error) {
		return serializer.Serialize(cp.logger, cp.format, p)
	})
	return result
}

// requeueAndExecuteLocally pushes t to the head of its priority lane for
// later redistribution and executes it locally for the current request.
func (cp *ControlPlane) requeueAndExecuteLocally(t *task.Task) *task.Result {
	cp.queue.PushFront(t)
	return cp.executeLocally(t)
}

const subworkerReplyTimeout = 30 * time.Second

// priorityAddress rewrites a subworker's base address to its endpoint for
// the given priority, by adding priority.Offset() to the port.
func priorityAddress(base string, p task.Priority) (string, error) {
	host, port, scheme, err := transport.ParseAddress(base)
	if err != nil {
		return "", fmt.Errorf("controlplane: subworker address %q: %w", base, err)
	}
	return transport.FormatAddress(scheme, host, port+p.Offset()), nil
}

func durationSeconds(r *task.Result) float64 {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt).Seconds()
}
