// Package client implements task submission with built-in service
// discovery: it dials the discovery Bus to learn control-plane
// addresses, submits tasks to the known worker with the least ID with
// retry/backoff, and supports both blocking (SubmitTask) and non-blocking
// (Delay/DelayWithCallback) submission plus result polling.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/neul-labs/fastworker-go/config"
	"github.com/neul-labs/fastworker-go/discovery"
	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/internal/safe"
	"github.com/neul-labs/fastworker-go/metrics"
	"github.com/neul-labs/fastworker-go/serializer"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

// worker is one discovered control-plane endpoint.
type worker struct {
	id      string
	address string
}

// Client submits tasks over the wire, discovering control-plane
// addresses via the discovery Bus rather than requiring a fixed address.
type Client struct {
	cfg    *config.Config
	logger logging.Logger
	format serializer.Format

	discoveryBus *transport.Bus

	mu      sync.Mutex
	workers []worker
	results map[string]*task.Result
	pending []*task.Task

	running chan struct{}
}

// New builds a Client. Call Start to begin discovery.
func New(cfg *config.Config, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Client{
		cfg:     cfg,
		logger:  logger,
		format:  serializer.Format(cfg.SerializationFormat),
		results: make(map[string]*task.Result),
		running: make(chan struct{}),
	}
}

// Start dials the discovery bus and launches the background worker
// listener and pending-task drainer.
func (c *Client) Start() error {
	bus, err := transport.DialBus(c.cfg.DiscoveryAddress)
	if err != nil {
		return fmt.Errorf("client: dial discovery bus: %w", err)
	}
	c.discoveryBus = bus

	safe.Go(c.logger, "listen_for_workers", c.listenForWorkers, nil)
	safe.Go(c.logger, "process_pending_tasks", c.processPendingTasks, nil)

	c.logger.Info("client_started", "discovery_address", c.cfg.DiscoveryAddress)
	return nil
}

// Stop closes the discovery bus and halts background activity.
func (c *Client) Stop() error {
	close(c.running)
	if c.discoveryBus != nil {
		return c.discoveryBus.Close()
	}
	return nil
}

func (c *Client) listenForWorkers() {
	for {
		frame, err := c.discoveryBus.Recv()
		if err != nil {
			select {
			case <-c.running:
				return
			default:
				c.logger.Error("discovery_recv_failed", "error", err)
				return
			}
		}
		ann, ok := discovery.Parse(string(frame))
		if !ok {
			continue
		}
		c.addWorker(ann.WorkerID, ann.Address)
	}
}

func (c *Client) addWorker(id, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.workers {
		if w.id == id {
			return
		}
	}
	c.workers = append(c.workers, worker{id: id, address: address})
	c.logger.Info("worker_discovered", "worker_id", id, "address", address)
}

// firstWorker picks the lexicographically least worker ID among known
// workers, making the "arbitrary" choice of which control plane to use
// deterministic (see DESIGN.md Open Question resolutions).
func (c *Client) firstWorker() (worker, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.workers) == 0 {
		return worker{}, false
	}
	best := c.workers[0]
	for _, w := range c.workers[1:] {
		if w.id < best.id {
			best = w
		}
	}
	return best, true
}

func (c *Client) processPendingTasks() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.running:
			return
		case <-ticker.C:
			c.mu.Lock()
			if len(c.workers) == 0 || len(c.pending) == 0 {
				c.mu.Unlock()
				continue
			}
			t := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			safe.Go(c.logger, "submit_pending_task", func() {
				c.submitInternal(t)
			}, nil)
		}
	}
}

// SubmitTask creates and submits a task, blocking until a result (or
// final failure) is available.
func (c *Client) SubmitTask(name string, args []any, kwargs map[string]any, priority task.Priority) *task.Result {
	t := task.New(name, args, kwargs, priority)
	return c.submitInternal(t)
}

// Delay submits a task in the background and returns its ID immediately.
func (c *Client) Delay(name string, args []any, kwargs map[string]any, priority task.Priority) string {
	t := task.New(name, args, kwargs, priority)
	c.storeResult(task.Pending(t.ID))
	metrics.RecordSubmitted(string(t.Priority))
	safe.Go(c.logger, "submit_task_async", func() {
		c.submitInternal(t)
	}, nil)
	return t.ID
}

// DelayWithCallback submits a task carrying a completion callback in the
// background and returns its ID immediately.
func (c *Client) DelayWithCallback(name string, args []any, kwargs map[string]any, priority task.Priority, callbackAddress string, callbackData map[string]any) string {
	t := task.New(name, args, kwargs, priority)
	t.Callback = &task.CallbackInfo{Address: callbackAddress, Data: callbackData}
	c.storeResult(task.Pending(t.ID))
	safe.Go(c.logger, "submit_task_with_callback", func() {
		c.submitInternal(t)
	}, nil)
	return t.ID
}

// GetResult returns the last known Result for taskID, if any has been
// recorded locally (from a prior SubmitTask/Delay call on this Client).
func (c *Client) GetResult(taskID string) (*task.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[taskID]
	return r, ok
}

func (c *Client) storeResult(r *task.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.TaskID] = r
}

// submitInternal queues the task if no worker is known yet, otherwise
// dials the worker's priority endpoint with exponential-backoff retry.
func (c *Client) submitInternal(t *task.Task) *task.Result {
	w, ok := c.firstWorker()
	if !ok {
		c.logger.Debug("no_workers_available_queuing", "task_id", t.ID)
		c.mu.Lock()
		c.pending = append(c.pending, t)
		c.mu.Unlock()
		result := task.Pending(t.ID)
		c.storeResult(result)
		return result
	}

	addr, err := priorityAddress(w.address, t.Priority)
	if err != nil {
		result := task.Failure(t.ID, err.Error())
		c.storeResult(result)
		return result
	}

	var result *task.Result
	attempt := 0
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	policy := backoff.WithMaxRetries(b, uint64(c.cfg.Retries))
	err = backoff.Retry(func() error {
		attempt++
		r, attemptErr := c.attemptSubmit(addr, t)
		if attemptErr != nil {
			c.logger.Warn("task_submission_attempt_failed", "task_id", t.ID, "attempt", attempt, "error", attemptErr)
			return attemptErr
		}
		result = r
		return nil
	}, policy)

	if err != nil {
		c.logger.Error("task_submission_failed_after_retries", "task_id", t.ID, "retries", c.cfg.Retries)
		result = task.Failure(t.ID, fmt.Sprintf("task submission failed after %d retries: %v", c.cfg.Retries, err))
	}

	c.storeResult(result)
	metrics.RecordCompleted(string(t.Priority), string(result.Status), t.Name, 0)
	return result
}

func (c *Client) attemptSubmit(addr string, t *task.Task) (*task.Result, error) {
	conn, err := transport.DialReqRep(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	data, err := serializer.Serialize(c.logger, c.format, t)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	if err := conn.Send(data); err != nil {
		return nil, fmt.Errorf("send task: %w", err)
	}

	timeout := time.Duration(c.cfg.SubmissionTimeoutSecs) * time.Second
	replyData, err := conn.RecvTimeout(timeout)
	if err != nil {
		return nil, fmt.Errorf("recv result: %w", err)
	}

	var result task.Result
	if err := serializer.Deserialize(c.logger, c.format, replyData, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// QueryResult asks the known control plane with the lexicographically
// least worker ID (see firstWorker) for taskID's
// cached Result, via its result-query endpoint (base_port+4). Returns
// false if no worker is known, the query fails, or the task isn't cached.
func (c *Client) QueryResult(ctx context.Context, taskID string) (*task.Result, bool) {
	w, ok := c.firstWorker()
	if !ok {
		c.logger.Warn("no_workers_discovered_cannot_query")
		return nil, false
	}
	host, port, scheme, err := transport.ParseAddress(w.address)
	if err != nil {
		c.logger.Error("worker_address_invalid", "error", err)
		return nil, false
	}
	addr := transport.FormatAddress(scheme, host, port+4)

	conn, err := transport.DialReqRep(addr)
	if err != nil {
		c.logger.Error("result_query_dial_failed", "error", err)
		return nil, false
	}
	defer conn.Close()

	query := struct {
		TaskID string `json:"task_id"`
	}{TaskID: taskID}
	data, err := serializer.Serialize(c.logger, c.format, query)
	if err != nil {
		return nil, false
	}
	if err := conn.Send(data); err != nil {
		c.logger.Error("result_query_send_failed", "error", err)
		return nil, false
	}

	deadline := time.Duration(c.cfg.SubmissionTimeoutSecs) * time.Second
	replyData, err := conn.RecvTimeout(deadline)
	if err != nil {
		c.logger.Error("result_query_recv_failed", "error", err)
		return nil, false
	}

	var resp struct {
		Found  bool         `json:"found"`
		Result *task.Result `json:"result,omitempty"`
		Error  string       `json:"error,omitempty"`
	}
	if err := serializer.Deserialize(c.logger, c.format, replyData, &resp); err != nil {
		c.logger.Error("result_query_decode_failed", "error", err)
		return nil, false
	}
	if !resp.Found {
		c.logger.Debug("result_not_found", "task_id", taskID, "error", resp.Error)
		return nil, false
	}
	return resp.Result, true
}

func priorityAddress(base string, p task.Priority) (string, error) {
	host, port, scheme, err := transport.ParseAddress(base)
	if err != nil {
		return "", fmt.Errorf("client: worker address %q: %w", base, err)
	}
	return transport.FormatAddress(scheme, host, port+p.Offset()), nil
}
