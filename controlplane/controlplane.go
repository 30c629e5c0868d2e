// Package controlplane implements the dispatch hub: it accepts
// submissions on four priority Request/Reply endpoints, selects a
// subworker (or executes locally if none is available), answers result
// queries, and tracks subworker registration/heartbeat traffic.
package controlplane

import (
	"fmt"
	"time"

	"github.com/neul-labs/fastworker-go/config"
	"github.com/neul-labs/fastworker-go/discovery"
	"github.com/neul-labs/fastworker-go/engine"
	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/internal/safe"
	"github.com/neul-labs/fastworker-go/internal/shutdown"
	"github.com/neul-labs/fastworker-go/metrics"
	"github.com/neul-labs/fastworker-go/serializer"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

const staleSubworkerThreshold = 30 * time.Second

// ControlPlane is the composed dispatch hub.
type ControlPlane struct {
	cfg    *config.Config
	logger logging.Logger
	format serializer.Format

	registry *SubworkerRegistry
	cache    *ResultCache
	queue    *PriorityQueue
	engine   *engine.Engine

	listeners        [4]*transport.ReqRepListener
	resultQueryLn    *transport.ReqRepListener
	subworkerMgmtLn  *transport.ReqRepListener
	discoveryBus     *transport.Bus

	done chan struct{}
}

// New builds a ControlPlane. Call Start to begin serving.
func New(cfg *config.Config, registry *task.Registry, logger logging.Logger) *ControlPlane {
	if logger == nil {
		logger = logging.Noop()
	}
	return &ControlPlane{
		cfg:      cfg,
		logger:   logger,
		format:   serializer.Format(cfg.SerializationFormat),
		registry: NewSubworkerRegistry(),
		cache: NewResultCache(
			cfg.ResultCacheMaxSize,
			time.Duration(cfg.ResultCacheTTLSecs)*time.Second,
			logger,
		),
		queue:  NewPriorityQueue(),
		engine: engine.New(registry, logger),
		done:   make(chan struct{}),
	}
}

// Start opens every endpoint and launches the background activities:
// periodic discovery announcements, subworker registration handling,
// result-query handling, subworker health monitoring. It returns once
// every listener is bound; Serve loops run in background goroutines.
func (cp *ControlPlane) Start() error {
	host, basePort, scheme, err := transport.ParseAddress(cp.cfg.BaseAddress)
	if err != nil {
		return fmt.Errorf("controlplane: invalid base address: %w", err)
	}

	priorities := [4]task.Priority{task.PriorityCritical, task.PriorityHigh, task.PriorityNormal, task.PriorityLow}
	for i, p := range priorities {
		addr := transport.FormatAddress(scheme, host, basePort+p.Offset())
		ln, err := transport.ListenReqRep(addr)
		if err != nil {
			return fmt.Errorf("controlplane: listen %s: %w", addr, err)
		}
		cp.listeners[i] = ln
		cp.logger.Info("priority_listener_started", "priority", p, "address", addr)
	}

	resultQueryAddr := transport.FormatAddress(scheme, host, basePort+4)
	cp.resultQueryLn, err = transport.ListenReqRep(resultQueryAddr)
	if err != nil {
		return fmt.Errorf("controlplane: listen result query: %w", err)
	}

	mgmtAddr := transport.FormatAddress(scheme, host, cp.cfg.SubworkerPort)
	cp.subworkerMgmtLn, err = transport.ListenReqRep(mgmtAddr)
	if err != nil {
		return fmt.Errorf("controlplane: listen subworker registry: %w", err)
	}

	cp.discoveryBus, err = transport.ListenBus(cp.cfg.DiscoveryAddress)
	if err != nil {
		return fmt.Errorf("controlplane: listen discovery bus: %w", err)
	}

	for i, p := range priorities {
		go cp.serveLoop(cp.listeners[i], p)
	}
	safe.Go(cp.logger, "subworker_registrations", cp.handleSubworkerRegistrations, nil)
	safe.Go(cp.logger, "result_queries", cp.handleResultQueries, nil)
	safe.Go(cp.logger, "periodic_announcements", cp.periodicAnnouncements, nil)
	safe.Go(cp.logger, "monitor_subworkers", cp.monitorSubworkers, nil)

	cp.logger.Info("control_plane_started", "worker_id", cp.cfg.WorkerID, "base_address", cp.cfg.BaseAddress)
	return nil
}

// Stop closes every listener and the discovery bus.
func (cp *ControlPlane) Stop() error {
	close(cp.done)
	var errs shutdown.Collector
	for _, ln := range cp.listeners {
		if ln != nil {
			errs.Add(ln.Close())
		}
	}
	if cp.resultQueryLn != nil {
		errs.Add(cp.resultQueryLn.Close())
	}
	if cp.subworkerMgmtLn != nil {
		errs.Add(cp.subworkerMgmtLn.Close())
	}
	if cp.discoveryBus != nil {
		errs.Add(cp.discoveryBus.Close())
	}
	return errs.Err()
}

type registration struct {
	SubworkerID string `json:"subworker_id"`
	Address     string `json:"address"`
	Status      string `json:"status"`
}

type registrationAck struct {
	Status      string `json:"status"`
	SubworkerID string `json:"subworker_id"`
}

func (cp *ControlPlane) handleSubworkerRegistrations() {
	for {
		ex, err := cp.subworkerMgmtLn.Accept()
		if err != nil {
			select {
			case <-cp.done:
				return
			default:
				cp.logger.Error("subworker_registration_accept_failed", "error", err)
				continue
			}
		}
		safe.Go(cp.logger, "subworker_registration_exchange", func() {
			cp.handleRegistrationExchange(ex)
		}, nil)
	}
}

func (cp *ControlPlane) handleRegistrationExchange(ex *transport.Exchange) {
	defer ex.Close()
	data, err := ex.Recv()
	if err != nil {
		cp.logger.Error("subworker_registration_recv_failed", "error", err)
		return
	}
	var reg registration
	if err := serializer.Deserialize(cp.logger, cp.format, data, &reg); err != nil {
		cp.logger.Error("subworker_registration_decode_failed", "error", err)
		return
	}
	if reg.SubworkerID == "" || reg.Address == "" {
		cp.logger.Warn("subworker_registration_missing_fields")
		return
	}
	if cp.registry.Heartbeat(reg.SubworkerID) {
		cp.logger.Debug("subworker_heartbeat", "subworker_id", reg.SubworkerID)
	} else {
		cp.registry.Register(reg.SubworkerID, reg.Address)
		cp.logger.Info("subworker_registered", "subworker_id", reg.SubworkerID, "address", reg.Address)
	}
	metrics.SetActiveSubworkers(cp.registry.Count())

	ack := registrationAck{Status: "registered", SubworkerID: reg.SubworkerID}
	out, err := serializer.Serialize(cp.logger, cp.format, ack)
	if err != nil {
		cp.logger.Error("subworker_ack_encode_failed", "error", err)
		return
	}
	if err := ex.Send(out); err != nil {
		cp.logger.Error("subworker_ack_send_failed", "error", err)
	}
}

type resultQuery struct {
	TaskID string `json:"task_id"`
}

type resultQueryResponse struct {
	Found  bool         `json:"found"`
	Result *task.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func (cp *ControlPlane) handleResultQueries() {
	for {
		ex, err := cp.resultQueryLn.Accept()
		if err != nil {
			select {
			case <-cp.done:
				return
			default:
				cp.logger.Error("result_query_accept_failed", "error", err)
				continue
			}
		}
		safe.Go(cp.logger, "result_query_exchange", func() {
			cp.handleResultQueryExchange(ex)
		}, nil)
	}
}

func (cp *ControlPlane) handleResultQueryExchange(ex *transport.Exchange) {
	defer ex.Close()
	data, err := ex.Recv()
	if err != nil {
		cp.logger.Error("result_query_recv_failed", "error", err)
		return
	}
	var q resultQuery
	if err := serializer.Deserialize(cp.logger, cp.format, data, &q); err != nil {
		cp.logger.Error("result_query_decode_failed", "error", err)
		return
	}

	var resp resultQueryResponse
	if q.TaskID == "" {
		resp = resultQueryResponse{Found: false, Error: "Missing task_id"}
	} else if result, ok := cp.cache.Get(q.TaskID); ok {
		resp = resultQueryResponse{Found: true, Result: result}
	} else {
		resp = resultQueryResponse{Found: false, Error: fmt.Sprintf("Task %s not found in cache or expired", q.TaskID)}
	}

	out, err := serializer.Serialize(cp.logger, cp.format, resp)
	if err != nil {
		cp.logger.Error("result_query_response_encode_failed", "error", err)
		return
	}
	if err := ex.Send(out); err != nil {
		cp.logger.Error("result_query_response_send_failed", "error", err)
	}
}

func (cp *ControlPlane) periodicAnnouncements() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-cp.done:
			return
		case <-ticker.C:
			msg := discovery.Announce(cp.cfg.WorkerID, cp.cfg.BaseAddress)
			if err := cp.discoveryBus.Send([]byte(msg)); err != nil {
				cp.logger.Error("discovery_announce_failed", "error", err)
			}
		}
	}
}

func (cp *ControlPlane) monitorSubworkers() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-cp.done:
			return
		case <-ticker.C:
			expired := cp.registry.ExpireStale(time.Now().Add(-staleSubworkerThreshold))
			for _, id := range expired {
				cp.logger.Warn("subworker_stale_removed", "subworker_id", id)
			}
			metrics.SetActiveSubworkers(cp.registry.Count())
		}
	}
}
