// Package subworker implements the executor role: it registers with a
// control plane, re-registers/heartbeats on an interval, holds a
// discovery bus connection (never read from), and serves the four
// priority task endpoints.
package subworker

import (
	"context"
	"fmt"
	"time"

	"github.com/neul-labs/fastworker-go/config"
	"github.com/neul-labs/fastworker-go/engine"
	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/internal/safe"
	"github.com/neul-labs/fastworker-go/internal/shutdown"
	"github.com/neul-labs/fastworker-go/serializer"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

const (
	reregisterInterval  = 10 * time.Second
	registerAckTimeout  = 5 * time.Second
	heartbeatAckTimeout = 1 * time.Second
)

// Subworker executes tasks dispatched to it by a control plane.
type Subworker struct {
	cfg    *config.Config
	logger logging.Logger
	format serializer.Format
	engine *engine.Engine

	listeners    [4]*transport.ReqRepListener
	discoveryBus *transport.Bus

	registered bool
	done       chan struct{}
}

// New builds a Subworker. cfg.WorkerID and cfg.ControlPlaneAddress must
// be set.
func New(cfg *config.Config, registry *task.Registry, logger logging.Logger) *Subworker {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Subworker{
		cfg:    cfg,
		logger: logger,
		format: serializer.Format(cfg.SerializationFormat),
		engine: engine.New(registry, logger),
		done:   make(chan struct{}),
	}
}

// Start opens the priority listeners and discovery bus dialer, registers
// with the control plane, and launches the background re-registration
// and serve loops.
func (sw *Subworker) Start() error {
	if sw.cfg.WorkerID == "" {
		return fmt.Errorf("subworker: worker_id is required")
	}
	if sw.cfg.ControlPlaneAddress == "" {
		return fmt.Errorf("subworker: control_plane_address is required")
	}

	host, basePort, scheme, err := transport.ParseAddress(sw.cfg.BaseAddress)
	if err != nil {
		return fmt.Errorf("subworker: invalid base address: %w", err)
	}

	priorities := [4]task.Priority{task.PriorityCritical, task.PriorityHigh, task.PriorityNormal, task.PriorityLow}
	for i, p := range priorities {
		addr := transport.FormatAddress(scheme, host, basePort+p.Offset())
		ln, err := transport.ListenReqRep(addr)
		if err != nil {
			return fmt.Errorf("subworker: listen %s: %w", addr, err)
		}
		sw.listeners[i] = ln
		sw.logger.Info("priority_listener_started", "priority", p, "address", addr)
	}

	sw.discoveryBus, err = transport.DialBus(sw.cfg.DiscoveryAddress)
	if err != nil {
		return fmt.Errorf("subworker: dial discovery bus: %w", err)
	}

	sw.registerWithControlPlane()

	for i, p := range priorities {
		go sw.serveLoop(sw.listeners[i], p)
	}
	safe.Go(sw.logger, "periodic_reregistration", sw.periodicReregistration, nil)

	sw.logger.Info("subworker_started", "worker_id", sw.cfg.WorkerID, "registered", sw.registered)
	return nil
}

// Stop closes every listener and the discovery bus dialer.
func (sw *Subworker) Stop() error {
	close(sw.done)
	var errs shutdown.Collector
	for _, ln := range sw.listeners {
		if ln != nil {
			errs.Add(ln.Close())
		}
	}
	if sw.discoveryBus != nil {
		errs.Add(sw.discoveryBus.Close())
	}
	return errs.Err()
}

func (sw *Subworker) serveLoop(ln *transport.ReqRepListener, priority task.Priority) {
	for {
		ex, err := ln.Accept()
		if err != nil {
			select {
			case <-sw.done:
				return
			default:
				sw.logger.Error("reqrep_accept_failed", "priority", priority, "error", err)
				continue
			}
		}
		go sw.handleExchange(ex, priority)
	}
}

func (sw *Subworker) handleExchange(ex *transport.Exchange, priority task.Priority) {
	defer ex.Close()

	data, err := ex.Recv()
	if err != nil {
		sw.logger.Error("task_recv_failed", "priority", priority, "error", err)
		return
	}
	var t task.Task
	if err := serializer.Deserialize(sw.logger, sw.format, data, &t); err != nil {
		sw.logger.Error("task_decode_failed", "priority", priority, "error", err)
		return
	}
	sw.logger.Info("task_received", "task_id", t.ID, "task_name", t.Name, "priority", priority)

	result := sw.engine.Execute(context.Background(), &t)
	sw.engine.SendCallback(result, func(p *task.CallbackPayload) ([]byte, error) {
		return serializer.Serialize(sw.logger, sw.format, p)
	})

	out, err := serializer.Serialize(sw.logger, sw.format, result)
	if err != nil {
		sw.logger.Error("result_encode_failed", "task_id", t.ID, "error", err)
		return
	}
	if err := ex.Send(out); err != nil {
		sw.logger.Error("result_send_failed", "task_id", t.ID, "error", err)
	}
}

type registration struct {
	SubworkerID string `json:"subworker_id"`
	Address     string `json:"address"`
	Status      string `json:"status"`
	Heartbeat   bool   `json:"heartbeat,omitempty"`
}

type registrationAck struct {
	Status      string `json:"status"`
	SubworkerID string `json:"subworker_id"`
}

func (sw *Subworker) registerWithControlPlane() {
	addr, err := controlPlaneManagementAddress(sw.cfg.ControlPlaneAddress)
	if err != nil {
		sw.logger.Error("control_plane_address_invalid", "error", err)
		sw.registered = false
		return
	}

	client, err := transport.DialReqRep(addr)
	if err != nil {
		sw.logger.Error("control_plane_dial_failed", "error", err)
		sw.registered = false
		return
	}
	defer client.Close()

	reg := registration{SubworkerID: sw.cfg.WorkerID, Address: sw.cfg.BaseAddress, Status: "active"}
	data, err := serializer.Serialize(sw.logger, sw.format, reg)
	if err != nil {
		sw.logger.Error("registration_encode_failed", "error", err)
		sw.registered = false
		return
	}
	if err := client.Send(data); err != nil {
		sw.logger.Error("registration_send_failed", "error", err)
		sw.registered = false
		return
	}

	ackData, err := client.RecvTimeout(registerAckTimeout)
	if err != nil {
		sw.logger.Error("registration_timeout", "worker_id", sw.cfg.WorkerID, "error", err)
		sw.registered = false
		return
	}
	var ack registrationAck
	if err := serializer.Deserialize(sw.logger, sw.format, ackData, &ack); err != nil {
		sw.logger.Error("registration_ack_decode_failed", "error", err)
		sw.registered = false
		return
	}
	sw.registered = ack.Status == "registered"
	if sw.registered {
		sw.logger.Info("subworker_registered", "worker_id", sw.cfg.WorkerID)
	} else {
		sw.logger.Warn("subworker_registration_rejected", "worker_id", sw.cfg.WorkerID)
	}
}

func (sw *Subworker) sendHeartbeat() {
	addr, err := controlPlaneManagementAddress(sw.cfg.ControlPlaneAddress)
	if err != nil {
		return
	}
	client, err := transport.DialReqRep(addr)
	if err != nil {
		sw.logger.Debug("heartbeat_dial_failed", "error", err)
		sw.registered = false
		return
	}
	defer client.Close()

	update := registration{SubworkerID: sw.cfg.WorkerID, Address: sw.cfg.BaseAddress, Status: "active", Heartbeat: true}
	data, err := serializer.Serialize(sw.logger, sw.format, update)
	if err != nil {
		return
	}
	if err := client.Send(data); err != nil {
		sw.logger.Debug("heartbeat_send_failed", "error", err)
		sw.registered = false
		return
	}

	ackData, err := client.RecvTimeout(heartbeatAckTimeout)
	if err != nil {
		// No response is tolerated for a heartbeat.
		return
	}
	var ack registrationAck
	if err := serializer.Deserialize(sw.logger, sw.format, ackData, &ack); err == nil && ack.Status != "registered" {
		sw.registered = false
	}
}

func (sw *Subworker) periodicReregistration() {
	ticker := time.NewTicker(reregisterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			if !sw.registered {
				sw.registerWithControlPlane()
			} else {
				sw.sendHeartbeat()
			}
		}
	}
}

// controlPlaneManagementAddress rewrites a control plane's base address
// to its subworker-management endpoint at base_port+5.
func controlPlaneManagementAddress(base string) (string, error) {
	host, port, scheme, err := transport.ParseAddress(base)
	if err != nil {
		return "", err
	}
	return transport.FormatAddress(scheme, host, port+5), nil
}
