// Command subworker runs an executor process: it registers with a
// control plane, heartbeats on an interval, and serves the four priority
// task endpoints.
//
// Usage:
//
//	go run ./cmd/subworker -worker-id sw-1 -control-plane-address tcp://127.0.0.1:5555
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/neul-labs/fastworker-go/internal/bootstrap"
	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/subworker"
	"github.com/neul-labs/fastworker-go/task"
)

func main() {
	cfg := bootstrap.FromEnv()

	workerID := flag.String("worker-id", cfg.WorkerID, "subworker id")
	controlPlaneAddress := flag.String("control-plane-address", cfg.ControlPlaneAddress, "control plane base address")
	baseAddress := flag.String("base-address", cfg.BaseAddress, "this subworker's base task address")
	discoveryAddress := flag.String("discovery-address", cfg.DiscoveryAddress, "discovery bus address")
	flag.Parse()

	if *workerID == "" || *workerID == "control-plane" {
		fmt.Fprintln(os.Stderr, "subworker: -worker-id (or FASTWORKER_WORKER_ID) is required")
		os.Exit(1)
	}
	if *controlPlaneAddress == "" {
		fmt.Fprintln(os.Stderr, "subworker: -control-plane-address (or FASTWORKER_CONTROL_PLANE_ADDRESS) is required")
		os.Exit(1)
	}

	cfg.WorkerID = *workerID
	cfg.ControlPlaneAddress = *controlPlaneAddress
	cfg.BaseAddress = *baseAddress
	cfg.DiscoveryAddress = *discoveryAddress

	logger := logging.NewConsole("subworker")
	logger.Info("subworker_starting", "worker_id", cfg.WorkerID, "control_plane_address", cfg.ControlPlaneAddress)

	registry := task.NewRegistry(logger)
	sw := subworker.New(cfg, registry, logger)
	if err := sw.Start(); err != nil {
		logger.Error("subworker_start_failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("subworker %s listening on %s\n", cfg.WorkerID, cfg.BaseAddress)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	if err := sw.Stop(); err != nil {
		logger.Error("subworker_stop_error", "error", err)
	}
	logger.Info("subworker_stopped")
}
