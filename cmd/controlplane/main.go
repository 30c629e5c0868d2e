// Command controlplane runs the dispatch hub: it serves task submissions
// on four priority endpoints, forwards to registered subworkers or
// executes locally, and answers result queries.
//
// Usage:
//
//	go run ./cmd/controlplane -worker-id control-plane -base-address tcp://127.0.0.1:5555
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/neul-labs/fastworker-go/controlplane"
	"github.com/neul-labs/fastworker-go/internal/bootstrap"
	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/internal/tracing"
	"github.com/neul-labs/fastworker-go/task"
)

func main() {
	cfg := bootstrap.FromEnv()

	workerID := flag.String("worker-id", cfg.WorkerID, "control plane worker id")
	baseAddress := flag.String("base-address", cfg.BaseAddress, "base task address")
	discoveryAddress := flag.String("discovery-address", cfg.DiscoveryAddress, "discovery bus address")
	subworkerPort := flag.Int("subworker-port", cfg.SubworkerPort, "subworker management port")
	flag.Parse()

	cfg.WorkerID = *workerID
	cfg.BaseAddress = *baseAddress
	cfg.DiscoveryAddress = *discoveryAddress
	cfg.SubworkerPort = *subworkerPort
	cfg.ControlPlaneAddress = *baseAddress

	logger := logging.NewConsole("controlplane")
	logger.Info("control_plane_starting", "worker_id", cfg.WorkerID, "base_address", cfg.BaseAddress)

	shutdownTracing, err := tracing.Init("fastworker-controlplane")
	if err != nil {
		logger.Warn("tracing_init_failed", "error", err)
	}

	registry := task.NewRegistry(logger)
	cp := controlplane.New(cfg, registry, logger)
	if err := cp.Start(); err != nil {
		logger.Error("control_plane_start_failed", "error", err)
		os.Exit(1)
	}

	logger.Info("control_plane_ready", "subworker_port", cfg.SubworkerPort)
	fmt.Printf("control plane %s listening on %s\n", cfg.WorkerID, cfg.BaseAddress)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	if err := cp.Stop(); err != nil {
		logger.Error("control_plane_stop_error", "error", err)
	}
	if shutdownTracing != nil {
		_ = shutdownTracing(context.Background())
	}
	logger.Info("control_plane_stopped")
}
