// Command client submits a single task to the cluster and prints its
// result. Intended as a smoke-test/CLI companion to the client library.
//
// Usage:
//
//	go run ./cmd/client -task echo -args '["hello"]' -priority normal
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/neul-labs/fastworker-go/client"
	"github.com/neul-labs/fastworker-go/internal/bootstrap"
	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/task"
)

func main() {
	cfg := bootstrap.FromEnv()

	taskName := flag.String("task", "", "registered task name to submit")
	discoveryAddress := flag.String("discovery-address", cfg.DiscoveryAddress, "discovery bus address")
	priorityFlag := flag.String("priority", "normal", "critical, high, normal, or low")
	argJSON := flag.String("args", "[]", "JSON array of positional arguments")
	kwargsJSON := flag.String("kwargs", "{}", "JSON object of keyword arguments")
	waitSeconds := flag.Int("wait", cfg.SubmissionTimeoutSecs, "seconds to wait for discovery before submitting")
	flag.Parse()

	if *taskName == "" {
		fmt.Fprintln(os.Stderr, "client: -task is required")
		os.Exit(1)
	}

	var args []any
	if err := json.Unmarshal([]byte(*argJSON), &args); err != nil {
		fmt.Fprintf(os.Stderr, "client: invalid -args: %v\n", err)
		os.Exit(1)
	}
	var kwargs map[string]any
	if err := json.Unmarshal([]byte(*kwargsJSON), &kwargs); err != nil {
		fmt.Fprintf(os.Stderr, "client: invalid -kwargs: %v\n", err)
		os.Exit(1)
	}

	priority := task.Priority(*priorityFlag)
	if !priority.Valid() {
		priority = task.PriorityNormal
	}

	cfg.DiscoveryAddress = *discoveryAddress
	logger := logging.NewConsole("client")

	c := client.New(cfg, logger)
	if err := c.Start(); err != nil {
		logger.Error("client_start_failed", "error", err)
		os.Exit(1)
	}
	defer c.Stop()

	logger.Info("waiting_for_worker_discovery", "seconds", *waitSeconds)
	time.Sleep(time.Duration(*waitSeconds) * time.Second)

	result := c.SubmitTask(*taskName, args, kwargs, priority)
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if result.Status == task.StatusFailure {
		os.Exit(1)
	}
}
