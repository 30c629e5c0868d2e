// Package bootstrap holds the environment-variable parsing shared by
// every cmd/ entrypoint, kept out of package config (see config.go's
// package doc): config defines defaults and structure, bootstrap wires in
// FASTWORKER_* environment overrides.
package bootstrap

import (
	"os"
	"strconv"

	"github.com/neul-labs/fastworker-go/config"
)

// FromEnv builds a Config starting from DefaultConfig and applying any
// recognized FASTWORKER_* environment variables on top.
func FromEnv() *config.Config {
	c := config.DefaultConfig()
	if v := os.Getenv("FASTWORKER_WORKER_ID"); v != "" {
		c.WorkerID = v
	}
	if v := os.Getenv("FASTWORKER_BASE_ADDRESS"); v != "" {
		c.BaseAddress = v
	}
	if v := os.Getenv("FASTWORKER_DISCOVERY_ADDRESS"); v != "" {
		c.DiscoveryAddress = v
	}
	if v := os.Getenv("FASTWORKER_CONTROL_PLANE_ADDRESS"); v != "" {
		c.ControlPlaneAddress = v
	}
	if v := os.Getenv("FASTWORKER_SERIALIZATION_FORMAT"); v != "" {
		if v == "GOB" || v == "PICKLE" {
			c.SerializationFormat = config.FormatBinary
		} else {
			c.SerializationFormat = config.FormatText
		}
	}
	if v := envInt("FASTWORKER_TIMEOUT"); v != nil {
		c.SubmissionTimeoutSecs = *v
	}
	if v := envInt("FASTWORKER_RETRIES"); v != nil {
		c.Retries = *v
	}
	if v := envInt("FASTWORKER_SUBWORKER_PORT"); v != nil {
		c.SubworkerPort = *v
	}
	if v := envInt("FASTWORKER_RESULT_CACHE_SIZE"); v != nil {
		c.ResultCacheMaxSize = *v
	}
	if v := envInt("FASTWORKER_RESULT_CACHE_TTL"); v != nil {
		c.ResultCacheTTLSecs = *v
	}
	return c
}

func envInt(name string) *int {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
