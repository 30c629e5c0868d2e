// Package config holds the core-visible configuration shared by the
// control plane, subworker, and client. No infrastructure parsing lives
// here: environment and flag handling happen in each cmd/ entrypoint's
// bootstrap step, which constructs a Config and passes it to each
// constructor as a *Config.
package config

import "sync"

// SerializationFormat selects the wire codec. Kept as a string type so it
// round-trips cleanly through FromMap/ToMap and env/flag parsing.
type SerializationFormat string

const (
	FormatText   SerializationFormat = "JSON"
	FormatBinary SerializationFormat = "GOB"
)

// Config holds the fields shared across processes: discovery address,
// serialization format, submission timeout, retry count, worker
// identifier, control-plane address, base address, subworker management
// port, result-cache maximum size and TTL.
type Config struct {
	WorkerID              string              `json:"worker_id"`
	BaseAddress           string              `json:"base_address"`
	DiscoveryAddress      string              `json:"discovery_address"`
	ControlPlaneAddress   string              `json:"control_plane_address"`
	SerializationFormat   SerializationFormat `json:"serialization_format"`
	SubmissionTimeoutSecs int                 `json:"submission_timeout_secs"`
	Retries               int                 `json:"retries"`
	SubworkerPort         int                 `json:"subworker_port"`
	ResultCacheMaxSize    int                 `json:"result_cache_max_size"`
	ResultCacheTTLSecs    int                 `json:"result_cache_ttl_secs"`
}

// DefaultConfig returns the baseline configuration every process starts
// from before env vars and flags are applied.
func DefaultConfig() *Config {
	return &Config{
		WorkerID:              "control-plane",
		BaseAddress:           "tcp://127.0.0.1:5555",
		DiscoveryAddress:      "tcp://127.0.0.1:5550",
		ControlPlaneAddress:   "tcp://127.0.0.1:5555",
		SerializationFormat:   FormatText,
		SubmissionTimeoutSecs: 30,
		Retries:               3,
		SubworkerPort:         5560,
		ResultCacheMaxSize:    10000,
		ResultCacheTTLSecs:    3600,
	}
}

// FromMap applies overrides from a generic map, tolerating the
// float64-for-numbers quirk that comes from decoding JSON into map[string]any.
func FromMap(base *Config, m map[string]any) *Config {
	c := *base
	if v, ok := m["worker_id"].(string); ok {
		c.WorkerID = v
	}
	if v, ok := m["base_address"].(string); ok {
		c.BaseAddress = v
	}
	if v, ok := m["discovery_address"].(string); ok {
		c.DiscoveryAddress = v
	}
	if v, ok := m["control_plane_address"].(string); ok {
		c.ControlPlaneAddress = v
	}
	if v, ok := m["serialization_format"].(string); ok {
		c.SerializationFormat = SerializationFormat(v)
	}
	if v, ok := m["submission_timeout_secs"].(int); ok {
		c.SubmissionTimeoutSecs = v
	} else if v, ok := m["submission_timeout_secs"].(float64); ok {
		c.SubmissionTimeoutSecs = int(v)
	}
	if v, ok := m["retries"].(int); ok {
		c.Retries = v
	} else if v, ok := m["retries"].(float64); ok {
		c.Retries = int(v)
	}
	if v, ok := m["subworker_port"].(int); ok {
		c.SubworkerPort = v
	} else if v, ok := m["subworker_port"].(float64); ok {
		c.SubworkerPort = int(v)
	}
	if v, ok := m["result_cache_max_size"].(int); ok {
		c.ResultCacheMaxSize = v
	} else if v, ok := m["result_cache_max_size"].(float64); ok {
		c.ResultCacheMaxSize = int(v)
	}
	if v, ok := m["result_cache_ttl_secs"].(int); ok {
		c.ResultCacheTTLSecs = v
	} else if v, ok := m["result_cache_ttl_secs"].(float64); ok {
		c.ResultCacheTTLSecs = int(v)
	}
	return &c
}

// ToMap converts the config to a generic map, e.g. for introspection.
func (c *Config) ToMap() map[string]any {
	return map[string]any{
		"worker_id":               c.WorkerID,
		"base_address":            c.BaseAddress,
		"discovery_address":       c.DiscoveryAddress,
		"control_plane_address":   c.ControlPlaneAddress,
		"serialization_format":    string(c.SerializationFormat),
		"submission_timeout_secs": c.SubmissionTimeoutSecs,
		"retries":                 c.Retries,
		"subworker_port":          c.SubworkerPort,
		"result_cache_max_size":   c.ResultCacheMaxSize,
		"result_cache_ttl_secs":   c.ResultCacheTTLSecs,
	}
}

var (
	globalMu     sync.RWMutex
	globalConfig = DefaultConfig()
)

// Global returns the process-wide default config, for use only by cmd/
// entrypoints; library code should always take a *Config via constructor
// injection instead.
func Global() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	c := *globalConfig
	return &c
}

// SetGlobal replaces the process-wide default config.
func SetGlobal(c *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = c
}
