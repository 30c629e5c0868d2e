package controlplane

import (
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/neul-labs/fastworker-go/internal/logging"
	"github.com/neul-labs/fastworker-go/metrics"
	"github.com/neul-labs/fastworker-go/task"
)

// ResultCache stores completed Results with size-bounded LRU eviction and
// a per-entry TTL, delegating the eviction and expiry bookkeeping to
// hashicorp/golang-lru/v2's expirable.LRU rather than hand-rolling it
// (see DESIGN.md).
type ResultCache struct {
	lru    *expirable.LRU[string, *task.Result]
	logger logging.Logger
}

// NewResultCache builds a cache holding at most maxSize entries, each
// expiring ttl after insertion.
func NewResultCache(maxSize int, ttl time.Duration, logger logging.Logger) *ResultCache {
	if logger == nil {
		logger = logging.Noop()
	}
	c := &ResultCache{logger: logger}
	c.lru = expirable.NewLRU[string, *task.Result](maxSize, func(key string, _ *task.Result) {
		c.logger.Debug("result_cache_evicted", "task_id", key)
		metrics.RecordCacheOp("evict")
	}, ttl)
	return c
}

// Store records result, keyed by its task ID.
func (c *ResultCache) Store(result *task.Result) {
	c.lru.Add(result.TaskID, result)
	metrics.RecordCacheOp("store")
	c.logger.Debug("result_cache_stored", "task_id", result.TaskID, "cache_size", c.lru.Len())
}

// Get retrieves the cached Result for taskID, if present and unexpired.
func (c *ResultCache) Get(taskID string) (*task.Result, bool) {
	result, ok := c.lru.Get(taskID)
	if ok {
		metrics.RecordCacheOp("hit")
	} else {
		metrics.RecordCacheOp("miss")
	}
	return result, ok
}

// Len reports the current number of unexpired cached entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}
