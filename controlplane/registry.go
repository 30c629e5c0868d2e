package controlplane

import (
	"sort"
	"sync"
	"time"
)

// SubworkerInfo describes one registered subworker.
type SubworkerInfo struct {
	ID          string
	Address     string
	Load        int
	LastSeen    time.Time
	Registered  time.Time
}

// SubworkerRegistry tracks live subworkers and their current load, and
// selects a target for dispatch: load-counter bookkeeping plus
// least-loaded selection, nothing more generic than that.
type SubworkerRegistry struct {
	mu      sync.RWMutex
	workers map[string]*SubworkerInfo
}

// NewSubworkerRegistry builds an empty registry.
func NewSubworkerRegistry() *SubworkerRegistry {
	return &SubworkerRegistry{workers: make(map[string]*SubworkerInfo)}
}

// Register adds or refreshes a subworker's address and last-seen time.
// A newly registered subworker starts at load 0.
func (r *SubworkerRegistry) Register(id, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if w, exists := r.workers[id]; exists {
		w.Address = address
		w.LastSeen = now
		return
	}
	r.workers[id] = &SubworkerInfo{ID: id, Address: address, LastSeen: now, Registered: now}
}

// Heartbeat refreshes a subworker's last-seen time without altering load.
func (r *SubworkerRegistry) Heartbeat(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, exists := r.workers[id]
	if !exists {
		return false
	}
	w.LastSeen = time.Now().UTC()
	return true
}

// Unregister removes a subworker, e.g. after it misses its heartbeat
// deadline.
func (r *SubworkerRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

// IncrementLoad bumps id's load counter by one.
func (r *SubworkerRegistry) IncrementLoad(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, exists := r.workers[id]; exists {
		w.Load++
	}
}

// DecrementLoad drops id's load counter by one, floored at zero.
func (r *SubworkerRegistry) DecrementLoad(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, exists := r.workers[id]; exists && w.Load > 0 {
		w.Load--
	}
}

// Select picks the least-loaded active subworker. Ties break on the
// lexicographically least worker ID, making selection deterministic (see
// DESIGN.md Open Question resolutions). Returns false if no subworker is
// registered.
func (r *SubworkerRegistry) Select() (SubworkerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.workers) == 0 {
		return SubworkerInfo{}, false
	}
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := r.workers[ids[0]]
	for _, id := range ids[1:] {
		w := r.workers[id]
		if w.Load < best.Load {
			best = w
		}
	}
	return *best, true
}

// ExpireStale removes every subworker whose last heartbeat predates the
// given deadline, returning their IDs.
func (r *SubworkerRegistry) ExpireStale(olderThan time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []string
	for id, w := range r.workers {
		if w.LastSeen.Before(olderThan) {
			expired = append(expired, id)
			delete(r.workers, id)
		}
	}
	return expired
}

// Count reports the number of currently registered subworkers.
func (r *SubworkerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
