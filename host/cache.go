package host

import "sync"

// StatusCache records the last observed status per host. It is shared
// between connection attempts, possibly across goroutines, so that later
// candidate ordering can use what earlier attempts learned. Last write
// wins; there is no cross-host atomicity.
type StatusCache struct {
	mu sync.RWMutex
	m  map[Spec]Status
}

// NewStatusCache returns an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{m: make(map[Spec]Status)}
}

// Report records the outcome of a connection attempt against spec.
func (c *StatusCache) Report(spec Spec, st Status) {
	c.mu.Lock()
	c.m[spec] = st
	c.mu.Unlock()
}

// Lookup returns the last recorded status for spec, or StatusUnknown if the
// host has never been tried.
func (c *StatusCache) Lookup(spec Spec) Status {
	c.mu.RLock()
	st := c.m[spec]
	c.mu.RUnlock()
	return st
}

// Snapshot returns a copy of the current contents.
func (c *StatusCache) Snapshot() map[Spec]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Spec]Status, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}
