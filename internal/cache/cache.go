// Package cache provides the run-scoped completion cache: the record of
// artifact identifiers already rendered during one invocation.
//
// The cache is an explicit object owned by the run's orchestrator and passed
// into the scheduler, never ambient global state, so concurrent runs (for
// example under test) cannot interfere. It is never persisted.
package cache

import "sync"

// Completion records artifact identifiers attempted this run.
type Completion struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewCompletion returns an empty completion cache for one run.
func NewCompletion() *Completion {
	return &Completion{seen: make(map[string]struct{})}
}

// Contains reports whether the artifact was already recorded.
func (c *Completion) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// Add atomically records an artifact identifier, reporting whether it was
// newly added. A false return means another job already claimed the artifact.
func (c *Completion) Add(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; ok {
		return false
	}
	c.seen[id] = struct{}{}
	return true
}

// Len returns the number of recorded artifacts.
func (c *Completion) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
