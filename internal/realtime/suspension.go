package realtime

import "sync"

// SuspensionCache holds the last known suspension state pushed by the
// change feed, so synchronous authorization checks can avoid a database
// round trip. A user absent from the cache has no known suspension; callers
// fall back to the source of truth.
type SuspensionCache struct {
	mu    sync.RWMutex
	state map[string]bool
}

func NewSuspensionCache() *SuspensionCache {
	return &SuspensionCache{state: make(map[string]bool)}
}

func (c *SuspensionCache) Set(userID string, suspended bool) {
	c.mu.Lock()
	c.state[userID] = suspended
	c.mu.Unlock()
}

// Lookup returns the cached suspension state and whether it is known.
func (c *SuspensionCache) Lookup(userID string) (suspended, known bool) {
	c.mu.RLock()
	suspended, known = c.state[userID]
	c.mu.RUnlock()
	return suspended, known
}

func (c *SuspensionCache) Forget(userID string) {
	c.mu.Lock()
	delete(c.state, userID)
	c.mu.Unlock()
}
