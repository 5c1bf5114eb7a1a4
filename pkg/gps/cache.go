package gps

import (
	"sync"
	"time"
)

// DebounceWindow is how long an enhanced location result keeps serving
// near-simultaneous callers without waking the positioning hardware again.
const DebounceWindow = 2000 * time.Millisecond

// debounceCache memoizes the most recent enhanced location. It is owned by
// the Engine instance rather than being package-level state so tests stay
// isolated and parallelizable.
type debounceCache struct {
	mu       sync.RWMutex
	location *AveragedLocation
	storedAt time.Time
	window   time.Duration
	now      func() time.Time
}

func newDebounceCache(window time.Duration, now func() time.Time) *debounceCache {
	if window <= 0 {
		window = DebounceWindow
	}
	if now == nil {
		now = time.Now
	}
	return &debounceCache{window: window, now: now}
}

// get returns a copy of the cached location when it is younger than the
// debounce window.
func (c *debounceCache) get() (*AveragedLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.location == nil || c.now().Sub(c.storedAt) >= c.window {
		return nil, false
	}
	loc := *c.location
	return &loc, true
}

func (c *debounceCache) put(loc *AveragedLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *loc
	c.location = &stored
	c.storedAt = c.now()
}

// clear drops the cached location, forcing the next call to acquire fresh.
func (c *debounceCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.location = nil
}
