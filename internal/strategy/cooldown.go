package strategy

import (
	"sync"
	"time"
)

// cooldownTracker enforces per-market signalCooldown (after emission) and
// postTradeCooldown (after a fill) — spec.md §4.8: "A strategy does not
// re-emit for the same market while an unexpired signal exists."
type cooldownTracker struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{until: make(map[string]time.Time)}
}

// Ready reports whether marketID's cooldown has expired.
func (c *cooldownTracker) Ready(marketID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.until[marketID]
	return !ok || time.Now().After(t)
}

// MarkUntil sets marketID's cooldown to expire after d.
func (c *cooldownTracker) MarkUntil(marketID string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[marketID] = time.Now().Add(d)
}
