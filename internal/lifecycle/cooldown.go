package lifecycle

import "time"

// CooldownLedger records when each identity last transitioned to ACTIVE so
// the same (match, market) cannot re-activate within the cooldown window,
// even after the original signal expired. Entries are never consumed; stale
// ones simply read as "not in cooldown" and are reclaimed by Sweep.
type CooldownLedger struct {
	lastActive map[string]time.Time
	window     time.Duration
}

// NewCooldownLedger creates a ledger with the given cooldown window.
func NewCooldownLedger(window time.Duration) *CooldownLedger {
	return &CooldownLedger{
		lastActive: make(map[string]time.Time),
		window:     window,
	}
}

// InCooldown reports whether the identity activated within the window.
func (c *CooldownLedger) InCooldown(key string, now time.Time) bool {
	ts, ok := c.lastActive[key]
	if !ok {
		return false
	}
	return now.Sub(ts) < c.window
}

// MarkActive records (or overwrites) the identity's activation time.
func (c *CooldownLedger) MarkActive(key string, now time.Time) {
	c.lastActive[key] = now
}

// Sweep removes entries that aged out of the window and returns the number
// removed.
func (c *CooldownLedger) Sweep(now time.Time) int {
	removed := 0
	for key, ts := range c.lastActive {
		if now.Sub(ts) >= c.window {
			delete(c.lastActive, key)
			removed++
		}
	}
	return removed
}
