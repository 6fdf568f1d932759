package wake

import (
	"fmt"
	"sync"
	"time"
)

const dedupRetention = 24 * time.Hour

// resetDedup stops a reset-driven wake from firing twice for the same quota
// window, and enforces a per-model cooldown between reset-driven wakes. One
// model's cooldown never delays another model's reset. The scheduled
// (cron/daily/weekly/interval) path is never throttled here.
type resetDedup struct {
	mu       sync.Mutex
	cooldown time.Duration
	fired    map[string]time.Time
	lastFire map[string]time.Time
	now      func() time.Time
}

func newResetDedup(cooldown time.Duration) *resetDedup {
	return &resetDedup{
		cooldown: cooldown,
		fired:    make(map[string]time.Time),
		lastFire: make(map[string]time.Time),
		now:      time.Now,
	}
}

func dedupKey(model string, resetAt time.Time) string {
	return fmt.Sprintf("%s|%d", model, resetAt.Unix())
}

// ShouldFire reports whether a reset-driven wake for (model, resetAt) is
// allowed, and records the firing when it is.
func (d *resetDedup) ShouldFire(model string, resetAt time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.pruneLocked(now)

	key := dedupKey(model, resetAt)
	if _, seen := d.fired[key]; seen {
		return false
	}
	if last, ok := d.lastFire[model]; ok && now.Sub(last) < d.cooldown {
		return false
	}

	d.fired[key] = now
	d.lastFire[model] = now
	return true
}

func (d *resetDedup) pruneLocked(now time.Time) {
	for key, at := range d.fired {
		if now.Sub(at) > dedupRetention {
			delete(d.fired, key)
		}
	}
	for model, at := range d.lastFire {
		if now.Sub(at) > dedupRetention {
			delete(d.lastFire, model)
		}
	}
}
