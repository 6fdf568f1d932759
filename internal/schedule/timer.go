package schedule

import (
	"sync"
	"time"
)

// maxChunk keeps each underlying timer below the ~24.8 day signed-32-bit
// millisecond ceiling some host timer implementations impose. Longer waits are
// chained instead of armed as one oversized delay.
const maxChunk = 24 * 24 * time.Hour

// Timer fires a callback at an absolute instant, chaining shorter timers for
// far-future targets. Stop is synchronous: after it returns no callback runs.
type Timer struct {
	mu      sync.Mutex
	inner   *time.Timer
	stopped bool
	now     func() time.Time
}

func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// Schedule arms the timer for the given instant, replacing any pending one.
func (t *Timer) Schedule(at time.Time, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.stopped = false
	t.armLocked(at, fn)
}

func (t *Timer) armLocked(at time.Time, fn func()) {
	delay := at.Sub(t.now())
	if delay < 0 {
		delay = 0
	}

	if delay > maxChunk {
		t.inner = time.AfterFunc(maxChunk, func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.stopped {
				return
			}
			t.armLocked(at, fn)
		})
		return
	}

	t.inner = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()
		fn()
	})
}

// Stop clears the pending timer. Safe to call repeatedly.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if t.inner != nil {
		t.inner.Stop()
		t.inner = nil
	}
}

// Pending reports whether a fire is armed.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner != nil && !t.stopped
}
