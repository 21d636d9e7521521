package selection

import (
	"sync"
	"time"

	"github.com/gardar/ocrmark/pkg/canvas"
)

// throttle runs at most one call per window: the first call immediately, the last call
// of a burst when the window closes.
type throttle struct {
	sched canvas.Scheduler
	wait  time.Duration

	mu      sync.Mutex
	last    time.Time
	timer   canvas.Stopper
	pending func()
}

func newThrottle(s canvas.Scheduler, wait time.Duration) *throttle {
	return &throttle{sched: s, wait: wait}
}

func (t *throttle) Do(f func()) {
	t.mu.Lock()
	now := t.sched.Now()
	if t.timer == nil && (t.last.IsZero() || now.Sub(t.last) >= t.wait) {
		t.last = now
		t.mu.Unlock()
		f()
		return
	}
	t.pending = f
	if t.timer == nil {
		t.timer = t.sched.AfterFunc(t.wait-now.Sub(t.last), t.fire)
	}
	t.mu.Unlock()
}

func (t *throttle) fire() {
	t.mu.Lock()
	f := t.pending
	t.pending = nil
	t.timer = nil
	t.last = t.sched.Now()
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// Flush runs the trailing call now, if one is waiting, and reports whether it ran
func (t *throttle) Flush() bool {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	f := t.pending
	t.pending = nil
	t.mu.Unlock()
	if f == nil {
		return false
	}
	f()
	return true
}

// Cancel drops the trailing call and resets the window
func (t *throttle) Cancel() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
	t.last = time.Time{}
	t.mu.Unlock()
}
