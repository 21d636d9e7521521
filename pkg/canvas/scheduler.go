package canvas

import (
	"sort"
	"sync"
	"time"
)

// Stopper cancels a scheduled callback. Stop reports whether the call stopped a live timer.
type Stopper interface {
	Stop() bool
}

// Scheduler runs delayed and repeating callbacks. Engines take one so tests can drive
// time by hand.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
	Every(d time.Duration, f func()) Stopper
}

// SystemScheduler uses the runtime timers
type SystemScheduler struct{}

func (SystemScheduler) Now() time.Time { return time.Now() }

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

func (SystemScheduler) Every(d time.Duration, f func()) Stopper {
	t := &ticker{ticker: time.NewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				f()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

type ticker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}

// ManualScheduler is a Scheduler whose clock only moves on Advance. Callbacks run on the
// goroutine calling Advance.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*manualTimer

	started int
	stopped int
}

type manualTimer struct {
	s      *ManualScheduler
	id     int
	at     time.Time
	period time.Duration
	f      func()
}

// NewManualScheduler starts the clock at start
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start, timers: make(map[int]*manualTimer)}
}

func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return m.add(d, 0, f)
}

func (m *ManualScheduler) Every(d time.Duration, f func()) Stopper {
	if d <= 0 {
		d = time.Millisecond
	}
	return m.add(d, d, f)
}

func (m *ManualScheduler) add(d, period time.Duration, f func()) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{s: m, id: m.seq, at: m.now.Add(d), period: period, f: f}
	m.timers[t.id] = t
	if period > 0 {
		m.started++
	}
	return t
}

func (t *manualTimer) Stop() bool {
	m := t.s
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timers[t.id]; !ok {
		return false
	}
	delete(m.timers, t.id)
	if t.period > 0 {
		m.stopped++
	}
	return true
}

// Advance moves the clock forward by d, firing due callbacks in time order
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due []*manualTimer
		for _, t := range m.timers {
			if !t.at.After(end) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			m.now = end
			m.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].id < due[j].id
			}
			return due[i].at.Before(due[j].at)
		})
		t := due[0]
		m.now = t.at
		if t.period > 0 {
			t.at = t.at.Add(t.period)
		} else {
			delete(m.timers, t.id)
		}
		m.mu.Unlock()

		t.f()
	}
}

// Pending returns the number of timers still scheduled
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Repeating returns how many repeating timers were started and how many were stopped
func (m *ManualScheduler) Repeating() (started, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.stopped
}
