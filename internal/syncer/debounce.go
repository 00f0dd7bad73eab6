package syncer

import (
	"sync"
	"time"
)

// DefaultDebounce is the idle window after the last mutation before a
// reconciliation fetch is issued.
const DefaultDebounce = 800 * time.Millisecond

// Debouncer runs fn once the delay has passed since the most recent Arm.
// Re-arming restarts the window, so a burst of Arm calls collapses into a
// single run.
type Debouncer struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	fn      func()
	timer   Timer
	gen     uint64
	armedAt time.Time
}

// NewDebouncer returns a disarmed debouncer.
func NewDebouncer(clock Clock, delay time.Duration, fn func()) *Debouncer {
	if clock == nil {
		clock = RealClock{}
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{clock: clock, delay: delay, fn: fn}
}

// Delay is the configured idle window.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Arm (re)starts the window.
func (d *Debouncer) Arm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.armedAt = d.clock.Now()
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Disarm cancels a pending run.  It reports whether one was pending.
func (d *Debouncer) Disarm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disarmLocked()
}

func (d *Debouncer) disarmLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// FireNow runs a pending fn immediately on the calling goroutine instead of
// waiting for the window to close.  It reports whether anything ran.
func (d *Debouncer) FireNow() bool {
	d.mu.Lock()
	pending := d.disarmLocked()
	d.mu.Unlock()
	if pending {
		d.fn()
	}
	return pending
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Deadline is when the pending run fires; zero when disarmed.
func (d *Debouncer) Deadline() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return time.Time{}
	}
	return d.armedAt.Add(d.delay)
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// a timer stopped too late still calls in; its generation is stale
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}
