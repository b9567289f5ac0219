// Package watchdog provides restartable countdown timers that report a single expiry per
// countdown cycle.
package watchdog

import (
	"sync"
	"time"
)

// Expiry is delivered when a countdown elapses without being reset.
// Epoch identifies the countdown cycle; see Timer.Current.
type Expiry struct {
	Name  string
	Epoch uint64
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// Timer is a restartable, cancellable countdown.
//
// Expiry callbacks run on their own goroutine and may arrive after the timer was reset or
// stopped. Consumers must check Current before acting on one.
type Timer struct {
	mu       sync.Mutex
	name     string
	interval time.Duration
	onExpire func(Expiry)
	clock    Clock

	armed    bool
	deadline time.Time
	frozen   time.Duration // remaining time while disarmed
	epoch    uint64
	pending  Stopper
}

// New creates a disarmed timer. onExpire may be nil.
func New(name string, interval time.Duration, onExpire func(Expiry), opts ...Option) *Timer {
	t := &Timer{
		name:     name,
		interval: interval,
		onExpire: onExpire,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.frozen = interval
	return t
}

// Name returns the timer name given at construction.
func (t *Timer) Name() string { return t.name }

// Interval returns the configured countdown interval.
func (t *Timer) Interval() time.Duration { return t.interval }

// Start arms the countdown from the full interval. Starting an armed timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		return
	}
	t.armed = true
	t.scheduleLocked()
}

// Reset restarts the countdown from the full interval. It does not arm a stopped timer;
// a disarmed timer only has its remaining time refilled.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		t.cancelLocked()
		t.frozen = t.interval
		return
	}
	t.scheduleLocked()
}

// Restart arms the timer and restarts the countdown, whatever its current state.
func (t *Timer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = true
	t.scheduleLocked()
}

// Stop disarms the timer. Any expiry already in flight becomes stale.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		t.frozen = t.leftLocked()
	}
	t.armed = false
	t.cancelLocked()
}

// Armed reports whether a countdown is running.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Remaining returns the time left in the current countdown, never negative.
// A disarmed timer reports what was left when it stopped, zero after an expiry.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return t.frozen
	}
	return t.leftLocked()
}

// Current reports whether an expiry with the given epoch belongs to the live countdown,
// i.e. nothing restarted, reset or stopped the timer since it was scheduled.
func (t *Timer) Current(epoch uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch == epoch
}

func (t *Timer) leftLocked() time.Duration {
	left := t.deadline.Sub(t.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (t *Timer) scheduleLocked() {
	t.cancelLocked()
	t.deadline = t.clock.Now().Add(t.interval)
	epoch := t.epoch
	t.pending = t.clock.AfterFunc(t.interval, func() { t.fire(epoch) })
}

func (t *Timer) cancelLocked() {
	t.epoch++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) fire(epoch uint64) {
	t.mu.Lock()
	if t.epoch != epoch || !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.pending = nil
	t.frozen = 0
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb(Expiry{Name: t.name, Epoch: epoch})
	}
}
