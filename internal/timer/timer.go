// Package timer implements one-shot, re-armable callbacks kept in a list
// sorted by expiry. The list is index-based over a slab with a sentinel at
// slot 0, and reads time through a clock.Clock so tests can drive it with
// a fake clock.
package timer

import (
	"sync/atomic"
	"time"
)

// Hook is a timer callback.
type Hook func(t *Timer)

// Timer is a deferred callback. Its list position and expiry are protected
// by the lock of the List it was initialized with.
type Timer struct {
	hook Hook

	// Owner is an opaque back reference, typically the element.
	Owner any

	list *List

	// guarded by list.mu
	expiry time.Time
	slot   int32
	gen    uint32

	fires atomic.Uint64
}

// New returns a detached timer.
func New(hook Hook) *Timer {
	return &Timer{hook: hook}
}

// Initialize binds the timer to a list. It must be called before any
// scheduling method.
func (t *Timer) Initialize(l *List) {
	t.list = l
}

// Initialized reports whether the timer is bound to a list.
func (t *Timer) Initialized() bool { return t.list != nil }

func (t *Timer) mustList() *List {
	if t.list == nil {
		panic("timer: scheduled before Initialize")
	}
	return t.list
}

// ScheduleAt arms the timer to fire at when. An armed timer is first
// unscheduled.
func (t *Timer) ScheduleAt(when time.Time) {
	l := t.mustList()
	l.mu.Lock()
	if t.slot != 0 {
		l.unlink(t)
	}
	t.expiry = when
	head := l.insert(t)
	l.mu.Unlock()
	if head {
		l.notify()
	}
}

// ScheduleNow arms the timer to fire on the next run.
func (t *Timer) ScheduleNow() {
	t.ScheduleAt(t.mustList().clock.Now())
}

// ScheduleAfter arms the timer to fire d from now.
func (t *Timer) ScheduleAfter(d time.Duration) {
	t.ScheduleAt(t.mustList().clock.Now().Add(d))
}

// ScheduleAfterSec arms the timer to fire s seconds from now.
func (t *Timer) ScheduleAfterSec(s int) {
	t.ScheduleAfter(time.Duration(s) * time.Second)
}

// ScheduleAfterMs arms the timer to fire ms milliseconds from now.
func (t *Timer) ScheduleAfterMs(ms int) {
	t.ScheduleAfter(time.Duration(ms) * time.Millisecond)
}

// RescheduleAfter arms the timer d after its previous expiry, which keeps
// periodic timers from drifting.
func (t *Timer) RescheduleAfter(d time.Duration) {
	l := t.mustList()
	l.mu.Lock()
	prev := t.expiry
	l.mu.Unlock()
	if prev.IsZero() {
		prev = l.clock.Now()
	}
	t.ScheduleAt(prev.Add(d))
}

// RescheduleAfterSec is RescheduleAfter in seconds.
func (t *Timer) RescheduleAfterSec(s int) {
	t.RescheduleAfter(time.Duration(s) * time.Second)
}

// RescheduleAfterMs is RescheduleAfter in milliseconds.
func (t *Timer) RescheduleAfterMs(ms int) {
	t.RescheduleAfter(time.Duration(ms) * time.Millisecond)
}

// Unschedule disarms the timer. Disarming an idle or uninitialized timer
// is a no-op, and a hook may disarm its own timer.
func (t *Timer) Unschedule() {
	l := t.list
	if l == nil {
		return
	}
	l.mu.Lock()
	if t.slot != 0 {
		l.unlink(t)
	}
	l.mu.Unlock()
}

// Scheduled reports whether the timer is armed.
func (t *Timer) Scheduled() bool {
	l := t.list
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return t.slot != 0
}

// Expiry returns the most recent expiry the timer was armed with.
func (t *Timer) Expiry() time.Time {
	l := t.list
	if l == nil {
		return time.Time{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return t.expiry
}

// Fires returns how many times the hook has run.
func (t *Timer) Fires() uint64 { return t.fires.Load() }
