package timer

import (
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newList() (*List, *fakeclock.FakeClock) {
	clk := fakeclock.NewFakeClock(t0)
	return NewList(clk), clk
}

// Timers re-arming themselves after_ms(100) fire at T+100 and T+200.
func TestTimer_PeriodicRearmFiresOnSchedule(t *testing.T) {
	t.Parallel()

	l, clk := newList()
	var firedAt []time.Time
	tm := New(func(tm *Timer) {
		firedAt = append(firedAt, clk.Now())
		tm.ScheduleAfterMs(100)
	})
	tm.Initialize(l)
	tm.ScheduleAfterMs(100)

	clk.Increment(99 * time.Millisecond)
	require.Zero(t, l.Run(nil))
	require.Empty(t, firedAt)

	clk.Increment(time.Millisecond)
	require.Equal(t, 1, l.Run(nil))
	require.Equal(t, []time.Time{t0.Add(100 * time.Millisecond)}, firedAt)
	require.Zero(t, l.Run(nil), "a timer fires once per expiry")

	clk.Increment(100 * time.Millisecond)
	require.Equal(t, 1, l.Run(nil))
	assert.Equal(t, []time.Time{t0.Add(100 * time.Millisecond), t0.Add(200 * time.Millisecond)}, firedAt)
	assert.Equal(t, uint64(2), tm.Fires())
	assert.True(t, tm.Scheduled())
	assert.Equal(t, t0.Add(300*time.Millisecond), tm.Expiry())
}

func TestList_OrderingInvariant(t *testing.T) {
	t.Parallel()

	l, _ := newList()
	rng := rand.New(rand.NewSource(7))
	timers := make([]*Timer, 50)
	for i := range timers {
		timers[i] = New(func(*Timer) {})
		timers[i].Initialize(l)
	}

	for step := 0; step < 2000; step++ {
		tm := timers[rng.Intn(len(timers))]
		if rng.Intn(4) == 0 {
			tm.Unschedule()
		} else {
			tm.ScheduleAt(t0.Add(time.Duration(rng.Intn(20)) * time.Millisecond))
		}

		exp := l.Expiries()
		for i := 1; i < len(exp); i++ {
			require.False(t, exp[i].Before(exp[i-1]), "step %d: list out of order at %d", step, i)
		}
	}
}

func TestList_EqualExpiriesFireInArmingOrder(t *testing.T) {
	t.Parallel()

	l, clk := newList()
	var order []string
	mk := func(name string) *Timer {
		tm := New(func(*Timer) { order = append(order, name) })
		tm.Initialize(l)
		return tm
	}
	a, b, c := mk("a"), mk("b"), mk("c")
	when := t0.Add(time.Second)
	b.ScheduleAt(when)
	a.ScheduleAt(when)
	c.ScheduleAt(t0.Add(500 * time.Millisecond))

	clk.Increment(time.Second)
	require.Equal(t, 3, l.Run(nil))
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestTimer_RescheduleReplacesPreviousExpiry(t *testing.T) {
	t.Parallel()

	l, _ := newList()
	tm := New(func(*Timer) {})
	tm.Initialize(l)
	tm.ScheduleAfterSec(5)
	tm.ScheduleAfterSec(1)

	require.Equal(t, 1, l.Len())
	assert.Equal(t, t0.Add(time.Second), tm.Expiry())
}

func TestTimer_RescheduleAfterCountsFromPreviousExpiry(t *testing.T) {
	t.Parallel()

	l, clk := newList()
	tm := New(func(*Timer) {})
	tm.Initialize(l)
	tm.ScheduleAfterMs(100)

	clk.Increment(150 * time.Millisecond)
	l.Run(nil)
	tm.RescheduleAfterMs(100)
	assert.Equal(t, t0.Add(200*time.Millisecond), tm.Expiry())
}

func TestTimer_UnscheduleIsIdempotent(t *testing.T) {
	t.Parallel()

	l, clk := newList()
	detached := New(func(*Timer) {})
	detached.Unschedule()
	assert.False(t, detached.Scheduled())

	fired := false
	tm := New(func(*Timer) { fired = true })
	tm.Initialize(l)
	tm.ScheduleAfterMs(10)
	tm.Unschedule()
	tm.Unschedule()

	clk.Increment(time.Second)
	assert.Zero(t, l.Run(nil))
	assert.False(t, fired)
	assert.Zero(t, l.Len())
}

func TestTimer_SchedulingDetachedPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(func(*Timer) {}).ScheduleNow() })
}

func TestList_HookArmingAtNowWaitsForNextRun(t *testing.T) {
	t.Parallel()

	l, _ := newList()
	tm := New(func(tm *Timer) { tm.ScheduleNow() })
	tm.Initialize(l)
	tm.ScheduleNow()

	assert.Equal(t, 1, l.Run(nil))
	assert.True(t, tm.Scheduled())
	assert.Equal(t, 1, l.Run(nil))
}

func TestList_RunRespectsRunCount(t *testing.T) {
	t.Parallel()

	l, clk := newList()
	var runcount atomic.Int32
	fired := 0
	for i := 0; i < 3; i++ {
		tm := New(func(*Timer) {
			fired++
			runcount.Add(-1)
		})
		tm.Initialize(l)
		tm.ScheduleAfterMs(i)
	}
	clk.Increment(time.Second)

	runcount.Store(0)
	assert.Zero(t, l.Run(&runcount))

	runcount.Store(2)
	assert.Equal(t, 2, l.Run(&runcount))
	assert.Equal(t, 1, l.Len())
}

func TestList_RunIsAttemptOnly(t *testing.T) {
	t.Parallel()

	l, _ := newList()
	tm := New(func(*Timer) {})
	tm.Initialize(l)
	tm.ScheduleNow()

	l.running.Lock()
	assert.Zero(t, l.Run(nil), "another runner holds the list")
	l.running.Unlock()
	assert.Equal(t, 1, l.Run(nil))
}

func TestList_NextDelay(t *testing.T) {
	t.Parallel()

	l, clk := newList()
	d, ok := l.NextDelay()
	assert.False(t, ok)
	assert.Equal(t, MaxIdleDelay, d)

	tm := New(func(*Timer) {})
	tm.Initialize(l)
	tm.ScheduleAfterMs(250)
	d, ok = l.NextDelay()
	assert.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, d)

	clk.Increment(time.Second)
	d, _ = l.NextDelay()
	assert.Zero(t, d, "overdue timers clamp to zero")
}

func TestList_ChangedSignalsNewHead(t *testing.T) {
	t.Parallel()

	l, _ := newList()
	late := New(func(*Timer) {})
	late.Initialize(l)
	late.ScheduleAfterSec(10)
	<-l.Changed()

	later := New(func(*Timer) {})
	later.Initialize(l)
	later.ScheduleAfterSec(20)
	select {
	case <-l.Changed():
		t.Fatal("arming behind the head must not signal")
	default:
	}

	early := New(func(*Timer) {})
	early.Initialize(l)
	early.ScheduleAfterSec(1)
	select {
	case <-l.Changed():
	default:
		t.Fatal("arming a new head must signal")
	}
}

func TestList_UnscheduleAll(t *testing.T) {
	t.Parallel()

	l, _ := newList()
	timers := make([]*Timer, 4)
	for i := range timers {
		timers[i] = New(func(*Timer) {})
		timers[i].Initialize(l)
		timers[i].ScheduleAfterSec(i)
	}
	l.UnscheduleAll()
	assert.Zero(t, l.Len())
	for _, tm := range timers {
		assert.False(t, tm.Scheduled())
	}
}
