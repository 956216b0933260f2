package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
)

// MaxIdleDelay is the idle wait reported when no timer is armed.
const MaxIdleDelay = 1000 * time.Second

type node struct {
	timer      *Timer
	prev, next int32
	gen        uint32
}

// List holds armed timers in ascending expiry order.
type List struct {
	clock clock.Clock

	mu    sync.Mutex
	nodes []node
	free  []int32
	n     int

	// running gives Run its attempt semantics: a thread that finds another
	// thread running timers goes back to its tasks instead of blocking.
	running sync.Mutex

	changed chan struct{}
}

// NewList returns an empty list reading time from clk.
func NewList(clk clock.Clock) *List {
	return &List{
		clock:   clk,
		nodes:   []node{{}},
		changed: make(chan struct{}, 1),
	}
}

// Clock returns the list's time source.
func (l *List) Clock() clock.Clock { return l.clock }

// Changed receives after a timer is armed at the head of the list, so an
// idle driver can shorten its wait.
func (l *List) Changed() <-chan struct{} { return l.changed }

func (l *List) notify() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}

// Len returns the number of armed timers.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Timers returns the armed timers from head to tail.
func (l *List) Timers() []*Timer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Timer, 0, l.n)
	for i := l.nodes[0].next; i != 0; i = l.nodes[i].next {
		out = append(out, l.nodes[i].timer)
	}
	return out
}

// Expiries returns the expiries of the armed timers from head to tail.
func (l *List) Expiries() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]time.Time, 0, l.n)
	for i := l.nodes[0].next; i != 0; i = l.nodes[i].next {
		out = append(out, l.nodes[i].timer.expiry)
	}
	return out
}

// Run fires every timer whose expiry is not after now, head first, while
// runcount stays positive. A nil runcount means no budget check. Hooks run
// with the list unlocked and may rearm timers; a timer rearmed at or before
// now waits for the next Run. Run returns immediately if another goroutine
// is already running timers.
func (l *List) Run(runcount *atomic.Int32) int {
	if !l.running.TryLock() {
		return 0
	}
	defer l.running.Unlock()

	now := l.clock.Now()
	l.mu.Lock()
	budget := l.n
	l.mu.Unlock()

	fired := 0
	for fired < budget && (runcount == nil || runcount.Load() > 0) {
		l.mu.Lock()
		head := l.nodes[0].next
		if head == 0 || l.nodes[head].timer.expiry.After(now) {
			l.mu.Unlock()
			break
		}
		t := l.nodes[head].timer
		l.unlink(t)
		l.mu.Unlock()

		t.fires.Add(1)
		t.hook(t)
		fired++
	}
	return fired
}

// NextDelay returns how long an idle driver may wait before the head timer
// expires, clamped at zero. With no armed timers it returns MaxIdleDelay
// and false.
func (l *List) NextDelay() (time.Duration, bool) {
	l.mu.Lock()
	head := l.nodes[0].next
	if head == 0 {
		l.mu.Unlock()
		return MaxIdleDelay, false
	}
	expiry := l.nodes[head].timer.expiry
	l.mu.Unlock()

	d := expiry.Sub(l.clock.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// UnscheduleAll disarms every timer.
func (l *List) UnscheduleAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.nodes[0].next != 0 {
		l.unlink(l.nodes[l.nodes[0].next].timer)
	}
}

// insert links t before the first timer expiring strictly later, so equal
// expiries fire in arming order. It reports whether t became the head.
// Caller holds l.mu.
func (l *List) insert(t *Timer) bool {
	var idx int32
	if k := len(l.free); k > 0 {
		idx = l.free[k-1]
		l.free = l.free[:k-1]
	} else {
		l.nodes = append(l.nodes, node{})
		idx = int32(len(l.nodes) - 1)
	}

	at := int32(0)
	for i := l.nodes[0].next; i != 0; i = l.nodes[i].next {
		if l.nodes[i].timer.expiry.After(t.expiry) {
			at = i
			break
		}
	}

	prev := l.nodes[at].prev
	n := &l.nodes[idx]
	n.timer = t
	n.prev = prev
	n.next = at
	l.nodes[prev].next = idx
	l.nodes[at].prev = idx

	t.slot = idx
	t.gen = n.gen
	l.n++
	return prev == 0
}

// unlink removes t. Caller holds l.mu and t is linked.
func (l *List) unlink(t *Timer) {
	idx := t.slot
	if idx <= 0 || int(idx) >= len(l.nodes) {
		panic("timer: timer list corrupted: bad slot")
	}
	n := &l.nodes[idx]
	if n.timer != t || n.gen != t.gen {
		panic("timer: timer list corrupted: stale handle")
	}
	l.nodes[n.prev].next = n.next
	l.nodes[n.next].prev = n.prev
	n.timer = nil
	n.prev, n.next = 0, 0
	n.gen++
	l.free = append(l.free, idx)

	t.slot = 0
	l.n--
}
