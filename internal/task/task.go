package task

import (
	"sync/atomic"
)

const (
	// StrideOne is the pass distance travelled per run by a task holding a
	// single ticket.
	StrideOne = 1 << 16
	// MaxTickets bounds the tickets a task may hold.
	MaxTickets = 1 << 15
	// DefaultTickets is the ticket count of a new task.
	DefaultTickets = 1 << 10
)

// Hook is a task callback. It reports whether it did useful work.
type Hook func(t *Task) bool

// Task is a schedulable unit of recurring work. Its list position is
// protected by the lock of its home thread.
type Task struct {
	hook Hook

	// Owner is an opaque back reference, typically the element.
	Owner any

	home atomic.Pointer[Thread]

	// guarded by home.mu
	slot    int32
	gen     uint32
	tickets int
	stride  uint32
	pass    uint32

	runs atomic.Uint64
}

// New returns an unattached task.
func New(hook Hook) *Task {
	t := &Task{hook: hook}
	t.setTickets(DefaultTickets)
	return t
}

func (t *Task) setTickets(n int) {
	t.tickets = n
	t.stride = StrideOne / uint32(n)
}

// Initialize binds the task to th and, if schedule is set, appends it to
// th's list.
func (t *Task) Initialize(th *Thread, schedule bool) {
	t.home.Store(th)
	if schedule {
		t.Reschedule()
	}
}

// Initialized reports whether the task has a home thread.
func (t *Task) Initialized() bool {
	return t.home.Load() != nil
}

// Thread returns the home thread, or nil before Initialize.
func (t *Task) Thread() *Thread {
	return t.home.Load()
}

// HomeThreadID returns the home thread's id, or -1 before Initialize.
func (t *Task) HomeThreadID() int {
	if th := t.home.Load(); th != nil {
		return th.id
	}
	return -1
}

// lockHome locks the current home thread, retrying if a concurrent
// MoveThread changes it.
func (t *Task) lockHome() *Thread {
	for {
		th := t.home.Load()
		if th == nil {
			return nil
		}
		th.mu.Lock()
		if t.home.Load() == th {
			return th
		}
		th.mu.Unlock()
	}
}

// Scheduled reports whether the task is currently on a list.
func (t *Task) Scheduled() bool {
	th := t.lockHome()
	if th == nil {
		return false
	}
	defer th.mu.Unlock()
	return t.slot != 0
}

// Reschedule places the task at the tail of its home thread's list,
// unlinking it first if it is already scheduled, and wakes the thread.
func (t *Task) Reschedule() {
	th := t.lockHome()
	if th == nil {
		return
	}
	if t.slot != 0 {
		th.unlink(t)
	} else {
		th.catchUp(t)
	}
	th.insertTail(t)
	th.mu.Unlock()
	th.notify()
}

// FastReschedule is Reschedule for a task calling from its own callback:
// the task is known to be off its list and its thread is awake.
func (t *Task) FastReschedule() {
	th := t.lockHome()
	if th == nil {
		return
	}
	if t.slot != 0 {
		th.unlink(t)
	}
	if th.stride {
		t.pass += t.stride
	}
	th.insert(t)
	th.mu.Unlock()
}

// Unschedule removes the task from its list. It is a no-op when the task
// is not scheduled, and safe to call from the task's own callback or from
// another goroutine.
func (t *Task) Unschedule() {
	th := t.lockHome()
	if th == nil {
		return
	}
	if t.slot != 0 {
		th.unlink(t)
	}
	th.mu.Unlock()
}

// Tickets returns the task's ticket count.
func (t *Task) Tickets() int {
	th := t.lockHome()
	if th == nil {
		return t.tickets
	}
	defer th.mu.Unlock()
	return t.tickets
}

// SetTickets sets the ticket count, clamped to [1, MaxTickets].
func (t *Task) SetTickets(n int) {
	if n < 1 {
		n = 1
	} else if n > MaxTickets {
		n = MaxTickets
	}
	th := t.lockHome()
	t.setTickets(n)
	if th != nil {
		th.mu.Unlock()
	}
}

// MoveThread rehomes the task onto to. A scheduled task is unlinked from
// its old list and appended to the new one with both lists locked, so it is
// never on two lists and never lost.
func (t *Task) MoveThread(to *Thread) {
	for {
		from := t.home.Load()
		if from == nil {
			t.home.Store(to)
			return
		}
		if from == to {
			return
		}

		first, second := from, to
		if to.id < from.id {
			first, second = to, from
		}
		first.mu.Lock()
		second.mu.Lock()
		if t.home.Load() != from {
			second.mu.Unlock()
			first.mu.Unlock()
			continue
		}

		scheduled := t.slot != 0
		if scheduled {
			from.unlink(t)
		}
		t.home.Store(to)
		if scheduled {
			to.catchUp(t)
			to.insertTail(t)
		}
		second.mu.Unlock()
		first.mu.Unlock()
		if scheduled {
			to.notify()
		}
		return
	}
}

// Runs returns how many times the hook has been called.
func (t *Task) Runs() uint64 {
	return t.runs.Load()
}

func (t *Task) call() bool {
	t.runs.Add(1)
	return t.hook(t)
}
