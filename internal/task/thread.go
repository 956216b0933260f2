package task

import (
	"sync"
)

type node struct {
	task       *Task
	prev, next int32
	gen        uint32
}

// Thread owns one circular task list. Slot 0 of the slab is the sentinel.
type Thread struct {
	id     int
	stride bool

	mu    sync.Mutex
	nodes []node
	free  []int32
	n     int
	// pass of the most recently popped task, used to bring idle tasks up
	// to date when they are scheduled again.
	pass uint32

	wake chan struct{}
}

// NewThread returns an empty thread. Stride scheduling orders the list by
// pass instead of plain arrival.
func NewThread(id int, stride bool) *Thread {
	return &Thread{
		id:     id,
		stride: stride,
		nodes:  []node{{}},
		wake:   make(chan struct{}, 1),
	}
}

// ID returns the thread's index within its driver.
func (th *Thread) ID() int { return th.id }

// Stride reports whether ticket scheduling is enabled.
func (th *Thread) Stride() bool { return th.stride }

// Len returns the number of scheduled tasks.
func (th *Thread) Len() int {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.n
}

// Wake returns a channel that receives after a task is scheduled from
// outside the thread.
func (th *Thread) Wake() <-chan struct{} { return th.wake }

// Kick wakes the thread if it is idle.
func (th *Thread) Kick() { th.notify() }

func (th *Thread) notify() {
	select {
	case th.wake <- struct{}{}:
	default:
	}
}

// Tasks returns the scheduled tasks from head to tail.
func (th *Thread) Tasks() []*Task {
	th.mu.Lock()
	defer th.mu.Unlock()
	out := make([]*Task, 0, th.n)
	for i := th.nodes[0].next; i != 0; i = th.nodes[i].next {
		out = append(out, th.nodes[i].task)
	}
	return out
}

// UnscheduleAll empties the list.
func (th *Thread) UnscheduleAll() {
	th.mu.Lock()
	defer th.mu.Unlock()
	for th.nodes[0].next != 0 {
		th.unlink(th.nodes[th.nodes[0].next].task)
	}
}

// RunTasks makes one sweep: every task scheduled when the sweep starts is
// popped and called once, head first. It returns the number of tasks run
// and whether any of them did useful work.
func (th *Thread) RunTasks() (ran int, worked bool) {
	th.mu.Lock()
	budget := th.n
	th.mu.Unlock()

	for ; ran < budget; ran++ {
		th.mu.Lock()
		head := th.nodes[0].next
		if head == 0 {
			th.mu.Unlock()
			break
		}
		t := th.nodes[head].task
		th.unlink(t)
		th.pass = t.pass
		th.mu.Unlock()

		if t.call() {
			worked = true
		}
	}
	return ran, worked
}

// catchUp keeps a task that sat idle from claiming all the CPU it missed.
// Caller holds th.mu.
func (th *Thread) catchUp(t *Task) {
	if th.stride && passBefore(t.pass, th.pass) {
		t.pass = th.pass
	}
}

// passBefore compares pass values modulo wraparound.
func passBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// insert links t before the first task it should precede. Caller holds
// th.mu and t is unlinked.
func (th *Thread) insert(t *Task) {
	th.link(t, false)
}

// insertTail links t at the tail. In stride mode t's pass is raised to the
// tail's so the list stays ordered by pass. Caller holds th.mu and t is
// unlinked.
func (th *Thread) insertTail(t *Task) {
	th.link(t, true)
}

func (th *Thread) link(t *Task, tail bool) {
	var idx int32
	if k := len(th.free); k > 0 {
		idx = th.free[k-1]
		th.free = th.free[:k-1]
	} else {
		th.nodes = append(th.nodes, node{})
		idx = int32(len(th.nodes) - 1)
	}

	// Tail by default; in stride mode, before the first task with a later pass.
	at := int32(0)
	if tail {
		if last := th.nodes[0].prev; th.stride && last != 0 && passBefore(t.pass, th.nodes[last].task.pass) {
			t.pass = th.nodes[last].task.pass
		}
	} else if th.stride {
		for i := th.nodes[0].next; i != 0; i = th.nodes[i].next {
			if passBefore(t.pass, th.nodes[i].task.pass) {
				at = i
				break
			}
		}
	}

	prev := th.nodes[at].prev
	n := &th.nodes[idx]
	n.task = t
	n.prev = prev
	n.next = at
	th.nodes[prev].next = idx
	th.nodes[at].prev = idx

	t.slot = idx
	t.gen = n.gen
	th.n++
}

// unlink removes t from the list. Caller holds th.mu and t is linked.
func (th *Thread) unlink(t *Task) {
	idx := t.slot
	if idx <= 0 || int(idx) >= len(th.nodes) {
		panic("task: scheduling list corrupted: bad slot")
	}
	n := &th.nodes[idx]
	if n.task != t || n.gen != t.gen {
		panic("task: scheduling list corrupted: stale handle")
	}
	th.nodes[n.prev].next = n.next
	th.nodes[n.next].prev = n.prev
	n.task = nil
	n.prev, n.next = 0, 0
	n.gen++
	th.free = append(th.free, idx)

	t.slot = 0
	th.n--
}
