package standard

import (
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
)

// spinlock serializes producers on the enqueue path.
type spinlock struct{ held atomic.Bool }

func (l *spinlock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinlock) Unlock() { l.held.Store(false) }

// MSQueue is a ring for many pushing threads and a single puller. Producers
// take a spinlock; the consumer only moves the head index.
type MSQueue struct {
	element.Base
	listeners

	capacity  int
	ring      []atomic.Pointer[packet.Packet]
	head      atomic.Uint32
	tail      atomic.Uint32
	drops     atomic.Uint64
	highwater atomic.Int64
	lock      spinlock
}

func (*MSQueue) Class() string      { return "MSQueue" }
func (*MSQueue) PortCount() string  { return element.Ports1to1 }
func (*MSQueue) Processing() string { return element.PushToPull }

func (q *MSQueue) Configure(conf []string, eh *errh.Handler) error {
	capacity := defaultQueueCapacity
	if err := confparse.NewArgs(conf, eh).ReadP("CAPACITY", confparse.Int(&capacity)).Complete(); err != nil {
		return err
	}
	if capacity < 1 {
		return eh.Error("CAPACITY must be positive")
	}
	q.capacity = capacity
	return nil
}

func (q *MSQueue) Initialize(*errh.Handler) error {
	q.ring = make([]atomic.Pointer[packet.Packet], q.capacity+1)
	return nil
}

func (q *MSQueue) Cleanup(element.CleanupStage) {
	for _, p := range q.drain() {
		p.Kill()
	}
}

func (q *MSQueue) next(i uint32) uint32 {
	if int(i) == q.capacity {
		return 0
	}
	return i + 1
}

func (q *MSQueue) Size() int {
	n := int(q.tail.Load()) - int(q.head.Load())
	if n < 0 {
		n += q.capacity + 1
	}
	return n
}

func (q *MSQueue) Capacity() int { return q.capacity }

func (q *MSQueue) Drops() uint64 { return q.drops.Load() }

func (q *MSQueue) Push(_ int, p *packet.Packet) {
	q.lock.Lock()
	tail := q.tail.Load()
	next := q.next(tail)
	if next == q.head.Load() {
		q.lock.Unlock()
		q.drops.Add(1)
		p.Kill()
		return
	}
	p.ResetDepth()
	q.ring[tail].Store(p)
	q.tail.Store(next)
	// Head is read after the tail is published, so a consumer that just
	// found the ring empty is always woken.
	wasEmpty := q.head.Load() == tail
	q.lock.Unlock()

	if n := int64(q.Size()); n > q.highwater.Load() {
		q.highwater.Store(n)
	}
	if wasEmpty {
		q.wake()
	}
}

// Pull must only be called from one goroutine at a time.
func (q *MSQueue) Pull(int) *packet.Packet {
	head := q.head.Load()
	if head == q.tail.Load() {
		return nil
	}
	p := q.ring[head].Swap(nil)
	q.head.Store(q.next(head))
	return p
}

func (q *MSQueue) drain() []*packet.Packet {
	var out []*packet.Packet
	if q.ring == nil {
		return nil
	}
	for p := q.Pull(0); p != nil; p = q.Pull(0) {
		out = append(out, p)
	}
	return out
}

func (q *MSQueue) AddHandlers() {
	q.AddReadHandler("length", func() string { return strconv.Itoa(q.Size()) })
	q.AddReadHandler("highwater_length", func() string { return strconv.FormatInt(q.highwater.Load(), 10) })
	q.AddReadHandler("capacity", func() string { return strconv.Itoa(q.capacity) })
	q.AddReadHandler("drops", func() string { return strconv.FormatUint(q.Drops(), 10) })
}
