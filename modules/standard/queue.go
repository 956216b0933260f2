package standard

import (
	"strconv"
	"sync"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/gammazero/deque"
)

const defaultQueueCapacity = 1000

// drainer is storage whose packets a replacement element can take over.
type drainer interface {
	drain() []*packet.Packet
}

// Queue stores pushed packets in FIFO order until they are pulled. Packets
// arriving when CAPACITY packets are held are dropped.
type Queue struct {
	element.Base
	listeners

	class     string
	mu        sync.Mutex
	q         deque.Deque[*packet.Packet]
	capacity  int
	highwater int
	drops     uint64
}

func (q *Queue) Class() string          { return q.class }
func (*Queue) PortCount() string        { return element.Ports1to1 }
func (*Queue) Processing() string       { return element.PushToPull }
func (*Queue) FlowCode() string         { return "x/x" }
func (*Queue) CanLiveReconfigure() bool { return true }

func (q *Queue) Configure(conf []string, eh *errh.Handler) error {
	capacity := defaultQueueCapacity
	if err := confparse.NewArgs(conf, eh).ReadP("CAPACITY", confparse.Int(&capacity)).Complete(); err != nil {
		return err
	}
	if capacity < 1 {
		return eh.Error("CAPACITY must be positive")
	}
	q.mu.Lock()
	q.capacity = capacity
	q.mu.Unlock()
	return nil
}

func (q *Queue) Configuration() []string {
	return []string{strconv.Itoa(q.Capacity())}
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Len()
}

func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

func (q *Queue) Drops() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}

func (q *Queue) Push(_ int, p *packet.Packet) {
	q.mu.Lock()
	if q.q.Len() >= q.capacity {
		q.drops++
		q.mu.Unlock()
		p.Kill()
		return
	}
	p.ResetDepth()
	q.q.PushBack(p)
	n := q.q.Len()
	q.highwater = max(q.highwater, n)
	q.mu.Unlock()
	if n == 1 {
		q.wake()
	}
}

func (q *Queue) Pull(int) *packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.q.Len() == 0 {
		return nil
	}
	return q.q.PopFront()
}

func (q *Queue) drain() []*packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*packet.Packet, 0, q.q.Len())
	for q.q.Len() > 0 {
		out = append(out, q.q.PopFront())
	}
	return out
}

// TakeState moves the packets of the queue being replaced into q. Packets
// beyond q's capacity are dropped.
func (q *Queue) TakeState(old element.Element, eh *errh.Handler) {
	d, ok := old.(drainer)
	if !ok {
		return
	}
	q.mu.Lock()
	for _, p := range d.drain() {
		if q.q.Len() >= q.capacity {
			q.drops++
			p.Kill()
			continue
		}
		q.q.PushBack(p)
	}
	q.highwater = max(q.highwater, q.q.Len())
	n := q.q.Len()
	q.mu.Unlock()
	if n > 0 {
		eh.Message("took %d packets from %s", n, element.Declaration(old))
		q.wake()
	}
}

func (q *Queue) AddHandlers() {
	q.AddReadHandler("length", func() string { return strconv.Itoa(q.Size()) })
	q.AddReadHandler("highwater_length", func() string {
		q.mu.Lock()
		defer q.mu.Unlock()
		return strconv.Itoa(q.highwater)
	})
	q.AddReadHandler("drops", func() string { return strconv.FormatUint(q.Drops(), 10) })
	read, write := intHandlers(&q.mu, &q.capacity, "capacity", 1, nil)
	q.AddReadHandler("capacity", read)
	q.AddWriteHandler("capacity", write)
	q.AddWriteHandler("reset_counts", func(string, *errh.Handler) error {
		q.mu.Lock()
		q.drops = 0
		q.highwater = q.q.Len()
		q.mu.Unlock()
		return nil
	})
	q.AddWriteHandler("reset", func(string, *errh.Handler) error {
		for _, p := range q.drain() {
			p.Kill()
		}
		return nil
	})
}
