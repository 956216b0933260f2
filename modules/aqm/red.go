package aqm

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
)

const (
	// QueueScale is the number of fractional bits of the average queue size.
	QueueScale = 10
	// MaxThresh bounds MIN_THRESH and MAX_THRESH.
	MaxThresh = 0xFFFF
	// One is 1.0 as a MAX_P fixed-point value.
	One = 0x10000

	jiffy = 20 * time.Millisecond
)

// params is one validated RED configuration.
type params struct {
	minThresh, maxThresh uint
	maxP                 uint32
	stability            uint
	queues               []string
}

func parseParams(conf []string, eh *errh.Handler) (params, error) {
	p := params{stability: 4}
	err := confparse.NewArgs(conf, eh).
		ReadMP("MIN_THRESH", confparse.Uint(&p.minThresh)).
		ReadMP("MAX_THRESH", confparse.Uint(&p.maxThresh)).
		ReadMP("MAX_P", confparse.UnsignedReal2(&p.maxP, 16)).
		Read("QUEUES", confparse.Words(&p.queues)).
		Read("STABILITY", confparse.Uint(&p.stability)).
		Complete()
	if err != nil {
		return p, err
	}
	switch {
	case p.maxThresh > MaxThresh:
		return p, eh.Error("MAX_THRESH too large (max %d)", MaxThresh)
	case p.minThresh > p.maxThresh:
		return p, eh.Error("MIN_THRESH greater than MAX_THRESH")
	case p.maxP > One:
		return p, eh.Error("MAX_P must be between 0 and 1")
	case p.stability < 1 || p.stability > 16:
		return p, eh.Error("STABILITY must be between 1 and 16")
	}
	return p, nil
}

// ewma is the scaled running average of the queue size.
type ewma struct {
	avg   int64
	shift uint
}

func (a *ewma) update(v int64) { a.avg += (v - a.avg) >> a.shift }

// decay applies n updates with an empty queue.
func (a *ewma) decay(n int64) {
	for ; n > 0 && a.avg > 0; n-- {
		a.avg -= (a.avg + (1 << a.shift) - 1) >> a.shift
	}
	if a.avg < 0 {
		a.avg = 0
	}
}

// RED drops packets early as the average length of the queues it watches
// grows, following Random Early Detection.
type RED struct {
	element.Base
	mu sync.Mutex
	params

	c1, c2, g1, g2 int64

	size        ewma
	lastJiffies int64
	count       int64
	random      int64
	drops       uint64

	queueElems []element.Element
	storages   []element.Storage
}

var (
	_ element.LiveConfigurer = (*RED)(nil)
	_ element.StateTaker     = (*RED)(nil)
)

func (*RED) Class() string            { return "RED" }
func (*RED) PortCount() string        { return element.Ports1to1or2 }
func (*RED) Processing() string       { return "a/ah" }
func (*RED) CanLiveReconfigure() bool { return true }

func (r *RED) Configure(conf []string, eh *errh.Handler) error {
	p, err := parseParams(conf, eh)
	if err != nil {
		return err
	}
	r.apply(p)
	return nil
}

// LiveReconfigure changes the thresholds and MAX_P. QUEUES is ignored.
func (r *RED) LiveReconfigure(conf []string, eh *errh.Handler) error {
	p, err := parseParams(conf, eh)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	queues := r.queues
	r.apply(p)
	r.queues = queues
	return nil
}

func (r *RED) apply(p params) {
	r.params = p
	r.size.shift = p.stability
	hi, lo, maxP := int64(p.maxThresh), int64(p.minThresh), int64(p.maxP)
	if lo >= hi {
		r.c1, r.c2 = 0, 1
	} else {
		r.c1 = maxP / (hi - lo)
		r.c2 = maxP * lo / (hi - lo)
	}
	if hi > 0 {
		r.g1 = (One - maxP) / hi
	} else {
		r.g1 = 0
	}
	r.g2 = One - 2*maxP
}

func (r *RED) Configuration() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	conf := []string{
		strconv.FormatUint(uint64(r.minThresh), 10),
		strconv.FormatUint(uint64(r.maxThresh), 10),
		confparse.UnparseReal2(uint64(r.maxP), 16),
	}
	if names := r.queueNames(); len(names) > 0 {
		conf = append(conf, "QUEUES "+strings.Join(names, " "))
	}
	return append(conf, "STABILITY "+strconv.FormatUint(uint64(r.stability), 10))
}

func (r *RED) queueNames() []string {
	if len(r.queueElems) == 0 {
		return r.queues
	}
	names := make([]string, len(r.queueElems))
	for i, e := range r.queueElems {
		names[i] = e.BaseElement().Name()
	}
	return names
}

func (r *RED) Initialize(eh *errh.Handler) error {
	r.queueElems, r.storages = nil, nil
	ctx := r.Router()
	if len(r.queues) > 0 {
		for _, name := range r.queues {
			e, err := ctx.Find(name, r)
			if err != nil {
				eh.Error("%v", err)
				continue
			}
			r.queueElems = append(r.queueElems, e)
		}
		if len(r.queueElems) != len(r.queues) {
			return fmt.Errorf("bad QUEUES")
		}
	} else {
		var found []element.Element
		var err error
		if r.OutputIsPush(0) {
			found, err = ctx.DownstreamElements(r, 0, element.IsStorage)
		} else {
			found, err = ctx.UpstreamElements(r, 0, element.IsStorage)
		}
		if err != nil {
			return eh.Error("flow-based router context failure: %v", err)
		}
		r.queueElems = found
	}
	if len(r.queueElems) == 0 {
		return eh.Error("no Queues downstream")
	}
	var first error
	for _, e := range r.queueElems {
		s, ok := e.(element.Storage)
		if !ok {
			if err := eh.Error("'%s' is not a Storage element", e.BaseElement().Name()); first == nil {
				first = err
			}
			continue
		}
		r.storages = append(r.storages, s)
	}
	if first != nil {
		return first
	}
	r.size.avg = 0
	r.drops = 0
	r.count = -1
	r.lastJiffies = 0
	r.random = randomValue()
	return nil
}

// TakeState carries the running average over a hot swap.
func (r *RED) TakeState(old element.Element, _ *errh.Handler) {
	o, ok := old.(*RED)
	if !ok {
		return
	}
	o.mu.Lock()
	avg := o.size.avg
	o.mu.Unlock()
	r.mu.Lock()
	r.size.avg = avg
	r.mu.Unlock()
}

func randomValue() int64 { return int64(rand.Uint32() & 0xFFFF) }

func (r *RED) queueSize() int {
	n := 0
	for _, s := range r.storages {
		n += s.Size()
	}
	return n
}

func (r *RED) jiffies() int64 {
	return r.Master().Clock().Now().UnixNano() / int64(jiffy)
}

// shouldDrop updates the average and decides the fate of one packet.
func (r *RED) shouldDrop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.queueSize(); s > 0 {
		r.size.update(int64(s) << QueueScale)
		r.lastJiffies = 0
	} else {
		j := r.jiffies()
		if r.lastJiffies != 0 {
			r.size.decay(j - r.lastJiffies)
		} else {
			r.size.decay(1)
		}
		r.lastJiffies = j
	}

	avg := r.size.avg >> QueueScale
	switch {
	case avg <= int64(r.minThresh):
		r.count = -1
		return false
	case avg > 2*int64(r.maxThresh):
		r.count = -1
		return true
	}

	var pb int64
	if avg <= int64(r.maxThresh) {
		pb = (r.c1*r.size.avg)>>QueueScale - r.c2
	} else {
		pb = (r.g1*r.size.avg)>>QueueScale - r.g2
	}

	r.count++
	if r.count > 0 && pb > 0 && r.count > r.random/pb {
		r.count = 0
		r.random = randomValue()
		return true
	}
	if r.count == 0 {
		r.random = randomValue()
	}
	return false
}

func (r *RED) drop(p *packet.Packet) {
	r.mu.Lock()
	r.drops++
	r.mu.Unlock()
	if r.NOutputs() == 1 {
		p.Kill()
		return
	}
	r.Output(1).Push(p)
}

func (r *RED) Push(_ int, p *packet.Packet) {
	if r.shouldDrop() {
		r.drop(p)
		return
	}
	r.Output(0).Push(p)
}

func (r *RED) Pull(int) *packet.Packet {
	for {
		p := r.Input(0).Pull()
		if p == nil {
			return nil
		}
		if !r.shouldDrop() {
			return p
		}
		r.drop(p)
	}
}

// Drops returns the number of packets dropped so far.
func (r *RED) Drops() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drops
}

// AverageQueueSize returns the scaled running average.
func (r *RED) AverageQueueSize() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size.avg
}

func (r *RED) AddHandlers() {
	r.AddReadHandler("drops", func() string { return strconv.FormatUint(r.Drops(), 10) })
	r.AddReadHandler("stats", func() string {
		avg := confparse.UnparseReal2(uint64(r.AverageQueueSize()), QueueScale)
		return fmt.Sprintf("%d current queue\n%s avg queue\n%d drops\n%d packets\n",
			r.queueSize(), avg, r.Drops(), r.Output(0).NPackets())
	})
	r.AddReadHandler("queues", func() string {
		r.mu.Lock()
		defer r.mu.Unlock()
		var b strings.Builder
		for _, name := range r.queueNames() {
			b.WriteString(name)
			b.WriteByte('\n')
		}
		return b.String()
	})
	r.AddReadHandler("avg_queue_size", func() string {
		return confparse.UnparseReal2(uint64(r.AverageQueueSize()), QueueScale)
	})
	for i, name := range []string{"min_thresh", "max_thresh", "max_p"} {
		i := i
		r.AddReadHandler(name, func() string { return r.Configuration()[i] })
		r.AddWriteHandler(name, func(data string, eh *errh.Handler) error {
			conf := r.Configuration()
			conf[i] = strings.TrimSpace(data)
			return r.Router().CallWrite(r.Name()+".config", confparse.JoinArgs(conf), r, eh)
		})
	}
}
