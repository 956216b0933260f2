package router

import (
	"fmt"
	"sync"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/flow"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/task"
)

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

// stub is a configurable pass-through element that records its lifecycle.
type stub struct {
	element.Base
	rec            *recorder
	proc           string
	ports          string
	flowCode       string
	phase          int
	failConfigure  bool
	failInitialize bool
}

func newStub(rec *recorder, proc, ports string) *stub {
	return &stub{rec: rec, proc: proc, ports: ports, phase: element.PhaseDefault}
}

func (p *stub) Class() string { return "Stub" }

func (p *stub) Processing() string {
	if p.proc == "" {
		return element.Agnostic
	}
	return p.proc
}

func (p *stub) PortCount() string {
	if p.ports == "" {
		return element.PortsAny
	}
	return p.ports
}

func (p *stub) FlowCode() string {
	if p.flowCode == "" {
		return flow.Complete
	}
	return p.flowCode
}

func (p *stub) ConfigurePhase() int { return p.phase }

func (p *stub) Configure(conf []string, eh *errh.Handler) error {
	if p.rec != nil {
		p.rec.add("configure %s", p.Name())
	}
	if p.failConfigure {
		return eh.Error("bad configuration")
	}
	return nil
}

func (p *stub) Initialize(eh *errh.Handler) error {
	if p.rec != nil {
		p.rec.add("initialize %s", p.Name())
	}
	if p.failInitialize {
		return eh.Error("cannot initialize")
	}
	return nil
}

func (p *stub) Cleanup(stage element.CleanupStage) {
	if p.rec != nil {
		p.rec.add("cleanup %s %s", p.Name(), stage)
	}
}

func (p *stub) SimpleAction(pkt *packet.Packet) *packet.Packet { return pkt }

// fifo is a bounded push-to-pull queue.
type fifo struct {
	element.Base
	capacity int
	q        []*packet.Packet
	drops    int
}

func (f *fifo) Class() string      { return "FIFO" }
func (f *fifo) Processing() string { return element.PushToPull }
func (f *fifo) PortCount() string  { return element.Ports1to1 }
func (f *fifo) Size() int          { return len(f.q) }
func (f *fifo) Capacity() int      { return f.capacity }

func (f *fifo) Configure(conf []string, eh *errh.Handler) error {
	capacity := 1000
	if err := confparse.NewArgs(conf, eh).ReadP("CAPACITY", confparse.Int(&capacity)).Complete(); err != nil {
		return err
	}
	f.capacity = capacity
	return nil
}

func (f *fifo) Push(_ int, p *packet.Packet) {
	if len(f.q) >= f.capacity {
		f.drops++
		p.Kill()
		return
	}
	p.ResetDepth()
	f.q = append(f.q, p)
}

func (f *fifo) Pull(int) *packet.Packet {
	if len(f.q) == 0 {
		return nil
	}
	p := f.q[0]
	f.q = f.q[1:]
	return p
}

func (f *fifo) TakeState(old element.Element, eh *errh.Handler) {
	o, ok := old.(*fifo)
	if !ok {
		eh.Warning("cannot take state from %s", element.Declaration(old))
		return
	}
	f.q, o.q = append(f.q, o.q...), nil
}

func (f *fifo) AddHandlers() {
	f.AddReadHandler("length", func() string { return fmt.Sprint(len(f.q)) })
	f.AddReadHandler("drops", func() string { return fmt.Sprint(f.drops) })
}

// ticker runs a task that asks the driver to stop after limit runs.
type ticker struct {
	element.Base
	limit int
	runs  int
	task  *task.Task
}

func (t *ticker) Class() string     { return "Ticker" }
func (t *ticker) PortCount() string { return "0/0" }

func (t *ticker) Initialize(*errh.Handler) error {
	t.task = t.NewTask()
	t.InitTask(t.task, true)
	return nil
}

func (t *ticker) RunTask(tk *task.Task) bool {
	t.runs++
	if t.runs >= t.limit {
		t.PleaseStop()
		return true
	}
	tk.FastReschedule()
	return true
}

// knob is a live-reconfigurable element holding one value.
type knob struct {
	element.Base
	value int
}

func (k *knob) Class() string            { return "Knob" }
func (k *knob) PortCount() string        { return "0/0" }
func (k *knob) CanLiveReconfigure() bool { return true }
func (k *knob) Configuration() []string  { return []string{fmt.Sprintf("VALUE %d", k.value)} }
func (k *knob) Configure(conf []string, eh *errh.Handler) error {
	return confparse.NewArgs(conf, eh).ReadMP("VALUE", confparse.Int(&k.value)).Complete()
}
