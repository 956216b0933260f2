package standard

import (
	"strconv"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/task"
)

// Discard kills every packet it receives. On a pull input a task pulls up
// to BURST packets per run.
type Discard struct {
	element.Base
	count  atomic.Uint64
	burst  int
	task   *task.Task
	sleeps bool
}

func (*Discard) Class() string     { return "Discard" }
func (*Discard) PortCount() string { return element.Ports1to0 }

func (d *Discard) Configure(conf []string, eh *errh.Handler) error {
	d.burst = 1
	if err := confparse.NewArgs(conf, eh).Read("BURST", confparse.Int(&d.burst)).Complete(); err != nil {
		return err
	}
	if d.burst < 1 {
		return eh.Error("BURST must be at least 1")
	}
	return nil
}

func (d *Discard) Initialize(*errh.Handler) error {
	if !d.InputIsPull(0) {
		return nil
	}
	d.task = d.NewTask()
	d.sleeps = listenUpstream(d, 0, d.task)
	d.InitTask(d.task, true)
	return nil
}

func (d *Discard) Push(_ int, p *packet.Packet) {
	d.count.Add(1)
	p.Kill()
}

func (d *Discard) RunTask(t *task.Task) bool {
	n := 0
	for ; n < d.burst; n++ {
		p := d.Input(0).Pull()
		if p == nil {
			break
		}
		d.count.Add(1)
		p.Kill()
	}
	if n > 0 || !d.sleeps {
		t.FastReschedule()
	}
	return n > 0
}

// Count returns the number of packets discarded.
func (d *Discard) Count() uint64 { return d.count.Load() }

func (d *Discard) AddHandlers() {
	d.AddReadHandler("count", func() string { return strconv.FormatUint(d.Count(), 10) })
	d.AddWriteHandler("reset_counts", func(string, *errh.Handler) error {
		d.count.Store(0)
		return nil
	})
}

// Idle never produces packets and kills anything pushed to it.
type Idle struct {
	element.Base
}

func (*Idle) Class() string     { return "Idle" }
func (*Idle) PortCount() string { return element.PortsAny }

// FlowCode "x/y" keeps Idle from linking its inputs to its outputs in
// element searches.
func (*Idle) FlowCode() string { return "x/y" }

func (*Idle) Push(_ int, p *packet.Packet) { p.Kill() }

func (*Idle) Pull(int) *packet.Packet { return nil }
