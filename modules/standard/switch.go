package standard

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
)

// Tee pushes a copy of every packet to each output. The original goes to
// the last output.
type Tee struct {
	element.Base
	n int
}

func (*Tee) Class() string      { return "Tee" }
func (*Tee) PortCount() string  { return "1/1-" }
func (*Tee) Processing() string { return element.PushCode }

func (t *Tee) Configure(conf []string, eh *errh.Handler) error {
	t.n = -1
	if err := confparse.NewArgs(conf, eh).ReadP("N", confparse.Int(&t.n)).Complete(); err != nil {
		return err
	}
	if t.n >= 0 && t.n != t.NOutputs() {
		return eh.Error("N is %d, but %d outputs are connected", t.n, t.NOutputs())
	}
	return nil
}

func (t *Tee) Push(_ int, p *packet.Packet) {
	n := t.NOutputs()
	for i := 0; i < n-1; i++ {
		t.Output(i).Push(p.Clone())
	}
	t.Output(n - 1).Push(p)
}

// StaticSwitch sends every packet to output K. K -1 drops everything.
type StaticSwitch struct {
	element.Base
	k atomic.Int64
}

func (*StaticSwitch) Class() string      { return "StaticSwitch" }
func (*StaticSwitch) PortCount() string  { return "1/1-" }
func (*StaticSwitch) Processing() string { return element.PushCode }

func (s *StaticSwitch) Configure(conf []string, eh *errh.Handler) error {
	var k int
	if err := confparse.NewArgs(conf, eh).ReadMP("K", confparse.Int(&k)).Complete(); err != nil {
		return err
	}
	if k < -1 || k >= s.NOutputs() {
		return eh.Error("K must be between -1 and %d", s.NOutputs()-1)
	}
	s.k.Store(int64(k))
	return nil
}

func (s *StaticSwitch) Push(_ int, p *packet.Packet) {
	k := int(s.k.Load())
	if k < 0 {
		p.Kill()
		return
	}
	s.Output(k).Push(p)
}

func (s *StaticSwitch) AddHandlers() {
	s.AddReadHandler("switch", func() string { return strconv.FormatInt(s.k.Load(), 10) })
	s.AddWriteHandler("switch", func(data string, eh *errh.Handler) error {
		k, err := confparse.ParseInt(strings.TrimSpace(data))
		if err != nil || k < -1 || k >= s.NOutputs() {
			return eh.Error("'switch' takes an integer between -1 and %d", s.NOutputs()-1)
		}
		s.k.Store(int64(k))
		return nil
	})
}

// RoundRobinSwitch sends successive packets to successive outputs.
type RoundRobinSwitch struct {
	element.Base
	next atomic.Uint64
}

func (*RoundRobinSwitch) Class() string      { return "RoundRobinSwitch" }
func (*RoundRobinSwitch) PortCount() string  { return "1/1-" }
func (*RoundRobinSwitch) Processing() string { return element.PushCode }

func (s *RoundRobinSwitch) Push(_ int, p *packet.Packet) {
	i := (s.next.Add(1) - 1) % uint64(s.NOutputs())
	s.Output(int(i)).Push(p)
}

// Suppressor passes input i to output i unless port i is suppressed.
// Suppressed pushes are dropped and suppressed pulls return nothing.
type Suppressor struct {
	element.Base
	mu         sync.Mutex
	suppressed []bool
}

func (*Suppressor) Class() string     { return "Suppressor" }
func (*Suppressor) PortCount() string { return element.PortsSame }
func (*Suppressor) FlowCode() string  { return "#/#" }

func (s *Suppressor) Initialize(*errh.Handler) error {
	s.suppressed = make([]bool, s.NInputs())
	return nil
}

func (s *Suppressor) isSuppressed(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed[i]
}

func (s *Suppressor) Push(port int, p *packet.Packet) {
	if s.isSuppressed(port) {
		p.Kill()
		return
	}
	s.Output(port).Push(p)
}

func (s *Suppressor) Pull(port int) *packet.Packet {
	if s.isSuppressed(port) {
		return nil
	}
	return s.Input(port).Pull()
}

func (s *Suppressor) AddHandlers() {
	for i := range s.suppressed {
		name := "active" + strconv.Itoa(i)
		s.AddReadHandler(name, func() string { return strconv.FormatBool(!s.isSuppressed(i)) })
		s.AddWriteHandler(name, func(data string, eh *errh.Handler) error {
			active, err := confparse.ParseBool(strings.TrimSpace(data))
			if err != nil {
				return eh.Error("'%s' takes a bool", name)
			}
			s.mu.Lock()
			s.suppressed[i] = !active
			s.mu.Unlock()
			return nil
		})
	}
	s.AddWriteHandler("reset", func(string, *errh.Handler) error {
		s.mu.Lock()
		clear(s.suppressed)
		s.mu.Unlock()
		return nil
	})
}
