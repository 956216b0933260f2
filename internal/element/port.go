package element

import (
	"fmt"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/packet"
)

// Port is one input or output of an element. An active port (a push
// output or a pull input) calls straight into its peer; a passive port
// only records its discipline.
type Port struct {
	owner    Element
	index    int
	output   bool
	disc     Discipline
	peer     Element
	peerPort int

	push func(int, *packet.Packet)
	pull func(int) *packet.Packet

	guard    DepthGuard
	npackets atomic.Uint64
}

// Owner returns the element the port belongs to.
func (p *Port) Owner() Element { return p.owner }

// Index returns the port number.
func (p *Port) Index() int { return p.index }

// IsOutput reports whether this is an output port.
func (p *Port) IsOutput() bool { return p.output }

// Discipline returns the resolved discipline.
func (p *Port) Discipline() Discipline { return p.disc }

func (p *Port) IsPush() bool { return p.disc == DisciplinePush }

func (p *Port) IsPull() bool { return p.disc == DisciplinePull }

// Active reports whether the port calls into a peer.
func (p *Port) Active() bool { return p.push != nil || p.pull != nil }

// Peer returns the connected element of an active port.
func (p *Port) Peer() Element { return p.peer }

// PeerPort returns the peer's port number of an active port.
func (p *Port) PeerPort() int { return p.peerPort }

// NPackets returns the number of packets that crossed the port.
func (p *Port) NPackets() uint64 { return p.npackets.Load() }

// ResetCount zeroes the packet counter.
func (p *Port) ResetCount() { p.npackets.Store(0) }

// Push hands p to the peer's input. Packets beyond the depth bound are
// killed and counted instead. Pushing on an unconnected port kills the
// packet.
func (p *Port) Push(pkt *packet.Packet) {
	if p.push == nil {
		pkt.Kill()
		return
	}
	if p.guard != nil && pkt.Enter() > p.guard.MaxDepth() {
		pkt.Kill()
		p.guard.CountDepthDrop(p)
		return
	}
	p.npackets.Add(1)
	p.push(p.peerPort, pkt)
}

// Pull asks the peer's output for a packet. It returns nil when none is
// available.
func (p *Port) Pull() *packet.Packet {
	if p.pull == nil {
		return nil
	}
	pkt := p.pull(p.peerPort)
	if pkt == nil {
		return nil
	}
	if p.guard != nil && pkt.Enter() > p.guard.MaxDepth() {
		pkt.Kill()
		p.guard.CountDepthDrop(p)
		return nil
	}
	p.npackets.Add(1)
	return pkt
}

// setDiscipline records the resolved discipline.
func (p *Port) setDiscipline(d Discipline) { p.disc = d }

// bind connects an active port to its peer. A push output needs a peer
// that accepts pushes; a pull input needs a peer that answers pulls.
func (p *Port) bind(peer Element, peerPort int, guard DepthGuard) error {
	p.peer = peer
	p.peerPort = peerPort
	p.guard = guard
	switch {
	case p.output && p.disc == DisciplinePush:
		fn, ok := pushFunc(peer)
		if !ok {
			return fmt.Errorf("%s cannot accept pushed packets", Declaration(peer))
		}
		p.push = fn
	case !p.output && p.disc == DisciplinePull:
		fn, ok := pullFunc(peer)
		if !ok {
			return fmt.Errorf("%s cannot answer pulls", Declaration(peer))
		}
		p.pull = fn
	default:
		return fmt.Errorf("port cannot be used this way")
	}
	return nil
}

func pushFunc(e Element) (func(int, *packet.Packet), bool) {
	if p, ok := e.(Pusher); ok {
		return p.Push, true
	}
	if sa, ok := e.(SimpleActioner); ok {
		b := e.BaseElement()
		return func(port int, pkt *packet.Packet) {
			if q := sa.SimpleAction(pkt); q != nil {
				b.Output(port).Push(q)
			}
		}, true
	}
	return nil, false
}

func pullFunc(e Element) (func(int) *packet.Packet, bool) {
	if p, ok := e.(Puller); ok {
		return p.Pull, true
	}
	if sa, ok := e.(SimpleActioner); ok {
		b := e.BaseElement()
		return func(port int) *packet.Packet {
			pkt := b.Input(port).Pull()
			if pkt == nil {
				return nil
			}
			return sa.SimpleAction(pkt)
		}, true
	}
	return nil, false
}
