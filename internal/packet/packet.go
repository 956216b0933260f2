// Package packet defines the unit of data moved across element ports.
package packet

import "time"

// AnnoSize is the number of user annotation bytes carried by every packet.
const AnnoSize = 16

// Packet is a buffer travelling through the element graph. A packet is owned
// by exactly one element at a time; handing it to a port transfers
// ownership.
type Packet struct {
	data      []byte
	Timestamp time.Time
	Anno      [AnnoSize]byte

	// depth counts port crossings since the packet was created or last
	// stored. Along a synchronous push chain it equals the call depth.
	depth int
	dead  bool
}

// New returns a packet owning data.
func New(data []byte) *Packet {
	return &Packet{data: data}
}

// Make returns a packet holding a copy of data.
func Make(data []byte) *Packet {
	return &Packet{data: append([]byte(nil), data...)}
}

func (p *Packet) Data() []byte { return p.data }

func (p *Packet) Len() int { return len(p.data) }

// Take removes n bytes from the end of the packet. n is clamped to the
// packet length.
func (p *Packet) Take(n int) {
	if n > len(p.data) {
		n = len(p.data)
	}
	if n > 0 {
		p.data = p.data[:len(p.data)-n]
	}
}

// Clone returns an independent copy with the same annotations.
func (p *Packet) Clone() *Packet {
	q := *p
	q.data = append([]byte(nil), p.data...)
	return &q
}

// Kill marks the packet as freed. Using a killed packet is a programming
// error; Dead reports it for tests and debug checks.
func (p *Packet) Kill() {
	p.dead = true
	p.data = nil
}

func (p *Packet) Dead() bool { return p.dead }

// Depth returns the number of synchronous port crossings.
func (p *Packet) Depth() int { return p.depth }

// Enter records one more port crossing and returns the new depth.
func (p *Packet) Enter() int {
	p.depth++
	return p.depth
}

// ResetDepth is called by storage elements, which end a call chain.
func (p *Packet) ResetDepth() { p.depth = 0 }
