package testutil

import (
	"strconv"
	"sync"

	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/registry"
)

// RecordModule registers the Record element under the requirement "testutil".
type RecordModule struct{}

func (RecordModule) Register(r *registry.Registry) {
	r.Provide("testutil")
	r.RegisterClass("Record", func() element.Element { return &Record{} })
}

// Record is a push sink that keeps a copy of every packet payload.
type Record struct {
	element.Base
	mu       sync.Mutex
	payloads [][]byte
	depths   []int
}

func (*Record) Class() string      { return "Record" }
func (*Record) Processing() string { return element.PushCode }
func (*Record) PortCount() string  { return element.Ports1to0 }

func (r *Record) Push(_ int, p *packet.Packet) {
	r.mu.Lock()
	r.payloads = append(r.payloads, append([]byte(nil), p.Data()...))
	r.depths = append(r.depths, p.Depth())
	r.mu.Unlock()
	p.Kill()
}

// Payloads returns the recorded payloads as strings, in arrival order.
func (r *Record) Payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.payloads))
	for i, p := range r.payloads {
		out[i] = string(p)
	}
	return out
}

// Depths returns the traversal depth of every recorded packet.
func (r *Record) Depths() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.depths...)
}

// Len returns the number of recorded packets.
func (r *Record) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *Record) AddHandlers() {
	r.AddReadHandler("count", func() string { return strconv.Itoa(r.Len()) })
}
