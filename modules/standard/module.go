// Package standard provides the basic element classes: sources, queues,
// sinks, counters, schedulers, switches and a few information and
// checking elements.
package standard

import (
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers every standard element class and satisfies
// `require "standard"`.
func (m *Module) Register(r *registry.Registry) {
	r.Provide("standard")
	r.RegisterClass("InfiniteSource", func() element.Element { return &InfiniteSource{} })
	r.RegisterClass("TimedSource", func() element.Element { return &TimedSource{} })
	r.RegisterClass("Queue", func() element.Element { return &Queue{class: "Queue"} })
	r.RegisterClass("SimpleQueue", func() element.Element { return &Queue{class: "SimpleQueue"} })
	r.RegisterClass("MSQueue", func() element.Element { return &MSQueue{} })
	r.RegisterClass("Discard", func() element.Element { return &Discard{} })
	r.RegisterClass("Idle", func() element.Element { return &Idle{} })
	r.RegisterClass("TimedSink", func() element.Element { return &TimedSink{} })
	r.RegisterClass("Counter", func() element.Element { return &Counter{} })
	r.RegisterClass("AverageCounter", func() element.Element { return &AverageCounter{} })
	r.RegisterClass("Print", func() element.Element { return &Print{} })
	r.RegisterClass("Unqueue", func() element.Element { return &Unqueue{} })
	r.RegisterClass("RatedUnqueue", func() element.Element { return &RatedUnqueue{} })
	r.RegisterClass("Tee", func() element.Element { return &Tee{} })
	r.RegisterClass("StaticSwitch", func() element.Element { return &StaticSwitch{} })
	r.RegisterClass("RoundRobinSwitch", func() element.Element { return &RoundRobinSwitch{} })
	r.RegisterClass("Suppressor", func() element.Element { return &Suppressor{} })
	r.RegisterClass("CheckCRC32", func() element.Element { return &CheckCRC32{} })
	r.RegisterClass("AddressInfo", func() element.Element { return &AddressInfo{} })
	r.RegisterClass("SpinlockInfo", func() element.Element { return &SpinlockInfo{} })
	r.RegisterClass("SpinlockAcquire", func() element.Element { return &SpinlockAcquire{} })
	r.RegisterClass("SpinlockRelease", func() element.Element { return &SpinlockRelease{} })
}
