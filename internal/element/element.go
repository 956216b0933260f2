package element

import (
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/task"
	"github.com/5g-empower/empower-agent/internal/timer"
)

// Element is a node of the router graph.
type Element interface {
	Class() string
	BaseElement() *Base
}

// Pusher accepts packets pushed into an input port.
type Pusher interface {
	Push(port int, p *packet.Packet)
}

// Puller hands out packets pulled from an output port. It returns nil when
// no packet is available.
type Puller interface {
	Pull(port int) *packet.Packet
}

// SimpleActioner transforms one packet at a time. Elements implementing it
// and neither Pusher nor Puller get the default behaviour: a packet pushed
// into input i leaves on output i, and a pull on output i pulls input i.
// Returning nil means the packet was consumed.
type SimpleActioner interface {
	SimpleAction(p *packet.Packet) *packet.Packet
}

// Processor declares per-port processing codes; see ParseProcessing.
// Elements that do not implement it are agnostic on every port.
type Processor interface {
	Processing() string
}

// FlowCoder declares a flow code. The default is flow.Complete.
type FlowCoder interface {
	FlowCode() string
}

// PortCounter declares acceptable port counts; see ParsePortCount. The
// default accepts any count.
type PortCounter interface {
	PortCount() string
}

// PortNotifier is told the final port counts before they freeze.
type PortNotifier interface {
	NotifyNInputs(n int)
	NotifyNOutputs(n int)
}

// Configurer parses the element's arguments.
type Configurer interface {
	Configure(conf []string, errh *errh.Handler) error
}

// ConfigurePhaser orders configuration. Lower phases configure and
// initialize first.
type ConfigurePhaser interface {
	ConfigurePhase() int
}

// Configure phases used by the standard elements.
const (
	PhaseFirst      = 0
	PhaseInfo       = 20
	PhasePrivileged = 90
	PhaseDefault    = 100
	PhaseLast       = 2000
)

// Initializer acquires runtime resources once every element is configured.
type Initializer interface {
	Initialize(errh *errh.Handler) error
}

// CleanupStage tells Cleanup how far the element got.
type CleanupStage int

const (
	CleanupNoRouter CleanupStage = iota
	CleanupBeforeConfigure
	CleanupConfigureFailed
	CleanupConfigured
	CleanupInitializeFailed
	CleanupInitialized
	CleanupRouterInitialized
)

func (s CleanupStage) String() string {
	switch s {
	case CleanupNoRouter:
		return "no_router"
	case CleanupBeforeConfigure:
		return "before_configure"
	case CleanupConfigureFailed:
		return "configure_failed"
	case CleanupConfigured:
		return "configured"
	case CleanupInitializeFailed:
		return "initialize_failed"
	case CleanupInitialized:
		return "initialized"
	case CleanupRouterInitialized:
		return "router_initialized"
	default:
		return "unknown"
	}
}

// Cleaner releases resources. It is called exactly once per element when
// the router is torn down or its bring-up fails.
type Cleaner interface {
	Cleanup(stage CleanupStage)
}

// TaskRunner is the callback of tasks created with Base.NewTask.
type TaskRunner interface {
	RunTask(t *task.Task) bool
}

// TimerRunner is the callback of timers created with Base.NewTimer.
type TimerRunner interface {
	RunTimer(t *timer.Timer)
}

// HandlerAdder registers element-specific handlers.
type HandlerAdder interface {
	AddHandlers()
}

// LiveReconfigurer marks elements whose configuration may change while the
// router runs. By default a live reconfiguration calls Configure again.
type LiveReconfigurer interface {
	CanLiveReconfigure() bool
}

// LiveConfigurer overrides the default live reconfiguration.
type LiveConfigurer interface {
	LiveReconfigure(conf []string, errh *errh.Handler) error
}

// Configurationer reports the current configuration. Without it the
// configuration given at build time is reported.
type Configurationer interface {
	Configuration() []string
}

// StateTaker receives state from the element of the same name in the
// router being replaced.
type StateTaker interface {
	TakeState(old Element, errh *errh.Handler)
}

// Storage is implemented by elements that hold packets.
type Storage interface {
	Size() int
	Capacity() int
}

// Filter selects elements during graph searches.
type Filter func(Element) bool

// IsStorage is a Filter matching Storage elements.
func IsStorage(e Element) bool {
	_, ok := e.(Storage)
	return ok
}

// Declaration returns "name :: Class".
func Declaration(e Element) string {
	return e.BaseElement().Name() + " :: " + e.Class()
}

// ProcessingCode returns the processing code of e.
func ProcessingCode(e Element) string {
	if p, ok := e.(Processor); ok {
		return p.Processing()
	}
	return Agnostic
}
