package router

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/clock"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/flow"
	"github.com/5g-empower/empower-agent/internal/master"
	"github.com/docker/go-events"
	"github.com/google/uuid"
)

// DefaultMaxDepth bounds synchronous push/pull chains when Config.MaxDepth
// is not set.
const DefaultMaxDepth = 256

// State is a router lifecycle state.
type State int32

const (
	StateNew State = iota
	StatePreinitialized
	StateInitializing
	StateLive
	StateDead
	StateCleaned
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePreinitialized:
		return "preinitialized"
	case StateInitializing:
		return "initializing"
	case StateLive:
		return "live"
	case StateDead:
		return "dead"
	case StateCleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

// Config configures a Router.
type Config struct {
	Threads  int
	Stride   bool
	MaxDepth int
	Clock    clock.Clock
	Logger   *slog.Logger

	// Text is the configuration the router was built from.
	Text string
	// Classes lists the element classes known to the builder.
	Classes []string
	Version string
}

// Hookup names one port of one element by index.
type Hookup struct {
	Element int
	Port    int
}

// Connection joins an output port to an input port.
type Connection struct {
	From Hookup
	To   Hookup
}

// Router owns an element graph, its connections and its driver.
type Router struct {
	id       uuid.UUID
	cfg      Config
	logger   *slog.Logger
	master   *master.Master
	events   *events.Broadcaster
	maxDepth int

	state atomic.Int32

	elements     []element.Element
	names        map[string]int
	landmarks    []string
	defaultConfs [][]string
	conns        []Connection
	requirements []string

	// Built by preinitialize.
	flows   []*flow.Code
	outAdj  [][][]Hookup
	inAdj   [][][]Hookup
	ordered []int

	hmu      sync.RWMutex
	handlers map[handlerKey]*Handler
	hnames   map[int][]string

	depthDrops atomic.Uint64
}

// New returns an empty router.
func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	id := uuid.New()
	r := &Router{
		id:       id,
		cfg:      cfg,
		logger:   cfg.Logger.With("router", id.String()),
		master:   master.New(master.Config{Threads: cfg.Threads, Stride: cfg.Stride, Clock: cfg.Clock}),
		events:   events.NewBroadcaster(),
		maxDepth: maxDepth,
		names:    make(map[string]int),
		handlers: make(map[handlerKey]*Handler),
		hnames:   make(map[int][]string),
	}
	r.addGlobalHandlers()
	return r
}

// ID identifies this router generation.
func (r *Router) ID() uuid.UUID { return r.id }

func (r *Router) State() State { return State(r.state.Load()) }

func (r *Router) setState(s State) { r.state.Store(int32(s)) }

// Live reports whether the router initialized successfully and has not
// been cleaned up.
func (r *Router) Live() bool { return r.State() == StateLive }

func (r *Router) Master() *master.Master { return r.master }

func (r *Router) Logger() *slog.Logger { return r.logger }

// Text returns the configuration the router was built from.
func (r *Router) Text() string { return r.cfg.Text }

// Subscribe attaches sink to the lifecycle event stream. Slow sinks should
// be wrapped in events.NewQueue.
func (r *Router) Subscribe(sink events.Sink) error { return r.events.Add(sink) }

// Unsubscribe detaches sink.
func (r *Router) Unsubscribe(sink events.Sink) error { return r.events.Remove(sink) }

// AddElement adds e under name and returns its index.
func (r *Router) AddElement(e element.Element, name string, conf []string, landmark string) (int, error) {
	if r.State() != StateNew {
		return -1, ErrAlreadyInitialized
	}
	if name == "" {
		return -1, fmt.Errorf("element of class %s has no name", e.Class())
	}
	if _, ok := r.names[name]; ok {
		return -1, fmt.Errorf("element %q redeclared", name)
	}
	idx := len(r.elements)
	e.BaseElement().Attach(e, r, idx, name, landmark, conf)
	r.elements = append(r.elements, e)
	r.names[name] = idx
	r.landmarks = append(r.landmarks, landmark)
	r.defaultConfs = append(r.defaultConfs, append([]string(nil), conf...))
	return idx, nil
}

// AddConnection connects output fromPort of element from to input toPort
// of element to. Repeated connections are recorded once.
func (r *Router) AddConnection(from, fromPort, to, toPort int) error {
	if r.State() != StateNew {
		return ErrAlreadyInitialized
	}
	if from < 0 || from >= len(r.elements) || to < 0 || to >= len(r.elements) {
		return fmt.Errorf("connection %d[%d] -> [%d]%d: %w", from, fromPort, toPort, to, ErrNoSuchElement)
	}
	if fromPort < 0 || toPort < 0 {
		return fmt.Errorf("connection %s[%d] -> [%d]%s: negative port",
			r.elements[from].BaseElement().Name(), fromPort, toPort, r.elements[to].BaseElement().Name())
	}
	c := Connection{From: Hookup{from, fromPort}, To: Hookup{to, toPort}}
	for _, old := range r.conns {
		if old == c {
			return nil
		}
	}
	r.conns = append(r.conns, c)
	return nil
}

// Connect is AddConnection by element name.
func (r *Router) Connect(from string, fromPort int, to string, toPort int) error {
	fi, ok := r.names[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchElement, from)
	}
	ti, ok := r.names[to]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchElement, to)
	}
	return r.AddConnection(fi, fromPort, ti, toPort)
}

// AddRequirement records a requirement, typically a module name.
func (r *Router) AddRequirement(req string) {
	for _, old := range r.requirements {
		if old == req {
			return
		}
	}
	r.requirements = append(r.requirements, req)
}

// Requirements returns the recorded requirements.
func (r *Router) Requirements() []string { return r.requirements }

// Connections returns the connection table.
func (r *Router) Connections() []Connection { return r.conns }

// Elements returns every element in index order.
func (r *Router) Elements() []element.Element { return r.elements }

// Element returns the element at idx, or nil.
func (r *Router) Element(idx int) element.Element {
	if idx < 0 || idx >= len(r.elements) {
		return nil
	}
	return r.elements[idx]
}

// ElementByName returns the element called name.
func (r *Router) ElementByName(name string) (element.Element, bool) {
	idx, ok := r.names[name]
	if !ok {
		return nil, false
	}
	return r.elements[idx], true
}

// DefaultConfiguration returns the arguments e was built with.
func (r *Router) DefaultConfiguration(e element.Element) []string {
	return r.defaultConfs[e.BaseElement().Index()]
}

// Find looks up name. When from lives in a compound ("a/b/from"), the
// names "a/b/name" and "a/name" are tried before "name".
func (r *Router) Find(name string, from element.Element) (element.Element, error) {
	if from != nil {
		prefix := from.BaseElement().Name()
		for {
			i := strings.LastIndexByte(prefix, '/')
			if i < 0 {
				break
			}
			prefix = prefix[:i]
			if e, ok := r.ElementByName(prefix + "/" + name); ok {
				return e, nil
			}
		}
	}
	if e, ok := r.ElementByName(name); ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSuchElement, name)
}

// MaxDepth implements element.DepthGuard.
func (r *Router) MaxDepth() int { return r.maxDepth }

// CountDepthDrop implements element.DepthGuard.
func (r *Router) CountDepthDrop(*element.Port) { r.depthDrops.Add(1) }

// DepthDrops returns the number of packets killed by the depth guard.
func (r *Router) DepthDrops() uint64 { return r.depthDrops.Load() }

// PleaseStop asks the driver to pause.
func (r *Router) PleaseStop() { r.master.PleaseStop() }

// configureOrder returns element indices sorted by configure phase,
// stable in declaration order.
func (r *Router) configureOrder() []int {
	order := make([]int, len(r.elements))
	phases := make([]int, len(r.elements))
	for i, e := range r.elements {
		order[i] = i
		phases[i] = element.PhaseDefault
		if p, ok := e.(element.ConfigurePhaser); ok {
			phases[i] = p.ConfigurePhase()
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return phases[order[a]] < phases[order[b]] })
	return order
}

var _ element.Context = (*Router)(nil)
