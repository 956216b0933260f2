package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/task"
)

const globalIndex = -1

type handlerKey struct {
	elem int
	name string
}

// Handler is a named read and/or write accessor of an element, or of the
// router itself when Element is nil.
type Handler struct {
	name    string
	element element.Element
	read    element.ReadFunc
	write   element.WriteFunc
}

func (h *Handler) Name() string { return h.name }

// Element returns the owning element, nil for global handlers.
func (h *Handler) Element() element.Element { return h.element }

func (h *Handler) Readable() bool { return h.read != nil }

func (h *Handler) Writable() bool { return h.write != nil }

// Flags returns "r", "w" or "rw".
func (h *Handler) Flags() string {
	var b strings.Builder
	if h.Readable() {
		b.WriteByte('r')
	}
	if h.Writable() {
		b.WriteByte('w')
	}
	return b.String()
}

// String returns the handler reference, "element.handler" or "handler".
func (h *Handler) String() string {
	if h.element == nil {
		return h.name
	}
	return h.element.BaseElement().Name() + "." + h.name
}

func elementIndex(e element.Element) int {
	if e == nil {
		return globalIndex
	}
	return e.BaseElement().Index()
}

func (r *Router) handler(e element.Element, name string) *Handler {
	key := handlerKey{elementIndex(e), name}
	h, ok := r.handlers[key]
	if !ok {
		h = &Handler{name: name, element: e}
		r.handlers[key] = h
		r.hnames[key.elem] = append(r.hnames[key.elem], name)
	}
	return h
}

// AddReadHandler registers or replaces the read side of handler name on e.
// A nil e registers a global handler.
func (r *Router) AddReadHandler(e element.Element, name string, fn element.ReadFunc) {
	r.hmu.Lock()
	defer r.hmu.Unlock()
	r.handler(e, name).read = fn
}

// AddWriteHandler registers or replaces the write side of handler name.
func (r *Router) AddWriteHandler(e element.Element, name string, fn element.WriteFunc) {
	r.hmu.Lock()
	defer r.hmu.Unlock()
	r.handler(e, name).write = fn
}

// Handlers returns e's handlers in registration order; nil e returns the
// global handlers.
func (r *Router) Handlers(e element.Element) []*Handler {
	r.hmu.RLock()
	defer r.hmu.RUnlock()
	idx := elementIndex(e)
	out := make([]*Handler, 0, len(r.hnames[idx]))
	for _, name := range r.hnames[idx] {
		out = append(out, r.handlers[handlerKey{idx, name}])
	}
	return out
}

// Handler resolves ref, "element.handler" or a bare global handler name.
// Element names are looked up relative to from.
func (r *Router) Handler(ref string, from element.Element) (*Handler, error) {
	var e element.Element
	name := ref
	if ename, hname, ok := strings.Cut(ref, "."); ok {
		var err error
		if e, err = r.Find(ename, from); err != nil {
			return nil, err
		}
		name = hname
	}
	r.hmu.RLock()
	h, ok := r.handlers[handlerKey{elementIndex(e), name}]
	r.hmu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchHandler, ref)
	}
	return h, nil
}

// HandlerFlags resolves ref and returns its flags.
func (r *Router) HandlerFlags(ref string, from element.Element) (string, error) {
	h, err := r.Handler(ref, from)
	if err != nil {
		return "", err
	}
	return h.Flags(), nil
}

// CallRead calls the read handler ref.
func (r *Router) CallRead(ref string, from element.Element) (string, error) {
	h, err := r.Handler(ref, from)
	if err != nil {
		return "", err
	}
	if !h.Readable() {
		return "", fmt.Errorf("%w: %s is not readable", ErrHandlerPermission, h)
	}
	return h.read(), nil
}

// CallWrite calls the write handler ref with data. eh may be nil.
func (r *Router) CallWrite(ref, data string, from element.Element, eh *errh.Handler) error {
	h, err := r.Handler(ref, from)
	if err != nil {
		return err
	}
	if !h.Writable() {
		return fmt.Errorf("%w: %s is not writable", ErrHandlerPermission, h)
	}
	if eh == nil {
		eh = errh.New(r.logger)
	}
	return h.write(data, eh.WithContext(h.String(), ""))
}

func (r *Router) addGlobalHandlers() {
	r.AddReadHandler(nil, "version", func() string { return r.cfg.Version })
	r.AddReadHandler(nil, "list", func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%d\n", len(r.elements))
		for _, e := range r.elements {
			b.WriteString(e.BaseElement().Name())
			b.WriteByte('\n')
		}
		return b.String()
	})
	r.AddReadHandler(nil, "classes", func() string { return lines(r.cfg.Classes) })
	r.AddReadHandler(nil, "config", func() string { return r.cfg.Text })
	r.AddReadHandler(nil, "requirements", func() string { return lines(r.requirements) })
	r.AddReadHandler(nil, "depth_drops", func() string { return strconv.FormatUint(r.DepthDrops(), 10) })
	r.AddWriteHandler(nil, "stop", func(data string, eh *errh.Handler) error {
		n := 1
		if s := strings.TrimSpace(data); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 {
				return eh.Error("'stop' takes a positive integer")
			}
			n = v
		}
		r.master.AdjustRunCount(int32(-n))
		return nil
	})
}

func lines(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return strings.Join(ss, "\n") + "\n"
}

// addElementHandlers installs the default handlers of every element and
// then lets each HandlerAdder add or override its own.
func (r *Router) addElementHandlers() {
	for _, e := range r.elements {
		r.addDefaultHandlers(e)
	}
	for _, i := range r.ordered {
		if ha, ok := r.elements[i].(element.HandlerAdder); ok {
			ha.AddHandlers()
		}
	}
}

func (r *Router) addDefaultHandlers(e element.Element) {
	b := e.BaseElement()
	r.AddReadHandler(e, "class", e.Class)
	r.AddReadHandler(e, "name", b.Name)
	r.AddReadHandler(e, "config", func() string {
		if c, ok := e.(element.Configurationer); ok {
			return confparse.JoinArgs(c.Configuration())
		}
		return confparse.JoinArgs(b.Conf())
	})
	if lr, ok := e.(element.LiveReconfigurer); ok && lr.CanLiveReconfigure() {
		r.AddWriteHandler(e, "config", func(data string, eh *errh.Handler) error {
			return r.LiveReconfigure(e, confparse.SplitArgs(data), eh)
		})
	}
	r.AddReadHandler(e, "ports", func() string { return r.portsText(e) })
	r.AddReadHandler(e, "handlers", func() string {
		var sb strings.Builder
		for _, h := range r.Handlers(e) {
			fmt.Fprintf(&sb, "%s\t%s\n", h.name, h.Flags())
		}
		return sb.String()
	})
	r.AddReadHandler(e, "icounts", func() string { return r.portCounts(b, false) })
	r.AddReadHandler(e, "ocounts", func() string { return r.portCounts(b, true) })

	if tasks := b.Tasks(); len(tasks) > 0 {
		r.addTaskHandlers(e, tasks[0])
	}
}

func (r *Router) addTaskHandlers(e element.Element, t *task.Task) {
	r.AddReadHandler(e, "scheduled", func() string { return strconv.FormatBool(t.Scheduled()) })
	r.AddReadHandler(e, "home_thread", func() string { return strconv.Itoa(t.HomeThreadID()) })
	r.AddWriteHandler(e, "home_thread", func(data string, eh *errh.Handler) error {
		n, err := strconv.Atoi(strings.TrimSpace(data))
		if err != nil || n < 0 || n >= r.master.NThreads() {
			return eh.Error("'home_thread' takes an integer between 0 and %d", r.master.NThreads()-1)
		}
		t.MoveThread(r.master.Thread(n))
		return nil
	})
	if !r.cfg.Stride {
		return
	}
	r.AddReadHandler(e, "tickets", func() string { return strconv.Itoa(t.Tickets()) })
	r.AddWriteHandler(e, "tickets", func(data string, eh *errh.Handler) error {
		n, err := strconv.Atoi(strings.TrimSpace(data))
		if err != nil {
			return eh.Error("'tickets' takes an integer between 1 and %d", task.MaxTickets)
		}
		if n < 1 {
			eh.Warning("tickets pinned at 1")
			n = 1
		} else if n > task.MaxTickets {
			eh.Warning("tickets pinned at %d", task.MaxTickets)
			n = task.MaxTickets
		}
		t.SetTickets(n)
		return nil
	})
}

// portCounts lists the packets that crossed each port. Only the active
// end of a connection counts, so passive ports sum their peers.
func (r *Router) portCounts(b *element.Base, outputs bool) string {
	adj := r.inAdj
	if outputs {
		adj = r.outAdj
	}
	idx := b.Index()
	var sb strings.Builder
	for i := 0; i < b.NPorts(outputs); i++ {
		port := b.Port(outputs, i)
		n := port.NPackets()
		if !port.Active() && idx < len(adj) && i < len(adj[idx]) {
			for _, h := range adj[idx][i] {
				n += r.elements[h.Element].BaseElement().Port(!outputs, h.Port).NPackets()
			}
		}
		fmt.Fprintf(&sb, "%d\n", n)
	}
	return sb.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// portsText describes each port's discipline and peers, inputs first.
// Upstream peers read "name[port]", downstream peers "[port]name".
func (r *Router) portsText(e element.Element) string {
	b := e.BaseElement()
	idx := b.Index()
	var sb strings.Builder
	sb.WriteString(plural(b.NInputs(), "input") + "\n")
	for p := 0; p < b.NInputs(); p++ {
		var peers []string
		if idx < len(r.inAdj) && p < len(r.inAdj[idx]) {
			for _, h := range r.inAdj[idx][p] {
				peers = append(peers, fmt.Sprintf("%s[%d]", r.elements[h.Element].BaseElement().Name(), h.Port))
			}
		}
		fmt.Fprintf(&sb, "%s\t%s\n", b.Input(p).Discipline(), strings.Join(peers, ", "))
	}
	sb.WriteString(plural(b.NOutputs(), "output") + "\n")
	for p := 0; p < b.NOutputs(); p++ {
		var peers []string
		if idx < len(r.outAdj) && p < len(r.outAdj[idx]) {
			for _, h := range r.outAdj[idx][p] {
				peers = append(peers, fmt.Sprintf("[%d]%s", h.Port, r.elements[h.Element].BaseElement().Name()))
			}
		}
		fmt.Fprintf(&sb, "%s\t%s\n", b.Output(p).Discipline(), strings.Join(peers, ", "))
	}
	return sb.String()
}

// LiveReconfigure applies conf to a live-reconfigurable element. On failure
// the element keeps its previous configuration.
func (r *Router) LiveReconfigure(e element.Element, conf []string, eh *errh.Handler) error {
	lr, ok := e.(element.LiveReconfigurer)
	if !ok || !lr.CanLiveReconfigure() {
		return fmt.Errorf("%w: %s cannot be reconfigured", ErrHandlerPermission, element.Declaration(e))
	}
	if eh == nil {
		eh = errh.New(r.logger)
	}
	b := e.BaseElement()
	ceh := r.context(eh, b.Index())
	before := ceh.NErrors()
	var err error
	switch c := e.(type) {
	case element.LiveConfigurer:
		err = c.LiveReconfigure(conf, ceh)
	case element.Configurer:
		err = c.Configure(conf, ceh)
	}
	if err != nil {
		return ceh.Report(err)
	}
	if ceh.NErrors() > before {
		return fmt.Errorf("%s: reconfiguration failed", element.Declaration(e))
	}
	b.SetConf(conf)
	r.publish(EventReconfigured, b.Name())
	return nil
}
