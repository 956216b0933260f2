package router

import (
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/flow"
)

// preinitialize freezes port counts, parses flow codes, resolves port
// disciplines and binds every active port. Problems are reported to eh.
func (r *Router) preinitialize(eh *errh.Handler) {
	n := len(r.elements)
	r.flows = make([]*flow.Code, n)
	r.outAdj = make([][][]Hookup, n)
	r.inAdj = make([][][]Hookup, n)

	r.resolvePortCounts(eh)
	if eh.NErrors() > 0 {
		return
	}
	for _, c := range r.conns {
		r.outAdj[c.From.Element][c.From.Port] = append(r.outAdj[c.From.Element][c.From.Port], c.To)
		r.inAdj[c.To.Element][c.To.Port] = append(r.inAdj[c.To.Element][c.To.Port], c.From)
	}

	for i, e := range r.elements {
		code := flow.Complete
		if fc, ok := e.(element.FlowCoder); ok {
			code = fc.FlowCode()
		}
		fcode, err := flow.Parse(code)
		if err != nil {
			r.context(eh, i).Error("%v", err)
			fcode, _ = flow.Parse(flow.Complete)
		}
		r.flows[i] = fcode
	}

	in, out := r.resolveDisciplines(eh)
	if eh.NErrors() > 0 {
		return
	}
	r.checkConnections(eh, in, out)
	if eh.NErrors() > 0 {
		return
	}
	r.bindPorts(eh)
}

func (r *Router) context(eh *errh.Handler, idx int) *errh.Handler {
	return eh.WithContext(element.Declaration(r.elements[idx]), r.landmarks[idx])
}

// resolvePortCounts sizes every element's ports from its connections and
// its declared port count, then freezes them.
func (r *Router) resolvePortCounts(eh *errh.Handler) {
	usedIn := make([]int, len(r.elements))
	usedOut := make([]int, len(r.elements))
	for _, c := range r.conns {
		usedOut[c.From.Element] = max(usedOut[c.From.Element], c.From.Port+1)
		usedIn[c.To.Element] = max(usedIn[c.To.Element], c.To.Port+1)
	}

	for i, e := range r.elements {
		spec := element.PortsAny
		if pc, ok := e.(element.PortCounter); ok {
			spec = pc.PortCount()
		}
		pc, err := element.ParsePortCount(spec)
		if err != nil {
			r.context(eh, i).Error("%v", err)
			continue
		}
		nIn, nOut, err := pc.Resolve(usedIn[i], usedOut[i])
		if err != nil {
			r.context(eh, i).Error("%v", err)
			continue
		}
		if pn, ok := e.(element.PortNotifier); ok {
			pn.NotifyNInputs(nIn)
			pn.NotifyNOutputs(nOut)
		}
		b := e.BaseElement()
		if err := b.SetNPorts(nIn, nOut); err != nil {
			r.context(eh, i).Error("%v", err)
			continue
		}
		b.FreezePorts()
		r.outAdj[i] = make([][]Hookup, nOut)
		r.inAdj[i] = make([][]Hookup, nIn)
	}
}

// resolveDisciplines expands processing codes and settles agnostic ports:
// a connection forces both ends to agree, and agnostic input and output
// ports of one element linked by its flow code share a discipline. Ports
// left undecided become push.
func (r *Router) resolveDisciplines(eh *errh.Handler) (in, out [][]element.Discipline) {
	n := len(r.elements)
	in = make([][]element.Discipline, n)
	out = make([][]element.Discipline, n)
	for i, e := range r.elements {
		b := e.BaseElement()
		var err error
		in[i], out[i], err = element.ParseProcessing(element.ProcessingCode(e), b.NInputs(), b.NOutputs())
		if err != nil {
			r.context(eh, i).Error("%v", err)
		}
	}
	agIn := agnosticMask(in)
	agOut := agnosticMask(out)

	for {
		for r.propagate(eh, in, out, agIn, agOut) {
		}
		undecided := false
		for i := range r.elements {
			undecided = defaultPush(in[i]) || undecided
			undecided = defaultPush(out[i]) || undecided
		}
		if !undecided {
			break
		}
	}

	for i, e := range r.elements {
		e.BaseElement().SetDisciplines(in[i], out[i])
	}
	return in, out
}

func agnosticMask(ds [][]element.Discipline) [][]bool {
	mask := make([][]bool, len(ds))
	for i, d := range ds {
		mask[i] = make([]bool, len(d))
		for p := range d {
			mask[i][p] = d[p] == element.DisciplineAgnostic
		}
	}
	return mask
}

func defaultPush(ds []element.Discipline) bool {
	changed := false
	for p, d := range ds {
		if d == element.DisciplineAgnostic {
			ds[p] = element.DisciplinePush
			changed = true
		}
	}
	return changed
}

// propagate makes one pass of agnostic resolution and reports whether any
// port changed.
func (r *Router) propagate(eh *errh.Handler, in, out [][]element.Discipline, agIn, agOut [][]bool) bool {
	changed := false
	for _, c := range r.conns {
		o := &out[c.From.Element][c.From.Port]
		i := &in[c.To.Element][c.To.Port]
		switch {
		case *o == element.DisciplineAgnostic && *i != element.DisciplineAgnostic:
			*o = *i
			changed = true
		case *i == element.DisciplineAgnostic && *o != element.DisciplineAgnostic:
			*i = *o
			changed = true
		}
	}

	for e := range r.elements {
		nIn, nOut := len(in[e]), len(out[e])
		for ip := 0; ip < nIn; ip++ {
			if !agIn[e][ip] {
				continue
			}
			reach := r.flows[e].Forward(ip, nIn, nOut)
			for op := 0; op < nOut; op++ {
				if !agOut[e][op] || !reach.Test(uint(op)) {
					continue
				}
				a, b := &in[e][ip], &out[e][op]
				switch {
				case *a == *b:
				case *a == element.DisciplineAgnostic:
					*a = *b
					changed = true
				case *b == element.DisciplineAgnostic:
					*b = *a
					changed = true
				default:
					r.context(eh, e).Error("agnostic input %d (%s) and output %d (%s) must share a discipline", ip, *a, op, *b)
					// Mark both as decided so the error is not repeated.
					agIn[e][ip] = false
					agOut[e][op] = false
				}
			}
		}
	}
	return changed
}

// checkConnections verifies that connected ports agree, that push outputs
// and pull inputs are used once, and that every port is connected.
func (r *Router) checkConnections(eh *errh.Handler, in, out [][]element.Discipline) {
	for _, c := range r.conns {
		od := out[c.From.Element][c.From.Port]
		id := in[c.To.Element][c.To.Port]
		if od != id {
			r.context(eh, c.From.Element).Error("%s output %d connected to %s %s input %d: port cannot be used this way",
				od, c.From.Port, element.Declaration(r.elements[c.To.Element]), id, c.To.Port)
		}
	}

	for e := range r.elements {
		for p, peers := range r.outAdj[e] {
			switch {
			case len(peers) == 0:
				r.context(eh, e).Error("output %d not connected", p)
			case len(peers) > 1 && out[e][p] == element.DisciplinePush:
				r.context(eh, e).Error("illegal reuse of push output %d", p)
			}
		}
		for p, peers := range r.inAdj[e] {
			switch {
			case len(peers) == 0:
				r.context(eh, e).Error("input %d not connected", p)
			case len(peers) > 1 && in[e][p] == element.DisciplinePull:
				r.context(eh, e).Error("illegal reuse of pull input %d", p)
			}
		}
	}
}

// bindPorts wires push outputs and pull inputs to their peers.
func (r *Router) bindPorts(eh *errh.Handler) {
	for _, c := range r.conns {
		from := r.elements[c.From.Element]
		to := r.elements[c.To.Element]
		fb, tb := from.BaseElement(), to.BaseElement()
		var err error
		if fb.OutputIsPush(c.From.Port) {
			err = fb.ConnectOutput(c.From.Port, to, c.To.Port, r)
		} else {
			err = tb.ConnectInput(c.To.Port, from, c.From.Port, r)
		}
		if err != nil {
			r.context(eh, c.From.Element).Error("output %d: %v", c.From.Port, err)
		}
	}
}
