package router

import (
	"fmt"

	"github.com/5g-empower/empower-agent/internal/element"
)

// DownstreamElements walks the graph from output port of e (every output
// when port is negative), following each element's flow code from the
// input a packet arrives on to the outputs it may leave by. Elements
// matching f are collected and not walked through. Each element appears
// once, in discovery order.
func (r *Router) DownstreamElements(e element.Element, port int, f element.Filter) ([]element.Element, error) {
	return r.search(e, port, f, true)
}

// UpstreamElements is DownstreamElements against the flow, from input
// port of e.
func (r *Router) UpstreamElements(e element.Element, port int, f element.Filter) ([]element.Element, error) {
	return r.search(e, port, f, false)
}

type portRef struct {
	elem, port int
}

func (r *Router) search(e element.Element, port int, f element.Filter, forward bool) ([]element.Element, error) {
	if st := r.State(); st != StateInitializing && st != StateLive {
		return nil, fmt.Errorf("element search in state %s: %w", st, ErrNotRunning)
	}
	start := e.BaseElement().Index()
	if start < 0 || start >= len(r.elements) || r.elements[start] != e {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, element.Declaration(e))
	}

	adj := r.outAdj
	if !forward {
		adj = r.inAdj
	}
	nPorts := len(adj[start])
	if port >= nPorts {
		return nil, fmt.Errorf("%s has no port %d", element.Declaration(e), port)
	}

	// The work list holds ports on the side packets leave by: outputs when
	// walking forward, inputs when walking backward.
	var work []portRef
	if port < 0 {
		for p := 0; p < nPorts; p++ {
			work = append(work, portRef{start, p})
		}
	} else {
		work = append(work, portRef{start, port})
	}

	seenPort := make(map[portRef]bool)
	seenElem := make(map[int]bool)
	var found []element.Element
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]
		if seenPort[cur] {
			continue
		}
		seenPort[cur] = true

		for _, peer := range adj[cur.elem][cur.port] {
			pe := r.elements[peer.Element]
			if f != nil && f(pe) {
				if !seenElem[peer.Element] {
					seenElem[peer.Element] = true
					found = append(found, pe)
				}
				continue
			}
			pb := pe.BaseElement()
			code := r.flows[peer.Element]
			if forward {
				reach := code.Forward(peer.Port, pb.NInputs(), pb.NOutputs())
				for o, ok := reach.NextSet(0); ok; o, ok = reach.NextSet(o + 1) {
					work = append(work, portRef{peer.Element, int(o)})
				}
			} else {
				reach := code.Backward(peer.Port, pb.NInputs(), pb.NOutputs())
				for i, ok := reach.NextSet(0); ok; i, ok = reach.NextSet(i + 1) {
					work = append(work, portRef{peer.Element, int(i)})
				}
			}
		}
	}
	return found, nil
}
