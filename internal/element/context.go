package element

import (
	"log/slog"

	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/master"
)

// ReadFunc implements a read handler.
type ReadFunc func() string

// WriteFunc implements a write handler. Problems are reported through
// errh and returned.
type WriteFunc func(data string, errh *errh.Handler) error

// DepthGuard bounds synchronous port traversal.
type DepthGuard interface {
	MaxDepth() int
	CountDepthDrop(p *Port)
}

// Context is the view of the router an element gets.
type Context interface {
	DepthGuard

	Master() *master.Master
	Logger() *slog.Logger

	// Find looks up an element by name. Names are resolved relative to
	// from's compound prefix first, then globally.
	Find(name string, from Element) (Element, error)
	Elements() []Element

	// DownstreamElements follows flow codes from output port of e and
	// returns every element reached that matches f, stopping at matches.
	DownstreamElements(e Element, port int, f Filter) ([]Element, error)
	// UpstreamElements is the mirror search from input port of e.
	UpstreamElements(e Element, port int, f Filter) ([]Element, error)

	AddReadHandler(e Element, name string, fn ReadFunc)
	AddWriteHandler(e Element, name string, fn WriteFunc)
	CallRead(ref string, from Element) (string, error)
	CallWrite(ref, data string, from Element, errh *errh.Handler) error
	// HandlerFlags returns "r", "w" or "rw" for an existing handler.
	HandlerFlags(ref string, from Element) (string, error)

	PleaseStop()
}
