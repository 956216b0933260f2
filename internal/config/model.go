package config

import (
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/hookup"
	"github.com/hashicorp/hcl/v2"
)

// Model is the format-agnostic representation of a router configuration.
type Model struct {
	Requirements []*Requirement
	Elements     []*Element
	Connections  []*Connection
	// Text is the source the model was loaded from, when available.
	Text string
}

// Requirement names a module the configuration needs.
type Requirement struct {
	Name  string
	Range hcl.Range
}

// Element declares one element instance.
type Element struct {
	Name   string
	Class  string
	Config []string
	// Thread is the home thread of the element's tasks, when set.
	Thread *int
	Range  hcl.Range
}

// Connection joins output From.Port of one element to input To.Port of
// another. Missing ports mean port 0.
type Connection struct {
	From  hookup.Ref
	To    hookup.Ref
	Range hcl.Range
}

// Landmark renders a source range for error messages.
func Landmark(rng hcl.Range) string {
	if rng.Filename == "" {
		return ""
	}
	return rng.String()
}

// Merge appends other's declarations to m.
func (m *Model) Merge(other *Model) {
	m.Requirements = append(m.Requirements, other.Requirements...)
	m.Elements = append(m.Elements, other.Elements...)
	m.Connections = append(m.Connections, other.Connections...)
	if other.Text != "" {
		if m.Text != "" {
			m.Text += "\n"
		}
		m.Text += other.Text
	}
}

// Element returns the element declared as name.
func (m *Model) Element(name string) (*Element, bool) {
	for _, e := range m.Elements {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Validate reports invalid or duplicate element names and connections to
// undeclared elements. It returns the number of problems found.
func (m *Model) Validate(eh *errh.Handler) int {
	before := eh.NErrors()
	seen := make(map[string]*Element, len(m.Elements))
	for _, e := range m.Elements {
		rng := e.Range
		ceh := eh.WithRange(e.Name, &rng)
		if !hookup.ValidName(e.Name) {
			ceh.Error("invalid element name %q", e.Name)
		}
		if e.Class == "" {
			ceh.Error("missing class")
		}
		if prev, ok := seen[e.Name]; ok {
			ceh.Error("element %q redeclared (first declared at %s)", e.Name, prev.Range)
			continue
		}
		seen[e.Name] = e
	}
	for _, c := range m.Connections {
		rng := c.Range
		ceh := eh.WithRange("connect", &rng)
		for _, ref := range []hookup.Ref{c.From, c.To} {
			if _, ok := seen[ref.Name]; !ok {
				ceh.Error("undeclared element %q", ref.Name)
			}
		}
	}
	return eh.NErrors() - before
}
