// Package aqm provides active queue management elements.
package aqm

import (
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Provide("aqm")
	r.RegisterClass("RED", func() element.Element { return &RED{} })
}
