// Package driver provides DriverManager, which scripts how the driver
// reacts to pauses requested by elements.
package driver

import (
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Provide("driver")
	r.RegisterClass("DriverManager", func() element.Element { return &DriverManager{} })
}
