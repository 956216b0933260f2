// Package threadtest provides TaskThreadTest, which exercises task
// migration between driver threads.
package threadtest

import (
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Provide("threadtest")
	r.RegisterClass("TaskThreadTest", func() element.Element { return &TaskThreadTest{} })
}
