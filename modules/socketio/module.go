// Package socketio provides ToSocketIO, which forwards packet payloads to a
// socket.io server as events.
package socketio

import (
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.Provide("socketio")
	r.RegisterClass("ToSocketIO", func() element.Element { return &ToSocketIO{} })
}
