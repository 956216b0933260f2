package app

import (
	"github.com/5g-empower/empower-agent/internal/registry"
	"github.com/5g-empower/empower-agent/modules/aqm"
	"github.com/5g-empower/empower-agent/modules/driver"
	"github.com/5g-empower/empower-agent/modules/socketio"
	"github.com/5g-empower/empower-agent/modules/standard"
	"github.com/5g-empower/empower-agent/modules/threadtest"
)

// coreModules is the definitive list of all element modules compiled into
// the agent binary.
var coreModules = []registry.Module{
	&standard.Module{},
	&aqm.Module{},
	&driver.Module{},
	&socketio.Module{},
	&threadtest.Module{},
}
