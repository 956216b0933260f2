package element

import (
	"fmt"
	"log/slog"

	"github.com/5g-empower/empower-agent/internal/master"
	"github.com/5g-empower/empower-agent/internal/task"
	"github.com/5g-empower/empower-agent/internal/timer"
)

// Base carries the state every element shares. Embed it by value.
type Base struct {
	self     Element
	ctx      Context
	name     string
	index    int
	landmark string
	conf     []string

	homeThread int
	inputs     []Port
	outputs    []Port
	frozen     bool

	tasks  []*task.Task
	timers []*timer.Timer
	logger *slog.Logger
}

// BaseElement returns b.
func (b *Base) BaseElement() *Base { return b }

// Attach binds the element to its router. The router calls it once, when
// the element is added.
func (b *Base) Attach(self Element, ctx Context, index int, name, landmark string, conf []string) {
	b.self = self
	b.ctx = ctx
	b.index = index
	b.name = name
	b.landmark = landmark
	b.conf = conf
	if ctx != nil {
		b.logger = ctx.Logger().With("element", name, "class", self.Class())
	}
}

func (b *Base) Name() string { return b.name }

// Index is the element's position in its router.
func (b *Base) Index() int { return b.index }

// Landmark is the configuration source position of the element.
func (b *Base) Landmark() string { return b.landmark }

// Router returns the router the element is attached to.
func (b *Base) Router() Context { return b.ctx }

// Master returns the router's driver.
func (b *Base) Master() *master.Master { return b.ctx.Master() }

// Logger returns a logger annotated with the element's name and class.
func (b *Base) Logger() *slog.Logger {
	if b.logger == nil {
		return slog.Default()
	}
	return b.logger
}

// Conf returns the arguments the element was built with.
func (b *Base) Conf() []string { return b.conf }

// SetConf replaces the recorded arguments after a live reconfiguration.
func (b *Base) SetConf(conf []string) { b.conf = conf }

// HomeThread is the driver thread new tasks are bound to.
func (b *Base) HomeThread() int { return b.homeThread }

// SetHomeThread sets the driver thread new tasks are bound to.
func (b *Base) SetHomeThread(id int) { b.homeThread = id }

func (b *Base) NInputs() int { return len(b.inputs) }

func (b *Base) NOutputs() int { return len(b.outputs) }

func (b *Base) Input(i int) *Port { return &b.inputs[i] }

func (b *Base) Output(i int) *Port { return &b.outputs[i] }

// NPorts returns the input count when isOutput is false and the output
// count otherwise.
func (b *Base) NPorts(isOutput bool) int {
	if isOutput {
		return len(b.outputs)
	}
	return len(b.inputs)
}

// Port returns input or output i.
func (b *Base) Port(isOutput bool, i int) *Port {
	if isOutput {
		return &b.outputs[i]
	}
	return &b.inputs[i]
}

// OutputIsPush reports whether output i exists and pushes.
func (b *Base) OutputIsPush(i int) bool {
	return i >= 0 && i < len(b.outputs) && b.outputs[i].IsPush()
}

// InputIsPull reports whether input i exists and pulls.
func (b *Base) InputIsPull(i int) bool {
	return i >= 0 && i < len(b.inputs) && b.inputs[i].IsPull()
}

// SetNPorts sizes the port arrays. It fails once ports are frozen.
func (b *Base) SetNPorts(nInputs, nOutputs int) error {
	if b.frozen {
		return fmt.Errorf("%s: ports already frozen", b.name)
	}
	b.inputs = make([]Port, nInputs)
	for i := range b.inputs {
		b.inputs[i] = Port{owner: b.self, index: i}
	}
	b.outputs = make([]Port, nOutputs)
	for i := range b.outputs {
		b.outputs[i] = Port{owner: b.self, index: i, output: true}
	}
	return nil
}

// FreezePorts fixes the port counts.
func (b *Base) FreezePorts() { b.frozen = true }

// PortsFrozen reports whether port counts are fixed.
func (b *Base) PortsFrozen() bool { return b.frozen }

// SetDisciplines records the resolved discipline of every port.
func (b *Base) SetDisciplines(in, out []Discipline) {
	for i := range b.inputs {
		b.inputs[i].setDiscipline(in[i])
	}
	for i := range b.outputs {
		b.outputs[i].setDiscipline(out[i])
	}
}

// ConnectOutput binds push output i to peer's input peerPort.
func (b *Base) ConnectOutput(i int, peer Element, peerPort int, guard DepthGuard) error {
	return b.outputs[i].bind(peer, peerPort, guard)
}

// ConnectInput binds pull input i to peer's output peerPort.
func (b *Base) ConnectInput(i int, peer Element, peerPort int, guard DepthGuard) error {
	return b.inputs[i].bind(peer, peerPort, guard)
}

// NewTask creates a task calling the element's RunTask. The element must
// implement TaskRunner.
func (b *Base) NewTask() *task.Task {
	r, ok := b.self.(TaskRunner)
	if !ok {
		panic(fmt.Sprintf("%s does not implement RunTask", Declaration(b.self)))
	}
	return b.NewTaskFunc(r.RunTask)
}

// NewTaskFunc creates a task calling hook.
func (b *Base) NewTaskFunc(hook task.Hook) *task.Task {
	t := task.New(hook)
	t.Owner = b.self
	b.tasks = append(b.tasks, t)
	return t
}

// InitTask binds t to the element's home thread.
func (b *Base) InitTask(t *task.Task, schedule bool) {
	t.Initialize(b.Master().Thread(b.homeThread), schedule)
}

// Tasks returns the tasks created through the element.
func (b *Base) Tasks() []*task.Task { return b.tasks }

// NewTimer creates a timer calling the element's RunTimer. The element
// must implement TimerRunner.
func (b *Base) NewTimer() *timer.Timer {
	r, ok := b.self.(TimerRunner)
	if !ok {
		panic(fmt.Sprintf("%s does not implement RunTimer", Declaration(b.self)))
	}
	return b.NewTimerFunc(r.RunTimer)
}

// NewTimerFunc creates a timer calling hook.
func (b *Base) NewTimerFunc(hook timer.Hook) *timer.Timer {
	t := timer.New(hook)
	t.Owner = b.self
	b.timers = append(b.timers, t)
	return t
}

// InitTimer binds t to the router's timer list.
func (b *Base) InitTimer(t *timer.Timer) {
	t.Initialize(b.Master().Timers())
}

// Timers returns the timers created through the element.
func (b *Base) Timers() []*timer.Timer { return b.timers }

// AddReadHandler registers a read handler on the element.
func (b *Base) AddReadHandler(name string, fn ReadFunc) {
	b.ctx.AddReadHandler(b.self, name, fn)
}

// AddWriteHandler registers a write handler on the element.
func (b *Base) AddWriteHandler(name string, fn WriteFunc) {
	b.ctx.AddWriteHandler(b.self, name, fn)
}

// PleaseStop asks the driver to pause.
func (b *Base) PleaseStop() { b.ctx.PleaseStop() }
