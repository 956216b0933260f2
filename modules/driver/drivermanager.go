package driver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/master"
	"github.com/5g-empower/empower-agent/internal/timer"
)

type opcode int

const (
	opWaitPause opcode = iota
	opWaitFor
	opStop
	opWrite
	opWriteSkip
	opRead
	opSave
)

var opNames = map[opcode]string{
	opWaitPause: "wait_pause",
	opWaitFor:   "wait_for",
	opStop:      "stop",
	opWrite:     "write",
	opWriteSkip: "write_skip",
	opRead:      "read",
	opSave:      "save",
}

type instruction struct {
	op      opcode
	count   int
	wait    time.Duration
	handler string
	data    string
}

func (in instruction) String() string {
	switch in.op {
	case opWaitPause:
		return fmt.Sprintf("wait_pause %d", in.count)
	case opWaitFor:
		return "wait_for " + in.wait.String()
	case opWrite, opWriteSkip, opSave:
		if in.data == "" {
			return opNames[in.op] + " " + in.handler
		}
		return opNames[in.op] + " " + in.handler + " " + in.data
	case opRead:
		return "read " + in.handler
	default:
		return opNames[in.op]
	}
}

// parseInstruction parses one DriverManager argument.
func parseInstruction(arg string) (instruction, error) {
	word, rest, _ := strings.Cut(strings.TrimSpace(arg), " ")
	rest = strings.TrimSpace(rest)
	switch word {
	case "wait":
		if rest != "" {
			return instruction{}, fmt.Errorf("'wait' takes no arguments")
		}
		return instruction{op: opWaitPause, count: 1}, nil
	case "wait_pause", "wait_stop":
		in := instruction{op: opWaitPause, count: 1}
		if rest != "" {
			n, err := confparse.ParseInt(rest)
			if err != nil || n < 1 {
				return instruction{}, fmt.Errorf("'%s' takes a positive count", word)
			}
			in.count = n
		}
		return in, nil
	case "wait_for", "wait_time":
		d, err := confparse.ParseSeconds(rest)
		if err != nil {
			return instruction{}, fmt.Errorf("'%s' takes a time interval", word)
		}
		return instruction{op: opWaitFor, wait: d}, nil
	case "stop":
		if rest != "" {
			return instruction{}, fmt.Errorf("'stop' takes no arguments")
		}
		return instruction{op: opStop}, nil
	case "write", "write_skip", "read", "save":
		ref, data, _ := strings.Cut(rest, " ")
		if _, err := confparse.ParseHandlerRef(ref); err != nil {
			return instruction{}, fmt.Errorf("'%s': %w", word, err)
		}
		in := instruction{handler: ref, data: confparse.Unquote(strings.TrimSpace(data))}
		switch word {
		case "write":
			in.op = opWrite
		case "write_skip":
			in.op = opWriteSkip
		case "read":
			if in.data != "" {
				return instruction{}, fmt.Errorf("'read' takes a handler only")
			}
			in.op = opRead
		case "save":
			if in.data == "" {
				return instruction{}, fmt.Errorf("'save' takes a handler and a file name")
			}
			in.op = opSave
		}
		return in, nil
	default:
		return instruction{}, fmt.Errorf("unknown instruction %q", word)
	}
}

// DriverManager scripts what the driver does when the router pauses. It
// walks its instructions one by one; waiting instructions hold the driver
// running until enough pauses arrive or their time runs out.
type DriverManager struct {
	element.Base
	mu            sync.Mutex
	insns         []instruction
	checkHandlers bool

	// pc is -1 until the first step.
	pc      int
	started *timer.Timer
	waitFor *timer.Timer
	broken  bool
	steps   uint64
}

var _ master.PauseHandler = (*DriverManager)(nil)

func (*DriverManager) Class() string       { return "DriverManager" }
func (*DriverManager) PortCount() string   { return "0/0" }
func (*DriverManager) ConfigurePhase() int { return element.PhaseLast }

func (d *DriverManager) Configure(conf []string, eh *errh.Handler) error {
	d.checkHandlers = true
	d.insns = d.insns[:0]
	for _, arg := range conf {
		if kw, rest, ok := confparse.Keyword(arg); ok {
			if kw != "CHECK_HANDLERS" {
				eh.Error("unknown keyword %s", kw)
				continue
			}
			b, err := confparse.ParseBool(rest)
			if err != nil {
				eh.Error("CHECK_HANDLERS takes a bool")
				continue
			}
			d.checkHandlers = b
			continue
		}
		if strings.TrimSpace(arg) == "" {
			continue
		}
		in, err := parseInstruction(arg)
		if err != nil {
			eh.Error("%v", err)
			continue
		}
		d.insns = append(d.insns, in)
	}
	if len(d.insns) == 0 {
		d.insns = append(d.insns, instruction{op: opWaitPause, count: 1})
	}
	if d.insns[len(d.insns)-1].op != opStop {
		d.insns = append(d.insns, instruction{op: opStop})
	}
	return nil
}

func (d *DriverManager) Initialize(eh *errh.Handler) error {
	for _, e := range d.Router().Elements() {
		if other, ok := e.(*DriverManager); ok && other != d {
			return eh.Error("router has more than one DriverManager")
		}
	}
	if d.checkHandlers {
		var first error
		for _, in := range d.insns {
			if in.handler == "" {
				continue
			}
			ename, _, _ := strings.Cut(in.handler, ".")
			if _, err := d.Router().Find(ename, d); err != nil {
				if err := eh.Error("%s: %v", in, err); first == nil {
					first = err
				}
			}
		}
		if first != nil {
			return first
		}
	}
	d.pc = -1
	d.Master().SetPauseHandler(d)
	d.waitFor = d.NewTimerFunc(d.waitExpired)
	d.InitTimer(d.waitFor)
	d.started = d.NewTimerFunc(d.start)
	d.InitTimer(d.started)
	d.started.ScheduleNow()
	return nil
}

// AddHandlers runs after every other element registered its handlers, so
// handler names can be checked here.
func (d *DriverManager) AddHandlers() {
	if d.checkHandlers {
		for _, in := range d.insns {
			if in.handler == "" {
				continue
			}
			if !d.handlerExists(in) {
				d.Logger().Error("DriverManager refers to a missing handler.", "instruction", in.String())
				d.broken = true
			}
		}
	}
	d.AddReadHandler("instructions", func() string {
		var b strings.Builder
		for _, in := range d.insns {
			b.WriteString(in.String())
			b.WriteByte('\n')
		}
		return b.String()
	})
	d.AddReadHandler("position", func() string {
		d.mu.Lock()
		defer d.mu.Unlock()
		return strconv.Itoa(d.pc)
	})
	d.AddReadHandler("steps", func() string {
		d.mu.Lock()
		defer d.mu.Unlock()
		return strconv.FormatUint(d.steps, 10)
	})
}

func (d *DriverManager) handlerExists(in instruction) bool {
	flags, err := d.Router().HandlerFlags(in.handler, d)
	if err != nil {
		return false
	}
	if in.op == opRead || in.op == opSave {
		return strings.Contains(flags, "r")
	}
	return strings.Contains(flags, "w")
}

func (d *DriverManager) Cleanup(stage element.CleanupStage) {
	if stage >= element.CleanupInitialized {
		d.Master().SetPauseHandler(nil)
	}
}

// start retires the run count the driver begins with and executes the
// instructions up to the first wait.
func (d *DriverManager) start(*timer.Timer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.begin()
	d.run()
}

func (d *DriverManager) begin() {
	if d.pc >= 0 {
		return
	}
	d.started.Unschedule()
	d.Master().AdjustRunCount(-1)
	if d.broken {
		d.pc = len(d.insns) - 1
	}
}

// HandleStoppedDriver is consulted by the driver when the run count drops
// to zero.
func (d *DriverManager) HandleStoppedDriver() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.begin()
	return d.run()
}

// run steps until the run count is positive again or a stop is reached.
func (d *DriverManager) run() bool {
	m := d.Master()
	for m.RunCount() <= 0 {
		if d.pc >= 0 && d.insns[d.pc].op == opStop {
			return false
		}
		if !d.step() {
			return false
		}
	}
	return true
}

// step leaves the current instruction, executes the immediate ones that
// follow and enters the next wait. It reports false on reaching stop.
func (d *DriverManager) step() bool {
	m := d.Master()
	if d.pc >= 0 && d.insns[d.pc].op == opWaitFor {
		d.waitFor.Unschedule()
	}
	for d.pc++; d.pc < len(d.insns); d.pc++ {
		in := d.insns[d.pc]
		d.steps++
		switch in.op {
		case opWaitPause:
			m.AdjustRunCount(int32(in.count))
			return true
		case opWaitFor:
			m.AdjustRunCount(1)
			d.waitFor.ScheduleAfter(in.wait)
			return true
		case opStop:
			d.Logger().Debug("DriverManager stopping the driver.")
			return false
		case opWriteSkip:
			// A pause beyond the one being handled is pending.
			if m.RunCount() < 0 {
				continue
			}
			d.write(in)
		case opWrite:
			d.write(in)
		case opRead, opSave:
			d.read(in)
		}
	}
	d.pc = len(d.insns) - 1
	return false
}

func (d *DriverManager) waitExpired(*timer.Timer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pc >= 0 && d.insns[d.pc].op == opWaitFor {
		d.Master().PleaseStop()
	}
}

func (d *DriverManager) write(in instruction) {
	eh := errh.New(d.Logger())
	if err := d.Router().CallWrite(in.handler, in.data, d, eh); err != nil {
		d.Logger().Error("DriverManager write failed.", "handler", in.handler, "error", err)
	}
}

func (d *DriverManager) read(in instruction) {
	v, err := d.Router().CallRead(in.handler, d)
	if err != nil {
		d.Logger().Error("DriverManager read failed.", "handler", in.handler, "error", err)
		return
	}
	if in.op == opRead || in.data == "-" {
		d.Logger().Info("Handler value.", "handler", in.handler, "value", v)
		return
	}
	if err := os.WriteFile(in.data, []byte(v), 0o644); err != nil {
		d.Logger().Error("DriverManager save failed.", "handler", in.handler, "file", in.data, "error", err)
	}
}
