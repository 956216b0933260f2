package standard

import (
	"runtime"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
)

// Spinlock is a busy-waiting lock that may be released by a different
// element, or goroutine, than the one that acquired it.
type Spinlock struct {
	held atomic.Bool
}

func (l *Spinlock) Acquire() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Release unlocks l. Releasing a free lock does nothing.
func (l *Spinlock) Release() { l.held.Store(false) }

func (l *Spinlock) Held() bool { return l.held.Load() }

// SpinlockInfo declares the named locks used by SpinlockAcquire and
// SpinlockRelease. Each argument is one lock name.
type SpinlockInfo struct {
	element.Base
	locks map[string]*Spinlock
}

func (*SpinlockInfo) Class() string       { return "SpinlockInfo" }
func (*SpinlockInfo) PortCount() string   { return "0/0" }
func (*SpinlockInfo) ConfigurePhase() int { return element.PhaseInfo }

func (s *SpinlockInfo) Configure(conf []string, eh *errh.Handler) error {
	s.locks = make(map[string]*Spinlock)
	var err error
	fail := func(e error) {
		if err == nil {
			err = e
		}
	}
	for i, arg := range conf {
		words := confparse.SplitSpace(arg)
		switch {
		case len(words) == 0:
		case len(words) > 1:
			fail(eh.Error("argument %d: expected lock name, got %q", i+1, arg))
		case s.locks[words[0]] != nil:
			fail(eh.Error("lock %q declared twice", words[0]))
		default:
			s.locks[words[0]] = &Spinlock{}
		}
	}
	return err
}

// Lock returns the lock declared as name.
func (s *SpinlockInfo) Lock(name string) (*Spinlock, bool) {
	l, ok := s.locks[name]
	return l, ok
}

// findSpinlock looks name up in every SpinlockInfo of the router.
func findSpinlock(ctx element.Context, name string) (*Spinlock, bool) {
	for _, e := range ctx.Elements() {
		if si, ok := e.(*SpinlockInfo); ok {
			if l, ok := si.Lock(name); ok {
				return l, true
			}
		}
	}
	return nil, false
}

func configureLock(b *element.Base, conf []string, eh *errh.Handler) (*Spinlock, error) {
	var name string
	if err := confparse.NewArgs(conf, eh).ReadMP("LOCK", confparse.Arg(&name)).Complete(); err != nil {
		return nil, err
	}
	l, ok := findSpinlock(b.Router(), name)
	if !ok {
		return nil, eh.Error("no SpinlockInfo declares lock %q", name)
	}
	return l, nil
}

// SpinlockAcquire takes LOCK before passing each packet on.
type SpinlockAcquire struct {
	element.Base
	lock *Spinlock
}

func (*SpinlockAcquire) Class() string     { return "SpinlockAcquire" }
func (*SpinlockAcquire) PortCount() string { return element.PortsSame }

func (s *SpinlockAcquire) Configure(conf []string, eh *errh.Handler) (err error) {
	s.lock, err = configureLock(&s.Base, conf, eh)
	return err
}

func (s *SpinlockAcquire) SimpleAction(p *packet.Packet) *packet.Packet {
	s.lock.Acquire()
	return p
}

// SpinlockRelease releases LOCK before passing each packet on.
type SpinlockRelease struct {
	element.Base
	lock *Spinlock
}

func (*SpinlockRelease) Class() string     { return "SpinlockRelease" }
func (*SpinlockRelease) PortCount() string { return element.PortsSame }

func (s *SpinlockRelease) Configure(conf []string, eh *errh.Handler) (err error) {
	s.lock, err = configureLock(&s.Base, conf, eh)
	return err
}

func (s *SpinlockRelease) SimpleAction(p *packet.Packet) *packet.Packet {
	s.lock.Release()
	return p
}
