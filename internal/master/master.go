// Package master drives a router: one goroutine per task thread sweeps its
// task list, all threads share one timer list, and idle threads sleep until
// a task is scheduled, the next timer is due, or the driver is stopped.
package master

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/clock"
	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/5g-empower/empower-agent/internal/task"
	"github.com/5g-empower/empower-agent/internal/timer"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning is returned by Run when the driver is already running.
var ErrAlreadyRunning = errors.New("driver already running")

// PauseHandler decides what happens when the run count drops to zero.
// Returning true keeps the driver running; the handler is expected to have
// raised the run count.
type PauseHandler interface {
	HandleStoppedDriver() bool
}

// Config configures a Master.
type Config struct {
	Threads int
	Stride  bool
	Clock   clock.Clock
}

// Master owns the task threads and the shared timer list.
type Master struct {
	clock   clock.Clock
	threads []*task.Thread
	timers  *timer.List

	runcount atomic.Int32
	stopped  atomic.Bool
	running  atomic.Bool

	pauseMu sync.Mutex
	pause   PauseHandler

	sweeps atomic.Uint64
}

// New returns a driver with cfg.Threads threads (at least one).
func New(cfg Config) *Master {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}
	m := &Master{
		clock:  cfg.Clock,
		timers: timer.NewList(cfg.Clock),
	}
	for i := 0; i < cfg.Threads; i++ {
		m.threads = append(m.threads, task.NewThread(i, cfg.Stride))
	}
	m.runcount.Store(1)
	return m
}

// Clock returns the driver's time source.
func (m *Master) Clock() clock.Clock { return m.clock }

// Timers returns the shared timer list.
func (m *Master) Timers() *timer.List { return m.timers }

// NThreads returns the number of task threads.
func (m *Master) NThreads() int { return len(m.threads) }

// Thread returns thread id. Out-of-range ids wrap around.
func (m *Master) Thread(id int) *task.Thread {
	if id < 0 {
		id = -id
	}
	return m.threads[id%len(m.threads)]
}

// Threads returns every thread.
func (m *Master) Threads() []*task.Thread { return m.threads }

// Sweeps returns the number of task sweeps made by all threads.
func (m *Master) Sweeps() uint64 { return m.sweeps.Load() }

// RunCount returns the current run count.
func (m *Master) RunCount() int32 { return m.runcount.Load() }

// SetRunCount sets the run count.
func (m *Master) SetRunCount(n int32) {
	m.runcount.Store(n)
	m.kick()
}

// AdjustRunCount adds delta to the run count.
func (m *Master) AdjustRunCount(delta int32) {
	m.runcount.Add(delta)
	m.kick()
}

// PleaseStop asks the driver to pause. Any element may call it; the driver
// observes it between sweeps.
func (m *Master) PleaseStop() {
	m.AdjustRunCount(-1)
}

// SetPauseHandler installs the handler consulted when the run count drops
// to zero.
func (m *Master) SetPauseHandler(h PauseHandler) {
	m.pauseMu.Lock()
	m.pause = h
	m.pauseMu.Unlock()
}

// Stop halts the driver unconditionally.
func (m *Master) Stop() {
	m.stopped.Store(true)
	m.kick()
}

// Stopped reports whether the driver was halted.
func (m *Master) Stopped() bool { return m.stopped.Load() }

// Running reports whether Run is in progress.
func (m *Master) Running() bool { return m.running.Load() }

func (m *Master) kick() {
	for _, th := range m.threads {
		th.Kick()
	}
}

// Run drives every thread until the driver stops or ctx is cancelled.
func (m *Master) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Driver starting.", "threads", len(m.threads))

	g, gctx := errgroup.WithContext(ctx)
	for _, th := range m.threads {
		th := th
		g.Go(func() error { return m.drive(gctx, th) })
	}
	err := g.Wait()
	logger.Debug("Driver stopped.", "sweeps", m.sweeps.Load(), "error", err)
	return err
}

func (m *Master) drive(ctx context.Context, th *task.Thread) error {
	for {
		if m.stopped.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			m.Stop()
			return err
		}
		if m.runcount.Load() <= 0 && !m.checkDriver() {
			m.Stop()
			return nil
		}

		_, worked := th.RunTasks()
		m.sweeps.Add(1)
		if m.timers.Run(&m.runcount) > 0 {
			worked = true
		}
		if worked {
			continue
		}
		if th.Len() > 0 {
			// Polling tasks with nothing to do; let other goroutines in.
			runtime.Gosched()
			continue
		}
		m.wait(ctx, th)
	}
}

// checkDriver asks the pause handler whether a pause should stop the
// driver. Only one thread consults it at a time.
func (m *Master) checkDriver() bool {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.runcount.Load() > 0 {
		return true
	}
	if m.pause == nil {
		return false
	}
	return m.pause.HandleStoppedDriver()
}

// wait blocks an idle thread until there may be work.
func (m *Master) wait(ctx context.Context, th *task.Thread) {
	delay, _ := m.timers.NextDelay()
	if delay == 0 {
		return
	}
	t := m.clock.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-th.Wake():
	case <-m.timers.Changed():
		// Pass the signal on so other idle threads recompute too.
		m.kick()
	case <-t.C():
	}
}
