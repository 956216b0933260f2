package threadtest

import (
	"math/rand/v2"
	"strconv"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/task"
)

// TaskThreadTest runs N tasks. With CHANGE_THREAD each run moves its task
// to a random driver thread. After LIMIT runs in total the tasks stop and,
// with STOP, the driver is asked to pause.
type TaskThreadTest struct {
	element.Base
	n      int
	change bool
	limit  int64
	stop   bool

	runs  atomic.Int64
	moves atomic.Uint64
}

func (*TaskThreadTest) Class() string     { return "TaskThreadTest" }
func (*TaskThreadTest) PortCount() string { return "0/0" }

func (e *TaskThreadTest) Configure(conf []string, eh *errh.Handler) error {
	e.n, e.change = 1, true
	limit := -1
	err := confparse.NewArgs(conf, eh).
		ReadP("N", confparse.Int(&e.n)).
		Read("CHANGE_THREAD", confparse.Bool(&e.change)).
		Read("LIMIT", confparse.Int(&limit)).
		Read("STOP", confparse.Bool(&e.stop)).
		Complete()
	if err != nil {
		return err
	}
	if e.n < 1 {
		return eh.Error("N must be at least 1")
	}
	e.limit = int64(limit)
	return nil
}

func (e *TaskThreadTest) Initialize(*errh.Handler) error {
	for i := 0; i < e.n; i++ {
		t := e.NewTask()
		e.InitTask(t, true)
	}
	return nil
}

func (e *TaskThreadTest) RunTask(t *task.Task) bool {
	n := e.runs.Add(1)
	if e.limit >= 0 {
		if n > e.limit {
			e.runs.Add(-1)
			return false
		}
		if n == e.limit {
			if e.stop {
				e.PleaseStop()
			}
			return true
		}
	}
	m := e.Master()
	if e.change && m.NThreads() > 1 {
		to := rand.IntN(m.NThreads())
		if to != t.HomeThreadID() {
			t.MoveThread(m.Thread(to))
			e.moves.Add(1)
		}
		t.Reschedule()
		return true
	}
	t.FastReschedule()
	return true
}

func (e *TaskThreadTest) AddHandlers() {
	e.AddReadHandler("runs", func() string { return strconv.FormatInt(e.runs.Load(), 10) })
	e.AddReadHandler("moves", func() string { return strconv.FormatUint(e.moves.Load(), 10) })
}
