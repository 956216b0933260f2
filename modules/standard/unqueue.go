package standard

import (
	"strconv"
	"strings"
	"sync"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/task"
	"github.com/5g-empower/empower-agent/internal/timer"
	"golang.org/x/time/rate"
)

// Unqueue pulls up to BURST packets per task run and pushes them out.
type Unqueue struct {
	element.Base
	mu     sync.Mutex
	burst  int
	active bool
	count  uint64
	task   *task.Task
	sleeps bool
}

func (*Unqueue) Class() string      { return "Unqueue" }
func (*Unqueue) PortCount() string  { return element.Ports1to1 }
func (*Unqueue) Processing() string { return element.PullToPush }

func (u *Unqueue) Configure(conf []string, eh *errh.Handler) error {
	u.burst, u.active = 1, true
	err := confparse.NewArgs(conf, eh).
		ReadP("BURST", confparse.Int(&u.burst)).
		Read("ACTIVE", confparse.Bool(&u.active)).
		Complete()
	if err != nil {
		return err
	}
	if u.burst < 1 {
		return eh.Error("BURST must be at least 1")
	}
	return nil
}

func (u *Unqueue) Initialize(*errh.Handler) error {
	u.task = u.NewTask()
	u.sleeps = listenUpstream(u, 0, u.task)
	u.InitTask(u.task, u.active)
	return nil
}

func (u *Unqueue) RunTask(t *task.Task) bool {
	u.mu.Lock()
	burst, active := u.burst, u.active
	u.mu.Unlock()
	if !active {
		return false
	}
	n := 0
	for ; n < burst; n++ {
		p := u.Input(0).Pull()
		if p == nil {
			break
		}
		u.Output(0).Push(p)
	}
	u.mu.Lock()
	u.count += uint64(n)
	u.mu.Unlock()
	if n > 0 || !u.sleeps {
		t.FastReschedule()
	}
	return n > 0
}

func (u *Unqueue) AddHandlers() {
	u.AddReadHandler("count", func() string {
		u.mu.Lock()
		defer u.mu.Unlock()
		return strconv.FormatUint(u.count, 10)
	})
	read, write := intHandlers(&u.mu, &u.burst, "burst", 1, nil)
	u.AddReadHandler("burst", read)
	u.AddWriteHandler("burst", write)
	bread, bwrite := boolHandlers(&u.mu, &u.active, "active", func() { u.task.Reschedule() })
	u.AddReadHandler("active", bread)
	u.AddWriteHandler("active", bwrite)
}

// RatedUnqueue pulls at most RATE packets per second and pushes them out.
// Between tokens the task sleeps on a timer.
type RatedUnqueue struct {
	element.Base
	mu      sync.Mutex
	rate    int
	limiter *rate.Limiter
	count   uint64
	task    *task.Task
	timer   *timer.Timer
	sleeps  bool
}

func (*RatedUnqueue) Class() string            { return "RatedUnqueue" }
func (*RatedUnqueue) PortCount() string        { return element.Ports1to1 }
func (*RatedUnqueue) Processing() string       { return element.PullToPush }
func (*RatedUnqueue) CanLiveReconfigure() bool { return true }

func (u *RatedUnqueue) Configure(conf []string, eh *errh.Handler) error {
	var r int
	if err := confparse.NewArgs(conf, eh).ReadMP("RATE", confparse.Int(&r)).Complete(); err != nil {
		return err
	}
	if r < 1 {
		return eh.Error("RATE must be positive")
	}
	u.setRate(r)
	return nil
}

func (u *RatedUnqueue) Configuration() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return []string{strconv.Itoa(u.rate)}
}

func (u *RatedUnqueue) setRate(r int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rate = r
	if u.limiter == nil {
		u.limiter = rate.NewLimiter(rate.Limit(r), 1)
		return
	}
	u.limiter.SetLimitAt(u.Master().Clock().Now(), rate.Limit(r))
}

func (u *RatedUnqueue) Initialize(*errh.Handler) error {
	u.task = u.NewTask()
	u.timer = u.NewTimerFunc(func(*timer.Timer) { u.task.Reschedule() })
	u.InitTimer(u.timer)
	u.sleeps = listenUpstream(u, 0, u.task)
	u.InitTask(u.task, true)
	return nil
}

func (u *RatedUnqueue) RunTask(t *task.Task) bool {
	now := u.Master().Clock().Now()
	u.mu.Lock()
	res := u.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		u.mu.Unlock()
		u.timer.ScheduleAfter(delay)
		return false
	}
	u.mu.Unlock()

	p := u.Input(0).Pull()
	if p == nil {
		u.mu.Lock()
		res.CancelAt(now)
		u.mu.Unlock()
		if !u.sleeps {
			t.FastReschedule()
		}
		return false
	}
	u.Output(0).Push(p)
	u.mu.Lock()
	u.count++
	u.mu.Unlock()
	t.FastReschedule()
	return true
}

func (u *RatedUnqueue) AddHandlers() {
	u.AddReadHandler("count", func() string {
		u.mu.Lock()
		defer u.mu.Unlock()
		return strconv.FormatUint(u.count, 10)
	})
	u.AddReadHandler("rate", func() string {
		u.mu.Lock()
		defer u.mu.Unlock()
		return strconv.Itoa(u.rate)
	})
	u.AddWriteHandler("rate", func(data string, eh *errh.Handler) error {
		r, err := confparse.ParseInt(strings.TrimSpace(data))
		if err != nil || r < 1 {
			return eh.Error("'rate' takes a positive integer")
		}
		u.setRate(r)
		u.task.Reschedule()
		return nil
	})
}
