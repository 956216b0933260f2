package standard

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/timer"
)

const defaultInterval = 500 * time.Millisecond

// TimedSink pulls and kills one packet every INTERVAL.
type TimedSink struct {
	element.Base
	mu       sync.Mutex
	interval time.Duration
	count    int
	timer    *timer.Timer
}

func (*TimedSink) Class() string      { return "TimedSink" }
func (*TimedSink) PortCount() string  { return element.Ports1to0 }
func (*TimedSink) Processing() string { return element.PullCode }

func (s *TimedSink) Configure(conf []string, eh *errh.Handler) error {
	s.interval = defaultInterval
	if err := confparse.NewArgs(conf, eh).ReadP("INTERVAL", confparse.Seconds(&s.interval)).Complete(); err != nil {
		return err
	}
	if s.interval <= 0 {
		return eh.Error("INTERVAL must be positive")
	}
	return nil
}

func (s *TimedSink) Initialize(*errh.Handler) error {
	s.timer = s.NewTimer()
	s.InitTimer(s.timer)
	s.timer.ScheduleAfter(s.interval)
	return nil
}

func (s *TimedSink) RunTimer(t *timer.Timer) {
	if p := s.Input(0).Pull(); p != nil {
		s.mu.Lock()
		s.count++
		s.mu.Unlock()
		p.Kill()
	}
	t.RescheduleAfter(s.interval)
}

func (s *TimedSink) AddHandlers() {
	s.AddReadHandler("count", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return strconv.Itoa(s.count)
	})
}

// TimedSource pushes a copy of DATA every INTERVAL, LIMIT times (-1 means
// forever). With STOP true the driver is asked to stop after the last one.
type TimedSource struct {
	element.Base
	mu       sync.Mutex
	interval time.Duration
	data     string
	limit    int
	stop     bool
	count    int
	timer    *timer.Timer
}

func (*TimedSource) Class() string      { return "TimedSource" }
func (*TimedSource) PortCount() string  { return element.Ports0to1 }
func (*TimedSource) Processing() string { return element.PushCode }

func (s *TimedSource) Configure(conf []string, eh *errh.Handler) error {
	s.interval = defaultInterval
	s.data = defaultSourceData
	s.limit = -1
	err := confparse.NewArgs(conf, eh).
		ReadP("INTERVAL", confparse.Seconds(&s.interval)).
		ReadP("DATA", confparse.String(&s.data)).
		Read("LIMIT", confparse.Int(&s.limit)).
		Read("STOP", confparse.Bool(&s.stop)).
		Complete()
	if err != nil {
		return err
	}
	if s.interval <= 0 {
		return eh.Error("INTERVAL must be positive")
	}
	return nil
}

func (s *TimedSource) Initialize(*errh.Handler) error {
	s.timer = s.NewTimer()
	s.InitTimer(s.timer)
	if s.limit != 0 {
		s.timer.ScheduleAfter(s.interval)
	}
	return nil
}

func (s *TimedSource) RunTimer(t *timer.Timer) {
	s.mu.Lock()
	if s.limit >= 0 && s.count >= s.limit {
		s.mu.Unlock()
		return
	}
	s.count++
	data := s.data
	done := s.limit >= 0 && s.count >= s.limit
	interval := s.interval
	s.mu.Unlock()

	p := packet.New([]byte(data))
	p.Timestamp = s.Master().Clock().Now()
	s.Output(0).Push(p)
	if !done {
		t.RescheduleAfter(interval)
	} else if s.stop {
		s.PleaseStop()
	}
}

func (s *TimedSource) AddHandlers() {
	s.AddReadHandler("count", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return strconv.Itoa(s.count)
	})
	s.AddReadHandler("data", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.data
	})
	s.AddWriteHandler("data", func(data string, _ *errh.Handler) error {
		s.mu.Lock()
		s.data = confparse.Unquote(strings.TrimSpace(data))
		s.mu.Unlock()
		return nil
	})
	s.AddReadHandler("interval", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.interval.String()
	})
	s.AddWriteHandler("interval", func(data string, eh *errh.Handler) error {
		d, err := confparse.ParseSeconds(strings.TrimSpace(data))
		if err != nil || d <= 0 {
			return eh.Error("'interval' takes a positive time interval")
		}
		s.mu.Lock()
		s.interval = d
		s.mu.Unlock()
		return nil
	})
}
