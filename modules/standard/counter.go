package standard

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/timer"
	"github.com/dustin/go-humanize"
	"github.com/rcrowley/go-metrics"
)

// rateTick is the interval go-metrics EWMAs expect between ticks.
const rateTick = 5 * time.Second

// countCall writes a handler once a counter reaches a threshold.
type countCall struct {
	at      uint64
	handler string
	data    string
	done    bool
}

// parseCountCall parses "N ELEMENT.HANDLER [DATA]".
func parseCountCall(s string) (countCall, error) {
	words := confparse.SplitSpace(s)
	if len(words) < 2 {
		return countCall{}, fmt.Errorf("expected 'N ELEMENT.HANDLER [DATA]'")
	}
	n, err := confparse.ParseUint(words[0])
	if err != nil {
		return countCall{}, err
	}
	ref, err := confparse.ParseHandlerRef(words[1])
	if err != nil {
		return countCall{}, err
	}
	return countCall{at: uint64(n), handler: ref, data: strings.Join(words[2:], " ")}, nil
}

func (c *countCall) String() string {
	if c.handler == "" {
		return ""
	}
	s := strconv.FormatUint(c.at, 10) + " " + c.handler
	if c.data != "" {
		s += " " + c.data
	}
	return s
}

// Counter counts the packets and bytes passing through it. Rates are
// exponentially weighted averages ticked every five seconds.
type Counter struct {
	element.Base
	mu        sync.Mutex
	count     uint64
	byteCount uint64
	rate      metrics.EWMA
	byteRate  metrics.EWMA
	call      countCall
	byteCall  countCall
	timer     *timer.Timer
}

func (*Counter) Class() string     { return "Counter" }
func (*Counter) PortCount() string { return element.Ports1to1 }

func (c *Counter) Configure(conf []string, eh *errh.Handler) error {
	var call, byteCall string
	err := confparse.NewArgs(conf, eh).
		Read("COUNT_CALL", confparse.Arg(&call)).
		Read("BYTE_COUNT_CALL", confparse.Arg(&byteCall)).
		Complete()
	if err != nil {
		return err
	}
	if call != "" {
		if c.call, err = parseCountCall(call); err != nil {
			return eh.Error("COUNT_CALL: %v", err)
		}
	}
	if byteCall != "" {
		if c.byteCall, err = parseCountCall(byteCall); err != nil {
			return eh.Error("BYTE_COUNT_CALL: %v", err)
		}
	}
	return nil
}

func (c *Counter) Initialize(*errh.Handler) error {
	c.rate = metrics.NewEWMA1()
	c.byteRate = metrics.NewEWMA1()
	c.timer = c.NewTimer()
	c.InitTimer(c.timer)
	c.timer.ScheduleAfter(rateTick)
	return nil
}

func (c *Counter) RunTimer(t *timer.Timer) {
	c.mu.Lock()
	c.rate.Tick()
	c.byteRate.Tick()
	c.mu.Unlock()
	t.RescheduleAfter(rateTick)
}

func (c *Counter) SimpleAction(p *packet.Packet) *packet.Packet {
	n := uint64(p.Len())
	c.mu.Lock()
	c.count++
	c.byteCount += n
	fire := c.call.due(c.count)
	fireBytes := c.byteCall.due(c.byteCount)
	c.rate.Update(1)
	c.byteRate.Update(int64(n))
	c.mu.Unlock()
	if fire != nil {
		c.callHandler(fire)
	}
	if fireBytes != nil {
		c.callHandler(fireBytes)
	}
	return p
}

// due marks the call done and returns a copy once v reaches the threshold.
func (cc *countCall) due(v uint64) *countCall {
	if cc.handler == "" || cc.done || v < cc.at {
		return nil
	}
	cc.done = true
	out := *cc
	return &out
}

func (c *Counter) callHandler(cc *countCall) {
	eh := errh.New(c.Logger())
	if err := c.Router().CallWrite(cc.handler, cc.data, c, eh); err != nil {
		c.Logger().Warn("Count call failed.", "handler", cc.handler, "error", err)
	}
}

func (c *Counter) reset() {
	c.mu.Lock()
	c.count, c.byteCount = 0, 0
	c.call.done, c.byteCall.done = false, false
	c.rate = metrics.NewEWMA1()
	c.byteRate = metrics.NewEWMA1()
	c.mu.Unlock()
}

// Count returns the number of packets seen.
func (c *Counter) Count() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Counter) AddHandlers() {
	c.AddReadHandler("count", func() string { return strconv.FormatUint(c.Count(), 10) })
	c.AddReadHandler("byte_count", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return strconv.FormatUint(c.byteCount, 10)
	})
	c.AddReadHandler("byte_count_pretty", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return humanize.Bytes(c.byteCount)
	})
	c.AddReadHandler("rate", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return strconv.FormatFloat(c.rate.Rate(), 'f', 2, 64)
	})
	c.AddReadHandler("byte_rate", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return strconv.FormatFloat(c.byteRate.Rate(), 'f', 2, 64)
	})
	c.AddWriteHandler("reset", func(string, *errh.Handler) error {
		c.reset()
		return nil
	})
	c.AddReadHandler("count_call", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.call.String()
	})
	c.AddWriteHandler("count_call", func(data string, eh *errh.Handler) error {
		cc, err := parseCountCall(strings.TrimSpace(data))
		if err != nil {
			return eh.Error("'count_call' %v", err)
		}
		c.mu.Lock()
		c.call = cc
		c.mu.Unlock()
		return nil
	})
}

// AverageCounter counts packets and reports the average rate since the
// first packet, ignoring the first IGNORE seconds.
type AverageCounter struct {
	element.Base
	mu        sync.Mutex
	ignore    time.Duration
	count     uint64
	byteCount uint64
	first     time.Time
	last      time.Time
}

func (*AverageCounter) Class() string     { return "AverageCounter" }
func (*AverageCounter) PortCount() string { return element.Ports1to1 }

func (c *AverageCounter) Configure(conf []string, eh *errh.Handler) error {
	return confparse.NewArgs(conf, eh).ReadP("IGNORE", confparse.Seconds(&c.ignore)).Complete()
}

func (c *AverageCounter) SimpleAction(p *packet.Packet) *packet.Packet {
	now := c.Master().Clock().Now()
	c.mu.Lock()
	if c.first.IsZero() {
		c.first = now
	}
	if now.Sub(c.first) >= c.ignore {
		c.count++
		c.byteCount += uint64(p.Len())
		c.last = now
	}
	c.mu.Unlock()
	return p
}

// rates returns packets and bytes per second over the counted period.
func (c *AverageCounter) rates() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.last.Sub(c.first.Add(c.ignore)).Seconds()
	if c.count == 0 || d <= 0 {
		return 0, 0
	}
	return float64(c.count) / d, float64(c.byteCount) / d
}

func (c *AverageCounter) AddHandlers() {
	c.AddReadHandler("count", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return strconv.FormatUint(c.count, 10)
	})
	c.AddReadHandler("byte_count", func() string {
		c.mu.Lock()
		defer c.mu.Unlock()
		return strconv.FormatUint(c.byteCount, 10)
	})
	c.AddReadHandler("rate", func() string {
		r, _ := c.rates()
		return strconv.FormatFloat(r, 'f', 2, 64)
	})
	c.AddReadHandler("byte_rate", func() string {
		_, r := c.rates()
		return strconv.FormatFloat(r, 'f', 2, 64)
	})
	c.AddWriteHandler("reset", func(string, *errh.Handler) error {
		c.mu.Lock()
		c.count, c.byteCount = 0, 0
		c.first, c.last = time.Time{}, time.Time{}
		c.mu.Unlock()
		return nil
	})
}
