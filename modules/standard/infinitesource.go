package standard

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/task"
)

const defaultSourceData = "Random bits in a packet, at least 64 bytes long. Well, now it is."

// InfiniteSource pushes copies of one payload from a task, BURST packets
// per run, until LIMIT packets were sent. LIMIT -1 means forever.
type InfiniteSource struct {
	element.Base

	mu       sync.Mutex
	data     []byte
	text     string
	datasize int
	limit    int
	burst    int
	active   bool
	stop     bool
	count    int
	stopped  bool

	task *task.Task
}

func (*InfiniteSource) Class() string            { return "InfiniteSource" }
func (*InfiniteSource) PortCount() string        { return element.Ports0to1 }
func (*InfiniteSource) Processing() string       { return element.PushCode }
func (*InfiniteSource) CanLiveReconfigure() bool { return true }

func (s *InfiniteSource) Configure(conf []string, eh *errh.Handler) error {
	text := defaultSourceData
	limit, burst := -1, 1
	active, stop := true, false
	var datasize int64 = -1
	err := confparse.NewArgs(conf, eh).
		ReadP("DATA", confparse.String(&text)).
		ReadP("LIMIT", confparse.Int(&limit)).
		ReadP("BURST", confparse.Int(&burst)).
		ReadP("ACTIVE", confparse.Bool(&active)).
		Read("DATASIZE", confparse.Size(&datasize)).
		Read("STOP", confparse.Bool(&stop)).
		Complete()
	if err != nil {
		return err
	}
	if burst < 1 {
		return eh.Error("BURST must be at least 1")
	}

	s.mu.Lock()
	s.text, s.datasize = text, int(datasize)
	s.data = sourcePayload(text, s.datasize)
	s.limit, s.burst, s.active, s.stop = limit, burst, active, stop
	s.mu.Unlock()
	s.wake()
	return nil
}

func (s *InfiniteSource) Configuration() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	conf := []string{
		"DATA " + confparse.Quote(s.text),
		"LIMIT " + strconv.Itoa(s.limit),
		"BURST " + strconv.Itoa(s.burst),
		"ACTIVE " + strconv.FormatBool(s.active),
	}
	if s.datasize >= 0 {
		conf = append(conf, "DATASIZE "+strconv.Itoa(s.datasize))
	}
	return append(conf, "STOP "+strconv.FormatBool(s.stop))
}

// sourcePayload repeats or truncates text to size bytes. A negative size
// keeps text as is.
func sourcePayload(text string, size int) []byte {
	if size < 0 {
		return []byte(text)
	}
	if text == "" {
		return make([]byte, size)
	}
	b := bytes.Repeat([]byte(text), size/len(text)+1)
	return b[:size]
}

func (s *InfiniteSource) Initialize(*errh.Handler) error {
	s.task = s.NewTask()
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	s.InitTask(s.task, active)
	return nil
}

// wake schedules the task if there is work left.
func (s *InfiniteSource) wake() {
	if s.task == nil {
		return
	}
	s.mu.Lock()
	ok := s.active && (s.limit < 0 || s.count < s.limit)
	if ok {
		s.stopped = false
	}
	s.mu.Unlock()
	if ok {
		s.task.Reschedule()
	}
}

func (s *InfiniteSource) RunTask(t *task.Task) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	n := s.burst
	if s.limit >= 0 && s.count+n > s.limit {
		n = max(s.limit-s.count, 0)
	}
	data := s.data
	s.count += n
	done := s.limit >= 0 && s.count >= s.limit
	stop := done && s.stop && !s.stopped
	if stop {
		s.stopped = true
	}
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		s.Output(0).Push(packet.Make(data))
	}
	if stop {
		s.PleaseStop()
	}
	if !done {
		t.FastReschedule()
	}
	return n > 0
}

func (s *InfiniteSource) AddHandlers() {
	s.AddReadHandler("count", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return strconv.Itoa(s.count)
	})
	s.AddWriteHandler("reset", func(string, *errh.Handler) error {
		s.mu.Lock()
		s.count = 0
		s.mu.Unlock()
		s.wake()
		return nil
	})
	s.AddReadHandler("data", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.text
	})
	s.AddWriteHandler("data", func(data string, _ *errh.Handler) error {
		s.mu.Lock()
		s.text = confparse.Unquote(strings.TrimSpace(data))
		s.data = sourcePayload(s.text, s.datasize)
		s.mu.Unlock()
		return nil
	})
	s.AddReadHandler("datasize", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return strconv.Itoa(len(s.data))
	})
	s.AddWriteHandler("datasize", func(data string, eh *errh.Handler) error {
		n, err := confparse.ParseSize(strings.TrimSpace(data))
		if err != nil {
			return eh.Error("'datasize' takes a size")
		}
		s.mu.Lock()
		s.datasize = int(n)
		s.data = sourcePayload(s.text, s.datasize)
		s.mu.Unlock()
		return nil
	})
	read, write := intHandlers(&s.mu, &s.limit, "limit", -1, s.wake)
	s.AddReadHandler("limit", read)
	s.AddWriteHandler("limit", write)
	read, write = intHandlers(&s.mu, &s.burst, "burstsize", 1, nil)
	s.AddReadHandler("burstsize", read)
	s.AddWriteHandler("burstsize", write)
	read, write = boolHandlers(&s.mu, &s.active, "active", s.wake)
	s.AddReadHandler("active", read)
	s.AddWriteHandler("active", write)
}
