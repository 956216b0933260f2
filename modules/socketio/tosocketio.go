package socketio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
)

// ToSocketIO emits the payload of every packet pushed into it as a
// socket.io event.
type ToSocketIO struct {
	element.Base
	dial dialer

	opts     options
	rawURL   string
	event    string
	encoding string

	mu   sync.Mutex
	conn conn

	count  atomic.Uint64
	errors atomic.Uint64
}

func (*ToSocketIO) Class() string      { return "ToSocketIO" }
func (*ToSocketIO) PortCount() string  { return element.Ports1to0 }
func (*ToSocketIO) Processing() string { return element.PushCode }

func (s *ToSocketIO) Configure(conf []string, eh *errh.Handler) error {
	s.event = "packet"
	s.encoding = "STRING"
	s.opts = options{timeout: 15 * time.Second}
	err := confparse.NewArgs(conf, eh).
		ReadMP("URL", confparse.String(&s.rawURL)).
		ReadP("EVENT", confparse.String(&s.event)).
		Read("NAMESPACE", confparse.String(&s.opts.namespace)).
		Read("INSECURE", confparse.Bool(&s.opts.insecure)).
		Read("TIMEOUT", confparse.Seconds(&s.opts.timeout)).
		Read("ENCODING", confparse.Arg(&s.encoding)).
		Complete()
	if err != nil {
		return err
	}
	u, err := url.Parse(s.rawURL)
	if err != nil || u.Host == "" {
		return eh.Error("bad URL %q", s.rawURL)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return eh.Error("URL scheme must be http, https, ws or wss")
	}
	s.opts.url = u
	if s.opts.namespace == "" {
		s.opts.namespace = "/"
	}
	if s.event == "" {
		return eh.Error("EVENT must not be empty")
	}
	s.encoding = strings.ToUpper(s.encoding)
	switch s.encoding {
	case "STRING", "JSON", "BASE64":
	default:
		return eh.Error("ENCODING must be STRING, JSON or BASE64")
	}
	if s.opts.timeout <= 0 {
		return eh.Error("TIMEOUT must be positive")
	}
	return nil
}

func (s *ToSocketIO) Initialize(eh *errh.Handler) error {
	d := s.dial
	if d == nil {
		d = dial
	}
	c, err := d(context.Background(), s.Logger(), s.opts)
	if err != nil {
		return eh.Error("%v", err)
	}
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
	return nil
}

func (s *ToSocketIO) Cleanup(element.CleanupStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.Logger().Debug("Disconnecting socket.io client.", "sid", s.conn.ID())
		s.conn.Close()
		s.conn = nil
	}
}

// encode turns a payload into the event argument.
func encode(encoding string, data []byte) (any, error) {
	switch encoding {
	case "JSON":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("payload is not JSON: %w", err)
		}
		return v, nil
	case "BASE64":
		return base64.StdEncoding.EncodeToString(data), nil
	default:
		return string(data), nil
	}
}

func (s *ToSocketIO) Push(_ int, p *packet.Packet) {
	defer p.Kill()
	v, err := encode(s.encoding, p.Data())
	if err != nil {
		s.errors.Add(1)
		s.Logger().Debug("Dropping packet.", "error", err)
		return
	}
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil || !c.Connected() {
		s.errors.Add(1)
		return
	}
	c.Emit(s.event, v)
	s.count.Add(1)
}

func (s *ToSocketIO) AddHandlers() {
	s.AddReadHandler("count", func() string { return strconv.FormatUint(s.count.Load(), 10) })
	s.AddReadHandler("errors", func() string { return strconv.FormatUint(s.errors.Load(), 10) })
	s.AddReadHandler("connected", func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return strconv.FormatBool(s.conn != nil && s.conn.Connected())
	})
	s.AddWriteHandler("reset_counts", func(string, *errh.Handler) error {
		s.count.Store(0)
		s.errors.Store(0)
		return nil
	})
}
