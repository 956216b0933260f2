package app

import (
	"log/slog"

	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/docker/go-events"
)

// logSink logs router lifecycle events.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) Write(ev events.Event) error {
	e, ok := ev.(router.Event)
	if !ok {
		return nil
	}
	args := []any{"event", string(e.Kind), "router", e.Router.String()}
	if e.Element != "" {
		args = append(args, "element", e.Element)
	}
	s.logger.Debug("Router lifecycle event.", args...)
	return nil
}

func (s *logSink) Close() error { return nil }

// newEventSink returns a sink for one router. The router closes it with
// its broadcaster, so sinks are never shared.
func newEventSink(logger *slog.Logger) events.Sink {
	return events.NewQueue(&logSink{logger: logger})
}
