// Package errh implements the error handler handed to element configure,
// initialize and handler-write calls. A Handler accumulates severity-tagged
// messages so that a router build can report every problem in one pass.
package errh

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
)

// Severity classifies a reported message.
type Severity int

const (
	SevMessage Severity = iota
	SevWarning
	SevError
	SevFatal
)

func (s Severity) String() string {
	switch s {
	case SevMessage:
		return "message"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	case SevFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Entry is a single reported message.
type Entry struct {
	Severity Severity
	Context  string
	Landmark string
	Range    *hcl.Range
	Text     string
}

func (e Entry) String() string {
	var sb strings.Builder
	if e.Landmark != "" {
		sb.WriteString(e.Landmark)
		sb.WriteString(": ")
	}
	if e.Context != "" {
		sb.WriteString(e.Context)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Text)
	return sb.String()
}

// ReportedError is returned by Error and Fatal. The message is already
// recorded in the handler, so callers only need to propagate it.
type ReportedError struct {
	Entry Entry
}

func (e *ReportedError) Error() string {
	return e.Entry.String()
}

// AggregateError carries every error-level entry of a handler.
type AggregateError struct {
	Summary string
	Entries []Entry
}

func (e *AggregateError) Error() string {
	lines := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		lines[i] = entry.String()
	}
	return fmt.Sprintf("%s:\n- %s", e.Summary, strings.Join(lines, "\n- "))
}

type sink struct {
	mu        sync.Mutex
	entries   []Entry
	nerrors   int
	nwarnings int
	logger    *slog.Logger
}

// Handler records messages. Handlers derived with WithContext share the
// same underlying entry list.
type Handler struct {
	sink     *sink
	context  string
	landmark string
	rng      *hcl.Range
}

// New returns an empty handler. Every warning and error is mirrored to
// logger when it is non-nil.
func New(logger *slog.Logger) *Handler {
	return &Handler{sink: &sink{logger: logger}}
}

// Silent returns a handler that only records.
func Silent() *Handler {
	return New(nil)
}

// WithContext returns a handler that prefixes every entry with context and
// landmark, typically an element declaration and its source position.
func (h *Handler) WithContext(context, landmark string) *Handler {
	return &Handler{sink: h.sink, context: context, landmark: landmark, rng: h.rng}
}

// WithRange is WithContext for callers holding an HCL source range.
func (h *Handler) WithRange(context string, rng *hcl.Range) *Handler {
	landmark := ""
	if rng != nil {
		landmark = rng.String()
	}
	return &Handler{sink: h.sink, context: context, landmark: landmark, rng: rng}
}

func (h *Handler) report(sev Severity, format string, args ...any) Entry {
	entry := Entry{
		Severity: sev,
		Context:  h.context,
		Landmark: h.landmark,
		Range:    h.rng,
		Text:     fmt.Sprintf(format, args...),
	}

	s := h.sink
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	switch sev {
	case SevWarning:
		s.nwarnings++
	case SevError, SevFatal:
		s.nerrors++
	}
	logger := s.logger
	s.mu.Unlock()

	if logger != nil {
		attrs := []any{"element", entry.Context}
		if entry.Landmark != "" {
			attrs = append(attrs, "landmark", entry.Landmark)
		}
		switch sev {
		case SevMessage:
			logger.Info(entry.Text, attrs...)
		case SevWarning:
			logger.Warn(entry.Text, attrs...)
		default:
			logger.Error(entry.Text, attrs...)
		}
	}
	return entry
}

// Message records an informational message.
func (h *Handler) Message(format string, args ...any) {
	h.report(SevMessage, format, args...)
}

// Warning records a warning.
func (h *Handler) Warning(format string, args ...any) {
	h.report(SevWarning, format, args...)
}

// Error records an error and returns it as a *ReportedError.
func (h *Handler) Error(format string, args ...any) error {
	return &ReportedError{Entry: h.report(SevError, format, args...)}
}

// Fatal records a fatal error. The router treats it like Error; the
// severity is kept for display.
func (h *Handler) Fatal(format string, args ...any) error {
	return &ReportedError{Entry: h.report(SevFatal, format, args...)}
}

// Report records err unless it was already reported through this handler
// family, and returns it.
func (h *Handler) Report(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ReportedError); ok {
		return err
	}
	return h.Error("%v", err)
}

// NErrors returns the number of error and fatal entries recorded so far.
func (h *Handler) NErrors() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.nerrors
}

// NWarnings returns the number of warnings recorded so far.
func (h *Handler) NWarnings() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.nwarnings
}

// Entries returns a copy of every recorded entry.
func (h *Handler) Entries() []Entry {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return append([]Entry(nil), h.sink.entries...)
}

// Err returns nil when no errors were recorded, otherwise an
// *AggregateError holding all of them under summary.
func (h *Handler) Err(summary string) error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if h.sink.nerrors == 0 {
		return nil
	}
	agg := &AggregateError{Summary: summary}
	for _, e := range h.sink.entries {
		if e.Severity >= SevError {
			agg.Entries = append(agg.Entries, e)
		}
	}
	return agg
}

// Diagnostics exports warnings and errors as HCL diagnostics.
func (h *Handler) Diagnostics() hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, e := range h.Entries() {
		if e.Severity == SevMessage {
			continue
		}
		sev := hcl.DiagError
		if e.Severity == SevWarning {
			sev = hcl.DiagWarning
		}
		summary := e.Context
		if summary == "" {
			summary = e.Severity.String()
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: sev,
			Summary:  summary,
			Detail:   e.Text,
			Subject:  e.Range,
		})
	}
	return diags
}
