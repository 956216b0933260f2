package errh

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_AggregatesErrors(t *testing.T) {
	t.Parallel()

	h := Silent()
	q := h.WithContext("q :: Queue", "router.hcl:3")
	r := h.WithContext("red :: RED", "")

	q.Warning("capacity is large")
	err := q.Error("argument %d (%s): expected %s", 1, "CAPACITY", "unsigned integer")
	require.Error(t, err)
	var rep *ReportedError
	require.True(t, errors.As(err, &rep))
	assert.Equal(t, SevError, rep.Entry.Severity)

	_ = r.Error("no Queues downstream")

	assert.Equal(t, 2, h.NErrors())
	assert.Equal(t, 1, h.NWarnings())

	agg := h.Err("router initialization failed")
	require.Error(t, agg)
	assert.Equal(t,
		"router initialization failed:\n- router.hcl:3: q :: Queue: argument 1 (CAPACITY): expected unsigned integer\n- red :: RED: no Queues downstream",
		agg.Error())
}

func TestHandler_NoErrors(t *testing.T) {
	t.Parallel()

	h := Silent()
	h.Message("hello")
	h.Warning("careful")
	require.NoError(t, h.Err("nothing"))
}

func TestHandler_Report(t *testing.T) {
	t.Parallel()

	h := Silent()
	reported := h.Error("first")
	require.Same(t, reported, h.Report(reported), "already reported errors pass through")
	assert.Equal(t, 1, h.NErrors())

	plain := errors.New("plain")
	require.Error(t, h.Report(plain))
	assert.Equal(t, 2, h.NErrors())
	require.NoError(t, h.Report(nil))
}

func TestHandler_MirrorsToLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := New(slog.New(slog.NewTextHandler(&buf, nil))).WithContext("c :: Counter", "")
	h.Warning("tickets pinned at 1")

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "tickets pinned at 1")
	assert.Contains(t, buf.String(), `element="c :: Counter"`)
}

func TestHandler_Diagnostics(t *testing.T) {
	t.Parallel()

	rng := &hcl.Range{Filename: "r.hcl", Start: hcl.Pos{Line: 2, Column: 1}, End: hcl.Pos{Line: 2, Column: 9}}
	h := Silent()
	h.WithRange("q :: Queue", rng).Error("bad")
	h.Warning("meh")
	h.Message("ignored")

	diags := h.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, hcl.DiagError, diags[0].Severity)
	assert.Equal(t, "q :: Queue", diags[0].Summary)
	assert.Equal(t, rng, diags[0].Subject)
	assert.Equal(t, hcl.DiagWarning, diags[1].Severity)
	assert.True(t, diags.HasErrors())
}
