package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/docker/go-events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decl struct {
	name string
	e    element.Element
	conf []string
}

type conn struct {
	from     string
	fromPort int
	to       string
	toPort   int
}

func build(t *testing.T, cfg Config, decls []decl, conns ...conn) *Router {
	t.Helper()
	r := New(cfg)
	for _, d := range decls {
		_, err := r.AddElement(d.e, d.name, d.conf, "test:"+d.name)
		require.NoError(t, err)
	}
	for _, c := range conns {
		require.NoError(t, r.Connect(c.from, c.fromPort, c.to, c.toPort))
	}
	return r
}

func TestInitialize_ResolvesDisciplines(t *testing.T) {
	t.Parallel()

	src := newStub(nil, element.PushCode, element.Ports0to1)
	c1 := newStub(nil, element.Agnostic, element.Ports1to1)
	q := &fifo{}
	c2 := newStub(nil, element.Agnostic, element.Ports1to1)
	sink := newStub(nil, element.PullCode, element.Ports1to0)
	r := build(t, Config{}, []decl{
		{"src", src, nil}, {"c1", c1, nil}, {"q", q, []string{"2"}}, {"c2", c2, nil}, {"sink", sink, nil},
	},
		conn{"src", 0, "c1", 0}, conn{"c1", 0, "q", 0}, conn{"q", 0, "c2", 0}, conn{"c2", 0, "sink", 0},
	)
	require.NoError(t, r.Initialize(context.Background(), errh.Silent()))
	assert.Equal(t, StateLive, r.State())

	assert.Equal(t, element.DisciplinePush, c1.Input(0).Discipline())
	assert.Equal(t, element.DisciplinePush, c1.Output(0).Discipline())
	assert.Equal(t, element.DisciplinePull, c2.Input(0).Discipline())
	assert.Equal(t, element.DisciplinePull, c2.Output(0).Discipline())

	for _, c := range r.Connections() {
		from := r.Element(c.From.Element).BaseElement()
		to := r.Element(c.To.Element).BaseElement()
		assert.Equal(t, from.Output(c.From.Port).Discipline(), to.Input(c.To.Port).Discipline())
	}

	// Port counts reported by elements match the connections.
	assert.Equal(t, []int{0, 1}, []int{src.NInputs(), src.NOutputs()})
	assert.Equal(t, []int{1, 0}, []int{sink.NInputs(), sink.NOutputs()})
	assert.True(t, q.PortsFrozen())

	src.Output(0).Push(packet.Make([]byte("a")))
	p := sink.Input(0).Pull()
	require.NotNil(t, p)
	assert.Equal(t, "a", string(p.Data()))
}

func TestInitialize_UndecidedPortsDefaultToPush(t *testing.T) {
	t.Parallel()

	a := newStub(nil, element.Agnostic, element.Ports0to1)
	b := newStub(nil, element.Agnostic, element.Ports1to0)
	r := build(t, Config{}, []decl{{"a", a, nil}, {"b", b, nil}}, conn{"a", 0, "b", 0})
	require.NoError(t, r.Initialize(context.Background(), errh.Silent()))
	assert.True(t, a.OutputIsPush(0))
	assert.Equal(t, element.DisciplinePush, b.Input(0).Discipline())
}

func TestInitialize_TopologyErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		decls    func() []decl
		conns    []conn
		expected []string
	}{
		{
			name: "push output into pull input",
			decls: func() []decl {
				return []decl{
					{"src", newStub(nil, element.PushCode, element.Ports0to1), nil},
					{"sink", newStub(nil, element.PullCode, element.Ports1to0), nil},
				}
			},
			conns:    []conn{{"src", 0, "sink", 0}},
			expected: []string{"src :: Stub: push output 0 connected to sink :: Stub pull input 0: port cannot be used this way"},
		},
		{
			name: "agnostic element between push and pull",
			decls: func() []decl {
				return []decl{
					{"src", newStub(nil, element.PushCode, element.Ports0to1), nil},
					{"mid", newStub(nil, element.Agnostic, element.Ports1to1), nil},
					{"sink", newStub(nil, element.PullCode, element.Ports1to0), nil},
				}
			},
			conns:    []conn{{"src", 0, "mid", 0}, {"mid", 0, "sink", 0}},
			expected: []string{"mid :: Stub: agnostic input 0 (push) and output 0 (pull) must share a discipline"},
		},
		{
			name: "unconnected ports",
			decls: func() []decl {
				return []decl{{"lonely", newStub(nil, element.Agnostic, element.Ports1to1), nil}}
			},
			expected: []string{"input 0 not connected", "output 0 not connected"},
		},
		{
			name: "push output reused",
			decls: func() []decl {
				return []decl{
					{"src", newStub(nil, element.PushCode, element.Ports0to1), nil},
					{"a", newStub(nil, element.PushCode, element.Ports1to0), nil},
					{"b", newStub(nil, element.PushCode, element.Ports1to0), nil},
				}
			},
			conns:    []conn{{"src", 0, "a", 0}, {"src", 0, "b", 0}},
			expected: []string{"illegal reuse of push output 0"},
		},
		{
			name: "too many outputs",
			decls: func() []decl {
				return []decl{
					{"src", newStub(nil, element.PushCode, element.Ports0to1), nil},
					{"a", newStub(nil, element.PushCode, element.Ports1to0), nil},
				}
			},
			conns:    []conn{{"src", 1, "a", 0}},
			expected: []string{"2 outputs, expected 1"},
		},
		{
			name: "bad flow code",
			decls: func() []decl {
				p := newStub(nil, element.Agnostic, element.PortsAny)
				p.flowCode = "[ab"
				return []decl{{"p", p, nil}}
			},
			expected: []string{"p :: Stub:"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := build(t, Config{}, tc.decls(), tc.conns...)
			err := r.Initialize(context.Background(), errh.Silent())
			require.Error(t, err)
			for _, want := range tc.expected {
				assert.Contains(t, err.Error(), want)
			}
			assert.Equal(t, StateDead, r.State())
			assert.ErrorIs(t, r.Initialize(context.Background(), nil), ErrAlreadyInitialized)
		})
	}
}

func TestInitialize_FailureCleansUpInReverse(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	p := make([]*stub, 4)
	var decls []decl
	for i := range p {
		p[i] = newStub(rec, "", "")
		decls = append(decls, decl{name: []string{"p1", "p2", "p3", "p4"}[i], e: p[i]})
	}
	p[2].failInitialize = true

	r := build(t, Config{}, decls)
	err := r.Initialize(context.Background(), errh.Silent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router initialization failed:\n- test:p3: p3 :: Stub: cannot initialize")

	assert.Equal(t, []string{
		"configure p1", "configure p2", "configure p3", "configure p4",
		"initialize p1", "initialize p2", "initialize p3",
		"cleanup p4 configured",
		"cleanup p3 initialize_failed",
		"cleanup p2 initialized",
		"cleanup p1 initialized",
	}, rec.entries())
}

func TestInitialize_ConfigureErrorsAggregated(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	a, b, c := newStub(rec, "", ""), newStub(rec, "", ""), newStub(rec, "", "")
	a.failConfigure = true
	c.failConfigure = true
	r := build(t, Config{}, []decl{{"a", a, nil}, {"b", b, nil}, {"c", c, nil}})

	eh := errh.Silent()
	err := r.Initialize(context.Background(), eh)
	require.Error(t, err)
	assert.Equal(t, 2, eh.NErrors())
	assert.Contains(t, err.Error(), "a :: Stub: bad configuration")
	assert.Contains(t, err.Error(), "c :: Stub: bad configuration")
	assert.Equal(t, []string{
		"configure a", "configure b", "configure c",
		"cleanup c configure_failed", "cleanup b configured", "cleanup a configure_failed",
	}, rec.entries())
}

func TestInitialize_ConfigurePhaseOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	late, first, normal := newStub(rec, "", ""), newStub(rec, "", ""), newStub(rec, "", "")
	late.phase = element.PhaseLast
	first.phase = element.PhaseFirst
	r := build(t, Config{}, []decl{{"late", late, nil}, {"first", first, nil}, {"normal", normal, nil}})
	require.NoError(t, r.Initialize(context.Background(), nil))
	assert.Equal(t, []string{
		"configure first", "configure normal", "configure late",
		"initialize first", "initialize normal", "initialize late",
	}, rec.entries())

	require.NoError(t, r.Cleanup())
	assert.Equal(t, []string{
		"cleanup late router_initialized", "cleanup normal router_initialized", "cleanup first router_initialized",
	}, rec.entries()[6:])
}

func TestAddElement(t *testing.T) {
	t.Parallel()

	r := New(Config{})
	_, err := r.AddElement(newStub(nil, "", ""), "x", nil, "")
	require.NoError(t, err)
	_, err = r.AddElement(newStub(nil, "", ""), "x", nil, "")
	assert.EqualError(t, err, `element "x" redeclared`)
	_, err = r.AddElement(newStub(nil, "", ""), "", nil, "")
	assert.Error(t, err)
	assert.ErrorIs(t, r.Connect("x", 0, "missing", 0), ErrNoSuchElement)

	require.NoError(t, r.Initialize(context.Background(), nil))
	_, err = r.AddElement(newStub(nil, "", ""), "y", nil, "")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestFind_CompoundNames(t *testing.T) {
	t.Parallel()

	r := build(t, Config{}, []decl{
		{"q", newStub(nil, "", ""), nil},
		{"outer/q", newStub(nil, "", ""), nil},
		{"outer/inner/user", newStub(nil, "", ""), nil},
	})
	user, _ := r.ElementByName("outer/inner/user")
	e, err := r.Find("q", user)
	require.NoError(t, err)
	assert.Equal(t, "outer/q", e.BaseElement().Name())

	e, err = r.Find("q", nil)
	require.NoError(t, err)
	assert.Equal(t, "q", e.BaseElement().Name())

	_, err = r.Find("nope", user)
	assert.ErrorIs(t, err, ErrNoSuchElement)
}

func TestScenario_QueueOverflow(t *testing.T) {
	t.Parallel()

	src := newStub(nil, element.PushCode, element.Ports0to1)
	q := &fifo{}
	sink := newStub(nil, element.PullCode, element.Ports1to0)
	r := build(t, Config{}, []decl{{"src", src, nil}, {"q", q, []string{"2"}}, {"sink", sink, nil}},
		conn{"src", 0, "q", 0}, conn{"q", 0, "sink", 0})
	require.NoError(t, r.Initialize(context.Background(), errh.Silent()))

	for i := 0; i < 5; i++ {
		src.Output(0).Push(packet.Make([]byte{byte(i)}))
	}
	length, err := r.CallRead("q.length", nil)
	require.NoError(t, err)
	drops, err := r.CallRead("q.drops", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", length)
	assert.Equal(t, "3", drops)
	assert.Equal(t, uint64(5), src.Output(0).NPackets())
	icounts, err := r.CallRead("q.icounts", nil)
	require.NoError(t, err)
	assert.Equal(t, "5\n", icounts)
}

func TestDepthGuard(t *testing.T) {
	t.Parallel()

	loop := newStub(nil, element.PushCode, element.Ports1to1)
	r := build(t, Config{MaxDepth: 10}, []decl{{"loop", loop, nil}}, conn{"loop", 0, "loop", 0})
	require.NoError(t, r.Initialize(context.Background(), errh.Silent()))

	p := packet.Make([]byte("x"))
	loop.Output(0).Push(p)
	assert.True(t, p.Dead())
	assert.Equal(t, uint64(1), r.DepthDrops())
	out, err := r.CallRead("depth_drops", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

func TestDownstreamElements(t *testing.T) {
	t.Parallel()

	// src -> split -> { q1, a -> q2 }, with split routing input 0 only to
	// output 1 and q3 hanging off a second input of split.
	src := newStub(nil, element.PushCode, element.Ports0to1)
	other := newStub(nil, element.PushCode, element.Ports0to1)
	split := newStub(nil, element.PushCode, "2/3")
	split.flowCode = "xy/zxy"
	a := newStub(nil, element.PushCode, element.Ports1to1)
	q1, q2, q3 := &fifo{}, &fifo{}, &fifo{}
	s1 := newStub(nil, element.PullCode, element.Ports1to0)
	s2 := newStub(nil, element.PullCode, element.Ports1to0)
	s3 := newStub(nil, element.PullCode, element.Ports1to0)
	r := build(t, Config{}, []decl{
		{"src", src, nil}, {"other", other, nil}, {"split", split, nil}, {"a", a, nil},
		{"q1", q1, nil}, {"q2", q2, nil}, {"q3", q3, nil}, {"s1", s1, nil}, {"s2", s2, nil}, {"s3", s3, nil},
	},
		conn{"src", 0, "split", 0}, conn{"other", 0, "split", 1},
		conn{"split", 0, "q3", 0}, conn{"split", 1, "q1", 0}, conn{"split", 2, "a", 0},
		conn{"a", 0, "q2", 0},
		conn{"q1", 0, "s1", 0}, conn{"q2", 0, "s2", 0}, conn{"q3", 0, "s3", 0},
	)
	require.NoError(t, r.Initialize(context.Background(), errh.Silent()))

	found, err := r.DownstreamElements(src, 0, element.IsStorage)
	require.NoError(t, err)
	assert.Equal(t, []element.Element{q1}, found)

	found, err = r.DownstreamElements(other, 0, element.IsStorage)
	require.NoError(t, err)
	assert.Equal(t, []element.Element{q2}, found)

	found, err = r.UpstreamElements(s2, 0, func(e element.Element) bool { return e == src || e == other })
	require.NoError(t, err)
	assert.Equal(t, []element.Element{other}, found)

	_, err = r.DownstreamElements(src, 3, element.IsStorage)
	assert.Error(t, err)
}

func TestRunStopAndEvents(t *testing.T) {
	t.Parallel()

	tk := &ticker{limit: 3}
	r := build(t, Config{Threads: 1, Stride: true}, []decl{{"tk", tk, nil}})
	ch := events.NewChannel(16)
	require.NoError(t, r.Subscribe(ch))

	require.NoError(t, r.Initialize(context.Background(), nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 3, tk.runs)
	require.NoError(t, r.Cleanup())
	assert.False(t, tk.task.Scheduled())

	var kinds []EventKind
	for len(ch.C) > 0 {
		ev := (<-ch.C).(Event)
		assert.Equal(t, r.ID(), ev.Router)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventBuilt, EventConfigured, EventInitialized, EventRunning, EventStopped, EventCleanedUp}, kinds)

	assert.ErrorIs(t, r.Run(ctx), ErrNotRunning)
	assert.ErrorIs(t, r.Cleanup(), ErrNotRunning)
}

func TestTakeState(t *testing.T) {
	t.Parallel()

	newGraph := func() (*Router, *stub, *fifo) {
		src := newStub(nil, element.PushCode, element.Ports0to1)
		q := &fifo{}
		sink := newStub(nil, element.PullCode, element.Ports1to0)
		r := build(t, Config{}, []decl{{"src", src, nil}, {"q", q, nil}, {"sink", sink, nil}},
			conn{"src", 0, "q", 0}, conn{"q", 0, "sink", 0})
		require.NoError(t, r.Initialize(context.Background(), errh.Silent()))
		return r, src, q
	}

	oldR, oldSrc, oldQ := newGraph()
	for i := 0; i < 3; i++ {
		oldSrc.Output(0).Push(packet.Make([]byte{byte(i)}))
	}
	newR, _, newQ := newGraph()

	require.NoError(t, newR.TakeState(oldR, errh.Silent()))
	assert.Equal(t, 3, newQ.Size())
	assert.Zero(t, oldQ.Size())
}

func TestReconfigurationFailureKeepsRouter(t *testing.T) {
	t.Parallel()

	src := newStub(nil, element.PushCode, element.Ports0to1)
	q := &fifo{}
	sink := newStub(nil, element.PullCode, element.Ports1to0)
	oldR := build(t, Config{}, []decl{{"src", src, nil}, {"q", q, []string{"2"}}, {"sink", sink, nil}},
		conn{"src", 0, "q", 0}, conn{"q", 0, "sink", 0})
	require.NoError(t, oldR.Initialize(context.Background(), errh.Silent()))
	for i := 0; i < 4; i++ {
		src.Output(0).Push(packet.Make([]byte{byte(i)}))
	}
	handlersBefore := len(oldR.Handlers(q))

	bad := &fifo{}
	newR := build(t, Config{}, []decl{
		{"src", newStub(nil, element.PushCode, element.Ports0to1), nil},
		{"q", bad, []string{"many"}},
		{"sink", newStub(nil, element.PullCode, element.Ports1to0), nil},
	}, conn{"src", 0, "q", 0}, conn{"q", 0, "sink", 0})
	require.Error(t, newR.Initialize(context.Background(), errh.Silent()))
	assert.ErrorIs(t, newR.TakeState(oldR, nil), ErrNotRunning)

	assert.True(t, oldR.Live())
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, 2, q.drops)
	assert.Len(t, oldR.Handlers(q), handlersBefore)
	out, err := oldR.CallRead("q.config", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestRouterErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	all := []error{ErrNoSuchElement, ErrNoSuchHandler, ErrHandlerPermission, ErrNotRunning, ErrAlreadyInitialized}
	for i, a := range all {
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(a, b))
		}
	}
}
