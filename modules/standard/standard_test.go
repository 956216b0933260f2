package standard

import (
	"strings"
	"testing"
	"time"

	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/5g-empower/empower-agent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, src string, cfg router.Config) *router.Router {
	t.Helper()
	return testutil.NewRouter(t, src, cfg, &Module{}, testutil.RecordModule{})
}

func record(t *testing.T, r *router.Router, name string) *testutil.Record {
	t.Helper()
	e, ok := r.ElementByName(name)
	require.True(t, ok)
	rec, ok := e.(*testutil.Record)
	require.True(t, ok)
	return rec
}

func TestQueue_OverflowDrops(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 5, STOP true"
}
element "q" {
  class  = "Queue"
  config = "2"
}
element "idle" {
  class = "Idle"
}
connect {
  from = "src"
  to   = "q"
}
connect {
  from = "q"
  to   = "idle"
}
`, router.Config{})

	testutil.RunRouter(t, r, 5*time.Second)
	assert.Equal(t, "5", testutil.Read(t, r, "src.count"))
	assert.Equal(t, "2", testutil.Read(t, r, "q.length"))
	assert.Equal(t, "3", testutil.Read(t, r, "q.drops"))
	assert.Equal(t, "2", testutil.Read(t, r, "q.highwater_length"))
	assert.Equal(t, "2", testutil.Read(t, r, "q.capacity"))

	testutil.Write(t, r, "q.reset_counts", "")
	assert.Equal(t, "0", testutil.Read(t, r, "q.drops"))
	testutil.Write(t, r, "q.reset", "")
	assert.Equal(t, "0", testutil.Read(t, r, "q.length"))
}

const pipeline = `
element "src" {
  class  = "InfiniteSource"
  config = ["DATA abcd", "LIMIT 10"]
}
element "q" {
  class = "Queue"
}
element "uq" {
  class  = "Unqueue"
  config = "BURST 4"
}
element "c" {
  class = "Counter"
}
element "rec" {
  class = "Record"
}
connect {
  from = "src"
  to   = "q"
}
connect {
  from = "q"
  to   = "uq"
}
connect {
  from = "uq"
  to   = "c"
}
connect {
  from = "c"
  to   = "rec"
}
`

func TestUnqueue_DrainsQueue(t *testing.T) {
	t.Parallel()

	r := newRouter(t, pipeline, router.Config{Threads: 2})
	rec := record(t, r, "rec")
	stop := testutil.StartRouter(t, r)
	require.Eventually(t, func() bool { return rec.Len() == 10 }, 5*time.Second, time.Millisecond)
	stop()

	assert.Equal(t, "10", testutil.Read(t, r, "c.count"))
	assert.Equal(t, "40", testutil.Read(t, r, "c.byte_count"))
	assert.Equal(t, "40 B", testutil.Read(t, r, "c.byte_count_pretty"))
	assert.Equal(t, "10", testutil.Read(t, r, "uq.count"))
	for _, p := range rec.Payloads() {
		assert.Equal(t, "abcd", p)
	}
	// The queue resets depth: pull, push into c, push into rec.
	for _, d := range rec.Depths() {
		assert.Equal(t, 3, d)
	}

	testutil.Write(t, r, "c.reset", "")
	assert.Equal(t, "0", testutil.Read(t, r, "c.count"))
}

func TestCounter_CountCall(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 100"
}
element "c" {
  class  = "Counter"
  config = "COUNT_CALL 3 src.active false"
}
element "sink" {
  class = "Discard"
}
connect {
  from = "src"
  to   = "c"
}
connect {
  from = "c"
  to   = "sink"
}
`, router.Config{})

	assert.Equal(t, "3 src.active false", testutil.Read(t, r, "c.count_call"))
	stop := testutil.StartRouter(t, r)
	require.Eventually(t, func() bool { return testutil.Read(t, r, "src.active") == "false" }, 5*time.Second, time.Millisecond)
	stop()
	assert.Equal(t, "3", testutil.Read(t, r, "c.count"))
	assert.Equal(t, "3", testutil.Read(t, r, "sink.count"))
}

func TestDiscard_PullsAndSleeps(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 5, ACTIVE false"
}
element "q" {
  class = "Queue"
}
element "sink" {
  class = "Discard"
}
connect {
  from = "src"
  to   = "q"
}
connect {
  from = "q"
  to   = "sink"
}
`, router.Config{})

	sink, ok := r.ElementByName("sink")
	require.True(t, ok)
	d := sink.(*Discard)
	assert.True(t, d.sleeps, "Discard should sleep on the queue's notifier")

	stop := testutil.StartRouter(t, r)
	defer stop()
	require.Eventually(t, func() bool { return !d.task.Scheduled() }, 5*time.Second, time.Millisecond)

	testutil.Write(t, r, "src.active", "true")
	require.Eventually(t, func() bool { return d.Count() == 5 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, "0", testutil.Read(t, r, "q.length"))
}

func TestInfiniteSource_Handlers(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "src" {
  class  = "InfiniteSource"
  config = "DATA hi, LIMIT 2, BURST 2, STOP true"
}
element "rec" {
  class = "Record"
}
connect {
  from = "src"
  to   = "rec"
}
`, router.Config{})

	testutil.RunRouter(t, r, 5*time.Second)
	rec := record(t, r, "rec")
	assert.Equal(t, []string{"hi", "hi"}, rec.Payloads())

	assert.Equal(t, "2", testutil.Read(t, r, "src.limit"))
	assert.Equal(t, "2", testutil.Read(t, r, "src.burstsize"))
	assert.Equal(t, "hi", testutil.Read(t, r, "src.data"))
	assert.Equal(t, "true", testutil.Read(t, r, "src.active"))

	testutil.Write(t, r, "src.datasize", "5")
	assert.Equal(t, "5", testutil.Read(t, r, "src.datasize"))
	assert.Equal(t, "hihih", string(r.Element(0).(*InfiniteSource).data))

	err := r.CallWrite("src.burstsize", "0", nil, errh.Silent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'burstsize' takes an integer of at least 1")

	conf := testutil.Read(t, r, "src.config")
	assert.Contains(t, conf, "LIMIT 2")
	assert.Contains(t, conf, "STOP true")

	testutil.Write(t, r, "src.config", "DATA bye, LIMIT 7")
	assert.Equal(t, "7", testutil.Read(t, r, "src.limit"))
	assert.Equal(t, "bye", testutil.Read(t, r, "src.data"))

	// A bad live reconfiguration keeps the previous settings.
	require.Error(t, r.CallWrite("src.config", "BURST 0", nil, errh.Silent()))
	assert.Equal(t, "7", testutil.Read(t, r, "src.limit"))
}

func TestSwitches(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		class string
		conf  string
		want  [2]int
	}{
		{name: "tee copies", class: "Tee", conf: "2", want: [2]int{4, 4}},
		{name: "static switch", class: "StaticSwitch", conf: "1", want: [2]int{0, 4}},
		{name: "static switch drops", class: "StaticSwitch", conf: "-1", want: [2]int{0, 0}},
		{name: "round robin", class: "RoundRobinSwitch", want: [2]int{2, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			src := `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 4, STOP true"
}
element "sw" {
  class  = "` + tc.class + `"
  config = "` + tc.conf + `"
}
element "a" {
  class = "Record"
}
element "b" {
  class = "Record"
}
connect {
  from = "src"
  to   = "sw"
}
connect {
  from = "sw[0]"
  to   = "a"
}
connect {
  from = "sw[1]"
  to   = "b"
}
`
			r := newRouter(t, src, router.Config{})
			testutil.RunRouter(t, r, 5*time.Second)
			assert.Equal(t, tc.want[0], record(t, r, "a").Len())
			assert.Equal(t, tc.want[1], record(t, r, "b").Len())
		})
	}
}

func TestSwitches_ConfigErrors(t *testing.T) {
	t.Parallel()

	src := `
element "src" {
  class  = "InfiniteSource"
}
element "sw" {
  class  = "StaticSwitch"
  config = "2"
}
element "a" {
  class = "Discard"
}
connect {
  from = "src"
  to   = "sw"
}
connect {
  from = "sw"
  to   = "a"
}
`
	_, _, err := testutil.TryRouter(t, src, router.Config{}, &Module{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sw :: StaticSwitch: K must be between -1 and 0")
}

func TestSuppressor(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 3, ACTIVE false, STOP true"
}
element "sup" {
  class = "Suppressor"
}
element "rec" {
  class = "Record"
}
connect {
  from = "src"
  to   = "sup"
}
connect {
  from = "sup"
  to   = "rec"
}
`, router.Config{})

	assert.Equal(t, "true", testutil.Read(t, r, "sup.active0"))
	testutil.Write(t, r, "sup.active0", "false")
	assert.Equal(t, "false", testutil.Read(t, r, "sup.active0"))
	testutil.Write(t, r, "src.active", "true")
	testutil.RunRouter(t, r, 5*time.Second)
	assert.Equal(t, 0, record(t, r, "rec").Len())

	testutil.Write(t, r, "sup.reset", "")
	assert.Equal(t, "true", testutil.Read(t, r, "sup.active0"))
}

func TestTimedSourceAndSink(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "src" {
  class  = "TimedSource"
  config = "INTERVAL 5ms, DATA tick, LIMIT 3"
}
element "q" {
  class = "Queue"
}
element "sink" {
  class  = "TimedSink"
  config = "1ms"
}
connect {
  from = "src"
  to   = "q"
}
connect {
  from = "q"
  to   = "sink"
}
`, router.Config{})

	stop := testutil.StartRouter(t, r)
	defer stop()
	require.Eventually(t, func() bool { return testutil.Read(t, r, "sink.count") == "3" }, 5*time.Second, time.Millisecond)
	assert.Equal(t, "3", testutil.Read(t, r, "src.count"))
	assert.Equal(t, "5ms", testutil.Read(t, r, "src.interval"))
}

func TestRatedUnqueue_FollowsClock(t *testing.T) {
	t.Parallel()

	clk := testutil.NewFakeClock()
	r := newRouter(t, `
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 10"
}
element "q" {
  class = "Queue"
}
element "ru" {
  class  = "RatedUnqueue"
  config = "2"
}
element "rec" {
  class = "Record"
}
connect {
  from = "src"
  to   = "q"
}
connect {
  from = "q"
  to   = "ru"
}
connect {
  from = "ru"
  to   = "rec"
}
`, router.Config{Clock: clk})

	rec := record(t, r, "rec")
	stop := testutil.StartRouter(t, r)
	defer stop()

	// One token is available immediately.
	require.Eventually(t, func() bool { return rec.Len() == 1 }, 5*time.Second, time.Millisecond)
	require.Never(t, func() bool { return rec.Len() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	// Two packets per second of fake time.
	require.Eventually(t, func() bool {
		clk.Increment(100 * time.Millisecond)
		return rec.Len() >= 3
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, "2", testutil.Read(t, r, "ru.rate"))

	testutil.Write(t, r, "ru.rate", "1000")
	assert.Equal(t, "1000", testutil.Read(t, r, "ru.config"))
	require.Error(t, r.CallWrite("ru.rate", "0", nil, errh.Silent()))
}

func TestPrint_Format(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		conf []string
		data string
		want string
	}{
		{name: "default hex", conf: []string{"in"}, data: "abcdefg", want: "in:    7 | 61626364 656667"},
		{name: "truncated", conf: []string{"x", "3"}, data: "abcdefg", want: "x:    7 | 616263"},
		{name: "ascii", conf: []string{"CONTENTS ascii"}, data: "a\x01b", want: "   3 | a.b"},
		{name: "none", conf: []string{"CONTENTS NONE"}, data: "abc", want: "   3 |"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := &Print{}
			require.NoError(t, p.Configure(tc.conf, errh.Silent()))
			assert.Equal(t, tc.want, p.Format(packetOf(tc.data)))
		})
	}

	p := &Print{}
	require.Error(t, p.Configure([]string{"CONTENTS BINARY"}, errh.Silent()))
}

func TestRegisteredClassesValidate(t *testing.T) {
	t.Parallel()

	reg := testutil.Registry(t, &Module{})
	assert.True(t, reg.Provides("standard"))
	assert.Contains(t, reg.Classes(), "SimpleQueue")
	for _, class := range reg.Classes() {
		f, _ := reg.Lookup(class)
		assert.False(t, strings.Contains(f().Class(), " "), class)
	}
}
