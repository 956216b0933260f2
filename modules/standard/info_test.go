package standard

import (
	"encoding/binary"
	"hash/crc32"
	"net/netip"
	"testing"
	"time"

	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/5g-empower/empower-agent/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinlock_BlocksUntilReleased(t *testing.T) {
	t.Parallel()

	var l Spinlock
	l.Acquire()
	done := make(chan struct{})
	go func() {
		l.Acquire()
		close(done)
	}()

	isDone := func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	assert.Never(t, isDone, 20*time.Millisecond, time.Millisecond)
	l.Release()
	require.Eventually(t, isDone, time.Second, time.Millisecond)
	assert.True(t, l.Held())

	l.Release()
	l.Release()
	assert.False(t, l.Held())
}

func TestSpinlock_AcquireReleasePipeline(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "locks" {
  class  = "SpinlockInfo"
  config = ["l", "m"]
}
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 3, STOP true"
}
element "acq" {
  class  = "SpinlockAcquire"
  config = "l"
}
element "c" {
  class = "Counter"
}
element "rel" {
  class  = "SpinlockRelease"
  config = "LOCK l"
}
element "d" {
  class = "Discard"
}
connect {
  from = "src"
  to   = "acq"
}
connect {
  from = "acq"
  to   = "c"
}
connect {
  from = "c"
  to   = "rel"
}
connect {
  from = "rel"
  to   = "d"
}
`, router.Config{})

	testutil.RunRouter(t, r, 5*time.Second)
	assert.Equal(t, "3", testutil.Read(t, r, "c.count"))

	e, ok := r.ElementByName("locks")
	require.True(t, ok)
	l, ok := e.(*SpinlockInfo).Lock("l")
	require.True(t, ok)
	assert.False(t, l.Held())
	_, ok = e.(*SpinlockInfo).Lock("m")
	assert.True(t, ok)
}

func TestSpinlock_ConfigErrors(t *testing.T) {
	t.Parallel()

	_, _, err := testutil.TryRouter(t, `
element "locks" {
  class  = "SpinlockInfo"
  config = "l"
}
element "src" {
  class  = "InfiniteSource"
  config = "LIMIT 1"
}
element "acq" {
  class  = "SpinlockAcquire"
  config = "nope"
}
element "d" {
  class = "Discard"
}
connect {
  from = "src"
  to   = "acq"
}
connect {
  from = "acq"
  to   = "d"
}
`, router.Config{}, &Module{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `acq :: SpinlockAcquire: no SpinlockInfo declares lock "nope"`)

	si := &SpinlockInfo{}
	require.Error(t, si.Configure([]string{"a", "a"}, errh.Silent()))
	require.Error(t, si.Configure([]string{"a b"}, errh.Silent()))
}

func withCRC(s string) *packet.Packet {
	data := []byte(s)
	return packet.New(binary.LittleEndian.AppendUint32(data, crc32.ChecksumIEEE(data)))
}

func TestCheckCRC32(t *testing.T) {
	t.Parallel()

	c := &CheckCRC32{}
	p := c.SimpleAction(withCRC("hello"))
	require.NotNil(t, p)
	assert.Equal(t, "hello", string(p.Data()))

	bad := withCRC("hello")
	bad.Data()[0] = 'j'
	assert.Nil(t, c.SimpleAction(bad))
	assert.True(t, bad.Dead())

	assert.Nil(t, c.SimpleAction(packet.Make([]byte("ab"))), "shorter than the trailer")
	assert.Equal(t, uint64(2), c.drops.Load())

	assert.NotNil(t, c.SimpleAction(withCRC("")), "an empty payload with a valid trailer passes")
}

func TestAddressInfo_Lookup(t *testing.T) {
	t.Parallel()

	r := newRouter(t, `
element "info" {
  class  = "AddressInfo"
  config = ["eth0 10.0.0.1 10.0.0.0/24 00:11:22:33:44:55", "gw 10.0.0.254/24"]
}
element "sub/info" {
  class  = "AddressInfo"
  config = "eth0 192.168.0.1"
}
`, router.Config{})

	a, ok := LookupAddress(r, "eth0", nil)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), a.IP)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/24"), a.Prefix)
	assert.Equal(t, "00:11:22:33:44:55", a.Ether.String())

	sub, ok := r.ElementByName("sub/info")
	require.True(t, ok)
	a, ok = LookupAddress(r, "eth0", sub)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.168.0.1"), a.IP)

	a, ok = LookupAddress(r, "gw", sub)
	require.True(t, ok, "names fall back to the enclosing compound")
	assert.Equal(t, netip.MustParseAddr("10.0.0.254"), a.IP)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/24"), a.Prefix)

	_, ok = LookupAddress(r, "nope", sub)
	assert.False(t, ok)

	assert.Contains(t, testutil.Read(t, r, "info.table"), "gw 10.0.0.254 10.0.0.0/24\n")
}

func TestAddressInfo_ConflictsAndErrors(t *testing.T) {
	t.Parallel()

	ai := &AddressInfo{}
	eh := errh.Silent()
	require.NoError(t, ai.Configure([]string{"h 1.2.3.4 1.2.3.5", "", "h 00:11:22:33:44:55"}, eh))
	assert.Equal(t, 1, eh.NWarnings())
	assert.Equal(t, netip.MustParseAddr("1.2.3.5"), ai.names["h"].IP)
	assert.NotNil(t, ai.names["h"].Ether)

	err := ai.Configure([]string{"x 10.0.0.300"}, errh.Silent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a recognizable address")

	require.Error(t, ai.Configure([]string{"lonely"}, errh.Silent()))
}
