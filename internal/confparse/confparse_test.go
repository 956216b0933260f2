package confparse

import (
	"net/netip"
	"testing"
	"time"

	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "blank", input: "  \n", expected: nil},
		{name: "single", input: "5", expected: []string{"5"}},
		{name: "keywords", input: "LIMIT 5, BURST 1", expected: []string{"LIMIT 5", "BURST 1"}},
		{name: "trailing comma", input: "a, b,", expected: []string{"a", "b"}},
		{name: "empty middle", input: "a, , b", expected: []string{"a", "", "b"}},
		{name: "quoted comma", input: `DATA "x,y", LIMIT 2`, expected: []string{`DATA "x,y"`, "LIMIT 2"}},
		{name: "nested brackets", input: "f(a, b), [c, d]", expected: []string{"f(a, b)", "[c, d]"}},
		{name: "comments", input: "a, // first\n b /* second, */", expected: []string{"a", "b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitArgs(tc.input))
		})
	}
}

func TestSplitSpaceAndUnquote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"q1", `"a b"`, "q2"}, SplitSpace(" q1 \"a b\"\tq2 "))
	assert.Equal(t, "a b", Unquote(`"a b"`))
	assert.Equal(t, "tab\there", Unquote(`"tab\there"`))
	assert.Equal(t, `lit\n`, Unquote(`'lit\n'`))
	assert.Equal(t, "ab cd", Unquote(`a"b c"d`))
	assert.Equal(t, "plain", Quote("plain"))
	assert.Equal(t, `"a, b"`, Quote("a, b"))
}

func TestKeyword(t *testing.T) {
	t.Parallel()

	kw, rest, ok := Keyword("LIMIT 5")
	require.True(t, ok)
	assert.Equal(t, "LIMIT", kw)
	assert.Equal(t, "5", rest)

	kw, rest, ok = Keyword("ACTIVE")
	require.True(t, ok)
	assert.Equal(t, "ACTIVE", kw)
	assert.Empty(t, rest)

	_, _, ok = Keyword("Limit 5")
	assert.False(t, ok)
	_, _, ok = Keyword("ABC-1")
	assert.False(t, ok)
	_, _, ok = Keyword("5 LIMIT")
	assert.False(t, ok)
}

func TestParseSeconds(t *testing.T) {
	t.Parallel()

	testCases := map[string]time.Duration{
		"1":      time.Second,
		"0.5":    500 * time.Millisecond,
		"100ms":  100 * time.Millisecond,
		"2msec":  2 * time.Millisecond,
		"10us":   10 * time.Microsecond,
		"1.5s":   1500 * time.Millisecond,
		"2min":   2 * time.Minute,
		"1h":     time.Hour,
		"3 sec":  3 * time.Second,
		"250 ns": 250 * time.Nanosecond,
	}
	for input, expected := range testCases {
		d, err := ParseSeconds(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, d, input)
	}

	for _, bad := range []string{"", "-1", "abc", "1fortnight"} {
		_, err := ParseSeconds(bad)
		assert.Error(t, err, bad)
	}
}

func TestTypedParsers(t *testing.T) {
	t.Parallel()

	b, err := ParseBool("yes")
	require.NoError(t, err)
	assert.True(t, b)
	_, err = ParseBool("maybe")
	assert.Error(t, err)

	n, err := ParseInt("0x10")
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	_, err = ParseUint("-3")
	assert.Error(t, err)

	fixed, err := ParseUnsignedReal2("0.5", 16)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x8000), fixed)
	tenth, err := ParseUnsignedReal2("0.1", 16)
	require.NoError(t, err)
	assert.Equal(t, "0.1", UnparseReal2(uint64(tenth), 16))
	assert.Equal(t, "0.5", UnparseReal2(0x8000, 16))
	assert.Equal(t, "3", UnparseReal2(3<<10, 10))

	size, err := ParseSize("64KiB")
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024), size)

	p, err := ParseIPPrefix("10.0.0.7/8")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), p)
	p, err = ParseIPPrefix("192.168.1.1 255.255.255.0")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("192.168.1.0/24"), p)
	p, err = ParseIPPrefix("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 32, p.Bits())

	hw, err := ParseEtherAddr("00:11:22:33:44:55")
	require.NoError(t, err)
	assert.Equal(t, "00:11:22:33:44:55", hw.String())
	_, err = ParseEtherAddr("00:11:22:33:44:55:66:77")
	assert.Error(t, err)

	_, err = ParseHandlerRef("counter.count")
	require.NoError(t, err)
	_, err = ParseHandlerRef("count")
	assert.Error(t, err)
}

func TestArgs(t *testing.T) {
	t.Parallel()

	type result struct {
		data   string
		limit  int
		burst  int
		active bool
		given  bool
	}
	read := func(conf []string, eh *errh.Handler) (result, error) {
		res := result{limit: -1, burst: 1, active: true}
		err := NewArgs(conf, eh).
			ReadP("DATA", String(&res.data)).
			ReadP("LIMIT", Int(&res.limit)).
			Read("BURST", Int(&res.burst)).Present(&res.given).
			Read("ACTIVE", Bool(&res.active)).
			Complete()
		return res, err
	}

	testCases := []struct {
		name      string
		conf      []string
		expected  result
		expectErr string
	}{
		{name: "defaults", conf: nil, expected: result{limit: -1, burst: 1, active: true}},
		{name: "positional", conf: []string{`"abc"`, "5"}, expected: result{data: "abc", limit: 5, burst: 1, active: true}},
		{name: "positional by keyword", conf: []string{"LIMIT 7", "BURST 2"}, expected: result{limit: 7, burst: 2, active: true, given: true}},
		{name: "mixed", conf: []string{"x", "ACTIVE false"}, expected: result{data: "x", limit: -1, burst: 1}},
		{name: "bad type", conf: []string{"x", "five"}, expectErr: "argument 2 (LIMIT): expected integer"},
		{name: "bad keyword value", conf: []string{"BURST many"}, expectErr: "argument 1 (BURST): expected integer"},
		{name: "too many", conf: []string{"a", "1", "extra"}, expectErr: "argument 3: too many arguments"},
		{name: "unknown keyword", conf: []string{"LIMIT 1", "COLOR red"}, expectErr: "argument 2: bad keyword COLOR"},
		{name: "bad keyword value after positional", conf: []string{"x", "3", "ACTIVE maybe"}, expectErr: "argument 3 (ACTIVE): expected bool"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eh := errh.Silent()
			res, err := read(tc.conf, eh)
			if tc.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectErr)
				assert.Equal(t, 1, eh.NErrors())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestArgs_MandatoryAndNoPartialAssignment(t *testing.T) {
	t.Parallel()

	capacity := 1000
	var period time.Duration
	eh := errh.Silent()
	err := NewArgs([]string{"INTERVAL 1s", "CAPACITY lots"}, eh).
		ReadMP("CAPACITY", Int(&capacity)).
		Read("INTERVAL", Seconds(&period)).
		Complete()
	require.Error(t, err)
	assert.Equal(t, 1000, capacity)
	assert.Zero(t, period, "nothing is assigned when any argument fails")

	err = NewArgs(nil, eh).ReadMP("CAPACITY", Int(&capacity)).Complete()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory CAPACITY argument")
}
