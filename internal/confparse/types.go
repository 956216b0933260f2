package confparse

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "t", "y", "1":
		return true, nil
	case "false", "no", "f", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("bad boolean %q", s)
}

// ParseInt parses a decimal, 0x hex or 0 octal integer.
func ParseInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("bad integer %q", s)
	}
	return int(v), nil
}

// ParseUint is ParseInt for non-negative values.
func ParseUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 0, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("bad unsigned integer %q", s)
	}
	return uint(v), nil
}

// ParseDouble parses a floating point number.
func ParseDouble(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad real number %q", s)
	}
	return v, nil
}

// ParseUnsignedReal2 parses a non-negative real number into fixed point
// with fracBits fractional bits, rounding to nearest.
func ParseUnsignedReal2(s string, fracBits uint) (uint32, error) {
	v, err := ParseDouble(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad unsigned real %q", s)
	}
	scaled := math.Round(v * float64(uint64(1)<<fracBits))
	if scaled > math.MaxUint32 {
		return 0, fmt.Errorf("unsigned real %q out of range", s)
	}
	return uint32(scaled), nil
}

// UnparseReal2 formats a fixed-point value with fracBits fractional bits,
// using the fewest decimals that parse back to v.
func UnparseReal2(v uint64, fracBits uint) string {
	x := float64(v) / float64(uint64(1)<<fracBits)
	for prec := 0; prec < 12; prec++ {
		s := strconv.FormatFloat(x, 'f', prec, 64)
		if back, err := ParseUnsignedReal2(s, fracBits); err == nil && uint64(back) == v {
			return s
		}
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

var secondUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"msec", time.Millisecond},
	{"usec", time.Microsecond},
	{"nsec", time.Nanosecond},
	{"sec", time.Second},
	{"min", time.Minute},
	{"hr", time.Hour},
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"ns", time.Nanosecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
}

// ParseSeconds parses a time interval. A bare number counts seconds;
// suffixes s/sec, ms/msec, us/usec, ns/nsec, m/min, h/hr and d are
// understood.
func ParseSeconds(s string) (time.Duration, error) {
	num, unit := strings.TrimSpace(s), time.Second
	for _, u := range secondUnits {
		if strings.HasSuffix(num, u.suffix) {
			num, unit = strings.TrimSpace(strings.TrimSuffix(num, u.suffix)), u.unit
			break
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("bad time interval %q", s)
	}
	d := v * float64(unit)
	if d > math.MaxInt64 {
		return 0, fmt.Errorf("time interval %q out of range", s)
	}
	return time.Duration(d), nil
}

// ParseSize parses a byte size such as "1500", "64KiB" or "1MB". Binary
// and decimal prefixes both mean powers of 1024.
func ParseSize(s string) (int64, error) {
	v, err := units.RAMInBytes(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad size %q", s)
	}
	return v, nil
}

// ParseIPAddr parses an IPv4 or IPv6 address.
func ParseIPAddr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("bad IP address %q", s)
	}
	return a, nil
}

// ParseIPPrefix parses "ADDR/LEN", "ADDR MASK" or a bare address, which
// is a host prefix.
func ParseIPPrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if addr, mask, ok := strings.Cut(s, " "); ok {
		a, err := netip.ParseAddr(addr)
		m, merr := netip.ParseAddr(strings.TrimSpace(mask))
		if err != nil || merr != nil || a.BitLen() != m.BitLen() {
			return netip.Prefix{}, fmt.Errorf("bad IP prefix %q", s)
		}
		ones, bits := net.IPMask(m.AsSlice()).Size()
		if bits == 0 {
			return netip.Prefix{}, fmt.Errorf("bad netmask in %q", s)
		}
		return netip.PrefixFrom(a, ones).Masked(), nil
	}
	if !strings.Contains(s, "/") {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("bad IP prefix %q", s)
		}
		return netip.PrefixFrom(a, a.BitLen()), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("bad IP prefix %q", s)
	}
	return p.Masked(), nil
}

// ParseEtherAddr parses a 48-bit Ethernet address written with colons or
// hyphens.
func ParseEtherAddr(s string) (net.HardwareAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return nil, fmt.Errorf("bad Ethernet address %q", s)
	}
	return hw, nil
}

// ParseHandlerRef checks that s names an element handler, "element.handler".
func ParseHandlerRef(s string) (string, error) {
	e, h, ok := strings.Cut(s, ".")
	if !ok || e == "" || h == "" || strings.ContainsAny(s, " \t\n") {
		return "", fmt.Errorf("bad handler name %q", s)
	}
	return s, nil
}
