package element

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PortRange is an inclusive range of acceptable port counts.
type PortRange struct {
	Min, Max int
}

// Contains reports whether n is acceptable.
func (r PortRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

func (r PortRange) String() string {
	switch {
	case r.Min == r.Max:
		return strconv.Itoa(r.Min)
	case r.Max == math.MaxInt:
		return fmt.Sprintf("%d or more", r.Min)
	default:
		return fmt.Sprintf("%d to %d", r.Min, r.Max)
	}
}

// PortCount is a parsed port count such as "1/1-2".
type PortCount struct {
	In  PortRange
	Out PortRange
	// SameOut requires as many outputs as inputs.
	SameOut bool
}

// Common port counts.
const (
	PortsAny     = "-/-"
	Ports0to1    = "0/1"
	Ports1to0    = "1/0"
	Ports1to1    = "1/1"
	Ports1to1or2 = "1/1-2"
	Ports1toAny  = "1/-"
	PortsSame    = "-/="
)

// ParsePortCount parses "IN/OUT" where each half is "N", "N-M", "N-" or
// "-"; the output half may also be "=" (same as inputs).
func ParsePortCount(spec string) (PortCount, error) {
	inS, outS, ok := strings.Cut(spec, "/")
	if !ok {
		return PortCount{}, fmt.Errorf("bad port count %q: missing '/'", spec)
	}
	var pc PortCount
	var err error
	if pc.In, err = parseRange(inS); err != nil {
		return PortCount{}, fmt.Errorf("bad port count %q: %w", spec, err)
	}
	if outS == "=" {
		pc.SameOut = true
		pc.Out = pc.In
		return pc, nil
	}
	if pc.Out, err = parseRange(outS); err != nil {
		return PortCount{}, fmt.Errorf("bad port count %q: %w", spec, err)
	}
	return pc, nil
}

func parseRange(s string) (PortRange, error) {
	if s == "-" {
		return PortRange{0, math.MaxInt}, nil
	}
	lo, hi, isRange := strings.Cut(s, "-")
	minN, err := strconv.Atoi(lo)
	if err != nil || minN < 0 {
		return PortRange{}, fmt.Errorf("bad count %q", s)
	}
	if !isRange {
		return PortRange{minN, minN}, nil
	}
	if hi == "" {
		return PortRange{minN, math.MaxInt}, nil
	}
	maxN, err := strconv.Atoi(hi)
	if err != nil || maxN < minN {
		return PortRange{}, fmt.Errorf("bad count %q", s)
	}
	return PortRange{minN, maxN}, nil
}

// Resolve picks the final counts given the highest port index used by a
// connection plus one. Unused ports up to the minimum are still created.
func (pc PortCount) Resolve(usedIn, usedOut int) (nIn, nOut int, err error) {
	nIn = max(usedIn, pc.In.Min)
	nOut = max(usedOut, pc.Out.Min)
	if pc.SameOut {
		nIn = max(nIn, nOut)
		nOut = nIn
	}
	var problems []string
	if !pc.In.Contains(nIn) {
		problems = append(problems, fmt.Sprintf("%d inputs, expected %s", nIn, pc.In))
	}
	if !pc.SameOut && !pc.Out.Contains(nOut) {
		problems = append(problems, fmt.Sprintf("%d outputs, expected %s", nOut, pc.Out))
	}
	if len(problems) > 0 {
		return nIn, nOut, fmt.Errorf("bad port counts: %s", strings.Join(problems, "; "))
	}
	return nIn, nOut, nil
}
