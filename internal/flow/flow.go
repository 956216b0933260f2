// Package flow implements flow codes, the per-element description of which
// output ports a packet arriving on a given input port may reach.
//
// A flow code has an input half and an output half separated by one '/'.
// Each half is a sequence of port codes, one per port; the last code repeats
// for any remaining ports. A port code is a single letter, '#' (a class
// private to that port index), or a bracketed set such as "[ab]" or "[^a]".
// An input reaches an output iff their class sets intersect.
package flow

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Complete is the flow code of an element whose every input reaches every
// output.
const Complete = "x/x"

// numClasses is the size of a class vector: 128 letter classes followed
// by 128 port-private classes.
const numClasses = 256

const portClassBase = 128

// ParseError lists every problem found in a flow code. A Code returned
// alongside a ParseError is still usable; malformed ports match nothing.
type ParseError struct {
	Code     string
	Problems []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("flow code %q: %s", e.Code, strings.Join(e.Problems, "; "))
}

type portCode struct {
	members string
	negated bool
}

// Code is a parsed flow code.
type Code struct {
	text     string
	complete bool
	bad      bool
	in, out  []portCode
}

// Parse parses a flow code. The empty string is treated as Complete.
func Parse(s string) (*Code, error) {
	c := &Code{text: s}
	if s == "" || s == Complete {
		c.complete = true
		return c, nil
	}

	var problems []string
	halves := strings.Split(s, "/")
	if len(halves) != 2 || halves[0] == "" || halves[1] == "" {
		c.bad = true
		return c, &ParseError{Code: s, Problems: []string{"missing or bad `/'"}}
	}

	c.in, problems = parseHalf(halves[0], problems)
	c.out, problems = parseHalf(halves[1], problems)
	if len(problems) > 0 {
		return c, &ParseError{Code: s, Problems: problems}
	}
	return c, nil
}

func parseHalf(s string, problems []string) ([]portCode, []string) {
	var codes []portCode
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '[':
			pc := portCode{}
			j := i + 1
			if j < len(s) && s[j] == '^' {
				pc.negated = true
				j++
			}
			start := j
			for j < len(s) && s[j] != ']' {
				if !isClassChar(s[j]) {
					problems = append(problems, fmt.Sprintf("invalid character '%c'", s[j]))
				}
				j++
			}
			pc.members = s[start:j]
			if j == len(s) {
				problems = append(problems, "missing `]'")
				i = j
			} else {
				i = j + 1
			}
			codes = append(codes, pc)
		case isClassChar(ch):
			codes = append(codes, portCode{members: s[i : i+1]})
			i++
		default:
			problems = append(problems, fmt.Sprintf("invalid character '%c'", ch))
			i++
		}
	}
	return codes, problems
}

func isClassChar(ch byte) bool {
	return ch == '#' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// classes returns the class vector of the code for port.
func classes(codes []portCode, port int) *bitset.BitSet {
	v := bitset.New(numClasses)
	if len(codes) == 0 {
		return v
	}
	pc := codes[len(codes)-1]
	if port < len(codes) {
		pc = codes[port]
	}
	for i := 0; i < len(pc.members); i++ {
		switch ch := pc.members[i]; {
		case ch == '#':
			v.Set(uint(portClassBase + port))
		case isClassChar(ch):
			v.Set(uint(ch))
		}
	}
	if pc.negated {
		v = v.Complement()
	}
	return v
}

// String returns the source text.
func (c *Code) String() string { return c.text }

// IsComplete reports whether every input reaches every output.
func (c *Code) IsComplete() bool { return c.complete }

// Forward returns the set of outputs, out of nOutputs, that a packet
// arriving on input may reach.
func (c *Code) Forward(input, nInputs, nOutputs int) *bitset.BitSet {
	return c.travel(c.in, c.out, input, nInputs, nOutputs)
}

// Backward returns the set of inputs, out of nInputs, whose packets may
// reach output.
func (c *Code) Backward(output, nInputs, nOutputs int) *bitset.BitSet {
	return c.travel(c.out, c.in, output, nOutputs, nInputs)
}

func (c *Code) travel(from, to []portCode, port, nFrom, nTo int) *bitset.BitSet {
	result := bitset.New(uint(nTo))
	if port < 0 || port >= nFrom || c.bad {
		return result
	}
	if c.complete {
		return result.FlipRange(0, uint(nTo))
	}
	src := classes(from, port)
	for i := 0; i < nTo; i++ {
		if src.IntersectionCardinality(classes(to, i)) > 0 {
			result.Set(uint(i))
		}
	}
	return result
}

// Forward parses code and runs Code.Forward.
func Forward(code string, input, nInputs, nOutputs int) (*bitset.BitSet, error) {
	c, err := Parse(code)
	return c.Forward(input, nInputs, nOutputs), err
}

// Backward parses code and runs Code.Backward.
func Backward(code string, output, nInputs, nOutputs int) (*bitset.BitSet, error) {
	c, err := Parse(code)
	return c.Backward(output, nInputs, nOutputs), err
}
