package element

import (
	"fmt"
	"strings"
)

// Discipline is how packets cross a port.
type Discipline int

const (
	DisciplineAgnostic Discipline = iota
	DisciplinePush
	DisciplinePull
)

func (d Discipline) String() string {
	switch d {
	case DisciplinePush:
		return "push"
	case DisciplinePull:
		return "pull"
	default:
		return "agnostic"
	}
}

// Processing codes. A code lists one letter per port, inputs then outputs
// separated by '/': 'h' push, 'l' pull, 'a' agnostic. The last letter of a
// half repeats for any remaining ports, and a code without '/' uses the
// same letters for outputs as for inputs.
const (
	Agnostic   = "a"
	PushCode   = "h"
	PullCode   = "l"
	PushToPull = "h/l"
	PullToPush = "l/h"
)

// ParseProcessing expands code into one discipline per port. Unknown
// letters are reported and skipped.
func ParseProcessing(code string, nInputs, nOutputs int) (in, out []Discipline, err error) {
	inHalf, outHalf := code, code
	if i := strings.IndexByte(code, '/'); i >= 0 {
		inHalf, outHalf = code[:i], code[i+1:]
	}

	var bad []string
	inCodes := processingLetters(inHalf, &bad)
	outCodes := processingLetters(outHalf, &bad)

	last := DisciplineAgnostic
	in = expand(inCodes, nInputs, &last)
	out = expand(outCodes, nOutputs, &last)

	if len(bad) > 0 {
		err = fmt.Errorf("bad processing code %q: invalid character %s", code, strings.Join(bad, ", "))
	}
	return in, out, err
}

func processingLetters(half string, bad *[]string) []Discipline {
	var codes []Discipline
	for _, ch := range half {
		switch ch {
		case 'h', 'H':
			codes = append(codes, DisciplinePush)
		case 'l', 'L':
			codes = append(codes, DisciplinePull)
		case 'a', 'A':
			codes = append(codes, DisciplineAgnostic)
		default:
			*bad = append(*bad, fmt.Sprintf("'%c'", ch))
		}
	}
	return codes
}

// expand assigns a discipline to n ports; an empty half inherits the last
// discipline seen.
func expand(codes []Discipline, n int, last *Discipline) []Discipline {
	out := make([]Discipline, n)
	for i := range out {
		if i < len(codes) {
			*last = codes[i]
		} else if len(codes) > 0 {
			*last = codes[len(codes)-1]
		}
		out[i] = *last
	}
	return out
}
