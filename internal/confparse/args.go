package confparse

import (
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/5g-empower/empower-agent/internal/errh"
)

// Parser parses one argument value. Parse must not touch its destination;
// it returns a commit function that does.
type Parser interface {
	Type() string
	Parse(s string) (commit func(), err error)
}

type value[T any] struct {
	typ   string
	dst   *T
	parse func(string) (T, error)
}

func (v value[T]) Type() string { return v.typ }

func (v value[T]) Parse(s string) (func(), error) {
	x, err := v.parse(s)
	if err != nil {
		return nil, err
	}
	return func() { *v.dst = x }, nil
}

// Value builds a Parser from a parse function. typ describes the expected
// value in error messages.
func Value[T any](typ string, dst *T, parse func(string) (T, error)) Parser {
	return value[T]{typ: typ, dst: dst, parse: parse}
}

func Bool(dst *bool) Parser { return Value("bool", dst, ParseBool) }

func Int(dst *int) Parser { return Value("integer", dst, ParseInt) }

func Uint(dst *uint) Parser { return Value("unsigned integer", dst, ParseUint) }

func Double(dst *float64) Parser { return Value("real number", dst, ParseDouble) }

// UnsignedReal2 reads a fixed-point real with fracBits fractional bits.
func UnsignedReal2(dst *uint32, fracBits uint) Parser {
	return Value("unsigned real", dst, func(s string) (uint32, error) { return ParseUnsignedReal2(s, fracBits) })
}

func Seconds(dst *time.Duration) Parser { return Value("time interval", dst, ParseSeconds) }

func Size(dst *int64) Parser { return Value("size", dst, ParseSize) }

func IPAddr(dst *netip.Addr) Parser { return Value("IP address", dst, ParseIPAddr) }

func IPPrefix(dst *netip.Prefix) Parser { return Value("IP address prefix", dst, ParseIPPrefix) }

func EtherAddr(dst *net.HardwareAddr) Parser { return Value("Ethernet address", dst, ParseEtherAddr) }

func HandlerRef(dst *string) Parser { return Value("handler name", dst, ParseHandlerRef) }

// String reads an argument with one level of quotes removed.
func String(dst *string) Parser {
	return Value("string", dst, func(s string) (string, error) { return Unquote(s), nil })
}

// Arg reads an argument verbatim.
func Arg(dst *string) Parser {
	return Value("argument", dst, func(s string) (string, error) { return s, nil })
}

// Words reads a whitespace-separated list with quotes removed from each
// word.
func Words(dst *[]string) Parser {
	return Value("word list", dst, func(s string) ([]string, error) {
		words := SplitSpace(s)
		for i, w := range words {
			words[i] = Unquote(w)
		}
		return words, nil
	})
}

type reader struct {
	name       string
	parser     Parser
	mandatory  bool
	positional bool
	seen       bool
	explicit   *bool
}

// Args reads an element's arguments. Declare every argument with the
// Read methods, then call Complete:
//
//	var limit int
//	var stop bool
//	err := confparse.NewArgs(conf, eh).
//		ReadMP("LIMIT", confparse.Int(&limit)).
//		Read("STOP", confparse.Bool(&stop)).
//		Complete()
//
// Positional arguments fill the positional readers in declaration order.
// A positional reader may also be given by keyword.
type Args struct {
	conf    []string
	eh      *errh.Handler
	readers []*reader
}

// NewArgs returns a reader over conf reporting problems to eh, which may
// be nil.
func NewArgs(conf []string, eh *errh.Handler) *Args {
	if eh == nil {
		eh = errh.Silent()
	}
	return &Args{conf: conf, eh: eh}
}

func (a *Args) add(name string, p Parser, mandatory, positional bool) *Args {
	a.readers = append(a.readers, &reader{name: name, parser: p, mandatory: mandatory, positional: positional})
	return a
}

// Read declares an optional keyword argument.
func (a *Args) Read(keyword string, p Parser) *Args { return a.add(keyword, p, false, false) }

// ReadM declares a mandatory keyword argument.
func (a *Args) ReadM(keyword string, p Parser) *Args { return a.add(keyword, p, true, false) }

// ReadP declares an optional positional argument.
func (a *Args) ReadP(name string, p Parser) *Args { return a.add(name, p, false, true) }

// ReadMP declares a mandatory positional argument.
func (a *Args) ReadMP(name string, p Parser) *Args { return a.add(name, p, true, true) }

// Present makes the most recently declared argument record in dst whether
// it was given.
func (a *Args) Present(dst *bool) *Args {
	if n := len(a.readers); n > 0 {
		a.readers[n-1].explicit = dst
	}
	return a
}

// Complete parses every argument. Destinations are assigned only when all
// arguments parsed; otherwise every problem is reported and the first is
// returned.
func (a *Args) Complete() error {
	byKeyword := make(map[string]*reader, len(a.readers))
	var positional []*reader
	for _, r := range a.readers {
		byKeyword[r.name] = r
		if r.positional {
			positional = append(positional, r)
		}
	}

	var commits []func()
	var first error
	fail := func(err error) {
		if first == nil {
			first = err
		}
	}

	next := 0
	inKeywords := false
	for i, arg := range a.conf {
		if kw, rest, ok := Keyword(arg); ok {
			if r, known := byKeyword[kw]; known {
				inKeywords = true
				if r.seen {
					a.eh.Warning("argument %d (%s): keyword given more than once, last value used", i+1, kw)
				}
				r.seen = true
				commit, err := r.parser.Parse(rest)
				if err != nil {
					fail(a.eh.Error("argument %d (%s): expected %s", i+1, kw, r.parser.Type()))
					continue
				}
				commits = append(commits, commit)
				continue
			}
		}
		if inKeywords || next >= len(positional) {
			if kw, _, ok := Keyword(arg); ok {
				fail(a.eh.Error("argument %d: bad keyword %s", i+1, kw))
			} else {
				fail(a.eh.Error("argument %d: too many arguments", i+1))
			}
			continue
		}
		for next < len(positional) && positional[next].seen {
			next++
		}
		if next >= len(positional) {
			fail(a.eh.Error("argument %d: too many arguments", i+1))
			continue
		}
		r := positional[next]
		next++
		if arg == "" && !r.mandatory {
			continue
		}
		r.seen = true
		commit, err := r.parser.Parse(arg)
		if err != nil {
			fail(a.eh.Error("argument %d (%s): expected %s", i+1, r.name, r.parser.Type()))
			continue
		}
		commits = append(commits, commit)
	}

	var missing []string
	for _, r := range a.readers {
		if r.mandatory && !r.seen {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		fail(a.eh.Error("missing mandatory %s argument", strings.Join(missing, ", ")))
	}
	if first != nil {
		return first
	}
	for _, c := range commits {
		c()
	}
	for _, r := range a.readers {
		if r.explicit != nil {
			*r.explicit = r.seen
		}
	}
	return nil
}
