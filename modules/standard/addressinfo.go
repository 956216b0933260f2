package standard

import (
	"net"
	"net/netip"
	"sort"
	"strings"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
)

// Address is what an AddressInfo name stands for. Unset parts are zero.
type Address struct {
	IP     netip.Addr
	Prefix netip.Prefix
	Ether  net.HardwareAddr
}

func (a *Address) String() string {
	var parts []string
	if a.IP.IsValid() {
		parts = append(parts, a.IP.String())
	}
	if a.Prefix.IsValid() {
		parts = append(parts, a.Prefix.String())
	}
	if a.Ether != nil {
		parts = append(parts, a.Ether.String())
	}
	return strings.Join(parts, " ")
}

// AddressInfo names IP addresses, IP prefixes and Ethernet addresses.
// Each argument is "NAME ADDR...". Names declared inside a compound are
// prefixed with the compound's name.
type AddressInfo struct {
	element.Base
	names map[string]*Address
}

func (*AddressInfo) Class() string       { return "AddressInfo" }
func (*AddressInfo) PortCount() string   { return "0/0" }
func (*AddressInfo) ConfigurePhase() int { return element.PhaseInfo }

func (ai *AddressInfo) Configure(conf []string, eh *errh.Handler) error {
	ai.names = make(map[string]*Address)
	prefix := compoundPrefix(ai.Name())
	var err error
	fail := func(e error) {
		if err == nil {
			err = e
		}
	}
	for _, arg := range conf {
		words := confparse.SplitSpace(arg)
		if len(words) == 0 {
			continue
		}
		if len(words) < 2 {
			fail(eh.Error("expected 'NAME ADDRS', got %q", arg))
			continue
		}
		name := prefix + words[0]
		a := ai.names[name]
		if a == nil {
			a = &Address{}
			ai.names[name] = a
		}
		for _, w := range words[1:] {
			if e := a.add(w, name, eh); e != nil {
				fail(e)
			}
		}
	}
	return err
}

// add merges one address word into a. Conflicts with earlier words are
// warnings and the later word wins.
func (a *Address) add(w, name string, eh *errh.Handler) error {
	if ip, err := confparse.ParseIPAddr(w); err == nil {
		if a.IP.IsValid() && a.IP != ip {
			eh.Warning("%q IP addresses conflict", name)
		} else if a.Prefix.IsValid() && !a.Prefix.Contains(ip) {
			eh.Warning("%q IP address and IP address prefix conflict", name)
		}
		a.IP = ip
		return nil
	}
	if p, err := netip.ParsePrefix(w); err == nil {
		masked := p.Masked()
		if a.IP.IsValid() && !masked.Contains(a.IP) {
			eh.Warning("%q IP address and IP address prefix conflict", name)
		} else if a.Prefix.IsValid() && a.Prefix != masked {
			eh.Warning("%q IP address prefixes conflict", name)
		}
		a.Prefix = masked
		// "10.0.0.7/8" also names the host address.
		if !a.IP.IsValid() && p.Addr() != masked.Addr() {
			a.IP = p.Addr()
		}
		return nil
	}
	if hw, err := confparse.ParseEtherAddr(w); err == nil {
		if a.Ether != nil && a.Ether.String() != hw.String() {
			eh.Warning("%q Ethernet addresses conflict", name)
		}
		a.Ether = hw
		return nil
	}
	return eh.Error("%q: %q is not a recognizable address", name, w)
}

func (ai *AddressInfo) AddHandlers() {
	ai.AddReadHandler("table", func() string {
		names := make([]string, 0, len(ai.names))
		for n := range ai.names {
			names = append(names, n)
		}
		sort.Strings(names)
		var sb strings.Builder
		for _, n := range names {
			sb.WriteString(n + " " + ai.names[n].String() + "\n")
		}
		return sb.String()
	})
}

// compoundPrefix returns name up to and including its last slash.
func compoundPrefix(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i+1]
	}
	return ""
}

// LookupAddress resolves name against every AddressInfo in ctx. When
// from is set, names in from's compound are tried first, then each
// enclosing compound, then the global name.
func LookupAddress(ctx element.Context, name string, from element.Element) (Address, bool) {
	var infos []*AddressInfo
	for _, e := range ctx.Elements() {
		if ai, ok := e.(*AddressInfo); ok {
			infos = append(infos, ai)
		}
	}
	prefix := ""
	if from != nil {
		prefix = compoundPrefix(from.BaseElement().Name())
	}
	for {
		for _, ai := range infos {
			if a, ok := ai.names[prefix+name]; ok {
				return *a, true
			}
		}
		if prefix == "" {
			return Address{}, false
		}
		prefix = compoundPrefix(strings.TrimSuffix(prefix, "/"))
	}
}
