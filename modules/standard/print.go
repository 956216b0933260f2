package standard

import (
	"fmt"
	"strings"

	"github.com/5g-empower/empower-agent/internal/confparse"
	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/packet"
)

// Print logs a summary of every packet passing through it: the label, the
// length and the first NBYTES bytes.
type Print struct {
	element.Base
	label     string
	nbytes    int
	timestamp bool
	anno      bool
	contents  string
}

func (*Print) Class() string     { return "Print" }
func (*Print) PortCount() string { return element.Ports1to1 }

func (p *Print) Configure(conf []string, eh *errh.Handler) error {
	p.nbytes = 24
	p.contents = "HEX"
	err := confparse.NewArgs(conf, eh).
		ReadP("LABEL", confparse.String(&p.label)).
		ReadP("MAXLENGTH", confparse.Int(&p.nbytes)).
		Read("NBYTES", confparse.Int(&p.nbytes)).
		Read("TIMESTAMP", confparse.Bool(&p.timestamp)).
		Read("PRINTANNO", confparse.Bool(&p.anno)).
		Read("CONTENTS", confparse.Arg(&p.contents)).
		Complete()
	if err != nil {
		return err
	}
	p.contents = strings.ToUpper(p.contents)
	switch p.contents {
	case "HEX", "ASCII", "NONE":
	default:
		return eh.Error("CONTENTS must be HEX, ASCII or NONE")
	}
	if p.nbytes < 0 {
		return eh.Error("NBYTES must not be negative")
	}
	return nil
}

// Format renders the line Print logs for pkt.
func (p *Print) Format(pkt *packet.Packet) string {
	var sb strings.Builder
	if p.label != "" {
		sb.WriteString(p.label)
		sb.WriteString(": ")
	}
	if p.timestamp {
		fmt.Fprintf(&sb, "%s: ", pkt.Timestamp.Format("15:04:05.000000"))
	}
	fmt.Fprintf(&sb, "%4d | ", pkt.Len())
	if p.anno {
		fmt.Fprintf(&sb, "%x | ", pkt.Anno[:])
	}
	data := pkt.Data()
	if len(data) > p.nbytes {
		data = data[:p.nbytes]
	}
	switch p.contents {
	case "HEX":
		for i, b := range data {
			fmt.Fprintf(&sb, "%02x", b)
			if i%4 == 3 && i != len(data)-1 {
				sb.WriteByte(' ')
			}
		}
	case "ASCII":
		for _, b := range data {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			sb.WriteByte(b)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

func (p *Print) SimpleAction(pkt *packet.Packet) *packet.Packet {
	p.Logger().Info(p.Format(pkt))
	return pkt
}
