package standard

import (
	"encoding/binary"
	"hash/crc32"
	"strconv"
	"sync/atomic"

	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/packet"
)

// CheckCRC32 verifies the little-endian IEEE CRC32 trailer of each packet
// and strips it. Packets with a bad or missing trailer are dropped.
type CheckCRC32 struct {
	element.Base
	drops atomic.Uint64
}

func (*CheckCRC32) Class() string     { return "CheckCRC32" }
func (*CheckCRC32) PortCount() string { return element.Ports1to1 }

func (c *CheckCRC32) SimpleAction(p *packet.Packet) *packet.Packet {
	data := p.Data()
	n := len(data) - crc32.Size
	if n < 0 || binary.LittleEndian.Uint32(data[n:]) != crc32.ChecksumIEEE(data[:n]) {
		if c.drops.Add(1) == 1 {
			c.Logger().Warn("CRC32 mismatch, dropping packets.", "length", len(data))
		}
		p.Kill()
		return nil
	}
	p.Take(crc32.Size)
	return p
}

func (c *CheckCRC32) AddHandlers() {
	c.AddReadHandler("drops", func() string { return strconv.FormatUint(c.drops.Load(), 10) })
}
