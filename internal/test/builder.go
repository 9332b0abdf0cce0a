package test

import (
	"encoding/binary"
	"net/netip"
)

// Address families as they appear on the wire.
const (
	FamilyUnspec   = 0
	FamilyInet     = 2
	FamilyInet6    = 23
	FamilyInet6Lnx = 10
)

// Builder encodes record payloads the way the QUIC provider lays them out:
// little-endian integers, pointers at the record's width, NUL terminated
// strings and length prefixed addresses.
type Builder struct {
	buf   []byte
	width uint8
}

// NewBuilder returns a Builder writing pointers of the given width (4 or 8).
func NewBuilder(width uint8) *Builder {
	return &Builder{width: width}
}

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) U16(v uint16) *Builder {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) U64(v uint64) *Builder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
	return b
}

// Ptr writes p truncated to the builder's pointer width.
func (b *Builder) Ptr(p uint64) *Builder {
	if b.width == 4 {
		return b.U32(uint32(p))
	}
	return b.U64(p)
}

func (b *Builder) Str(s string) *Builder {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return b
}

// LenBytes writes a one byte length followed by p.
func (b *Builder) LenBytes(p []byte) *Builder {
	b.buf = append(b.buf, byte(len(p)))
	b.buf = append(b.buf, p...)
	return b
}

func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// NoAddr writes a zero length address.
func (b *Builder) NoAddr() *Builder {
	return b.U8(0)
}

// Addr writes ap using the Windows family values (2 and 23).
func (b *Builder) Addr(ap netip.AddrPort) *Builder {
	if ap.Addr().Is4() {
		return b.AddrFamily(FamilyInet, ap)
	}
	return b.AddrFamily(FamilyInet6, ap)
}

// AddrFamily writes ap with an explicit family value. The address bytes are
// omitted when ap holds no valid address.
func (b *Builder) AddrFamily(family uint16, ap netip.AddrPort) *Builder {
	var sub []byte
	sub = binary.LittleEndian.AppendUint16(sub, family)
	sub = binary.BigEndian.AppendUint16(sub, ap.Port())
	if ap.Addr().IsValid() {
		sub = append(sub, ap.Addr().AsSlice()...)
	}
	return b.LenBytes(sub)
}

func (b *Builder) Len() int {
	return len(b.buf)
}

// Build returns a copy of the encoded bytes.
func (b *Builder) Build() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
