package quictrace

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
)

// Address family values found in trace records. Windows and Linux providers
// disagree on the IPv6 value.
const (
	familyUnspec    = 0
	familyInet      = 2
	familyInet6Unix = 10
	familyInet6     = 23
)

// SocketAddress is a decoded transport address. An unspecified address has an
// invalid Addr.
type SocketAddress struct {
	netip.AddrPort
}

func (a SocketAddress) IsUnspecified() bool {
	return !a.Addr().IsValid()
}

func (a SocketAddress) String() string {
	if a.IsUnspecified() {
		return "*:" + strconv.Itoa(int(a.Port()))
	}
	return a.AddrPort.String()
}

// Address reads a length prefixed socket address. A zero length is the
// unspecified address with port 0. Unknown families fail with
// ErrAddressFamily.
func (r *Reader) Address() SocketAddress {
	n := r.U8()
	if r.err != nil || n == 0 {
		return SocketAddress{}
	}
	start := r.off
	buf := r.next(int(n))
	if buf == nil {
		return SocketAddress{}
	}
	a, err := parseSockaddr(buf)
	if err != nil {
		r.fail(fmt.Errorf("address at offset %d: %w", start, err))
		return SocketAddress{}
	}
	return a
}

func parseSockaddr(buf []byte) (SocketAddress, error) {
	if len(buf) < 2 {
		return SocketAddress{}, fmt.Errorf("%w: sockaddr of %d bytes", ErrTruncated, len(buf))
	}
	family := binary.LittleEndian.Uint16(buf)
	if family == familyUnspec {
		// the rest of the buffer is ignored, port included
		return SocketAddress{}, nil
	}
	if len(buf) < 4 {
		return SocketAddress{}, fmt.Errorf("%w: sockaddr of %d bytes", ErrTruncated, len(buf))
	}
	port := binary.BigEndian.Uint16(buf[2:])

	switch family {
	case familyInet:
		if len(buf) < 8 {
			return SocketAddress{}, fmt.Errorf("%w: ipv4 sockaddr of %d bytes", ErrTruncated, len(buf))
		}
		return SocketAddress{netip.AddrPortFrom(netip.AddrFrom4([4]byte(buf[4:8])), port)}, nil
	case familyInet6, familyInet6Unix:
		if len(buf) < 20 {
			return SocketAddress{}, fmt.Errorf("%w: ipv6 sockaddr of %d bytes", ErrTruncated, len(buf))
		}
		return SocketAddress{netip.AddrPortFrom(netip.AddrFrom16([16]byte(buf[4:20])), port)}, nil
	}
	return SocketAddress{}, fmt.Errorf("%w: %d", ErrAddressFamily, family)
}
