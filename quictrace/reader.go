package quictrace

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Reader is a forward only cursor over a record payload. All integers are
// little-endian.
//
// Reader errors are sticky: once a read fails, every following read returns
// the zero value and Err reports the first failure. Decoders issue the whole
// positional sequence for a record and check Err once.
type Reader struct {
	data  []byte
	off   int
	width uint8
	err   error
}

// NewReader returns a Reader over data with the given pointer width.
func NewReader(data []byte, pointerWidth uint8) (*Reader, error) {
	r := &Reader{}
	if err := r.Reset(data, pointerWidth); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset rewinds r onto a new payload.
func (r *Reader) Reset(data []byte, pointerWidth uint8) error {
	r.data = data
	r.off = 0
	r.width = pointerWidth
	r.err = nil
	if pointerWidth != 4 && pointerWidth != 8 {
		r.err = fmt.Errorf("%w: %d", ErrPointerWidth, pointerWidth)
	}
	return r.err
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) PointerWidth() uint8 {
	return r.width
}

// fail records err unless an earlier failure exists.
func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// next returns the next n bytes or nil on failure.
func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data)-r.off {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.data)-r.off))
		return nil
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	if b := r.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) U16() uint16 {
	if b := r.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *Reader) U32() uint32 {
	if b := r.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *Reader) U64() uint64 {
	if b := r.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Pointer reads a pointer of the record's width widened to 64 bits.
func (r *Reader) Pointer() uint64 {
	if r.width == 4 {
		return uint64(r.U32())
	}
	return r.U64()
}

// Bytes returns the next n bytes. The slice aliases the record buffer.
func (r *Reader) Bytes(n int) []byte {
	return r.next(n)
}

// LenBytes reads a one byte length followed by that many bytes. The slice
// aliases the record buffer.
func (r *Reader) LenBytes() []byte {
	n := r.U8()
	if r.err != nil {
		return nil
	}
	return r.next(int(n))
}

// Str reads a NUL terminated ISO-8859-1 string. The terminator is consumed;
// a missing terminator is a truncation.
func (r *Reader) Str() string {
	if r.err != nil {
		return ""
	}
	i := bytes.IndexByte(r.data[r.off:], 0)
	if i < 0 {
		r.fail(fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, r.off))
		return ""
	}
	raw := r.data[r.off : r.off+i]
	r.off += i + 1
	return latin1(raw)
}

func latin1(raw []byte) string {
	for _, c := range raw {
		if c >= utf8.RuneSelf {
			s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
			if err != nil {
				return string(raw)
			}
			return string(s)
		}
	}
	return string(raw)
}
