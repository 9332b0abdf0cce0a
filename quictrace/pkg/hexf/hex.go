// Package hexf formats trace pointers, keyword masks and connection ids as
// "0x" prefixed hex with a single allocation. These run for every logged
// record so fmt is avoided.
package hexf

import (
	"encoding/binary"
	"unsafe"
)

var hextable = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

func encode(dst, src []byte) int {
	j := 0
	for _, v := range src {
		dst[j] = hextable[v>>4]
		dst[j+1] = hextable[v&0x0f]
		j += 2
	}
	return len(src) * 2
}

// encodeTrim is encode without the leading zero nibbles. All zero input
// encodes as a single '0'.
func encodeTrim(dst, src []byte) int {
	i := 0
	for ; i < len(src) && src[i] == 0; i++ {
	}
	if i == len(src) {
		if len(src) == 0 {
			return 0
		}
		dst[0] = '0'
		return 1
	}

	j := 0
	if v := src[i]; v < 0x10 {
		dst[j] = hextable[v]
		j++
		i++
	}
	return j + encode(dst[j:], src[i:])
}

func prefixed(src []byte, trim bool) string {
	dst := make([]byte, 2+len(src)*2)
	dst[0] = '0'
	dst[1] = 'x'
	var n int
	if trim {
		n = encodeTrim(dst[2:], src)
	} else {
		n = encode(dst[2:], src)
	}
	return unsafe.String(unsafe.SliceData(dst), n+2)
}

// Pointer formats p zero padded to the pointer width of the record it came
// from (4 or 8 bytes). Any other width formats as 8 bytes.
func Pointer(p uint64, width uint8) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], p)
	if width == 4 {
		return prefixed(b[4:], false)
	}
	return prefixed(b[:], false)
}

// Uint64 formats n with leading zeroes trimmed, e.g. keyword masks.
func Uint64(n uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return prefixed(b[:], true)
}

// Bytes formats src in order without trimming. Empty input gives "0x".
func Bytes(src []byte) string {
	return prefixed(src, false)
}
