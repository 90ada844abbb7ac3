package protocol

import "encoding/hex"

// DecodeUint24 decodes 3 big-endian bytes. Extra bytes are ignored; missing
// bytes are treated as absent high-order digits.
func DecodeUint24(b []byte) uint32 {
	if len(b) > 3 {
		b = b[:3]
	}
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}

// DecodeNibbles splits the hex digits of x into the groups described by
// format and returns one integer per group. A group is a run of the same
// letter, so "xxxkyyyp" reads 3 digits, 1 digit, 3 digits and 1 digit.
// Each group is read as an ordinary hex number: its rightmost digit is the
// least significant.
//
//	DecodeNibbles([]byte{0x4d, 0x41, 0x11, 0x11}, "xxxkyyyp") == []uint32{0x4d4, 0x1, 0x111, 0x1}
//
// Groups that run past the end of x use whatever digits remain.
func DecodeNibbles(x []byte, format string) []uint32 {
	digits := hex.EncodeToString(x)
	var values []uint32
	idx := 0
	for i := 0; i < len(format); {
		j := i
		for j < len(format) && format[j] == format[i] {
			j++
		}
		width := j - i
		i = j

		var v uint32
		for k := idx; k < idx+width && k < len(digits); k++ {
			v = v<<4 | uint32(nibble(digits[k]))
		}
		idx += width
		values = append(values, v)
	}
	return values
}

func nibble(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}
