package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeUint24(t *testing.T) {
	assert.Equal(t, uint32(5), DecodeUint24([]byte{0x00, 0x00, 0x05}))
	assert.Equal(t, uint32(0x123456), DecodeUint24([]byte{0x12, 0x34, 0x56}))
	assert.Equal(t, uint32(0xffffff), DecodeUint24([]byte{0xff, 0xff, 0xff, 0xee}))
}

func TestDecodeNibbles(t *testing.T) {
	got := DecodeNibbles([]byte{0x4d, 0x41, 0x11, 0x11}, "xxxkyyyp")
	assert.Equal(t, []uint32{1236, 1, 273, 1}, got)
}

func TestDecodeNibblesGroups(t *testing.T) {
	tests := []struct {
		name   string
		in     []byte
		format string
		want   []uint32
	}{
		{"single group", []byte{0xab, 0xcd}, "aaaa", []uint32{0xabcd}},
		{"one digit each", []byte{0x12}, "ab", []uint32{1, 2}},
		{"repeated letter later", []byte{0x12, 0x34}, "aabb", []uint32{0x12, 0x34}},
		{"same letter split by other", []byte{0x12, 0x34}, "abba", []uint32{1, 0x23, 4}},
		{"runs past end", []byte{0x12}, "aaab", []uint32{0x12, 0}},
		{"empty format", []byte{0x12}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeNibbles(tt.in, tt.format))
		})
	}
}
