package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		want   PacketType
	}{
		{"voltage", []byte{0xf5, 0x4d, 0x40, 0x00}, PacketVoltageReading},
		{"history count", []byte{0xe7, 0x00, 0x00, 0x05}, PacketHistoryCount},
		{"start history", []byte{0xff, 0xff, 0xfe, 0x00}, PacketStartHistory},
		{"end history", []byte{0xff, 0xfe, 0xfe, 0x00, 0x00, 0x11}, PacketEndHistory},
		{"start prefix too short", []byte{0xff, 0xff}, PacketUnknown},
		{"unknown", []byte{0x01, 0x02, 0x03}, PacketUnknown},
		{"empty", nil, PacketUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.packet))
		})
	}
}

func TestParseVoltage(t *testing.T) {
	// 1236 centivolts << 4 = 0x4d40
	v, err := ParseVoltage([]byte{0xf5, 0x4d, 0x40, 0x00, 0x00})
	require.NoError(t, err)
	assert.InDelta(t, 12.36, v, 1e-9)

	// low nibble is not part of the value
	v, err = ParseVoltage([]byte{0xf5, 0x4d, 0x4f})
	require.NoError(t, err)
	assert.InDelta(t, 12.36, v, 1e-9)
}

func TestParseVoltageShort(t *testing.T) {
	_, err := ParseVoltage([]byte{0xf5, 0x4d})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestParseHistoryCount(t *testing.T) {
	n, err := ParseHistoryCount([]byte{0xe7, 0x00, 0x01, 0x2c, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint32(300), n)

	_, err = ParseHistoryCount([]byte{0xe7, 0x00})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestParseHistorySize(t *testing.T) {
	size, err := ParseHistorySize([]byte{0xff, 0xfe, 0xfe, 0x00, 0x00, 9 + 8})
	require.NoError(t, err)
	assert.Equal(t, 8, size)

	size, err = ParseHistorySize([]byte{0xff, 0xfe, 0xfe, 0x00, 0x00, 0x02})
	require.NoError(t, err)
	assert.Equal(t, 0, size, "sizes below the overhead clamp to zero")

	_, err = ParseHistorySize([]byte{0xff, 0xfe, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestHistoryCountRequest(t *testing.T) {
	assert.Equal(t, []byte{0xe7, 0x01}, HistoryCountRequest())
}

func TestHistoryTransferRequest(t *testing.T) {
	assert.Equal(t, []byte{0xe3, 0x00, 0x00, 0x00, 0x00, 0x01, 0x2c}, HistoryTransferRequest(300))
	assert.Equal(t, []byte{0xe3, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04}, HistoryTransferRequest(0x01020304))
}
