// Package protocol implements the decrypted BM2 wire format: packet
// classification by prefix, field decoders, outbound commands and history
// reassembly.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketType identifies a decrypted notification by its leading bytes.
type PacketType int

const (
	PacketUnknown PacketType = iota
	PacketVoltageReading
	PacketHistoryCount
	PacketStartHistory
	PacketEndHistory
)

func (t PacketType) String() string {
	switch t {
	case PacketVoltageReading:
		return "VoltageReading"
	case PacketHistoryCount:
		return "HistoryCount"
	case PacketStartHistory:
		return "StartHistory"
	case PacketEndHistory:
		return "EndHistory"
	default:
		return "Unknown"
	}
}

// prefixes is tested in order; the first match wins.
var prefixes = []struct {
	prefix []byte
	typ    PacketType
}{
	{[]byte{0xf5}, PacketVoltageReading},
	{[]byte{0xe7}, PacketHistoryCount},
	{[]byte{0xff, 0xff, 0xfe}, PacketStartHistory},
	{[]byte{0xff, 0xfe, 0xfe}, PacketEndHistory},
}

// Classify returns the type of a decrypted packet, or PacketUnknown.
func Classify(packet []byte) PacketType {
	for _, p := range prefixes {
		if bytes.HasPrefix(packet, p.prefix) {
			return p.typ
		}
	}
	return PacketUnknown
}

// ErrShortPacket is returned when a packet is too short for the field being read.
var ErrShortPacket = errors.New("protocol: packet too short")

// ParseVoltage decodes a VoltageReading packet into volts.
//
//	byte 0:    0xf5
//	bytes 1-2: big-endian uint16, upper 12 bits are centivolts
func ParseVoltage(packet []byte) (float64, error) {
	if len(packet) < 3 {
		return 0, fmt.Errorf("%w: voltage reading needs 3 bytes, got %d", ErrShortPacket, len(packet))
	}
	raw := binary.BigEndian.Uint16(packet[1:3])
	return float64(raw>>4) / 100, nil
}

// ParseHistoryCount decodes the record count from a HistoryCount packet.
func ParseHistoryCount(packet []byte) (uint32, error) {
	if len(packet) < 4 {
		return 0, fmt.Errorf("%w: history count needs 4 bytes, got %d", ErrShortPacket, len(packet))
	}
	return DecodeUint24(packet[1:4]), nil
}

// historyOverhead is the part of the EndHistory size field that is not record data.
const historyOverhead = 9

// ParseHistorySize returns the record payload length announced by an
// EndHistory marker. The size field sits 3 bytes into the marker and counts
// 9 bytes of framing that are not part of the payload.
func ParseHistorySize(marker []byte) (int, error) {
	if len(marker) < 6 {
		return 0, fmt.Errorf("%w: end of history needs 6 bytes, got %d", ErrShortPacket, len(marker))
	}
	size := int(DecodeUint24(marker[3:6])) - historyOverhead
	if size < 0 {
		size = 0
	}
	return size, nil
}

// HistoryCountRequest asks the device how many history records it holds.
func HistoryCountRequest() []byte {
	return []byte{0xe7, 0x01}
}

// HistoryTransferRequest asks the device to stream count history records.
//
//	byte 0:    0xe3
//	bytes 1-2: 0x00 0x00
//	bytes 3-6: big-endian uint32 record count
func HistoryTransferRequest(count uint32) []byte {
	buf := []byte{0xe3, 0x00, 0x00, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(buf[3:], count)
	return buf
}
