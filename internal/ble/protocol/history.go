package protocol

import (
	"errors"
	"time"
)

// HistorySampleInterval is the assumed spacing between history records. The
// device does not transmit timestamps.
const HistorySampleInterval = 2 * time.Minute

// historyFormat packs voltage*100, an unused nibble, minimum crank
// voltage*100 and the record type into 4 bytes.
const historyFormat = "xxxkyyyp"

// HistoryReading is one decoded history record.
type HistoryReading struct {
	Date            time.Time
	Voltage         float64
	Unused          int
	MinCrankVoltage float64
	Type            int
}

// DecodeHistory decodes a reassembled history payload. Records come out
// oldest first; the newest is stamped with now truncated to the minute and
// each earlier one HistorySampleInterval before the next.
func DecodeHistory(data []byte, now time.Time) []HistoryReading {
	records := SplitRecords(data, RecordSize)
	if len(records) == 0 {
		return []HistoryReading{}
	}
	newest := now.Truncate(time.Minute)
	readings := make([]HistoryReading, len(records))
	for i, rec := range records {
		v := DecodeNibbles(rec, historyFormat)
		age := time.Duration(len(records)-1-i) * HistorySampleInterval
		readings[i] = HistoryReading{
			Date:            newest.Add(-age),
			Voltage:         float64(v[0]) / 100,
			Unused:          int(v[1]),
			MinCrankVoltage: float64(v[2]) / 100,
			Type:            int(v[3]),
		}
	}
	return readings
}

// ErrNotReceiving is returned by Finish when no transfer is in progress.
var ErrNotReceiving = errors.New("protocol: end of history without start")

// HistoryAssembler collects the packets of one history transfer between a
// StartHistory and an EndHistory marker. It is not safe for concurrent use.
type HistoryAssembler struct {
	receiving bool
	buf       []byte
}

// Receiving reports whether a transfer is in progress.
func (a *HistoryAssembler) Receiving() bool {
	return a.receiving
}

// Start begins a transfer, discarding any partial one.
func (a *HistoryAssembler) Start() {
	a.receiving = true
	a.buf = a.buf[:0]
}

// Append adds a whole decrypted packet, padding included, to the transfer.
// It is a no-op outside a transfer.
func (a *HistoryAssembler) Append(packet []byte) {
	if !a.receiving {
		return
	}
	a.buf = append(a.buf, packet...)
}

// Len returns the number of bytes accumulated so far.
func (a *HistoryAssembler) Len() int {
	return len(a.buf)
}

// Finish ends the transfer using the size announced by the EndHistory
// marker, and decodes the accumulated records.
func (a *HistoryAssembler) Finish(marker []byte, now time.Time) ([]HistoryReading, error) {
	if !a.receiving {
		return nil, ErrNotReceiving
	}
	size, err := ParseHistorySize(marker)
	if err != nil {
		a.Reset()
		return nil, err
	}
	data := a.buf
	if size < len(data) {
		data = data[:size]
	}
	readings := DecodeHistory(data, now)
	a.Reset()
	return readings, nil
}

// Reset abandons any transfer in progress.
func (a *HistoryAssembler) Reset() {
	a.receiving = false
	a.buf = nil
}
