package protocol

// RecordSize is the size of one packed history record.
const RecordSize = 4

// SplitRecords partitions data into consecutive size-byte records. A trailing
// partial record is dropped. Returns nil for data shorter than one record.
func SplitRecords(data []byte, size int) [][]byte {
	if size <= 0 || len(data) < size {
		return nil
	}
	records := make([][]byte, 0, len(data)/size)
	for off := 0; off+size <= len(data); off += size {
		records = append(records, data[off:off+size])
	}
	return records
}
