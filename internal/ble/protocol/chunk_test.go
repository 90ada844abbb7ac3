package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitRecords(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	got := SplitRecords(data, RecordSize)
	assert.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}, got)
}

func TestSplitRecordsShort(t *testing.T) {
	assert.Nil(t, SplitRecords([]byte{1, 2, 3}, RecordSize))
	assert.Nil(t, SplitRecords(nil, RecordSize))
	assert.Nil(t, SplitRecords([]byte{1, 2, 3, 4}, 0))
}
