package segment

import "github.com/INLOpen/factstore/core"

// BuildBlockletInfo computes the footer record for one blocklet. offset is
// the file position at which the blocklet's key column begins; the measure
// columns follow contiguously, so the first measure offset is the key offset
// plus the key column length and each later measure starts where the one
// before it ended.
//
// startKey and endKey are copied so the record stays valid if the caller
// reuses its buffers.
func BuildBlockletInfo(offset uint64, keyLength uint32, measureLengths []uint32, rowCount uint32, startKey, endKey []byte) core.BlockletInfo {
	info := core.BlockletInfo{
		RowCount:       rowCount,
		KeyLength:      keyLength,
		KeyOffset:      offset,
		MeasureLengths: append([]uint32(nil), measureLengths...),
		MeasureOffsets: make([]uint64, len(measureLengths)),
		StartKey:       append([]byte(nil), startKey...),
		EndKey:         append([]byte(nil), endKey...),
	}

	current := offset + uint64(keyLength)
	for i, length := range measureLengths {
		info.MeasureOffsets[i] = current
		current += uint64(length)
	}
	return info
}
