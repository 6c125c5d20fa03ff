package segment

import (
	"bytes"
	"encoding/binary"

	"github.com/INLOpen/factstore/core"
)

// footer.go: Serialization of blocklet metadata records.
//
// Record layout, all integers big-endian:
//
//	row count      uint32
//	key length     uint32
//	key offset     uint64
//	start key      KeyLength bytes
//	end key        KeyLength bytes
//	per measure:
//	  length       uint32
//	  offset       uint64

// encodeMetadataRecord appends the serialized form of one blocklet record to
// buf. Writes to a bytes.Buffer cannot fail, so no error is returned.
func encodeMetadataRecord(buf *bytes.Buffer, info core.BlockletInfo) {
	binary.Write(buf, binary.BigEndian, info.RowCount)
	binary.Write(buf, binary.BigEndian, info.KeyLength)
	binary.Write(buf, binary.BigEndian, info.KeyOffset)
	buf.Write(info.StartKey)
	buf.Write(info.EndKey)
	for i := range info.MeasureLengths {
		binary.Write(buf, binary.BigEndian, info.MeasureLengths[i])
		binary.Write(buf, binary.BigEndian, info.MeasureOffsets[i])
	}
}

// decodeMetadataRecord parses one fixed-size blocklet record. data must be
// exactly core.MetadataRecordSize(measureCount, keyLength) bytes.
func decodeMetadataRecord(data []byte, measureCount, keyLength int) core.BlockletInfo {
	info := core.BlockletInfo{
		RowCount:       binary.BigEndian.Uint32(data[0:4]),
		KeyLength:      binary.BigEndian.Uint32(data[4:8]),
		KeyOffset:      binary.BigEndian.Uint64(data[8:16]),
		MeasureLengths: make([]uint32, measureCount),
		MeasureOffsets: make([]uint64, measureCount),
		StartKey:       append([]byte(nil), data[16:16+keyLength]...),
		EndKey:         append([]byte(nil), data[16+keyLength:16+2*keyLength]...),
	}
	pos := 16 + 2*keyLength
	for i := 0; i < measureCount; i++ {
		info.MeasureLengths[i] = binary.BigEndian.Uint32(data[pos : pos+4])
		info.MeasureOffsets[i] = binary.BigEndian.Uint64(data[pos+4 : pos+12])
		pos += 12
	}
	return info
}
