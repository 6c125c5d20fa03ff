package core

// BlockletInfo describes one blocklet written to a segment file: where its
// key column and each measure column landed, how many rows it holds, and the
// key range it covers. Instances are built once and treated as immutable.
type BlockletInfo struct {
	// RowCount is the number of rows in the blocklet.
	RowCount uint32
	// KeyLength is the byte length of the packed key column.
	KeyLength uint32
	// KeyOffset is the file offset at which the packed key column begins.
	KeyOffset uint64
	// MeasureLengths holds the byte length of each measure column, in
	// column order.
	MeasureLengths []uint32
	// MeasureOffsets holds the file offset of each measure column. The
	// first measure starts immediately after the key column and each
	// subsequent measure starts where the previous one ended.
	MeasureOffsets []uint64
	// StartKey and EndKey are the first and last row keys of the blocklet.
	// Both have the writer's fixed key length.
	StartKey []byte
	EndKey   []byte
}

// SegmentFile identifies a finished segment file, as returned by the writer
// when a file is closed. Downstream components use it to register the file
// for reading or compaction.
type SegmentFile struct {
	Path      string
	Sequence  uint32
	Size      int64
	Blocklets int
}
