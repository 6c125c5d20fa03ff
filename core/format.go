package core

// format.go: Sizes of the fixed-width fields in the segment file format.
// Every integer in a segment file is written big-endian.

const (
	// Uint32Size is the on-disk size of a uint32 field.
	Uint32Size = 4
	// Uint64Size is the on-disk size of a uint64 field.
	Uint64Size = 8

	// TrailerSize is the size of the single uint64 at the very end of a
	// segment file holding the offset at which the footer begins.
	TrailerSize = Uint64Size
)

// MetadataRecordSize returns the fixed byte size of one serialized blocklet
// record for a writer shape with measureCount measure columns and
// keyLength-byte row keys. A record carries two uint32 fields (row count and
// key column length) plus one per measure, one uint64 offset for the key
// column plus one per measure, and the start and end keys.
func MetadataRecordSize(measureCount, keyLength int) int {
	return Uint32Size*(2+measureCount) + Uint64Size*(measureCount+1) + 2*keyLength
}
