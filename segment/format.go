package segment

// format.go: Constants and sentinel errors for the segment file format.
//
// A segment file is laid out as
//
//	[blocklet 0 data] ... [blocklet n data] [footer record 0] ... [footer record n] [trailer]
//
// where each blocklet's data is its packed key column immediately followed by
// its measure columns, each footer record is the fixed-size serialized form
// of a core.BlockletInfo, and the trailer is one big-endian uint64 holding
// the offset at which the footer begins. There is no file header; the first
// blocklet starts at offset zero.

import "errors"

// DefaultFileExtension is the extension for segment data files.
const DefaultFileExtension = ".fact"

// DefaultMaxFileSize is the rotation threshold used when none is configured.
const DefaultMaxFileSize = 100 * 1024 * 1024 // 100 MiB

var (
	// ErrClosed is returned for write operations when the writer's channel
	// is not open, either because Open was never called or because the
	// writer has been closed.
	ErrClosed = errors.New("segment writer channel is not open")

	// ErrMeasureCountMismatch reports a blocklet whose measure column count
	// does not match the writer's configured shape. This is a caller bug,
	// not a recoverable I/O condition.
	ErrMeasureCountMismatch = errors.New("measure column count mismatch")

	// ErrCorrupted is returned when a segment file's footer cannot be
	// parsed.
	ErrCorrupted = errors.New("segment data is corrupted")
)
