package segment

import "fmt"

// BlockletEncoder flattens the measure columns of a blocklet into the single
// byte run appended after the key column.
type BlockletEncoder struct {
	measureCount int
}

// NewBlockletEncoder creates an encoder for blocklets with the given number
// of measure columns.
func NewBlockletEncoder(measureCount int) *BlockletEncoder {
	return &BlockletEncoder{measureCount: measureCount}
}

// Flatten concatenates the measure columns in column order and reports each
// column's byte length. Zero-length columns keep their slot in the lengths
// slice so offsets stay aligned with the configured shape.
func (e *BlockletEncoder) Flatten(columns [][]byte) ([]byte, []uint32, error) {
	if len(columns) != e.measureCount {
		return nil, nil, fmt.Errorf("%w: got %d columns, want %d", ErrMeasureCountMismatch, len(columns), e.measureCount)
	}

	total := 0
	for _, col := range columns {
		total += len(col)
	}

	flat := make([]byte, 0, total)
	lengths := make([]uint32, len(columns))
	for i, col := range columns {
		lengths[i] = uint32(len(col))
		flat = append(flat, col...)
	}
	return flat, lengths, nil
}
