package segment

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/INLOpen/factstore/core"
	"github.com/INLOpen/factstore/sys"
)

// Reader opens a finalized segment file and decodes its footer. Blocklet
// data is read lazily through KeyColumn and MeasureColumn; only the footer
// is held in memory.
type Reader struct {
	file         sys.FileHandle
	path         string
	size         int64
	footerStart  uint64
	measureCount int
	keyLength    int
	blocklets    []core.BlockletInfo
}

// OpenReader opens the segment file at path and parses its footer. The
// measure count and key length must match the shape the file was written
// with; a mismatch surfaces as ErrCorrupted because the footer region no
// longer divides into whole records.
func OpenReader(path string, measureCount, keyLength int) (*Reader, error) {
	if measureCount <= 0 {
		return nil, fmt.Errorf("segment reader: measure count must be positive, got %d", measureCount)
	}
	if keyLength <= 0 {
		return nil, fmt.Errorf("segment reader: key length must be positive, got %d", keyLength)
	}

	file, err := sys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}

	r := &Reader{
		file:         file,
		path:         path,
		measureCount: measureCount,
		keyLength:    keyLength,
	}
	if err := r.readFooter(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// readFooter locates the footer via the trailer and decodes every record.
func (r *Reader) readFooter() error {
	fi, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat segment file %s: %w", r.path, err)
	}
	r.size = fi.Size()
	if r.size < core.TrailerSize {
		return fmt.Errorf("%w: file %s is %d bytes, smaller than the trailer", ErrCorrupted, r.path, r.size)
	}

	trailer := make([]byte, core.TrailerSize)
	if _, err := r.file.ReadAt(trailer, r.size-core.TrailerSize); err != nil {
		return fmt.Errorf("failed to read trailer of %s: %w", r.path, err)
	}
	r.footerStart = binary.BigEndian.Uint64(trailer)

	footerEnd := uint64(r.size) - core.TrailerSize
	if r.footerStart > footerEnd {
		return fmt.Errorf("%w: footer offset %d past end of records at %d in %s", ErrCorrupted, r.footerStart, footerEnd, r.path)
	}

	recordSize := core.MetadataRecordSize(r.measureCount, r.keyLength)
	region := footerEnd - r.footerStart
	if region%uint64(recordSize) != 0 {
		return fmt.Errorf("%w: footer region of %d bytes does not divide into %d-byte records in %s", ErrCorrupted, region, recordSize, r.path)
	}

	count := int(region / uint64(recordSize))
	if count == 0 {
		return nil
	}

	footer := make([]byte, region)
	if _, err := r.file.ReadAt(footer, int64(r.footerStart)); err != nil {
		return fmt.Errorf("failed to read footer of %s: %w", r.path, err)
	}

	r.blocklets = make([]core.BlockletInfo, count)
	for i := 0; i < count; i++ {
		r.blocklets[i] = decodeMetadataRecord(footer[i*recordSize:(i+1)*recordSize], r.measureCount, r.keyLength)
	}
	return nil
}

// Blocklets returns the decoded footer records in file order. The returned
// slice is owned by the reader and must not be modified.
func (r *Reader) Blocklets() []core.BlockletInfo {
	return r.blocklets
}

// FooterStart returns the file offset the footer begins at, which equals
// the total number of blocklet data bytes in the file.
func (r *Reader) FooterStart() uint64 {
	return r.footerStart
}

// KeyColumn reads the packed key column of the blocklet at index i.
func (r *Reader) KeyColumn(i int) ([]byte, error) {
	if i < 0 || i >= len(r.blocklets) {
		return nil, fmt.Errorf("blocklet index %d out of range [0, %d)", i, len(r.blocklets))
	}
	info := r.blocklets[i]
	return r.readAt(int64(info.KeyOffset), int(info.KeyLength))
}

// MeasureColumn reads the flattened bytes of measure column m of the
// blocklet at index i.
func (r *Reader) MeasureColumn(i, m int) ([]byte, error) {
	if i < 0 || i >= len(r.blocklets) {
		return nil, fmt.Errorf("blocklet index %d out of range [0, %d)", i, len(r.blocklets))
	}
	info := r.blocklets[i]
	if m < 0 || m >= len(info.MeasureOffsets) {
		return nil, fmt.Errorf("measure index %d out of range [0, %d)", m, len(info.MeasureOffsets))
	}
	return r.readAt(int64(info.MeasureOffsets[m]), int(info.MeasureLengths[m]))
}

func (r *Reader) readAt(offset int64, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if uint64(offset)+uint64(length) > r.footerStart {
		return nil, fmt.Errorf("%w: data range [%d, %d) overlaps footer at %d in %s", ErrCorrupted, offset, offset+int64(length), r.footerStart, r.path)
	}
	buf := make([]byte, length)
	if _, err := r.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read blocklet data of %s: %w", r.path, err)
	}
	return buf, nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
