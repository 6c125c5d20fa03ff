package segment

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"expvar"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/INLOpen/factstore/core"
	"github.com/INLOpen/factstore/hooks"
	"github.com/INLOpen/factstore/sequence"
	"github.com/INLOpen/factstore/sys"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options holds configuration for a segment Writer.
type Options struct {
	// Dir is the store location segment files are written into. The
	// directory must already exist.
	Dir string
	// TableName prefixes every file the writer creates.
	TableName string
	// FileExtension defaults to DefaultFileExtension when empty.
	FileExtension string
	// KeyLength is the fixed byte width of one row key. Start and end keys
	// of every blocklet must have exactly this length.
	KeyLength int
	// MeasureCount is the number of measure columns in every blocklet.
	MeasureCount int
	// MaxFileSize is the rotation threshold in bytes. Zero selects
	// DefaultMaxFileSize.
	MaxFileSize uint64
	// RotationEnabled allows the writer to start a new file once the
	// running size estimate reaches MaxFileSize. Rotation happens between
	// blocklets only; a single blocklet is never split across files.
	RotationEnabled bool
	// InProgressMarker makes the writer create files under an in-progress
	// name, announce them through a PostFileRegister event, and strip the
	// marker when the file is finalized.
	InProgressMarker bool
	// Sequence optionally supplies file numbers from an external
	// allocator. When nil the writer seeds its numbering from a directory
	// scan on the first Open and counts up from there.
	Sequence sequence.Allocator

	BytesWritten     *expvar.Int
	BlockletsWritten *expvar.Int

	Logger      *slog.Logger
	Tracer      trace.Tracer
	HookManager hooks.HookManager
}

type writerState int

const (
	stateIdle writerState = iota
	stateChannelOpen
	stateClosed
)

// activeFile holds everything scoped to the file currently being written.
// Rotation swaps the whole value, so per-file counters can never leak from
// one file into the next.
type activeFile struct {
	file     sys.FileHandle
	writer   *bufio.Writer
	path     string // name on disk right now, possibly with the in-progress marker
	durable  string // name after the marker is stripped
	sequence uint32

	// dataOffset is the number of blocklet data bytes written so far. The
	// footer trailer records it as the footer start offset.
	dataOffset uint64
	blocklets  []core.BlockletInfo
	// estimated is the running file size estimate used for rotation. It
	// is deliberately coarse and not byte-exact.
	estimated  uint64
	written    int
	footerDone bool
}

// Writer serializes blocklets into a table's segment files and owns their
// lifecycle: sequential naming, size-based rotation, and the rename that
// finalizes a file. A segment file has exactly one writer; callers serialize
// access externally.
type Writer struct {
	opts Options
	enc  *BlockletEncoder
	// recordSize is the fixed serialized size of one footer record for
	// this writer's shape.
	recordSize int

	mu     sync.Mutex
	state  writerState
	active *activeFile

	// fileCount is the next sequence number to assign.
	fileCount uint32
	seqSeeded bool

	lastClosed core.SegmentFile

	metricsBytesWritten     *expvar.Int
	metricsBlockletsWritten *expvar.Int

	logger      *slog.Logger
	tracer      trace.Tracer
	hookManager hooks.HookManager
}

// NewWriter validates opts and creates a Writer. No file is touched until
// Open is called.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("segment writer: store location is required")
	}
	if opts.TableName == "" {
		return nil, fmt.Errorf("segment writer: table name is required")
	}
	if opts.KeyLength <= 0 {
		return nil, fmt.Errorf("segment writer: key length must be positive, got %d", opts.KeyLength)
	}
	if opts.MeasureCount <= 0 {
		return nil, fmt.Errorf("segment writer: measure count must be positive, got %d", opts.MeasureCount)
	}
	if opts.FileExtension == "" {
		opts.FileExtension = DefaultFileExtension
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "SegmentWriter")
	} else {
		opts.Logger = opts.Logger.With("component", "SegmentWriter")
	}

	return &Writer{
		opts:                    opts,
		enc:                     NewBlockletEncoder(opts.MeasureCount),
		recordSize:              core.MetadataRecordSize(opts.MeasureCount, opts.KeyLength),
		metricsBytesWritten:     opts.BytesWritten,
		metricsBlockletsWritten: opts.BlockletsWritten,
		logger:                  opts.Logger,
		tracer:                  opts.Tracer,
		hookManager:             opts.HookManager,
	}, nil
}

// Open opens the channel to the writer's first segment file. The file's
// sequence number comes from the configured allocator, from a previous
// SetFileCount, or from a scan of the store directory.
func (w *Writer) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateClosed:
		return ErrClosed
	case stateChannelOpen:
		return fmt.Errorf("segment writer: channel already open for %s", w.active.path)
	}
	return w.openChannelLocked()
}

// openChannelLocked names and opens the next segment file.
func (w *Writer) openChannelLocked() error {
	seq, err := w.nextSequenceLocked()
	if err != nil {
		return err
	}

	name := core.DataFileName(w.opts.TableName, seq, w.opts.FileExtension)
	durablePath := filepath.Join(w.opts.Dir, name)
	path := durablePath
	if w.opts.InProgressMarker {
		path += core.InProgressMarker
		// Announce the file before it is opened so partially written
		// files are discoverable even if the open fails.
		if w.hookManager != nil {
			w.hookManager.Trigger(context.Background(), hooks.NewPostFileRegisterEvent(hooks.FileRegisterPayload{
				Table:       w.opts.TableName,
				Sequence:    seq,
				Path:        path,
				DurablePath: durablePath,
			}))
		}
	}
	w.fileCount = seq + 1

	file, err := sys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &core.WriteError{Op: "open", Path: path, Err: err}
	}

	w.active = &activeFile{
		file:     file,
		writer:   bufio.NewWriter(file),
		path:     path,
		durable:  durablePath,
		sequence: seq,
	}
	w.state = stateChannelOpen
	w.logger.Info("Opened segment file for writing", "path", path, "sequence", seq)
	return nil
}

// nextSequenceLocked decides the sequence number for the next file.
func (w *Writer) nextSequenceLocked() (uint32, error) {
	if w.opts.Sequence != nil {
		seq, err := w.opts.Sequence.Next()
		if err != nil {
			return 0, fmt.Errorf("sequence allocator failed: %w", err)
		}
		return seq, nil
	}
	if !w.seqSeeded {
		w.fileCount = w.scanSequenceLocked()
		w.seqSeeded = true
	}
	return w.fileCount, nil
}

// scanSequenceLocked derives the next sequence from files already present in
// the store directory, so numbering continues across restarts. Scanning
// happens once per writer; afterwards the in-memory counter is authoritative.
func (w *Writer) scanSequenceLocked() uint32 {
	entries, err := sys.ReadDir(w.opts.Dir)
	if err != nil {
		w.logger.Warn("Could not list store directory to seed file sequence", "dir", w.opts.Dir, "error", err)
		return w.fileCount
	}

	var last string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, w.opts.TableName) || !strings.Contains(name, w.opts.FileExtension) {
			continue
		}
		if name > last {
			last = name
		}
	}
	if last == "" {
		return w.fileCount
	}

	seq, err := core.ParseFileSequence(last)
	if err != nil {
		w.logger.Warn("Could not parse sequence from existing segment file, restarting numbering", "file", last, "error", err)
		return 1
	}
	return seq + 1
}

// WriteBlocklet appends one blocklet to the current segment file: the packed
// key column followed by the flattened measure columns. It returns the footer
// record built for the blocklet, whose KeyOffset is the file position the
// data was written at.
//
// When rotation is enabled and the running size estimate has reached the
// threshold, the writer finalizes the current file and opens the next one
// before appending, so the blocklet lands whole in a single file.
func (w *Writer) WriteBlocklet(keyColumn []byte, measureColumns [][]byte, rowCount uint32, startKey, endKey []byte) (core.BlockletInfo, error) {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(context.Background(), "SegmentWriter.WriteBlocklet")
		defer span.End()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateChannelOpen {
		return core.BlockletInfo{}, ErrClosed
	}
	if w.active.footerDone {
		return core.BlockletInfo{}, fmt.Errorf("segment file %s is already sealed by its footer", w.active.path)
	}
	if len(startKey) != w.opts.KeyLength || len(endKey) != w.opts.KeyLength {
		return core.BlockletInfo{}, fmt.Errorf("blocklet key range must use %d-byte keys, got start %d and end %d", w.opts.KeyLength, len(startKey), len(endKey))
	}

	flat, measureLengths, err := w.enc.Flatten(measureColumns)
	if err != nil {
		return core.BlockletInfo{}, err
	}

	if w.opts.RotationEnabled && w.active.estimated >= w.opts.MaxFileSize {
		if err := w.rotateLocked(); err != nil {
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return core.BlockletInfo{}, err
		}
	}

	f := w.active
	f.estimated += uint64(len(keyColumn)) + uint64(len(flat)) + uint64(len(f.blocklets)*w.recordSize) + core.TrailerSize

	offset, err := w.appendDataLocked(keyColumn, flat)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return core.BlockletInfo{}, err
	}

	info := BuildBlockletInfo(offset, uint32(len(keyColumn)), measureLengths, rowCount, startKey, endKey)
	f.blocklets = append(f.blocklets, info)
	f.written++

	if w.metricsBytesWritten != nil {
		w.metricsBytesWritten.Add(int64(len(keyColumn) + len(flat)))
	}
	if w.metricsBlockletsWritten != nil {
		w.metricsBlockletsWritten.Add(1)
	}
	if span != nil {
		span.SetAttributes(
			attribute.Int64("segment.sequence", int64(f.sequence)),
			attribute.Int64("segment.blocklet.key_offset", int64(offset)),
			attribute.Int("segment.blocklet.rows", int(rowCount)),
			attribute.Int("segment.blocklet.key_len", len(keyColumn)),
			attribute.Int("segment.blocklet.data_len", len(flat)),
		)
	}
	w.logger.Debug("Appended blocklet",
		"path", f.path,
		"rows", rowCount,
		"key_offset", offset,
		"data_len", len(keyColumn)+len(flat))

	return info, nil
}

// appendDataLocked writes the key column and flattened measure bytes to the
// current stream. It returns the data offset at which the blocklet begins and
// advances the running offset by the bytes written.
func (w *Writer) appendDataLocked(keyColumn, measures []byte) (uint64, error) {
	f := w.active
	offset := f.dataOffset
	if _, err := f.writer.Write(keyColumn); err != nil {
		return 0, &core.WriteError{Op: "append", Path: f.path, Err: err}
	}
	if _, err := f.writer.Write(measures); err != nil {
		return 0, &core.WriteError{Op: "append", Path: f.path, Err: err}
	}
	f.dataOffset = offset + uint64(len(keyColumn)) + uint64(len(measures))
	return offset, nil
}

// WriteFooter serializes the accumulated blocklet records followed by the
// trailer holding the footer's start offset, then clears the record list.
// On an empty list only the trailer is written, which still yields a valid,
// readable file. The footer is written at most once per file; repeated calls
// and the implicit flush in Close are no-ops afterwards, and the file accepts
// no further blocklets once sealed.
func (w *Writer) WriteFooter() error {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(context.Background(), "SegmentWriter.WriteFooter")
		defer span.End()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateChannelOpen {
		return ErrClosed
	}
	if err := w.flushFooterLocked(); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
	return nil
}

func (w *Writer) flushFooterLocked() error {
	f := w.active
	if f.footerDone {
		return nil
	}
	footerStart := f.dataOffset

	buf := new(bytes.Buffer)
	buf.Grow(len(f.blocklets)*w.recordSize + core.TrailerSize)
	for i := range f.blocklets {
		encodeMetadataRecord(buf, f.blocklets[i])
	}
	binary.Write(buf, binary.BigEndian, footerStart)

	if _, err := f.writer.Write(buf.Bytes()); err != nil {
		return &core.WriteError{Op: "footer", Path: f.path, Err: err}
	}
	if w.metricsBytesWritten != nil {
		w.metricsBytesWritten.Add(int64(buf.Len()))
	}
	w.logger.Debug("Flushed blocklet metadata",
		"path", f.path,
		"records", len(f.blocklets),
		"footer_offset", footerStart)

	f.blocklets = f.blocklets[:0]
	f.footerDone = true
	return nil
}

// rotateLocked finalizes the current file and opens the next one.
func (w *Writer) rotateLocked() error {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(context.Background(), "SegmentWriter.rotate")
		defer span.End()
	}

	oldSequence := w.active.sequence
	if err := w.flushFooterLocked(); err != nil {
		return err
	}
	if _, err := w.closeFileLocked(); err != nil {
		return err
	}

	w.active = nil
	w.state = stateIdle
	if err := w.openChannelLocked(); err != nil {
		return err
	}

	w.logger.Info("Rotated to new segment file",
		"old_sequence", oldSequence,
		"new_sequence", w.active.sequence,
		"path", w.active.path)
	if span != nil {
		span.SetAttributes(
			attribute.Int64("segment.rotate.old_sequence", int64(oldSequence)),
			attribute.Int64("segment.rotate.new_sequence", int64(w.active.sequence)),
		)
	}
	if w.hookManager != nil {
		w.hookManager.Trigger(context.Background(), hooks.NewPostSegmentRotateEvent(hooks.PostSegmentRotatePayload{
			OldSequence: oldSequence,
			NewSequence: w.active.sequence,
			NewPath:     w.active.path,
		}))
	}
	return nil
}

// closeFileLocked flushes buffered bytes, syncs and closes the active file,
// then strips the in-progress marker. A failed rename is reported as a
// warning only; the file stays usable under its in-progress name.
func (w *Writer) closeFileLocked() (core.SegmentFile, error) {
	f := w.active
	if err := f.writer.Flush(); err != nil {
		return core.SegmentFile{}, &core.WriteError{Op: "flush", Path: f.path, Err: err}
	}
	if err := f.file.Sync(); err != nil {
		return core.SegmentFile{}, &core.WriteError{Op: "sync", Path: f.path, Err: err}
	}
	if err := f.file.Close(); err != nil {
		return core.SegmentFile{}, &core.WriteError{Op: "close", Path: f.path, Err: err}
	}

	finalPath := f.path
	if f.path != f.durable {
		if err := sys.Rename(f.path, f.durable); err != nil {
			w.logger.Warn("Could not rename segment file to its durable name", "from", f.path, "to", f.durable, "error", err)
		} else {
			finalPath = f.durable
		}
	}

	var size int64
	if fi, err := sys.Stat(finalPath); err == nil {
		size = fi.Size()
	}

	sf := core.SegmentFile{
		Path:      finalPath,
		Sequence:  f.sequence,
		Size:      size,
		Blocklets: f.written,
	}
	if w.hookManager != nil {
		w.hookManager.Trigger(context.Background(), hooks.NewPostFileFinalizeEvent(hooks.FileFinalizePayload{
			Table:     w.opts.TableName,
			Sequence:  sf.Sequence,
			Path:      sf.Path,
			Size:      sf.Size,
			Blocklets: sf.Blocklets,
		}))
	}
	return sf, nil
}

// Close flushes the footer if it has not been written for the current file,
// closes the stream and finalizes the file. It returns a handle to the
// closed file for downstream registration or compaction. Closing a writer
// that never opened a channel is a no-op.
func (w *Writer) Close() (core.SegmentFile, error) {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(context.Background(), "SegmentWriter.Close")
		defer span.End()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateChannelOpen {
		w.state = stateClosed
		return w.lastClosed, nil
	}

	if err := w.flushFooterLocked(); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return core.SegmentFile{}, err
	}

	sf, err := w.closeFileLocked()
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return core.SegmentFile{}, err
	}

	w.active = nil
	w.state = stateClosed
	w.lastClosed = sf
	if span != nil {
		span.SetAttributes(attribute.String("segment.final_path", sf.Path))
	}
	w.logger.Info("Segment writer closed", "path", sf.Path, "blocklets", sf.Blocklets, "size", sf.Size)
	return sf, nil
}

// BlockletCount returns the number of records accumulated for the current
// file and not yet flushed to the footer.
func (w *Writer) BlockletCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return 0
	}
	return len(w.active.blocklets)
}

// FileCount returns the next sequence number the writer will assign.
func (w *Writer) FileCount() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileCount
}

// SetFileCount overrides the next sequence number and suppresses the
// directory scan, for callers coordinating numbering externally.
func (w *Writer) SetFileCount(n uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fileCount = n
	w.seqSeeded = true
}

// Path returns the on-disk path of the file currently being written, or of
// the last closed file once the writer is closed.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != nil {
		return w.active.path
	}
	return w.lastClosed.Path
}
