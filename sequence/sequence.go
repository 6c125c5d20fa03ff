package sequence

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/INLOpen/factstore/sys"
)

// Allocator hands out segment file sequence numbers. The writer asks its
// allocator for a number each time it opens a new file, so a shared allocator
// lets several writers of the same table interleave without inferring state
// from directory listings.
type Allocator interface {
	Next() (uint32, error)
}

// counterMagicNumber identifies a sequence counter file.
const counterMagicNumber uint32 = 0x46435351 // "FCSQ"

func counterFileName(table string) string {
	return table + ".seq"
}

// Counter is an Allocator persisted with a write-and-rename update, so a torn
// write can never corrupt the current value. The file stores the next number
// to hand out; numbers already returned by Next are never reissued, even
// across process restarts.
type Counter struct {
	dir   string
	table string

	mu     sync.Mutex
	next   uint32
	loaded bool
}

var _ Allocator = (*Counter)(nil)

// NewCounter creates a counter for the given table, backed by a file in dir.
// The counter file is read lazily on first use.
func NewCounter(dir, table string) *Counter {
	return &Counter{dir: dir, table: table}
}

// Next allocates the next sequence number. The new state is persisted before
// the number is returned.
func (c *Counter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return 0, err
	}
	seq := c.next
	if err := c.persistLocked(seq + 1); err != nil {
		return 0, err
	}
	c.next = seq + 1
	return seq, nil
}

// Set overrides the next number to hand out. Used to seed a counter from an
// existing store directory when migrating from scan-based numbering.
func (c *Counter) Set(next uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.persistLocked(next); err != nil {
		return err
	}
	c.next = next
	c.loaded = true
	return nil
}

func (c *Counter) loadLocked() error {
	if c.loaded {
		return nil
	}
	path := filepath.Join(c.dir, counterFileName(c.table))
	file, err := sys.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No counter file yet means no numbers were handed out.
			c.next = 0
			c.loaded = true
			return nil
		}
		return fmt.Errorf("failed to open sequence counter file: %w", err)
	}
	defer file.Close()

	var magic uint32
	if err := binary.Read(file, binary.BigEndian, &magic); err != nil {
		return fmt.Errorf("failed to read sequence counter magic number: %w", err)
	}
	if magic != counterMagicNumber {
		return fmt.Errorf("invalid sequence counter magic number: got %x, want %x", magic, counterMagicNumber)
	}
	if err := binary.Read(file, binary.BigEndian, &c.next); err != nil {
		return fmt.Errorf("failed to read next sequence number: %w", err)
	}
	c.loaded = true
	return nil
}

// persistLocked atomically writes the counter state using the write-and-rename
// strategy.
func (c *Counter) persistLocked(next uint32) error {
	// 1. Write magic number and state to a temporary file.
	tempPath := filepath.Join(c.dir, counterFileName(c.table)+".tmp")
	file, err := sys.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp sequence counter file: %w", err)
	}
	if err := binary.Write(file, binary.BigEndian, counterMagicNumber); err != nil {
		file.Close()
		return fmt.Errorf("failed to write sequence counter magic number: %w", err)
	}
	if err := binary.Write(file, binary.BigEndian, next); err != nil {
		file.Close()
		return fmt.Errorf("failed to write next sequence number: %w", err)
	}

	// 2. Fsync the temporary file to ensure it's on disk.
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp sequence counter file: %w", err)
	}

	// 3. Close the file BEFORE renaming. This is crucial for Windows compatibility.
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp sequence counter file before rename: %w", err)
	}

	// 4. Atomically rename the temporary file to the final name.
	finalPath := filepath.Join(c.dir, counterFileName(c.table))
	if err := sys.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename temp sequence counter file to final name: %w", err)
	}
	return nil
}
