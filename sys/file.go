package sys

import (
	"io"
	"os"
	"sync/atomic"
)

// fileWrapper is a stable concrete type used to store the File interface
// inside an atomic.Value. atomic.Value requires that all stored values have
// the same concrete type; wrapping the File interface in this small struct
// ensures we can swap different File implementations safely.
type fileWrapper struct {
	f File
}

// defaultFile stores the current File implementation wrapped in a concrete
// fileWrapper so atomic.Value always sees the same concrete type.
var defaultFile atomic.Value // stores fileWrapper

// File abstracts the file-system operations the store needs. Swapping the
// default implementation lets tests inject open, rename or listing failures
// without touching the real file system.
type File interface {
	OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	ReadDir(name string) ([]os.DirEntry, error)
	Stat(name string) (os.FileInfo, error)
}

// FileHandle is the per-file surface used by segment writers and readers.
type FileHandle interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker

	Stat() (os.FileInfo, error)
	Sync() error
	Name() string
}

type CreateHandler func(name string) (FileHandle, error)
type OpenHandler func(name string) (FileHandle, error)
type OpenFileHandler func(name string, flag int, perm os.FileMode) (FileHandle, error)
type RenameHandler func(oldpath, newpath string) error
type RemoveHandler func(name string) error
type ReadDirHandler func(name string) ([]os.DirEntry, error)
type StatHandler func(name string) (os.FileInfo, error)

func init() {
	defaultFile.Store(fileWrapper{f: NewFile()})
}

// SetDefaultFile swaps the File implementation used by the package-level
// handlers. Intended for tests.
func SetDefaultFile(file File) {
	defaultFile.Store(fileWrapper{f: file})
}

func current() (File, error) {
	p := defaultFile.Load()
	if p == nil {
		return nil, os.ErrInvalid
	}
	fw, ok := p.(fileWrapper)
	if !ok || fw.f == nil {
		return nil, os.ErrInvalid
	}
	return fw.f, nil
}

var Create CreateHandler = (func(name string) (FileHandle, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
})

var Open OpenHandler = (func(name string) (FileHandle, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	return f.OpenFile(name, os.O_RDONLY, 0)
})

var OpenFile OpenFileHandler = (func(name string, flag int, perm os.FileMode) (FileHandle, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	return f.OpenFile(name, flag, perm)
})

var Rename RenameHandler = (func(oldpath, newpath string) error {
	f, err := current()
	if err != nil {
		return err
	}
	return f.Rename(oldpath, newpath)
})

var Remove RemoveHandler = (func(name string) error {
	f, err := current()
	if err != nil {
		return err
	}
	return f.Remove(name)
})

var ReadDir ReadDirHandler = (func(name string) ([]os.DirEntry, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	return f.ReadDir(name)
})

var Stat StatHandler = (func(name string) (os.FileInfo, error) {
	f, err := current()
	if err != nil {
		return nil, err
	}
	return f.Stat(name)
})
