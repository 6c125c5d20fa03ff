package sys

import (
	"os"
)

var _ FileHandle = (*RealFile)(nil)

// RealFile is the default FileHandle, backed by an *os.File.
type RealFile struct {
	f *os.File
}

func (df *RealFile) Write(p []byte) (n int, err error) {
	return df.f.Write(p)
}

func (df *RealFile) Read(p []byte) (n int, err error) {
	return df.f.Read(p)
}

func (df *RealFile) ReadAt(p []byte, off int64) (n int, err error) {
	return df.f.ReadAt(p, off)
}

func (df *RealFile) Seek(offset int64, whence int) (int64, error) {
	return df.f.Seek(offset, whence)
}

func (df *RealFile) Stat() (os.FileInfo, error) {
	return df.f.Stat()
}

func (df *RealFile) Sync() error {
	return df.f.Sync()
}

func (df *RealFile) Name() string {
	return df.f.Name()
}

func (df *RealFile) Close() error {
	return df.f.Close()
}

var _ File = (*osFile)(nil)

// osFile is the default File implementation, delegating to the os package.
type osFile struct{}

// NewFile returns the platform File implementation.
func NewFile() File {
	return &osFile{}
}

func (osFile) OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &RealFile{f: f}, nil
}

func (osFile) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (osFile) Remove(name string) error {
	return os.Remove(name)
}

func (osFile) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

func (osFile) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}
