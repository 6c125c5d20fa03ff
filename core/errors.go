package core

import (
	"errors"
	"fmt"
)

// WriteError is the error type for fatal I/O failures in the segment write
// path. Once a WriteError is returned the current file must be considered
// unusable and discarded by the caller.
type WriteError struct {
	// Op names the failed operation: "open", "append", "footer", "flush",
	// "sync" or "close".
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("segment %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError checks if an error is a WriteError.
func IsWriteError(err error) bool {
	var writeError *WriteError
	// Use errors.As to check if the error (or any error in its chain) is a WriteError.
	return errors.As(err, &writeError)
}
