package device

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

var (
	// ErrReleased is returned when a buffer or stream is used or released after release.
	ErrReleased = errors.New("device resource already released")
	// ErrOutOfRange is returned when a copy or launch exceeds a buffer's capacity.
	ErrOutOfRange = errors.New("access out of range")
)

// OpError is a failed device operation together with the source location
// that issued it.
type OpError struct {
	Op   string
	File string
	Line int
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed at %s:%d: %v", e.Op, e.File, e.Line, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Check wraps a non-nil err as an *OpError naming op and the caller's file
// and line. A nil err yields nil. An err that is already an *OpError is
// returned unchanged so the innermost location wins.
func Check(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	return &OpError{Op: op, File: filepath.Base(file), Line: line, Err: err}
}

// CheckRange validates a copy of elems values at offset against a buffer of
// capacity length.
func CheckRange(offset, elems, length int) error {
	if offset < 0 || elems < 0 || offset+elems > length {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, offset, offset+elems, length)
	}
	return nil
}
