package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the source or archive path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when the resolved output path exists and
	// overwriting was not requested.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnsupportedFormat is returned when an archive suffix is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrUnsafePath is returned when an archive member would escape the
	// destination directory. Use errors.As with *UnsafePathError for details.
	ErrUnsafePath = errors.New("unsafe member path")

	// ErrIO wraps any underlying read, write or permission error.
	ErrIO = errors.New("i/o failure")

	// ErrPartialExtraction is joined with ErrIO when extraction failed after
	// some members were already written to the destination.
	ErrPartialExtraction = errors.New("partial extraction")

	// ErrInvalidRequest is returned for kind/compression mismatches and
	// unusable source paths.
	ErrInvalidRequest = errors.New("invalid request")
)

// UnsafePathError names the archive member that failed validation.
type UnsafePathError struct {
	Archive string
	Member  string
	Reason  string
}

func (e *UnsafePathError) Error() string {
	if e.Archive == "" {
		return fmt.Sprintf("unsafe member path %q: %s", e.Member, e.Reason)
	}
	return fmt.Sprintf("unsafe member path %q in %s: %s", e.Member, e.Archive, e.Reason)
}

func (e *UnsafePathError) Is(target error) bool {
	return target == ErrUnsafePath
}

func ioError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
