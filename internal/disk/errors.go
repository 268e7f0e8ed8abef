package disk

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a disk error
type ErrorKind int

const (
	// KindValidation indicates a bad argument (size, fit, unit, type, name)
	KindValidation ErrorKind = iota
	// KindNotFound indicates a missing disk, partition or mount
	KindNotFound
	// KindConflict indicates the request clashes with the current layout
	// (duplicate name, table full, second extended partition, no space)
	KindConflict
	// KindIO indicates a failure reading or writing the disk image
	KindIO
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "Validation Error"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	case KindIO:
		return "I/O Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Sentinel errors. Use errors.Is; they are wrapped in *Error.
var (
	ErrNotMounted     = errors.New("partition is not mounted")
	ErrAlreadyMounted = errors.New("partition is already mounted")
	ErrNoSpace        = errors.New("not enough free space")
	ErrDiskNotFound   = errors.New("disk not found")
)

// Error is returned by every Manager operation.
type Error struct {
	Kind ErrorKind // Category of error
	Op   string    // Operation, e.g. "fdisk"
	Path string    // Disk image path, if any
	Err  error     // Underlying error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindIO if err is not a *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindIO
}

func validationErr(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func conflictErr(op, path string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Path: path, Err: err}
}

func notFoundErr(op, path string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Err: err}
}

func ioErr(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}
