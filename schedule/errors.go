package schedule

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilerender/job"
)

// ErrorKind classifies a failed run.
type ErrorKind int

// Error kinds. The zero value is not a valid kind.
const (
	// InvalidTileGeometry reports a non-positive image or tile size, or a tile
	// that does not fit the frame it is composited into.
	InvalidTileGeometry ErrorKind = iota + 1

	// BackendSubmitFailed reports that the backend rejected a tile.
	BackendSubmitFailed

	// BackendRetrieveFailed reports that a tile could not be retrieved,
	// including results delivered out of order.
	BackendRetrieveFailed

	// OutputWriteFailed reports that the sink could not write a frame.
	OutputWriteFailed

	// InvalidConfig reports an unusable configuration.
	InvalidConfig
)

// Kind sentinels, matched by errors.Is against any *Error of that kind.
var (
	ErrInvalidTileGeometry   = errors.New("invalid tile geometry")
	ErrBackendSubmitFailed   = errors.New("backend submit failed")
	ErrBackendRetrieveFailed = errors.New("backend retrieve failed")
	ErrOutputWriteFailed     = errors.New("output write failed")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// Sentinel returns the sentinel error for the kind, or nil for an unknown kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case InvalidTileGeometry:
		return ErrInvalidTileGeometry
	case BackendSubmitFailed:
		return ErrBackendSubmitFailed
	case BackendRetrieveFailed:
		return ErrBackendRetrieveFailed
	case OutputWriteFailed:
		return ErrOutputWriteFailed
	case InvalidConfig:
		return ErrInvalidConfig
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.Sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a fatal run failure. Frame and Tile identify the job that failed;
// they are -1 when the failure is not tied to a single job (Tile is -1 for
// frame writes).
type Error struct {
	Kind  ErrorKind
	Frame int
	Tile  int
	Err   error
}

// NewError returns an *Error of the given kind not tied to a job.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Frame: -1, Tile: -1, Err: err}
}

func jobError(kind ErrorKind, j job.Job, err error) *Error {
	return &Error{Kind: kind, Frame: j.Frame, Tile: j.Index, Err: err}
}

func frameError(kind ErrorKind, frame int, err error) *Error {
	return &Error{Kind: kind, Frame: frame, Tile: -1, Err: err}
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Frame >= 0 && e.Tile >= 0:
		where = fmt.Sprintf(" (frame %d, tile %d)", e.Frame, e.Tile)
	case e.Frame >= 0:
		where = fmt.Sprintf(" (frame %d)", e.Frame)
	}
	if e.Err == nil {
		return e.Kind.String() + where
	}
	return e.Kind.String() + where + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.Sentinel()
}
