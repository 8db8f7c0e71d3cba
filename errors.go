package tilerender

import "github.com/gogpu/tilerender/schedule"

// ErrorKind classifies a failed run.
type ErrorKind = schedule.ErrorKind

// Error is the error returned by a failed Render. Frame and Tile are -1 when
// the failure is not tied to one.
type Error = schedule.Error

// Error kinds.
const (
	InvalidTileGeometry   = schedule.InvalidTileGeometry
	BackendSubmitFailed   = schedule.BackendSubmitFailed
	BackendRetrieveFailed = schedule.BackendRetrieveFailed
	OutputWriteFailed     = schedule.OutputWriteFailed
	InvalidConfig         = schedule.InvalidConfig
)

// Kind sentinels for errors.Is.
var (
	ErrInvalidTileGeometry   = schedule.ErrInvalidTileGeometry
	ErrBackendSubmitFailed   = schedule.ErrBackendSubmitFailed
	ErrBackendRetrieveFailed = schedule.ErrBackendRetrieveFailed
	ErrOutputWriteFailed     = schedule.ErrOutputWriteFailed
	ErrInvalidConfig         = schedule.ErrInvalidConfig
)
