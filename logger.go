package tilerender

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/schedule"
	"github.com/gogpu/tilerender/sink"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for tilerender and all its sub-packages.
// By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by tilerender:
//   - [slog.LevelDebug]: per-tile events (submit, retrieve) and run setup
//   - [slog.LevelInfo]: lifecycle events (adapter selected, frame written)
//   - [slog.LevelWarn]: non-fatal issues (resource release errors)
//
// Example:
//
//	tilerender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	backend.SetLogger(l)
	schedule.SetLogger(l)
	sink.SetLogger(l)
}

// Logger returns the current logger used by tilerender.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
