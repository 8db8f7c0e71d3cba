package tilerender

import (
	"log/slog"

	"github.com/gogpu/tilerender/schedule"
)

// Option configures a Render call.
//
// Example:
//
//	counter := progress.New(os.Stderr)
//	stats, err := tilerender.Render(ctx, cfg, b, s, tilerender.WithObserver(counter))
type Option func(*renderOptions)

type renderOptions struct {
	logger    *slog.Logger
	observers schedule.Observers
	pool      *schedule.BufferPool
}

// WithLogger logs this render to l instead of the logger set by SetLogger.
// Backends and sinks keep using the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *renderOptions) {
		o.logger = l
	}
}

// WithObserver adds an observer for scheduler events. It may be given more
// than once; observers are called in order.
func WithObserver(obs schedule.Observer) Option {
	return func(o *renderOptions) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithBufferPool reuses frame buffers from p, for example across several
// Render calls with the same frame size.
func WithBufferPool(p *schedule.BufferPool) Option {
	return func(o *renderOptions) {
		o.pool = p
	}
}

func (o *renderOptions) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return Logger()
}
