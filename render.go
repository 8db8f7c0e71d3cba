package tilerender

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/schedule"
	"github.com/gogpu/tilerender/sink"
)

// Stats summarizes a finished render.
type Stats = schedule.Stats

// Render renders cfg's frame range through b into s.
//
// b must render tiles of cfg.TileSize() with a depth of at least
// cfg.Lookahead. Render does not close b or s, but flushes s after the last
// frame when it implements sink.Flusher.
//
// The first error stops the render: the frame being assembled is discarded
// and the returned *Error tells which frame and tile failed. Frames written
// before the failure stay written.
func Render(ctx context.Context, cfg Config, b backend.Backend, s sink.Sink, opts ...Option) (Stats, error) {
	var o renderOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return Stats{}, err
	}

	schedOpts := []schedule.Option{
		schedule.WithLogger(o.log()),
		schedule.WithBufferPool(o.pool),
	}
	if len(o.observers) > 0 {
		schedOpts = append(schedOpts, schedule.WithObserver(o.observers))
	}
	sc, err := schedule.New(schedule.Config{
		Layout:    layout,
		Frames:    cfg.FrameRange(),
		Rate:      cfg.Rate,
		Lookahead: cfg.Lookahead,
	}, b, s, schedOpts...)
	if err != nil {
		return Stats{}, err
	}

	o.log().Info("tilerender: render started",
		"size", cfg.ImageSize(),
		"tile", cfg.TileSize(),
		"tiles_per_frame", layout.Len(),
		"frames", cfg.Frames,
		"lookahead", sc.Lookahead())

	return sc.Run(ctx)
}

// ShaderName returns the name %i expands to: the shader reference without
// directory and extension, or "gradient" when none is set.
func ShaderName(cfg Config) string {
	if cfg.Shader == "" {
		return "gradient"
	}
	base := filepath.Base(cfg.Shader)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OpenBackend opens the backend named by cfg.Backend, or the best available
// one if it is empty. The backend package must be linked in, usually with a
// blank import of backend/cpu or backend/wgpu.
func OpenBackend(cfg Config) (backend.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := backend.Options{Scene: cfg.Scene(), Depth: cfg.Lookahead, Shader: cfg.Shader}
	var (
		b   backend.Backend
		err error
	)
	if cfg.Backend == "" {
		b, err = backend.Default(opts)
	} else {
		b, err = backend.Open(cfg.Backend, opts)
	}
	if err != nil {
		return nil, schedule.NewError(InvalidConfig, err)
	}
	return b, nil
}

// OpenSink builds the output chain for cfg: image files in cfg.Output,
// recorded in cfg.Manifest if set, written in the background if cfg.Async > 0.
func OpenSink(cfg Config) (sink.Sink, error) {
	files, err := sink.NewFile(cfg.Output, cfg.Name, ShaderName(cfg))
	if err != nil {
		return nil, schedule.NewError(InvalidConfig, err)
	}

	var s sink.Sink = files
	if cfg.Manifest != "" {
		m, err := sink.OpenManifest(cfg.Manifest, files)
		if err != nil {
			return nil, schedule.NewError(InvalidConfig, fmt.Errorf("manifest: %w", err))
		}
		s = m
	}
	if cfg.Async > 0 {
		s = sink.NewAsync(s, cfg.Async)
	}
	return s, nil
}
