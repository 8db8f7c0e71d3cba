// Package tilerender renders large images and image sequences tile by tile.
//
// # Overview
//
// Every frame is split into a grid of equally sized tiles. Tile jobs for all
// frames are submitted to a single render backend ahead of time, up to a
// fixed lookahead, so the backend always has work queued. Finished tiles come
// back in submission order and are composited into the open frame; when the
// first tile of the next frame arrives the open frame is complete and goes to
// the output sink.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/tilerender"
//	    "github.com/gogpu/tilerender/backend"
//	    _ "github.com/gogpu/tilerender/backend/cpu"
//	)
//
//	cfg := tilerender.DefaultConfig()
//	cfg.TileWidth, cfg.TileHeight = 256, 256
//	cfg.Frames = 60
//
//	b, _ := tilerender.OpenBackend(cfg)
//	defer b.Close()
//	s, _ := tilerender.OpenSink(cfg)
//	defer s.Close()
//
//	stats, err := tilerender.Render(ctx, cfg, b, s)
//
// # Packages
//
//   - tile: tile planning and compositing
//   - job: the work queue of tile jobs
//   - schedule: the pipelined scheduler and frame reassembly
//   - backend: the render backend contract, slot arena and registry
//   - backend/cpu, backend/wgpu: CPU and GPU backends
//   - sink: output sinks (image files, async, SQLite manifest, memory)
//   - progress: a terminal progress line
//
// # Coordinate System
//
// Origin (0,0) is the top-left pixel of the frame. X increases right, Y
// increases down. Edge tiles keep the full tile size and overhang the frame;
// the compositor drops the pixels outside it.
//
// # Errors
//
// A failed run returns an *Error carrying an ErrorKind, the frame and the
// tile involved. Use errors.Is with the kind sentinels:
//
//	if errors.Is(err, tilerender.ErrBackendRetrieveFailed) { ... }
package tilerender

// Version is the current version of the library.
const Version = "0.1.0"
