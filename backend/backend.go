// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend defines the contract between the tile scheduler and a
// render backend, and the fixed slot arena backends use to bound the number
// of tiles in flight.
//
// A backend renders one tile per submission. Submissions are executed
// asynchronously (on a GPU queue or a worker pool) but results are delivered
// strictly in submission order: each call to Retrieve returns the oldest
// outstanding submission. Every submission is identified by a Ticket, which
// Retrieve echoes back so that callers can detect ordering violations instead
// of silently assembling the wrong tile.
//
// Implementations:
//   - backend/cpu: pure Go shader functions evaluated on a worker pool
//   - backend/wgpu: WGSL fragment shaders on a gogpu/wgpu HAL device
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/tilerender/tile"
)

// Backend errors.
var (
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend: closed")

	// ErrNothingInFlight is returned by Retrieve when no submission is outstanding.
	ErrNothingInFlight = errors.New("backend: retrieve without outstanding submission")

	// ErrOutOfOrder is returned when a result does not belong to the oldest
	// outstanding submission.
	ErrOutOfOrder = errors.New("backend: result delivered out of order")

	// ErrTimeout is returned when a result is not ready within the backend's
	// retrieval timeout.
	ErrTimeout = errors.New("backend: timed out waiting for result")
)

// Ticket identifies one submission. Tickets increase by one per submission,
// starting at 1. The zero Ticket is never issued.
type Ticket uint64

// String returns the ticket formatted as "#n".
func (t Ticket) String() string {
	return fmt.Sprintf("#%d", uint64(t))
}

// Request describes one tile to render.
type Request struct {
	// Origin is the tile's top-left corner in frame pixel space.
	Origin tile.Origin

	// Time is the animation timestamp of the frame the tile belongs to.
	Time float64
}

// Result is the rendered pixel data of one submission.
type Result struct {
	// Ticket is the ticket Submit returned for this tile.
	Ticket Ticket

	// Size is the tile size; equal to the backend's TileSize.
	Size tile.Size

	// Pixels holds Size.Width*Size.Height packed RGB pixels. The slice is
	// owned by the backend and is only valid until the next call to Submit.
	Pixels []byte
}

// Backend renders tiles.
//
// Submit enqueues a tile and returns immediately unless all Depth slots are
// in flight, in which case it blocks until a slot is released by Retrieve or
// ctx is done. Retrieve blocks until the oldest outstanding submission has
// finished and returns its pixels; it must be called at most once per Submit.
//
// Backends are driven from a single goroutine and are not safe for
// concurrent use.
type Backend interface {
	// Submit enqueues a tile for rendering.
	Submit(ctx context.Context, req Request) (Ticket, error)

	// Retrieve returns the pixels of the oldest outstanding submission.
	Retrieve(ctx context.Context) (Result, error)

	// Depth returns the number of slots, the maximum number of submissions
	// that may be outstanding at once.
	Depth() int

	// TileSize returns the size of every rendered tile.
	TileSize() tile.Size

	// Close waits for outstanding work and releases all resources.
	Close() error
}

// Scene is the frame-level information every backend needs to render a
// tile: the full frame resolution, used to map tile pixels to frame
// coordinates, and the tile size.
type Scene struct {
	// Resolution is the full frame size.
	Resolution tile.Size

	// Tile is the size of every tile.
	Tile tile.Size
}

// Validate checks that both sizes are positive.
func (s Scene) Validate() error {
	if !s.Resolution.Valid() || !s.Tile.Valid() {
		return fmt.Errorf("%w: resolution %s, tile %s", tile.ErrInvalidGeometry, s.Resolution, s.Tile)
	}
	return nil
}
