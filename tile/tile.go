// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package tile provides the geometry used to split a frame into tiles and to
// reassemble tile pixel data into a frame buffer.
//
// Tiles are addressed by their top-left origin in frame pixel space. Origins
// are produced in row-major order (left-to-right within a row, rows from top
// to bottom). Edge tiles are not clipped: when the tile size does not evenly
// divide the frame size, the last tile of a row or column extends past the
// frame boundary and the compositor discards the overhanging pixels.
//
// All pixel data handled by this package is packed 8-bit RGB, row-major,
// without row padding.
package tile

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the size of one packed RGB pixel.
const BytesPerPixel = 3

// ErrInvalidGeometry is returned when a size, origin or buffer does not
// satisfy the planner or compositor preconditions.
var ErrInvalidGeometry = errors.New("tile: invalid geometry")

// Origin is the top-left corner of a tile in frame pixel space.
type Origin struct {
	X, Y int
}

// String returns the origin formatted as "(x,y)".
func (o Origin) String() string {
	return fmt.Sprintf("(%d,%d)", o.X, o.Y)
}

// Size is a width and height in pixels.
type Size struct {
	Width, Height int
}

// String returns the size formatted as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Pixels returns Width * Height.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// ByteSize returns the size in bytes of a packed RGB buffer of this size.
func (s Size) ByteSize() int {
	return s.Width * s.Height * BytesPerPixel
}

// Stride returns the row stride in bytes of a packed RGB buffer of this size.
func (s Size) Stride() int {
	return s.Width * BytesPerPixel
}

func checkSize(what string, s Size) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %s size %s must be positive", ErrInvalidGeometry, what, s)
	}
	return nil
}
