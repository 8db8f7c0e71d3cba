// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package tile

// Layout is the planned tiling of a frame.
//
// The origins are stored in a flat slice in row-major order, so the tile at
// column tx and row ty has index ty*Columns() + tx, which is also its tile
// index within a frame.
//
// A Layout is immutable once created and safe for concurrent use.
type Layout struct {
	// origins is the planner output, row-major.
	origins []Origin

	// image is the frame size in pixels.
	image Size

	// tile is the size of every tile, including edge tiles.
	tile Size

	// cols and rows are the tile counts along each axis.
	cols, rows int
}

// NewLayout plans the tiling of an image. It returns an error wrapping
// ErrInvalidGeometry if either size is not positive.
func NewLayout(image, tileSize Size) (*Layout, error) {
	origins, err := Plan(image, tileSize)
	if err != nil {
		return nil, err
	}
	return &Layout{
		origins: origins,
		image:   image,
		tile:    tileSize,
		cols:    columns(image, tileSize),
		rows:    rows(image, tileSize),
	}, nil
}

// Len returns the number of tiles per frame.
func (l *Layout) Len() int {
	return len(l.origins)
}

// Origin returns the origin of the tile with the given index.
// It panics if i is out of range, like a slice index.
func (l *Layout) Origin(i int) Origin {
	return l.origins[i]
}

// Origins returns the planned origins. The returned slice must not be modified.
func (l *Layout) Origins() []Origin {
	return l.origins
}

// ImageSize returns the frame size in pixels.
func (l *Layout) ImageSize() Size {
	return l.image
}

// TileSize returns the size of every tile.
func (l *Layout) TileSize() Size {
	return l.tile
}

// Columns returns the number of tiles horizontally.
func (l *Layout) Columns() int {
	return l.cols
}

// Rows returns the number of tiles vertically.
func (l *Layout) Rows() int {
	return l.rows
}

// IndexAt returns the index of the tile containing the frame pixel (px, py),
// or -1 if the pixel is outside the frame.
func (l *Layout) IndexAt(px, py int) int {
	if px < 0 || px >= l.image.Width || py < 0 || py >= l.image.Height {
		return -1
	}
	return (py/l.tile.Height)*l.cols + px/l.tile.Width
}

// Clip returns the in-frame extent of the tile at origin o: the tile size
// reduced for tiles that overhang the right or bottom edge. It returns a zero
// Size for an origin outside the frame.
func (l *Layout) Clip(o Origin) Size {
	if o.X < 0 || o.Y < 0 || o.X >= l.image.Width || o.Y >= l.image.Height {
		return Size{}
	}
	return Size{
		Width:  min(o.X+l.tile.Width, l.image.Width) - o.X,
		Height: min(o.Y+l.tile.Height, l.image.Height) - o.Y,
	}
}
