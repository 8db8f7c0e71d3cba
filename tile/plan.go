// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package tile

import "iter"

// Plan returns the origins of the tiles covering an image of the given size.
//
// Origins are produced by stepping y from 0 by tileSize.Height while
// y < image.Height and, for each row, stepping x from 0 by tileSize.Width
// while x < image.Width. Origins are never clipped, so the last tile in a row
// or column may extend past the image boundary.
//
// The result always starts with (0,0) and contains exactly Count(image, tileSize)
// origins. Plan is deterministic and has no side effects.
func Plan(image, tileSize Size) ([]Origin, error) {
	if err := checkSize("image", image); err != nil {
		return nil, err
	}
	if err := checkSize("tile", tileSize); err != nil {
		return nil, err
	}

	origins := make([]Origin, 0, Count(image, tileSize))
	for o := range Origins(image, tileSize) {
		origins = append(origins, o)
	}
	return origins, nil
}

// Origins returns a lazy sequence of the same origins Plan produces.
// The sequence is empty when either size is not positive.
func Origins(image, tileSize Size) iter.Seq[Origin] {
	return func(yield func(Origin) bool) {
		if !image.Valid() || !tileSize.Valid() {
			return
		}
		for y := 0; y < image.Height; y += tileSize.Height {
			for x := 0; x < image.Width; x += tileSize.Width {
				if !yield(Origin{X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// Count returns the number of tiles Plan produces for the given sizes:
// ceil(W/tw) * ceil(H/th). It returns 0 if either size is not positive.
func Count(image, tileSize Size) int {
	if !image.Valid() || !tileSize.Valid() {
		return 0
	}
	return columns(image, tileSize) * rows(image, tileSize)
}

// DefaultSize returns the tile size to use when none is configured.
// A zero dimension takes the image dimension, so an unconfigured tile size
// renders each frame as a single tile.
func DefaultSize(image, tileSize Size) Size {
	if tileSize.Width <= 0 {
		tileSize.Width = image.Width
	}
	if tileSize.Height <= 0 {
		tileSize.Height = image.Height
	}
	return tileSize
}

func columns(image, tileSize Size) int {
	return (image.Width + tileSize.Width - 1) / tileSize.Width
}

func rows(image, tileSize Size) int {
	return (image.Height + tileSize.Height - 1) / tileSize.Height
}
