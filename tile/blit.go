// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package tile

import "fmt"

// Blit copies the RGB tile src of size srcSize into the RGB frame buffer dst
// of size dstSize, with the tile's top-left corner at origin.
//
// Rows of src that fall below the bottom of dst are skipped, and the part of
// each row that falls past the right edge of dst is discarded. Overhang is
// expected whenever the tile size does not divide the frame size and is not
// an error.
//
// Blit returns an error wrapping ErrInvalidGeometry, without modifying dst, if
// a buffer length does not match its size or if the tile lies entirely
// outside the frame.
func Blit(src, dst []byte, origin Origin, dstSize, srcSize Size) error {
	if err := checkSize("destination", dstSize); err != nil {
		return err
	}
	if err := checkSize("source", srcSize); err != nil {
		return err
	}
	if len(src) != srcSize.ByteSize() {
		return fmt.Errorf("%w: source holds %d bytes, want %d for %s",
			ErrInvalidGeometry, len(src), srcSize.ByteSize(), srcSize)
	}
	if len(dst) != dstSize.ByteSize() {
		return fmt.Errorf("%w: destination holds %d bytes, want %d for %s",
			ErrInvalidGeometry, len(dst), dstSize.ByteSize(), dstSize)
	}
	if origin.X < 0 || origin.Y < 0 || origin.X >= dstSize.Width || origin.Y >= dstSize.Height {
		return fmt.Errorf("%w: tile at %s is outside %s frame", ErrInvalidGeometry, origin, dstSize)
	}

	srcStride := srcSize.Stride()
	dstStride := dstSize.Stride()
	rowBytes := (min(origin.X+srcSize.Width, dstSize.Width) - origin.X) * BytesPerPixel
	rowCount := min(srcSize.Height, dstSize.Height-origin.Y)

	dstOff := origin.Y*dstStride + origin.X*BytesPerPixel
	srcOff := 0
	for range rowCount {
		copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
		dstOff += dstStride
		srcOff += srcStride
	}
	return nil
}

// RGBAToRGB packs the w*h RGBA pixels of src, whose rows are stride bytes
// apart, into dst as tightly packed RGB, dropping alpha. dst must hold at
// least w*h*3 bytes; the number of bytes written is returned.
func RGBAToRGB(dst, src []byte, w, h, stride int) (int, error) {
	if w <= 0 || h <= 0 || stride < w*4 {
		return 0, fmt.Errorf("%w: RGBA readback %dx%d with stride %d", ErrInvalidGeometry, w, h, stride)
	}
	if len(src) < (h-1)*stride+w*4 {
		return 0, fmt.Errorf("%w: RGBA readback holds %d bytes, too short for %dx%d", ErrInvalidGeometry, len(src), w, h)
	}
	if len(dst) < w*h*BytesPerPixel {
		return 0, fmt.Errorf("%w: RGB buffer holds %d bytes, want %d", ErrInvalidGeometry, len(dst), w*h*BytesPerPixel)
	}

	n := 0
	for y := range h {
		row := src[y*stride : y*stride+w*4]
		for x := 0; x < len(row); x += 4 {
			dst[n] = row[x]
			dst[n+1] = row[x+1]
			dst[n+2] = row[x+2]
			n += BytesPerPixel
		}
	}
	return n, nil
}
