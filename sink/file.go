package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// DefaultPattern is the file name pattern used when none is given.
const DefaultPattern = "%i_%f.png"

// FrameDigits is the zero padding width of %f.
const FrameDigits = 5

// ErrUnknownFormat is returned for a file extension with no encoder.
var ErrUnknownFormat = errors.New("sink: unknown image format")

// Encoder writes an image in one file format.
type Encoder func(w io.Writer, img image.Image) error

var encoders = map[string]Encoder{
	".png":  png.Encode,
	".bmp":  bmp.Encode,
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// EncoderFor returns the encoder for a file name's extension.
func EncoderFor(name string) (Encoder, error) {
	ext := strings.ToLower(filepath.Ext(name))
	enc, ok := encoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return enc, nil
}

// ExpandPattern returns the file name for frame index.
//
// %i is replaced with input, %f with the frame index padded to FrameDigits.
// A pattern without %f gets "_%f" inserted before its extension so every
// frame lands in its own file.
func ExpandPattern(pattern, input string, index int) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !strings.Contains(pattern, "%f") {
		ext := filepath.Ext(pattern)
		pattern = strings.TrimSuffix(pattern, ext) + "_%f" + ext
	}
	return strings.NewReplacer(
		"%i", input,
		"%f", fmt.Sprintf("%0*d", FrameDigits, index),
	).Replace(pattern)
}

// File writes every frame to its own image file.
//
// The format is chosen from the pattern's extension: .png, .bmp, .tif or
// .tiff.
type File struct {
	dir     string
	pattern string
	input   string
	encode  Encoder
	closed  bool
}

// NewFile returns a sink writing into dir using pattern. input replaces %i,
// usually the shader name. dir is created if missing.
func NewFile(dir, pattern, input string) (*File, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	enc, err := EncoderFor(pattern)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create output dir: %w", err)
	}
	return &File{dir: dir, pattern: pattern, input: input, encode: enc}, nil
}

// Path returns the file path frame index is written to.
func (s *File) Path(index int) string {
	return filepath.Join(s.dir, ExpandPattern(s.pattern, s.input, index))
}

// WriteFrame implements Sink.
func (s *File) WriteFrame(ctx context.Context, f Frame) error {
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}

	path := s.Path(f.Index)
	if err := writeImage(path, f.Image(), s.encode); err != nil {
		return fmt.Errorf("sink: write frame %d: %w", f.Index, err)
	}
	slogger().Debug("sink: frame file written", "frame", f.Index, "path", path)
	return nil
}

// Close implements Sink.
func (s *File) Close() error {
	s.closed = true
	return nil
}

func writeImage(path string, img image.Image, encode Encoder) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := encode(w, img); err != nil {
		return err
	}
	return w.Flush()
}
