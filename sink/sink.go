// Package sink provides the destinations finished frames are written to.
//
// The scheduler hands each frame to its sink exactly once, in ascending frame
// order, from its control goroutine. The frame's pixel slice is only
// borrowed: sinks that need the data after WriteFrame returns must copy it.
//
// Sinks compose. Async moves encoding off the control goroutine; with a limit
// above 1 the sink it wraps sees every frame once but not necessarily in
// order. Manifest records every written frame in SQLite and Multi fans out to
// several sinks.
//
// A sink that accepts frames before they are written implements Flusher. The
// scheduler flushes its sink after the last frame, so a deferred write
// failure still fails the run.
package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/gogpu/tilerender/tile"
)

// ErrClosed is returned by WriteFrame after Close.
var ErrClosed = errors.New("sink: closed")

// ErrBadFrame is returned for a frame whose pixel data does not match its size.
var ErrBadFrame = errors.New("sink: pixel data does not match frame size")

// Frame is one finished output frame.
type Frame struct {
	// Index is the frame number.
	Index int

	// Width and Height are the frame size in pixels.
	Width, Height int

	// Pix holds Width*Height packed RGB pixels, row-major.
	Pix []byte
}

// Size returns the frame size.
func (f Frame) Size() tile.Size {
	return tile.Size{Width: f.Width, Height: f.Height}
}

// Validate checks that Pix holds exactly one frame.
func (f Frame) Validate() error {
	if !f.Size().Valid() || len(f.Pix) != f.Size().ByteSize() {
		return fmt.Errorf("%w: frame %d is %dx%d with %d bytes", ErrBadFrame, f.Index, f.Width, f.Height, len(f.Pix))
	}
	return nil
}

// Clone returns a copy of f that owns its pixel data.
func (f Frame) Clone() Frame {
	f.Pix = slices.Clone(f.Pix)
	return f
}

// Image converts the frame to an opaque *image.NRGBA for encoding.
func (f Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j+0] = f.Pix[i+0]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// Sink consumes finished frames.
type Sink interface {
	// WriteFrame writes one frame. It must not retain f.Pix after returning.
	WriteFrame(ctx context.Context, f Frame) error

	// Close flushes pending output and releases resources.
	Close() error
}

// Flusher is implemented by sinks that buffer frames.
type Flusher interface {
	// Flush blocks until every frame accepted so far has been written and
	// returns the first write error. The error is a *FrameError when the
	// failed frame is known.
	Flush(ctx context.Context) error
}

// Flush flushes s if it implements Flusher.
func Flush(ctx context.Context, s Sink) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// FrameError reports a write failure of a frame other than the one being
// handed over, such as a frame Async accepted earlier.
type FrameError struct {
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("sink: write frame %d: %v", e.Index, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Memory keeps a private copy of every frame written to it.
//
// Thread safety: Memory is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// WriteFrame implements Sink.
func (m *Memory) WriteFrame(_ context.Context, f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.frames = append(m.frames, f.Clone())
	return nil
}

// Frames returns the frames written so far, in write order.
func (m *Memory) Frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.frames)
}

// Close implements Sink. The stored frames remain readable.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Multi writes every frame to each sink in order.
type Multi []Sink

// WriteFrame implements Sink. It stops at the first failing sink.
func (m Multi) WriteFrame(ctx context.Context, f Frame) error {
	for _, s := range m {
		if err := s.WriteFrame(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements Flusher. It flushes every sink that buffers and stops at
// the first error.
func (m Multi) Flush(ctx context.Context) error {
	for _, s := range m {
		if err := Flush(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to the Sink interface. Close is a no-op.
type Func func(ctx context.Context, f Frame) error

// WriteFrame implements Sink.
func (fn Func) WriteFrame(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Close implements Sink.
func (Func) Close() error { return nil }
