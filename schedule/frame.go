package schedule

import (
	"fmt"
	"time"

	"github.com/gogpu/tilerender/sink"
	"github.com/gogpu/tilerender/tile"
)

// frameState is the state of the scheduler's single frame buffer.
type frameState uint8

const (
	noFrameOpen frameState = iota
	frameOpen
)

func (s frameState) String() string {
	if s == frameOpen {
		return "FrameOpen"
	}
	return "NoFrameOpen"
}

// openFrame is the frame currently being assembled.
//
// Transitions:
//
//	NoFrameOpen --open(n)--> FrameOpen(n)
//	FrameOpen(n) --finish--> NoFrameOpen   (frame handed to the sink)
//	FrameOpen(n) --discard--> NoFrameOpen  (run aborted, frame never written)
type openFrame struct {
	state  frameState
	index  int
	size   tile.Size
	pix    []byte
	tiles  int
	opened time.Time
}

func (f *openFrame) isOpen() bool { return f.state == frameOpen }

// open starts assembling frame index into pix.
func (f *openFrame) open(index int, size tile.Size, pix []byte) error {
	if f.state != noFrameOpen {
		return fmt.Errorf("schedule: open frame %d while frame %d is %s", index, f.index, f.state)
	}
	*f = openFrame{state: frameOpen, index: index, size: size, pix: pix, opened: time.Now()}
	return nil
}

// finish closes the frame and returns it for writing. The caller owns the
// returned pixel buffer.
func (f *openFrame) finish() sink.Frame {
	out := sink.Frame{Index: f.index, Width: f.size.Width, Height: f.size.Height, Pix: f.pix}
	*f = openFrame{}
	return out
}

// discard closes the frame without producing output and returns its buffer.
func (f *openFrame) discard() []byte {
	pix := f.pix
	*f = openFrame{}
	return pix
}
