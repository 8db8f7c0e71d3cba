// Package job builds the ordered stream of tile-render jobs for a range of
// frames.
//
// Jobs are emitted frame-major and tile-minor: every tile of frame n comes
// before any tile of frame n+1, and tiles within a frame follow the planner's
// row-major order.
package job

import (
	"fmt"
	"iter"

	"github.com/gogpu/tilerender/tile"
)

// Job is one tile of one frame.
type Job struct {
	// Origin is the top-left corner of the tile in frame pixel space.
	Origin tile.Origin

	// Time is the animation timestamp of the frame: rate * Frame.
	Time float64

	// Frame is the index of the output frame this tile belongs to.
	Frame int

	// Index is the position of the tile within its frame, in planner order.
	Index int
}

// String returns a short description used in logs and errors.
func (j Job) String() string {
	return fmt.Sprintf("frame %d tile %d at %s", j.Frame, j.Index, j.Origin)
}

// Range is the contiguous frame range [First, First+Count).
type Range struct {
	First int
	Count int
}

// Last returns the index of the last frame in the range, or First-1 when the
// range is empty.
func (r Range) Last() int {
	return r.First + r.Count - 1
}

// Contains reports whether frame lies inside the range.
func (r Range) Contains(frame int) bool {
	return frame >= r.First && frame < r.First+r.Count
}

// Build returns every job for the frame range, eagerly.
// The result holds frames.Count * layout.Len() jobs.
func Build(frames Range, layout *tile.Layout, rate float64) []Job {
	if frames.Count <= 0 || layout == nil {
		return nil
	}
	jobs := make([]Job, 0, frames.Count*layout.Len())
	for j := range Seq(frames, layout, rate) {
		jobs = append(jobs, j)
	}
	return jobs
}

// Seq returns the jobs for the frame range lazily, in the same order Build
// produces them.
func Seq(frames Range, layout *tile.Layout, rate float64) iter.Seq[Job] {
	return func(yield func(Job) bool) {
		if layout == nil {
			return
		}
		for frame := frames.First; frame < frames.First+frames.Count; frame++ {
			t := rate * float64(frame)
			for i, o := range layout.Origins() {
				if !yield(Job{Origin: o, Time: t, Frame: frame, Index: i}) {
					return
				}
			}
		}
	}
}
