package schedule

import (
	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/job"
)

// submitted is a job the backend has accepted but not yet returned.
type submitted struct {
	job    job.Job
	ticket backend.Ticket
}

// window is the FIFO of submitted jobs, a fixed ring of capacity L.
// Its order is the order results come back from the backend.
type window struct {
	ring []submitted
	head int
	n    int
}

func newWindow(capacity int) *window {
	return &window{ring: make([]submitted, max(capacity, 1))}
}

func (w *window) len() int { return w.n }

func (w *window) full() bool { return w.n == len(w.ring) }

// push appends s. It reports false if the window is full.
func (w *window) push(s submitted) bool {
	if w.full() {
		return false
	}
	w.ring[(w.head+w.n)%len(w.ring)] = s
	w.n++
	return true
}

// pop removes the oldest entry.
func (w *window) pop() (submitted, bool) {
	if w.n == 0 {
		return submitted{}, false
	}
	s := w.ring[w.head]
	w.ring[w.head] = submitted{}
	w.head = (w.head + 1) % len(w.ring)
	w.n--
	return s, true
}
