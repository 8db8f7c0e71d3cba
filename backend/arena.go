// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Slot is an acquired arena slot together with the ticket of the submission
// that occupies it.
type Slot struct {
	// Index is the slot's position in the arena, in [0, Size()).
	Index int

	// Ticket identifies the submission using the slot.
	Ticket Ticket
}

// Arena is a fixed set of slots handed out to submissions.
//
// Free slots are kept on a free-list; acquired slots are kept in a FIFO in
// acquisition order, which is also the order results must be delivered in.
// When every slot is in flight Acquire blocks until Release returns one or the
// context is done, so pool exhaustion is backpressure rather than an error.
//
// Thread safety: Arena is safe for concurrent use. Acquire may block while
// another goroutine calls Release.
type Arena struct {
	sem *semaphore.Weighted

	mu       sync.Mutex
	free     []int
	inflight []Slot
	next     Ticket
	size     int
}

// NewArena creates an arena with n slots. Values of n below 1 are treated as 1.
func NewArena(n int) *Arena {
	n = max(n, 1)
	a := &Arena{
		sem:      semaphore.NewWeighted(int64(n)),
		free:     make([]int, n),
		inflight: make([]Slot, 0, n),
		next:     1,
		size:     n,
	}
	// Slot 0 is handed out first.
	for i := range n {
		a.free[i] = n - 1 - i
	}
	return a
}

// Size returns the number of slots.
func (a *Arena) Size() int {
	return a.size
}

// Acquire takes a free slot and assigns it the next ticket, blocking while
// every slot is in flight.
func (a *Arena) Acquire(ctx context.Context) (Slot, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return Slot{}, fmt.Errorf("backend: waiting for a free slot: %w", err)
	}
	return a.take(), nil
}

// TryAcquire is like Acquire but reports false instead of blocking.
func (a *Arena) TryAcquire() (Slot, bool) {
	if !a.sem.TryAcquire(1) {
		return Slot{}, false
	}
	return a.take(), true
}

func (a *Arena) take() Slot {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	s := Slot{Index: idx, Ticket: a.next}
	a.next++
	a.inflight = append(a.inflight, s)
	return s
}

// Cancel returns the most recently acquired slot to the free-list without
// it ever being retrieved. Backends call it when a submission fails after
// its slot was acquired.
func (a *Arena) Cancel(s Slot) error {
	a.mu.Lock()
	n := len(a.inflight)
	if n == 0 || a.inflight[n-1] != s {
		a.mu.Unlock()
		return fmt.Errorf("%w: cancel of slot %d %s which is not the newest", ErrOutOfOrder, s.Index, s.Ticket)
	}
	a.inflight = a.inflight[:n-1]
	a.free = append(a.free, s.Index)
	a.mu.Unlock()

	a.sem.Release(1)
	return nil
}

// Oldest returns the slot whose result must be delivered next.
func (a *Arena) Oldest() (Slot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inflight) == 0 {
		return Slot{}, false
	}
	return a.inflight[0], true
}

// Release returns the oldest in-flight slot to the free-list. It fails with
// ErrOutOfOrder if s is not the oldest, leaving the arena unchanged.
func (a *Arena) Release(s Slot) error {
	a.mu.Lock()
	if len(a.inflight) == 0 || a.inflight[0] != s {
		a.mu.Unlock()
		return fmt.Errorf("%w: release of slot %d %s", ErrOutOfOrder, s.Index, s.Ticket)
	}
	a.inflight = a.inflight[1:]
	a.free = append(a.free, s.Index)
	a.mu.Unlock()

	a.sem.Release(1)
	return nil
}

// InFlight returns the number of acquired slots.
func (a *Arena) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inflight)
}

// Pending returns a copy of the in-flight slots, oldest first.
func (a *Arena) Pending() []Slot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Slot(nil), a.inflight...)
}
