package sink

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultAsyncLimit is the number of frames Async encodes concurrently.
const DefaultAsyncLimit = 2

// Async writes frames to another sink on background goroutines.
//
// WriteFrame copies the frame and returns as soon as a writer is free, so the
// scheduler can start on the next frame while the previous one is encoded.
// At most limit frames are being written at once. The first write error is
// returned as a *FrameError by the next WriteFrame, Flush or Close; frames
// accepted after the failure are dropped and every later call fails with the
// same error.
//
// Frames may reach the wrapped sink out of order when limit > 1.
//
// WriteFrame, Flush and Close must not be called concurrently.
type Async struct {
	next  Sink
	limit int

	mu     sync.Mutex
	g      *errgroup.Group
	ctx    context.Context
	closed bool
}

// NewAsync wraps next. limit <= 0 selects DefaultAsyncLimit.
func NewAsync(next Sink, limit int) *Async {
	if limit <= 0 {
		limit = DefaultAsyncLimit
	}
	a := &Async{next: next, limit: limit}
	a.reset()
	return a
}

func (a *Async) reset() {
	a.g, a.ctx = errgroup.WithContext(context.Background())
	a.g.SetLimit(a.limit)
}

// WriteFrame implements Sink.
func (a *Async) WriteFrame(ctx context.Context, f Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if a.ctx.Err() != nil {
		return a.g.Wait()
	}

	f = f.Clone()
	wctx := context.WithoutCancel(ctx)
	gctx := a.ctx
	a.g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		if err := a.next.WriteFrame(wctx, f); err != nil {
			var fe *FrameError
			if errors.As(err, &fe) {
				return err
			}
			return &FrameError{Index: f.Index, Err: err}
		}
		return nil
	})
	return nil
}

// Flush implements Flusher. It waits for every accepted frame regardless of
// ctx. After a successful
// Flush the sink keeps accepting frames; after a failed one it stays failed.
func (a *Async) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if err := a.g.Wait(); err != nil {
		return err
	}
	a.reset()
	return Flush(ctx, a.next)
}

// Close waits for pending writes, then closes the wrapped sink.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	g := a.g
	a.mu.Unlock()

	err := g.Wait()
	if cerr := a.next.Close(); err == nil {
		err = cerr
	}
	return err
}
