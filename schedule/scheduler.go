// Package schedule drives the tile pipeline: it keeps up to L tiles in flight
// on a backend, composites results into the open frame in submission order,
// and hands each finished frame to a sink.
//
// The scheduler runs on a single goroutine. Parallelism comes from the
// backend, which renders the in-flight tiles while the scheduler waits on the
// oldest one.
//
// Main loop:
//
//  1. Prime: submit jobs until L are in flight or none are pending.
//  2. Pop the oldest submitted job.
//  3. If it belongs to a new frame, write the open frame and open a fresh one.
//  4. Retrieve its tile, check the ticket, composite it.
//  5. If jobs are pending, submit the next one.
//
// When the window drains the last open frame is written and the sink is
// flushed. Any error is fatal:
// the open frame is discarded and no further jobs are submitted.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/job"
	"github.com/gogpu/tilerender/sink"
	"github.com/gogpu/tilerender/tile"
)

// Config describes the work of one run.
type Config struct {
	// Layout is the tiling of every frame.
	Layout *tile.Layout

	// Frames is the range of frames to render.
	Frames job.Range

	// Rate is the animation time step per frame.
	Rate float64

	// Lookahead is the window depth L. Zero means the backend's Depth.
	// It must not exceed the backend's Depth.
	Lookahead int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithObserver installs an observer for scheduler events.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithBufferPool shares a frame buffer pool between schedulers.
func WithBufferPool(p *BufferPool) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.pool = p
		}
	}
}

// WithLogger logs this scheduler's events to l instead of the package
// logger set by SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler renders a frame range through a backend into a sink.
//
// A Scheduler is not safe for concurrent use. Run may be called more than
// once; each call renders the full range again.
type Scheduler struct {
	cfg       Config
	lookahead int
	backend   backend.Backend
	sink      sink.Sink
	observer  Observer
	pool      *BufferPool
	log       *slog.Logger
}

// New validates cfg against the backend and returns a scheduler.
func New(cfg Config, b backend.Backend, s sink.Sink, opts ...Option) (*Scheduler, error) {
	if cfg.Layout == nil {
		return nil, NewError(InvalidTileGeometry, fmt.Errorf("%w: no layout", tile.ErrInvalidGeometry))
	}
	if b == nil || s == nil {
		return nil, NewError(InvalidConfig, fmt.Errorf("schedule: nil backend or sink"))
	}
	if got, want := b.TileSize(), cfg.Layout.TileSize(); got != want {
		return nil, NewError(InvalidTileGeometry,
			fmt.Errorf("%w: backend renders %s tiles, layout uses %s", tile.ErrInvalidGeometry, got, want))
	}
	if cfg.Frames.Count < 0 {
		return nil, NewError(InvalidConfig, fmt.Errorf("schedule: negative frame count %d", cfg.Frames.Count))
	}

	lookahead := cfg.Lookahead
	if lookahead == 0 {
		lookahead = b.Depth()
	}
	if lookahead < 1 || lookahead > b.Depth() {
		return nil, NewError(InvalidConfig,
			fmt.Errorf("schedule: lookahead %d outside [1, %d] (backend depth)", lookahead, b.Depth()))
	}

	sc := &Scheduler{
		cfg:       cfg,
		lookahead: lookahead,
		backend:   b,
		sink:      s,
		observer:  ObserverFuncs{},
		pool:      NewBufferPool(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Lookahead returns the window depth L in use.
func (s *Scheduler) Lookahead() int {
	return s.lookahead
}

func (s *Scheduler) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slogger()
}

// Total returns the number of jobs a run submits.
func (s *Scheduler) Total() int {
	return s.cfg.Frames.Count * s.cfg.Layout.Len()
}

// run holds the state of one Run call.
type run struct {
	*Scheduler
	queue     *job.Queue
	win       *window
	frame     openFrame
	stats     Stats
	lastFrame time.Time
}

// Run renders every frame in the configured range. It returns when all frames
// have been written, on the first error, or when ctx is done.
//
// On error the returned Stats describe the work done before the failure.
func (s *Scheduler) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	r := &run{
		Scheduler: s,
		queue:     job.NewQueue(job.Seq(s.cfg.Frames, s.cfg.Layout, s.cfg.Rate), s.Total()),
		win:       newWindow(s.lookahead),
		lastFrame: start,
	}
	defer r.queue.Close()

	r.logger().Debug("schedule: run started",
		"frames", s.cfg.Frames.Count,
		"first", s.cfg.Frames.First,
		"tiles", s.cfg.Layout.Len(),
		"lookahead", s.lookahead)

	err := r.loop(ctx)
	if err != nil && r.frame.isOpen() {
		r.logger().Debug("schedule: discarding open frame", "frame", r.frame.index, "tiles", r.frame.tiles)
		s.pool.Put(r.frame.discard())
	}
	r.stats.Duration = time.Since(start)
	if err != nil {
		return r.stats, err
	}

	r.logger().Info("schedule: run finished",
		"frames", r.stats.FramesWritten,
		"tiles", r.stats.Retrieved,
		"duration", r.stats.Duration)
	return r.stats, nil
}

func (r *run) loop(ctx context.Context) error {
	for r.win.len() < r.lookahead {
		j, ok := r.queue.Next()
		if !ok {
			break
		}
		if err := r.submit(ctx, j); err != nil {
			return err
		}
	}

	for r.win.len() > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("schedule: run cancelled: %w", err)
		}

		s, _ := r.win.pop()

		if r.frame.isOpen() && r.frame.index != s.job.Frame {
			if err := r.writeFrame(ctx); err != nil {
				return err
			}
		}
		if !r.frame.isOpen() {
			size := r.cfg.Layout.ImageSize()
			if err := r.frame.open(s.job.Frame, size, r.pool.Get(size)); err != nil {
				return jobError(InvalidConfig, s.job, err)
			}
		}

		if err := r.retrieve(ctx, s); err != nil {
			return err
		}

		if j, ok := r.queue.Next(); ok {
			if err := r.submit(ctx, j); err != nil {
				return err
			}
		}
	}

	if r.frame.isOpen() {
		if err := r.writeFrame(ctx); err != nil {
			return err
		}
	}
	if err := sink.Flush(ctx, r.sink); err != nil {
		return r.outputError(r.cfg.Frames.Last(), err)
	}
	return nil
}

func (r *run) submit(ctx context.Context, j job.Job) error {
	t, err := r.backend.Submit(ctx, backend.Request{Origin: j.Origin, Time: j.Time})
	if err != nil {
		return jobError(BackendSubmitFailed, j, err)
	}
	r.win.push(submitted{job: j, ticket: t})
	r.stats.Submitted++
	r.stats.MaxDepth = max(r.stats.MaxDepth, r.win.len())

	if l := r.logger(); l.Enabled(ctx, slog.LevelDebug) {
		l.Debug("schedule: submitted", "job", j.String(), "ticket", t, "depth", r.win.len())
	}
	r.observer.OnSubmit(j, t)
	return nil
}

func (r *run) retrieve(ctx context.Context, s submitted) error {
	res, err := r.backend.Retrieve(ctx)
	if err != nil {
		return jobError(BackendRetrieveFailed, s.job, err)
	}
	if res.Ticket != s.ticket {
		return jobError(BackendRetrieveFailed, s.job,
			fmt.Errorf("%w: got %s, want %s", backend.ErrOutOfOrder, res.Ticket, s.ticket))
	}

	err = tile.Blit(res.Pixels, r.frame.pix, s.job.Origin, r.frame.size, res.Size)
	if err != nil {
		return jobError(InvalidTileGeometry, s.job, err)
	}
	r.frame.tiles++
	r.stats.Retrieved++
	r.observer.OnRetrieve(s.job, s.ticket)
	return nil
}

// writeFrame hands the open frame to the sink and returns its buffer to the
// pool once the sink is done with it.
func (r *run) writeFrame(ctx context.Context) error {
	opened := r.frame.opened
	f := r.frame.finish()
	err := r.sink.WriteFrame(ctx, f)
	r.pool.Put(f.Pix)
	if err != nil {
		return r.outputError(f.Index, err)
	}

	now := time.Now()
	r.stats.FramesWritten++
	ev := FrameEvent{
		Index:     f.Index,
		Written:   r.stats.FramesWritten,
		Total:     r.cfg.Frames.Count,
		Elapsed:   now.Sub(r.lastFrame),
		Assembled: now.Sub(opened),
	}
	r.lastFrame = now

	r.logger().Info("schedule: frame written", "frame", f.Index, "elapsed", ev.Elapsed, "assembled", ev.Assembled)
	r.observer.OnFrame(ev)
	return nil
}

// outputError reports a sink failure. A buffering sink may fail on a frame it
// accepted earlier; the error then names that frame and the frames from it on
// no longer count as written.
func (r *run) outputError(frame int, err error) error {
	var fe *sink.FrameError
	if errors.As(err, &fe) && r.cfg.Frames.Contains(fe.Index) {
		frame = fe.Index
		r.stats.FramesWritten = min(r.stats.FramesWritten, frame-r.cfg.Frames.First)
	}
	r.logger().Warn("schedule: frame write failed", "frame", frame, "error", err)
	return frameError(OutputWriteFailed, frame, err)
}
