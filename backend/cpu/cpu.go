// Package cpu is a render backend that evaluates Go shader functions on a
// work-stealing worker pool.
//
// Each submitted tile is split into horizontal bands that run on the pool in
// parallel while the caller keeps submitting; Retrieve waits for the oldest
// tile's bands to finish. Results are delivered in submission order.
//
// The backend registers itself as "cpu" with the backend registry:
//
//	import _ "github.com/gogpu/tilerender/backend/cpu"
package cpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/internal/parallel"
	"github.com/gogpu/tilerender/tile"
)

// ErrShaderPanic is returned by Retrieve when the shader panicked while
// rendering the tile.
var ErrShaderPanic = errors.New("cpu: shader panicked")

// ErrUnknownShader is returned when a shader name is not built in.
var ErrUnknownShader = errors.New("cpu: unknown shader")

func init() {
	backend.Register(backend.NameCPU, func(opts backend.Options) (backend.Backend, error) {
		name := opts.Shader
		if name == "" {
			name = DefaultShader
		}
		s, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownShader, name, Names())
		}
		return New(opts.Scene, opts.Depth, WithShader(s))
	})
}

// Option configures a Backend.
type Option func(*Backend)

// WithShader selects the shader. The default is Gradient.
func WithShader(s Shader) Option {
	return func(b *Backend) {
		if s != nil {
			b.shader = s
		}
	}
}

// WithWorkers sets the number of pool workers. Zero means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backend) { b.workers = n }
}

// WithDelay adds a fixed latency to every tile, simulating a slow device.
func WithDelay(d time.Duration) Option {
	return func(b *Backend) { b.delay = d }
}

// WithTimeout bounds how long Retrieve waits for a tile. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.timeout = d }
}

// submission tracks one tile being rendered into a slot.
type submission struct {
	done chan struct{}
	once sync.Once
	err  error
}

func (s *submission) fail(err error) {
	s.once.Do(func() { s.err = err })
}

// Backend renders tiles on the CPU.
type Backend struct {
	scene   backend.Scene
	shader  Shader
	workers int
	delay   time.Duration
	timeout time.Duration

	arena *backend.Arena
	pool  *parallel.Pool
	pix   [][]byte
	subs  []*submission

	closed bool
}

var _ backend.Backend = (*Backend)(nil)

// New creates a CPU backend with depth slots for the given scene.
func New(scene backend.Scene, depth int, opts ...Option) (*Backend, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{
		scene:  scene,
		shader: Gradient,
		arena:  backend.NewArena(depth),
	}
	for _, opt := range opts {
		opt(b)
	}

	n := b.arena.Size()
	b.pix = make([][]byte, n)
	b.subs = make([]*submission, n)
	for i := range n {
		b.pix[i] = make([]byte, scene.Tile.ByteSize())
	}
	b.pool = parallel.NewPool(b.workers)

	backend.Logger().Info("cpu: backend ready",
		"tile", scene.Tile.String(),
		"resolution", scene.Resolution.String(),
		"slots", n,
		"workers", b.pool.Workers())
	return b, nil
}

// Depth implements backend.Backend.
func (b *Backend) Depth() int { return b.arena.Size() }

// TileSize implements backend.Backend.
func (b *Backend) TileSize() tile.Size { return b.scene.Tile }

// Submit implements backend.Backend.
func (b *Backend) Submit(ctx context.Context, req backend.Request) (backend.Ticket, error) {
	if b.closed {
		return 0, backend.ErrClosed
	}
	slot, err := b.arena.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	sub := &submission{done: make(chan struct{})}
	b.subs[slot.Index] = sub
	pix := b.pix[slot.Index]

	th := b.scene.Tile.Height
	bands := min(th, 2*b.pool.Workers())
	rowsPer := (th + bands - 1) / bands

	ok := b.pool.Split(bands, func(i int) {
		defer func() {
			if r := recover(); r != nil {
				sub.fail(fmt.Errorf("%w: %v", ErrShaderPanic, r))
			}
		}()
		if i == 0 && b.delay > 0 {
			time.Sleep(b.delay)
		}
		y0 := i * rowsPer
		b.shade(pix, req, y0, min(y0+rowsPer, th))
	}, func() { close(sub.done) })
	if !ok {
		_ = b.arena.Cancel(slot)
		return 0, backend.ErrClosed
	}
	return slot.Ticket, nil
}

// shade renders rows [y0, y1) of the tile at req.Origin into pix.
func (b *Backend) shade(pix []byte, req backend.Request, y0, y1 int) {
	ts := b.scene.Tile
	res := b.scene.Resolution
	stride := ts.Stride()
	for ty := y0; ty < y1; ty++ {
		fy := float64(req.Origin.Y+ty) + 0.5
		row := pix[ty*stride : (ty+1)*stride]
		for tx := range ts.Width {
			fx := float64(req.Origin.X+tx) + 0.5
			r, g, bl := b.shader(fx, fy, res, req.Time)
			row[tx*3+0] = r
			row[tx*3+1] = g
			row[tx*3+2] = bl
		}
	}
}

// Retrieve implements backend.Backend.
func (b *Backend) Retrieve(ctx context.Context) (backend.Result, error) {
	if b.closed {
		return backend.Result{}, backend.ErrClosed
	}
	slot, ok := b.arena.Oldest()
	if !ok {
		return backend.Result{}, backend.ErrNothingInFlight
	}
	sub := b.subs[slot.Index]

	var timeout <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-sub.done:
	case <-ctx.Done():
		return backend.Result{}, fmt.Errorf("cpu: waiting for tile %s: %w", slot.Ticket, ctx.Err())
	case <-timeout:
		return backend.Result{}, fmt.Errorf("%w: tile %s after %v", backend.ErrTimeout, slot.Ticket, b.timeout)
	}

	if err := b.arena.Release(slot); err != nil {
		return backend.Result{}, err
	}
	b.subs[slot.Index] = nil
	if sub.err != nil {
		return backend.Result{Ticket: slot.Ticket}, sub.err
	}
	return backend.Result{Ticket: slot.Ticket, Size: b.scene.Tile, Pixels: b.pix[slot.Index]}, nil
}

// Close waits for tiles still rendering and stops the worker pool.
// It is safe to call more than once.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	for _, slot := range b.arena.Pending() {
		if sub := b.subs[slot.Index]; sub != nil {
			<-sub.done
		}
	}
	b.pool.Close()
	return nil
}
