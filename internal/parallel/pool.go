// Package parallel provides the worker pool the CPU backend renders on.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of goroutines with one queue each. Idle workers steal
// from other queues, so a slow band of one tile does not hold up the bands
// of the next.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// next is the round-robin cursor for Split.
	next atomic.Uint32
}

// NewPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
			continue
		default:
		}

		if fn := p.steal(id); fn != nil {
			fn()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *Pool) steal(id int) func() {
	for i := 1; i < p.workers; i++ {
		select {
		case fn := <-p.queues[(id+i)%p.workers]:
			return fn
		default:
		}
	}
	return nil
}

// enqueue places fn on worker w's queue. It reports false if the pool closed
// before fn was queued.
func (p *Pool) enqueue(w int, fn func()) bool {
	select {
	case p.queues[w] <- fn:
		return true
	case <-p.done:
		return false
	}
}

// Split runs fn(0), ..., fn(n-1) on the pool without waiting and calls done
// exactly once after every index has run. Indices are spread round-robin so
// consecutive calls start on different workers.
//
// If the pool is closed, indices that were not queued are skipped and done
// still fires. Split reports whether every index was queued.
func (p *Pool) Split(n int, fn func(i int), done func()) bool {
	if n <= 0 || !p.running.Load() {
		if done != nil {
			done()
		}
		return n <= 0
	}

	var remaining atomic.Int64
	remaining.Store(int64(n))
	finish := func() {
		if remaining.Add(-1) == 0 && done != nil {
			done()
		}
	}

	start := int(p.next.Add(1))
	for i := range n {
		if !p.enqueue((start+i)%p.workers, func() {
			defer finish()
			fn(i)
		}) {
			for range n - i {
				finish()
			}
			return false
		}
	}
	return true
}

// Do runs fn(0), ..., fn(n-1) on the pool and waits for all of them.
func (p *Pool) Do(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(1)
	p.Split(n, fn, wg.Done)
	wg.Wait()
}

// Go runs fn on the worker with the shortest queue. It reports false if the
// pool is closed.
func (p *Pool) Go(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}
	best := 0
	for i := 1; i < p.workers; i++ {
		if len(p.queues[i]) < len(p.queues[best]) {
			best = i
		}
	}
	return p.enqueue(best, fn)
}

// Close stops accepting work, runs what is queued, and waits for the workers
// to exit. It is safe to call more than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Running reports whether the pool accepts work.
func (p *Pool) Running() bool {
	return p.running.Load()
}
