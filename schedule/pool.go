package schedule

import (
	"sync"

	"github.com/gogpu/tilerender/tile"
)

// BufferPool provides reuse of frame buffers via sync.Pool.
//
// A 4K RGB frame is ~25 MB; rendering a sequence allocates one per frame, so
// the pool keeps the steady state at one or two live buffers. Buffers are
// zeroed on Get.
//
// Thread safety: BufferPool is safe for concurrent use.
type BufferPool struct {
	// pools holds a sync.Pool per buffer length.
	pools sync.Map
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get returns a zeroed buffer of size.ByteSize() bytes, or nil if size is
// not valid.
func (p *BufferPool) Get(size tile.Size) []byte {
	if !size.Valid() {
		return nil
	}
	n := size.ByteSize()
	bp := p.pool(n).Get().(*[]byte)
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// Put returns a buffer to the pool for reuse.
// If buf is nil, this is a no-op.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	n := len(buf)
	if pool, ok := p.pools.Load(n); ok {
		pool.(*sync.Pool).Put(&buf)
	}
	// If no pool exists for this length, let GC reclaim the buffer.
}

// pool gets or creates the sync.Pool for buffers of length n.
func (p *BufferPool) pool(n int) *sync.Pool {
	if pool, ok := p.pools.Load(n); ok {
		return pool.(*sync.Pool)
	}
	newPool := &sync.Pool{
		New: func() any {
			buf := make([]byte, n)
			return &buf
		},
	}
	actual, _ := p.pools.LoadOrStore(n, newPool)
	return actual.(*sync.Pool)
}
