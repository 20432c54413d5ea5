// Package bufpool provides reusable read buffers for the receiver's
// listeners. Panel sessions and supervision probes are short lived and
// bursty, so pooling the per-connection buffers keeps GC churn flat under
// reconnect storms.
package bufpool

import "sync"

// Size classes: probe reads and panel session reads. Wire frames top out at
// 194 bytes, so 1 KiB covers even heavily coalesced segments.
var sizeClasses = []int{256, 1024}

type classPool struct {
	size int
	pool *sync.Pool
}

// Pool provides sized byte slices backed by reusable buffers.
type Pool struct {
	pools []classPool
}

var defaultPool = New()

// Get acquires a buffer from the package-level default pool.
func Get(size int) []byte {
	return defaultPool.Get(size)
}

// Put releases a buffer back to the package-level default pool.
func Put(buf []byte) {
	defaultPool.Put(buf)
}

// New creates a buffer pool with the predefined size classes.
func New() *Pool {
	pools := make([]classPool, len(sizeClasses))
	for i, classSize := range sizeClasses {
		size := classSize
		pools[i] = classPool{
			size: size,
			pool: &sync.Pool{
				New: func() any {
					return make([]byte, size)
				},
			},
		}
	}
	return &Pool{pools: pools}
}

// Get returns a byte slice whose length matches the requested size and whose
// capacity is the nearest size class that can accommodate the request.
// Requests larger than the maximum size class allocate a fresh slice without
// pooling.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}
	for i := range p.pools {
		class := &p.pools[i]
		if size <= class.size {
			buf := class.pool.Get().([]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns the buffer to the pool if its capacity matches a size class;
// anything else is discarded. The buffer is zeroed before reuse so stale
// frame bytes never leak into the next session's reads.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	capBuf := cap(buf)
	for i := range p.pools {
		class := &p.pools[i]
		if capBuf == class.size {
			full := buf[:class.size]
			clear(full)
			class.pool.Put(full)
			return
		}
	}
}
