// Package mempool recycles float32 buffers for the per-frame model input.
package mempool

import "sync"

// Float32Pool hands out buffers of one fixed length. A detector's input
// tensor has the same size every frame, so one size class is enough.
type Float32Pool struct {
	size int
	pool sync.Pool
}

// NewFloat32Pool returns a pool of n-element buffers.
func NewFloat32Pool(n int) *Float32Pool {
	if n < 0 {
		n = 0
	}
	p := &Float32Pool{size: n}
	p.pool.New = func() any {
		buf := make([]float32, n)
		return &buf
	}
	return p
}

// Size is the length of every buffer from Get.
func (p *Float32Pool) Size() int { return p.size }

// Get returns a buffer of Size elements. Contents are not cleared.
func (p *Float32Pool) Get() []float32 {
	buf, ok := p.pool.Get().(*[]float32)
	if !ok || cap(*buf) < p.size {
		return make([]float32, p.size)
	}
	return (*buf)[:p.size]
}

// Put returns buf to the pool. Buffers of another size and nil are dropped.
func (p *Float32Pool) Put(buf []float32) {
	if buf == nil || cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
