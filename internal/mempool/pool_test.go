package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat32PoolGet(t *testing.T) {
	p := NewFloat32Pool(3 * 32 * 32)
	assert.Equal(t, 3072, p.Size())

	buf := p.Get()
	assert.Len(t, buf, 3072)

	buf[0] = 1
	p.Put(buf)
	again := p.Get()
	assert.Len(t, again, 3072)
}

func TestFloat32PoolPutIgnoresForeignBuffers(t *testing.T) {
	p := NewFloat32Pool(16)
	p.Put(nil)
	p.Put(make([]float32, 8))
	p.Put(make([]float32, 4, 32))

	for i := 0; i < 4; i++ {
		assert.Len(t, p.Get(), 16)
	}
}

func TestFloat32PoolShortSlice(t *testing.T) {
	p := NewFloat32Pool(16)
	buf := p.Get()
	p.Put(buf[:4])
	assert.Len(t, p.Get(), 16)
}

func TestFloat32PoolNegativeSize(t *testing.T) {
	p := NewFloat32Pool(-5)
	assert.Equal(t, 0, p.Size())
	assert.Empty(t, p.Get())
}

func TestFloat32PoolConcurrent(t *testing.T) {
	p := NewFloat32Pool(256)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				buf := p.Get()
				if len(buf) != 256 {
					t.Errorf("goroutine %d iteration %d: len %d", g, i, len(buf))
					return
				}
				buf[0] = float32(g)
				p.Put(buf)
			}
		}(g)
	}
	wg.Wait()
}
