package camera

import (
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize размер буфера чтения одного закодированного кадра
const DefaultBufferSize = 1024 * 1024

var ErrPoolClosed = errors.New("пул буферов уже закрыт")

// FramePool пул буферов чтения одного конвейера.
// Закрывается реестром ресурсов вместе с треком.
type FramePool struct {
	size   int
	pool   sync.Pool
	closed atomic.Bool
}

// NewFramePool создает пул буферов размером size
func NewFramePool(size int) *FramePool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	p := &FramePool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, p.size)
		return &buf
	}
	return p
}

// Get возвращает буфер. После закрытия пула буферы не переиспользуются.
func (p *FramePool) Get() []byte {
	if p.closed.Load() {
		return make([]byte, p.size)
	}
	return *p.pool.Get().(*[]byte)
}

// Put возвращает буфер в пул
func (p *FramePool) Put(buf []byte) {
	if p.closed.Load() || cap(buf) < p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

// Close закрывает пул
func (p *FramePool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrPoolClosed
	}
	return nil
}

// Closed сообщает, закрыт ли пул
func (p *FramePool) Closed() bool {
	return p.closed.Load()
}
