package rknn

import (
	"sync"
)

// poolOpenFunc opens one pool member backend, substituted by tests.
type poolOpenFunc func(core CoreMask) (*Backend, error)

// Pool opens multiple backends over the same model spread across the NPU
// cores, so concurrent callers can each borrow a backend for a frame.
type Pool struct {
	backends chan *Backend
	size     int
	close    sync.Once
}

// NewPool creates a backend pool of the given size over the model at
// modelFile.  Cores lists the NPU core masks of the target board, each
// backend is pinned to the next core in round robin order; an empty list
// leaves every backend on automatic core selection.
func NewPool(size int, modelFile string, cores []CoreMask) (*Pool, error) {

	return newPoolWithOpener(size, cores, func(core CoreMask) (*Backend, error) {
		return NewBackend(modelFile, core)
	})
}

// newPoolWithOpener is used by tests to substitute the backend opener.
func newPoolWithOpener(size int, cores []CoreMask, open poolOpenFunc) (*Pool, error) {

	p := &Pool{
		backends: make(chan *Backend, size),
		size:     size,
	}

	for i := 0; i < size; i++ {

		core := CoreAuto

		if len(cores) > 0 {
			core = cores[i%len(cores)]
		}

		b, err := open(core)

		if err != nil {
			// close any instances created before receiving the error
			p.Close()
			return nil, err
		}

		p.Return(b)
	}

	return p, nil
}

// Size returns the number of backends the pool was created with.
func (p *Pool) Size() int {
	return p.size
}

// Get borrows a backend from the pool, blocking until one is available.
func (p *Pool) Get() *Backend {
	return <-p.backends
}

// Return gives a borrowed backend back to the pool.
func (p *Pool) Return(b *Backend) {
	select {
	case p.backends <- b:
	default:
		// pool is full or closed
	}
}

// Close the pool and all backends in it.
func (p *Pool) Close() {
	p.close.Do(func() {
		close(p.backends)

		for next := range p.backends {
			_ = next.Close()
		}
	})
}
