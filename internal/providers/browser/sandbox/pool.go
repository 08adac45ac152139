package sandbox

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("sandbox pool is closed")

// Pool keeps a few pre-built runtimes ready so a mount does not pay for
// interpreter setup. Runtimes leave the pool bound to one widget and are
// never returned to it.
type Pool struct {
	config Config
	ready  chan *Runtime
	size   int
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a sandbox pool
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config: config,
		ready:  make(chan *Runtime, size),
		size:   size,
	}

	// Pre-create runtimes
	for i := 0; i < size; i++ {
		rt, err := New(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.ready <- rt
	}

	return pool, nil
}

// Spawn takes a warm runtime, or builds one when the pool is drained, and
// schedules a replacement.
func (p *Pool) Spawn(ctx context.Context) (*Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt := <-p.ready:
		p.refill()
		return rt, nil
	default:
		return New(p.config)
	}
}

// refill must be called with mu held for reading
func (p *Pool) refill() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		rt, err := New(p.config)
		if err != nil {
			return
		}

		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			rt.Close()
			return
		}
		select {
		case p.ready <- rt:
		default:
			rt.Close()
		}
	}()
}

// Close closes pool and all idle runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ready)
	p.mu.Unlock()

	p.wg.Wait()

	for rt := range p.ready {
		rt.Close()
	}

	return nil
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.ready),
		"closed":    p.closed,
	}
}
