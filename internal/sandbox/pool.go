package sandbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/protocol"
)

// Pool holds a fixed number of warm runtimes. Simulations borrow one per
// run; a runtime that cannot be reset is replaced with a fresh one.
type Pool struct {
	config Config
	idle   chan *Runtime
	size   int
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	served   atomic.Uint64
	replaced atomic.Uint64
}

// NewPool starts size runtimes. A non-positive size means 4.
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultConfig().AcquireTimeout
	}

	p := &Pool{
		config: config,
		idle:   make(chan *Runtime, size),
		size:   size,
		done:   make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		rt, err := New(config)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.idle <- rt
	}
	return p, nil
}

// Acquire borrows a runtime, waiting at most the configured acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.config.AcquireTimeout)
	defer timer.Stop()

	select {
	case rt := <-p.idle:
		p.served.Add(1)
		return rt, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Release resets rt and hands it back. After Close the runtime is closed
// instead.
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		rt.Close()
		p.replaced.Add(1)
		if fresh, newErr := New(p.config); newErr == nil {
			p.park(fresh)
		}
		return err
	}
	p.park(rt)
	return nil
}

// park returns rt to the idle set, closing it if the set is full.
func (p *Pool) park(rt *Runtime) {
	select {
	case p.idle <- rt:
	default:
		rt.Close()
	}
}

// Widget borrows a runtime and prepares doc on it. Closing the widget
// releases the runtime.
func (p *Pool) Widget(ctx context.Context, doc document.Document, out protocol.Emitter) (*Widget, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	w, err := NewWidget(rt, doc, out)
	if err != nil {
		p.Release(rt)
		return nil, err
	}
	w.release = p.Release
	return w, nil
}

// Close stops handing out runtimes and closes the idle ones. Borrowed
// runtimes are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	for {
		select {
		case rt := <-p.idle:
			rt.Close()
		default:
			return nil
		}
	}
}

// Stats reports pool occupancy and lifetime counters.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.idle)
	return map[string]interface{}{
		"size":      p.size,
		"available": available,
		"in_use":    p.size - available,
		"served":    p.served.Load(),
		"replaced":  p.replaced.Load(),
		"closed":    p.closed,
	}
}
