package protocol

import (
	"sync"
	"sync/atomic"
)

// Emitter receives events relayed to the host. Emit must not block.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Fanout emits to every wrapped emitter in order.
type Fanout []Emitter

// Emit forwards e to each emitter.
func (f Fanout) Emit(e Event) {
	for _, em := range f {
		em.Emit(e)
	}
}

// Queue is a buffered fire-and-forget emitter. When the buffer is full the
// event is dropped and counted.
type Queue struct {
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewQueue creates a queue holding up to size undelivered events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 16
	}
	return &Queue{ch: make(chan Event, size)}
}

// Emit enqueues e without blocking.
func (q *Queue) Emit(e Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return
	}
	select {
	case q.ch <- e:
	default:
		q.dropped.Add(1)
	}
}

// Events returns the receive side of the queue. It is closed by Close.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Dropped returns how many events could not be queued.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops accepting events and closes the channel.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}

// Recorder keeps every emitted event in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event{}, r.events...)
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}
