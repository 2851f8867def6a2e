package ringchan

// Ring is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Telemetry producers must never block on a slow consumer: the radio already
// drops notifications under contention, so consumers are written to tolerate
// gaps and the freshest events are the valuable ones. A full ring therefore
// discards the oldest buffered element rather than stalling the reader loop.
type Ring[T any] struct {
	ch chan T
}

// New creates a Ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers range over it
// until it is closed.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Send inserts v without ever blocking, dropping the oldest buffered element
// if the ring is full. It reports whether an element was dropped.
func (r *Ring[T]) Send(v T) bool {
	select {
	case r.ch <- v:
		return false
	default:
	}

	dropped := false
	select {
	case <-r.ch:
		dropped = true
	default:
	}
	r.ch <- v
	return dropped
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Close closes the ring. Send panics after Close; the producer must stop
// first.
func (r *Ring[T]) Close() {
	close(r.ch)
}
