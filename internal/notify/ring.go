package notify

import "sync"

const defaultRingCapacity = 1000

// ring keeps the most recent values up to a fixed capacity
type ring[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int // oldest value once full
	full bool
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &ring[T]{buf: make([]T, 0, capacity)}
}

func (r *ring[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		r.buf = append(r.buf, v)
		r.full = len(r.buf) == cap(r.buf)
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
}

// last returns up to n of the newest values, oldest first.
// n <= 0 returns everything retained.
func (r *ring[T]) last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := len(r.buf)
	if n <= 0 || n > size {
		n = size
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	start := r.next + size - n
	for i := range out {
		out[i] = r.buf[(start+i)%size]
	}
	return out
}

func (r *ring[T]) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}
