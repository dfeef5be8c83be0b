package logs

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

var subscriptionIDCounter uint64

// Subscription is a single buffered receiver on a Hub
type Subscription[T any] struct {
	id     string
	ch     chan T
	accept func(T) bool
	closed atomic.Bool
}

func newSubscription[T any](accept func(T) bool, bufferSize int) *Subscription[T] {
	id := atomic.AddUint64(&subscriptionIDCounter, 1)
	return &Subscription[T]{
		id:     "sub-" + strconv.FormatUint(id, 10),
		ch:     make(chan T, bufferSize),
		accept: accept,
	}
}

// ID returns the subscription ID
func (s *Subscription[T]) ID() string {
	return s.id
}

// Channel returns the channel for receiving values
func (s *Subscription[T]) Channel() <-chan T {
	return s.ch
}

// Send attempts a non-blocking send.
// Returns false if the channel is full or closed.
func (s *Subscription[T]) Send(v T) bool {
	if s.closed.Load() {
		return false
	}

	if s.accept != nil && !s.accept(v) {
		return true // filtered out, but not a failure
	}

	select {
	case s.ch <- v:
		return true
	default:
		slog.Debug("subscription channel full, dropping value", "subscription", s.id)
		return false
	}
}

// Close closes the subscription
func (s *Subscription[T]) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// Hub fans values out to any number of subscriptions without blocking the
// publisher. Slow subscribers lose values rather than stall the sender.
type Hub[T any] struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription[T]
	bufferSize    int
}

// NewHub creates a new hub
func NewHub[T any](bufferSize int) *Hub[T] {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Hub[T]{
		subscriptions: make(map[string]*Subscription[T]),
		bufferSize:    bufferSize,
	}
}

// Subscribe registers a new subscription. A nil accept receives everything.
func (h *Hub[T]) Subscribe(accept func(T) bool) (string, <-chan T) {
	sub := newSubscription(accept, h.bufferSize)

	h.mu.Lock()
	h.subscriptions[sub.id] = sub
	h.mu.Unlock()

	return sub.id, sub.ch
}

// Unsubscribe removes and closes a subscription
func (h *Hub[T]) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscriptions[id]
	if ok {
		delete(h.subscriptions, id)
	}
	h.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Broadcast sends v to every subscription
func (h *Hub[T]) Broadcast(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscriptions {
		sub.Send(v)
	}
}

// Count returns the number of active subscriptions
func (h *Hub[T]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close closes all subscriptions
func (h *Hub[T]) Close() {
	h.mu.Lock()
	subs := make([]*Subscription[T], 0, len(h.subscriptions))
	for _, sub := range h.subscriptions {
		subs = append(subs, sub)
	}
	h.subscriptions = make(map[string]*Subscription[T])
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
