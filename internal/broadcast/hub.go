package broadcast

import (
	"context"
	"sync"
)

// DefaultCapacity is the number of messages a Hub retains for slow
// subscribers.
const DefaultCapacity = 2048

// Logger defines the logging interface used by the hub.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Hub fans encoded messages out to any number of subscribers.
//
// Messages live in a fixed ring. Every subscription keeps its own cursor
// into the ring, so Send never waits for a reader. A subscriber that falls
// more than the ring's capacity behind loses the overwritten messages and
// is told how many on its next Recv.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	ring   []string
	head   uint64        // sequence number of the next message sent
	notify chan struct{} // closed and replaced on every send
	subs   int
	closed bool
	done   chan struct{}
	logger Logger
}

// NewHub creates a hub retaining up to capacity messages.
// A capacity below 1 uses DefaultCapacity.
func NewHub(capacity int) *Hub {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Hub{
		ring:   make([]string, capacity),
		notify: make(chan struct{}),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// Capacity returns the ring size.
func (h *Hub) Capacity() int {
	return len(h.ring)
}

// Send publishes msg to every current subscriber without blocking.
//
// With no subscribers the message is dropped.
//
// Parameters:
//   - msg: Encoded message text
//
// Returns:
//   - int: Number of subscribers the message was published to
func (h *Hub) Send(msg string) int {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	if h.subs == 0 {
		logger := h.logger
		h.mu.Unlock()
		logger.Debug("broadcast dropped: no subscribers")
		return 0
	}

	h.ring[h.head%uint64(len(h.ring))] = msg
	h.head++
	n := h.subs
	wake := h.notify
	h.notify = make(chan struct{})
	h.mu.Unlock()

	close(wake)
	return n
}

// Subscribe returns a subscription that receives every message sent after
// this call.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs++
	return &Subscription{hub: h, next: h.head}
}

// SubscriberCount returns the number of open subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subs
}

// Close wakes every blocked Recv with ErrClosed. Subsequent sends are
// dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

// Subscription is one subscriber's cursor into a Hub.
// A Subscription must be used by one goroutine at a time.
type Subscription struct {
	hub    *Hub
	next   uint64
	closed bool
}

// Recv blocks until the next message is available.
//
// Returns:
//   - string: The next message, in send order
//   - error: *LaggedError when messages were overwritten before they were
//     read (the following Recv continues with the oldest retained message),
//     ErrClosed when the hub or subscription is closed, or the context error
func (s *Subscription) Recv(ctx context.Context) (string, error) {
	h := s.hub
	for {
		h.mu.Lock()
		if s.closed {
			h.mu.Unlock()
			return "", ErrClosed
		}
		if s.next < h.head {
			capacity := uint64(len(h.ring))
			if h.head-s.next > capacity {
				oldest := h.head - capacity
				missed := oldest - s.next
				s.next = oldest
				h.mu.Unlock()
				return "", &LaggedError{Missed: missed}
			}
			msg := h.ring[s.next%capacity]
			s.next++
			h.mu.Unlock()
			return msg, nil
		}
		if h.closed {
			h.mu.Unlock()
			return "", ErrClosed
		}
		wake := h.notify
		h.mu.Unlock()

		select {
		case <-wake:
		case <-h.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close detaches the subscription from the hub. It is safe to call more
// than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	h.subs--
}
