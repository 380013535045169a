// Package stream provides a multicast hub: every subscriber sees every value
// published after it subscribed, in publish order.
//
// Hubs carry raw transport chunks, delimited frames, device log entries and poll events.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultBufferSize is the per-subscriber channel capacity used when none is given.
const DefaultBufferSize = 64

// Policy decides what Publish does when a subscriber's buffer is full.
type Policy int

const (
	// Block waits until the subscriber drains or unsubscribes. Nothing is lost and order is kept.
	Block Policy = iota
	// Drop skips a subscriber whose buffer is full. Publishers never stall.
	Drop
)

// Hub fans values out to subscribers. It is safe for concurrent use.
type Hub[T any] struct {
	// mu guards the subscriber set and the closed flag. Deliveries run outside it.
	mu      sync.RWMutex
	subs    *xsync.MapOf[uint64, *Subscription[T]]
	nextID  atomic.Uint64
	closed  bool
	policy  Policy
	bufSize int
}

// NewHub creates a hub. A bufSize of 0 selects DefaultBufferSize.
func NewHub[T any](policy Policy, bufSize int) *Hub[T] {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return &Hub[T]{
		subs:    xsync.NewMapOf[uint64, *Subscription[T]](),
		policy:  policy,
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed hub returns a
// subscription whose channel is already closed.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	return h.SubscribeFunc(nil)
}

// SubscribeFunc is like Subscribe; onClose runs once when the subscription ends,
// either by Close or because the hub closed.
func (h *Hub[T]) SubscribeFunc(onClose func()) *Subscription[T] {
	s := &Subscription[T]{
		hub:     h,
		id:      h.nextID.Add(1),
		ch:      make(chan T, h.bufSize),
		done:    make(chan struct{}),
		onClose: onClose,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.terminate()

		return s
	}
	h.subs.Store(s.id, s)
	h.mu.Unlock()

	return s
}

// Publish delivers v to every current subscriber according to the hub policy.
// It is a no-op on a closed hub.
//
// Under Block a full subscriber stalls Publish until it drains or unsubscribes,
// but Subscribe, Close and other readers are never held up by that wait.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	subs := make([]*Subscription[T], 0, h.subs.Size())
	h.subs.Range(func(_ uint64, s *Subscription[T]) bool {
		subs = append(subs, s)
		return true
	})
	h.mu.RUnlock()

	for _, s := range subs {
		s.deliver(h.policy, v)
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	return h.subs.Size()
}

// Close ends every subscription and rejects further publishes. Close is idempotent.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	var subs []*Subscription[T]
	h.subs.Range(func(id uint64, s *Subscription[T]) bool {
		subs = append(subs, s)
		h.subs.Delete(id)

		return true
	})
	h.mu.Unlock()

	for _, s := range subs {
		s.terminate()
	}
}

// Closed reports whether Close has been called.
func (h *Hub[T]) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.closed
}

// Subscription is one subscriber's view of a hub.
type Subscription[T any] struct {
	hub *Hub[T]
	id  uint64
	ch  chan T

	// sendMu orders a delivery against closing ch.
	sendMu sync.Mutex
	shut   bool

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	onClose   func()
	dropped   atomic.Uint64
}

// C returns the channel of values. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed as soon as the subscription is ending.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Dropped returns how many values were skipped because the buffer was full (Drop policy).
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once and from any goroutine.
func (s *Subscription[T]) Close() {
	h := s.hub
	h.mu.Lock()
	_, ok := h.subs.LoadAndDelete(s.id)
	h.mu.Unlock()
	if !ok {
		// already removed by Hub.Close
		return
	}

	s.terminate()
}

func (s *Subscription[T]) deliver(policy Policy, v T) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.shut {
		return
	}

	if policy == Drop {
		select {
		case s.ch <- v:
		default:
			s.dropped.Add(1)
		}

		return
	}

	select {
	case s.ch <- v:
	case <-s.done:
	}
}

func (s *Subscription[T]) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// terminate releases a delivery blocked on this subscriber, then closes ch.
func (s *Subscription[T]) terminate() {
	s.markDone()

	s.sendMu.Lock()
	if !s.shut {
		s.shut = true
		close(s.ch)
	}
	s.sendMu.Unlock()

	s.runOnClose()
}

func (s *Subscription[T]) runOnClose() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}
