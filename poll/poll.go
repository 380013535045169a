// Package poll turns repeated get-commands into a change event stream.
//
// A Source runs one loop per Poller. Each loop fetches a value, stamps it with the
// time the fetch returned, and publishes it only when its key differs from the last
// value that loop published. Loops run only while the Source has subscribers: the
// first Subscribe starts them with fresh state, and the last unsubscribe stops them
// without waiting for an in-flight fetch.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-cat/internal/task"
	"github.com/arloliu/go-cat/logger"
	"github.com/arloliu/go-cat/stream"
)

// ErrNoPollers is returned by New without pollers.
var ErrNoPollers = errors.New("poll: no pollers")

// Poller is one logical value to watch, such as the frequency of one VFO.
type Poller[T any] struct {
	// Name identifies the poller in events and logs.
	Name string
	// Fetch reads the current value. It must honour ctx cancellation.
	Fetch func(ctx context.Context) (T, error)
	// Key returns the comparable value changes are detected on. nil compares the value itself,
	// which then must be comparable.
	Key func(T) any
}

// Event is one emitted change.
type Event[T any] struct {
	Poller string
	Value  T
	// Time is when the fetch that produced Value returned.
	Time time.Time
}

// Source multicasts the changes detected by its pollers.
type Source[T any] struct {
	pollers []Poller[T]
	cfg     config
	hub     *stream.Hub[Event[T]]
	taskMgr *task.Manager

	mu      sync.Mutex
	subs    int
	running bool
	closed  bool
}

// New creates an idle source. Polling starts with the first subscriber.
func New[T any](pollers []Poller[T], opts ...Option) (*Source[T], error) {
	if len(pollers) == 0 {
		return nil, ErrNoPollers
	}

	for _, p := range pollers {
		if p.Fetch == nil {
			return nil, fmt.Errorf("poll: poller %q has no fetch function", p.Name)
		}
	}

	cfg := config{
		interval:   DefaultInterval,
		bufferSize: stream.DefaultBufferSize,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}

	return &Source[T]{
		pollers: append([]Poller[T](nil), pollers...),
		cfg:     cfg,
		hub:     stream.NewHub[Event[T]](stream.Block, cfg.bufferSize),
		taskMgr: task.NewManager(context.Background(), cfg.logger),
	}, nil
}

// Interval returns the poll interval.
func (s *Source[T]) Interval() time.Duration {
	return s.cfg.interval
}

// Subscribe returns the events detected from now on. A subscriber must drain its channel
// or Close the subscription; a full buffer pauses polling for everyone.
// Subscribing to a closed source returns an ended subscription.
func (s *Source[T]) Subscribe() *stream.Subscription[Event[T]] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.hub.Subscribe()
	}

	sub := s.hub.SubscribeFunc(s.release)
	s.subs++

	if !s.running {
		s.start()
	}

	return sub
}

// Running reports whether the poll loops are active.
func (s *Source[T]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Close stops polling and ends every subscription. In-flight fetches are abandoned.
func (s *Source[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.running = false
	s.taskMgr.Stop()
	s.mu.Unlock()

	s.hub.Close()
}

func (s *Source[T]) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs--
	if s.subs > 0 || !s.running {
		return
	}

	s.running = false
	s.taskMgr.Stop()
	s.cfg.logger.Debug("poll stopped, no subscribers")
}

// start is called with s.mu held.
func (s *Source[T]) start() {
	// loops of a previous run exit promptly once their context is cancelled
	s.taskMgr.Wait()

	for _, p := range s.pollers {
		if err := s.taskMgr.StartInterval("poll-"+p.Name, s.pollIteration(p), s.cfg.interval); err != nil {
			s.cfg.logger.Error("failed to start poller", "poller", p.Name, "error", err)
			continue
		}
	}

	s.running = true
}

func (s *Source[T]) pollIteration(p Poller[T]) task.Func {
	var (
		last    any
		hasLast bool
	)

	key := p.Key
	if key == nil {
		key = func(v T) any { return v }
	}

	return func(ctx context.Context) bool {
		v, err := p.Fetch(ctx)
		ts := time.Now()

		if ctx.Err() != nil {
			return false
		}

		if err != nil {
			s.cfg.logger.Debug("poll failed", "poller", p.Name, "error", err)
			return true
		}

		k := key(v)
		if hasLast && k == last {
			return true
		}
		last, hasLast = k, true

		s.hub.Publish(Event[T]{Poller: p.Name, Value: v, Time: ts})

		return true
	}
}
