package stream

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect[T any](s *Subscription[T], n int, timeout time.Duration) []T {
	out := make([]T, 0, n)
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case v, ok := <-s.C():
			if !ok {
				return out
			}
			out = append(out, v)
		case <-deadline:
			return out
		}
	}

	return out
}

func TestHubMulticast(t *testing.T) {
	require := require.New(t)

	h := NewHub[int](Block, 4)
	a := h.Subscribe()
	b := h.Subscribe()
	require.Equal(2, h.Len())

	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(i)
		}
	}()

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}

	var wg sync.WaitGroup
	var gotA, gotB []int
	wg.Add(2)
	go func() { defer wg.Done(); gotA = collect(a, 100, time.Second) }()
	go func() { defer wg.Done(); gotB = collect(b, 100, time.Second) }()
	wg.Wait()

	require.Equal(want, gotA)
	require.Equal(want, gotB)
}

func TestHubLateSubscriberSeesOnlyNewValues(t *testing.T) {
	require := require.New(t)

	h := NewHub[string](Block, 0)
	early := h.Subscribe()
	h.Publish("first")

	late := h.Subscribe()
	h.Publish("second")

	require.Equal([]string{"first", "second"}, collect(early, 2, time.Second))
	require.Equal([]string{"second"}, collect(late, 1, time.Second))
}

func TestHubCloseUnblocksPublisher(t *testing.T) {
	h := NewHub[int](Block, 1)
	s := h.Subscribe()

	h.Publish(1) // fills the buffer

	published := make(chan struct{})
	go func() {
		h.Publish(2) // blocks on full buffer
		close(published)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after unsubscribe")
	}
	require.Equal(t, 0, h.Len())
}

func TestHubDropPolicy(t *testing.T) {
	require := require.New(t)

	h := NewHub[int](Drop, 2)
	s := h.Subscribe()
	for i := 0; i < 5; i++ {
		h.Publish(i)
	}

	require.Equal([]int{0, 1}, collect(s, 2, time.Second))
	require.EqualValues(3, s.Dropped())
}

func TestHubClose(t *testing.T) {
	require := require.New(t)

	var closed atomic.Int32
	h := NewHub[int](Block, 0)
	s := h.SubscribeFunc(func() { closed.Add(1) })

	h.Close()
	h.Close()

	_, ok := <-s.C()
	require.False(ok)
	require.True(h.Closed())
	require.EqualValues(1, closed.Load())

	s.Close() // no-op after hub close
	require.EqualValues(1, closed.Load())

	h.Publish(1) // no-op

	late := h.SubscribeFunc(func() { closed.Add(1) })
	_, ok = <-late.C()
	require.False(ok)
	require.EqualValues(2, closed.Load())
}

func TestHubStalledPublisherDoesNotHoldLock(t *testing.T) {
	require := require.New(t)

	h := NewHub[int](Block, 1)
	idle := h.Subscribe()
	_ = idle

	h.Publish(1) // fills idle's buffer

	published := make(chan struct{})
	go func() {
		h.Publish(2) // stalls on idle
		close(published)
	}()
	time.Sleep(20 * time.Millisecond)

	subscribed := make(chan *Subscription[int])
	go func() { subscribed <- h.Subscribe() }()

	var other *Subscription[int]
	select {
	case other = <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("Subscribe blocked behind a stalled publisher")
	}
	require.Equal(2, h.Len())

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a stalled publisher")
	}
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after hub close")
	}

	_, ok := <-other.C()
	require.False(ok)
	require.Equal(0, h.Len())
}
