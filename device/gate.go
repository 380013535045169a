package device

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is a mutual-exclusion lock granted in request order. Unlike sync.Mutex it
// never lets a late caller overtake a waiting one, and waiting can be cancelled.
type Gate struct {
	sem     *semaphore.Weighted
	held    atomic.Bool
	waiting atomic.Int64
}

// NewGate creates an unlocked gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the gate is held by the caller or ctx is done.
func (g *Gate) Lock(ctx context.Context) error {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return err
	}
	g.held.Store(true)

	return nil
}

// TryLock acquires the gate only if it is free and nobody waits.
func (g *Gate) TryLock() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.held.Store(true)

	return true
}

// Unlock hands the gate to the oldest waiter, or frees it.
func (g *Gate) Unlock() {
	if !g.held.CompareAndSwap(true, false) {
		panic("device: unlock of unlocked gate")
	}
	g.sem.Release(1)
}

// Locked reports whether the gate is held.
func (g *Gate) Locked() bool {
	return g.held.Load()
}

// Waiting returns the number of callers blocked in Lock.
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}
