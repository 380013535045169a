// Package pool recycles the timers that bound transport writes and response waits.
// One is armed for every write and every get-command.
package pool

import (
	"sync"
	"time"
)

var timers sync.Pool

// Deadline fires once, after the duration it was armed with.
type Deadline struct {
	timer *time.Timer
}

// Arm returns a deadline expiring after d, reusing a pooled timer when one is free.
// Release it when the wait is over.
func Arm(d time.Duration) Deadline {
	t, _ := timers.Get().(*time.Timer)
	if t == nil {
		return Deadline{timer: time.NewTimer(d)}
	}

	t.Reset(d)

	return Deadline{timer: t}
}

// Expired is signalled when the deadline passes.
func (dl Deadline) Expired() <-chan time.Time {
	return dl.timer.C
}

// Release stops the deadline and returns its timer to the pool.
// The deadline must not be used afterwards.
func (dl Deadline) Release() {
	if !dl.timer.Stop() {
		// expired but never read
		select {
		case <-dl.timer.C:
		default:
		}
	}
	timers.Put(dl.timer)
}
