// Package opstate tracks the open/closed lifecycle of transports and devices with
// compare-and-swap transitions.
package opstate

import "sync/atomic"

type State uint32

const (
	Closed State = iota
	Closing
	Opening
	Opened
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Closing:
		return "closing"
	case Opening:
		return "opening"
	case Opened:
		return "opened"
	default:
		return "unknown"
	}
}

// Atomic is a lifecycle state safe for concurrent use. The zero value is Closed.
type Atomic struct {
	state atomic.Uint32
}

func (st *Atomic) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *Atomic) Get() State {
	return State(st.state.Load())
}

// Set forces the state.
func (st *Atomic) Set(state State) {
	st.state.Store(uint32(state))
}

func (st *Atomic) IsClosed() bool {
	return st.Get() == Closed
}

func (st *Atomic) IsOpened() bool {
	return st.Get() == Opened
}

// ToOpening moves Closed to Opening. It fails from any other state.
func (st *Atomic) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(Closed), uint32(Opening))
}

// ToOpened moves Opening to Opened.
func (st *Atomic) ToOpened() bool {
	if st.IsOpened() {
		return true
	}

	return st.state.CompareAndSwap(uint32(Opening), uint32(Opened))
}

// ToClosing moves Opened or Opening to Closing.
func (st *Atomic) ToClosing() bool {
	if st.state.CompareAndSwap(uint32(Opened), uint32(Closing)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(Opening), uint32(Closing))
}

// ToClosed moves Closing to Closed.
func (st *Atomic) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(Closing), uint32(Closed))
}
