package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every *Error with errors.Is.
	ErrTransport = errors.New("transport: error")

	// ErrClosed indicates an operation on a transport that is not open.
	ErrClosed = errors.New("transport: closed")

	// ErrWriteTimeout indicates a write that did not complete within the write timeout.
	ErrWriteTimeout = errors.New("transport: write timeout")

	// ErrOpening indicates Open was called while another Open is in progress.
	ErrOpening = errors.New("transport: open in progress")
)

// Error is a failure of the underlying link: open, write, drain or close.
type Error struct {
	Transport Type
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *Error) Is(target error) bool {
	return target == ErrTransport
}

func newError(typ Type, op string, err error) error {
	if err == nil {
		return nil
	}

	var terr *Error
	if errors.As(err, &terr) {
		return err
	}

	return &Error{Transport: typ, Op: op, Err: err}
}
