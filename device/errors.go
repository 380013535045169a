package device

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/transport"
)

var (
	// ErrDeviceNotOpen indicates a command issued before Open or after Close.
	ErrDeviceNotOpen = errors.New("device: not open")

	// ErrUnknownCommand indicates a command name the device class never declared.
	ErrUnknownCommand = command.ErrUnknownCommand

	// ErrNotImplemented matches every *NotImplementedError.
	ErrNotImplemented = command.ErrNotImplemented

	// ErrUnsupportedTransport matches every *UnsupportedTransportError.
	ErrUnsupportedTransport = errors.New("device: unsupported transport")

	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("device: response timeout")

	// ErrClassInvalid indicates a Class missing its name, transports or command table.
	ErrClassInvalid = errors.New("device: invalid class")
)

// NotImplementedError is returned when a declared command is invoked on a device that
// does not implement it. Use ImplementsCommand to check in advance.
type NotImplementedError struct {
	Device  string
	Command string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("device: %s does not implement %s", e.Device, e.Command)
}

func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// UnsupportedTransportError is returned by New when the transport kind is not one the
// device class can talk over.
type UnsupportedTransportError struct {
	Device    string
	Transport transport.Type
	Supported []transport.Type
}

func (e *UnsupportedTransportError) Error() string {
	names := make([]string, len(e.Supported))
	for i, t := range e.Supported {
		names[i] = string(t)
	}

	return fmt.Sprintf("device: %s does not support transport %q (supported: %s)",
		e.Device, e.Transport, strings.Join(names, ", "))
}

func (e *UnsupportedTransportError) Is(target error) bool {
	return target == ErrUnsupportedTransport
}

// TimeoutError is returned when no matching response frame arrived in time.
type TimeoutError struct {
	Device   string
	Command  string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("device: %s %s: no response within %v", e.Device, e.Command, e.Deadline)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Timeout reports true, for callers that test errors with a net.Error style interface.
func (e *TimeoutError) Timeout() bool { return true }
