package device

import (
	"time"

	"github.com/arloliu/go-cat/command"
)

// LogEntry records one command outcome on the device log. Exactly one of Result and
// Err is meaningful: Err is nil on success.
type LogEntry struct {
	Time     time.Time
	Device   string
	Command  string
	Params   command.Params
	Result   any
	Err      error
	Duration time.Duration
}

// OK reports whether the command succeeded.
func (e LogEntry) OK() bool {
	return e.Err == nil
}

// Direction of transport traffic.
type Direction uint8

const (
	Tx Direction = iota + 1
	Rx
)

func (d Direction) String() string {
	switch d {
	case Tx:
		return "tx"
	case Rx:
		return "rx"
	default:
		return "unknown"
	}
}

// TrafficEntry records bytes moving over the transport: a write (Tx), or a received
// frame (Rx). Err is set when a write failed.
type TrafficEntry struct {
	Time      time.Time
	Device    string
	Direction Direction
	Data      []byte
	Err       error
}

// OpenOptions selects which observability outputs a device produces while open.
type OpenOptions struct {
	// Log writes command outcomes and traffic through the device logger.
	Log bool
	// LogDevice publishes command outcomes to DeviceLog subscribers.
	LogDevice bool
	// LogTransport publishes traffic to TransportLog subscribers.
	LogTransport bool
}
