package device

import "sync/atomic"

// Metrics contains atomic counters for one device.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CommandCount indicates the number of commands that ran under the gate.
	CommandCount atomic.Uint64
	// CommandErrCount indicates the number of commands that returned an error.
	CommandErrCount atomic.Uint64
	// TimeoutCount indicates the number of get-commands that timed out.
	TimeoutCount atomic.Uint64
	// FrameRecvCount indicates the number of frames received.
	FrameRecvCount atomic.Uint64
	// BytesSent indicates the number of bytes written to the transport.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read from the transport.
	BytesRecv atomic.Uint64
	// GateWaiting indicates the number of commands waiting for the gate.
	GateWaiting atomic.Int64
}

func (m *Metrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *Metrics) incCommandErrCount() {
	m.CommandErrCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n))
}

func (m *Metrics) addBytesRecv(n int) {
	m.BytesRecv.Add(uint64(n))
}
