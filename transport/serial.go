package transport

import (
	"context"

	"go.bug.st/serial"
)

// Serial is a transport over a local serial port, the usual link to a transceiver's CAT jack.
type Serial struct {
	*link
	port string
}

var _ Transport = (*Serial)(nil)

// NewSerial creates a serial transport for port (e.g. "/dev/ttyUSB0" or "COM3").
// The port is not opened until Open.
func NewSerial(port string, opts ...Option) (*Serial, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	s := &Serial{port: port}
	s.link = newLink(TypeSerial, port, cfg, s.dialSerial)

	return s, nil
}

// Port returns the port path.
func (s *Serial) Port() string {
	return s.port
}

func (s *Serial) dialSerial(_ context.Context) (conn, error) {
	mode := &serial.Mode{
		BaudRate: s.cfg.baudRate,
		DataBits: s.cfg.dataBits,
		Parity:   s.cfg.parity,
		StopBits: s.cfg.stopBits,
	}

	p, err := serial.Open(s.port, mode)
	if err != nil {
		return nil, err
	}

	// a bounded read lets the reader notice Close without relying on port teardown
	if err := p.SetReadTimeout(s.cfg.readTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}

	return &serialConn{port: p}, nil
}

type serialConn struct {
	port serial.Port
}

func (c *serialConn) recv(buf []byte) ([]byte, error) {
	n, err := c.port.Read(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

func (c *serialConn) send(p []byte) error {
	if _, err := c.port.Write(p); err != nil {
		return err
	}

	return c.port.Drain()
}

func (c *serialConn) close() error {
	return c.port.Close()
}
