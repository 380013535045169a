package transport

import (
	"context"
	"io"
	"net"
)

// TCP is a transport over a TCP stream, e.g. a serial-to-network bridge or a
// rig-control daemon exposing the CAT port.
type TCP struct {
	*link
	addr string
}

var _ Transport = (*TCP)(nil)

// NewTCP creates a TCP transport for addr ("host:port").
func NewTCP(addr string, opts ...Option) (*TCP, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	t := &TCP{addr: addr}
	t.link = newLink(TypeTCP, addr, cfg, t.dialTCP)

	return t, nil
}

// Addr returns the remote address.
func (t *TCP) Addr() string {
	return t.addr
}

func (t *TCP) dialTCP(ctx context.Context) (conn, error) {
	dialer := net.Dialer{Timeout: t.cfg.dialTimeout}

	c, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, err
	}

	return &streamConn{rwc: c}, nil
}

// newStreamTransport wraps an already connected stream, used for in-process links.
func newStreamTransport(typ Type, name string, rwc io.ReadWriteCloser, opts ...Option) (*link, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return newLink(typ, name, cfg, func(context.Context) (conn, error) {
		return &streamConn{rwc: rwc}, nil
	}), nil
}

type streamConn struct {
	rwc io.ReadWriteCloser
}

func (c *streamConn) recv(buf []byte) ([]byte, error) {
	n, err := c.rwc.Read(buf)
	if n > 0 {
		// deliver the data, report err on the next call
		return buf[:n], nil
	}

	return nil, err
}

func (c *streamConn) send(p []byte) error {
	_, err := c.rwc.Write(p)
	return err
}

func (c *streamConn) close() error {
	return c.rwc.Close()
}
