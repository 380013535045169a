package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/arloliu/go-cat/internal/opstate"
	"github.com/arloliu/go-cat/internal/pool"
	"github.com/arloliu/go-cat/internal/task"
	"github.com/arloliu/go-cat/logger"
	"github.com/arloliu/go-cat/stream"
)

// conn is the minimal surface each link kind adapts to.
type conn interface {
	// recv blocks for the next chunk. A nil chunk with a nil error means "nothing yet".
	recv(buf []byte) ([]byte, error)
	send(p []byte) error
	close() error
}

type dialFunc func(ctx context.Context) (conn, error)

// link implements Transport on top of a dialFunc: the open/close life cycle, a reader
// task that multicasts incoming chunks, and bounded writes.
type link struct {
	typ    Type
	name   string
	cfg    *Config
	dial   dialFunc
	logger logger.Logger

	opState opstate.Atomic
	connMu  sync.RWMutex
	conn    conn

	// writeSlot admits one in-flight send; it is freed when the send returns, not when Write does.
	writeSlot chan struct{}

	hub     *stream.Hub[[]byte]
	taskMgr *task.Manager
}

func newLink(typ Type, name string, cfg *Config, dial dialFunc) *link {
	l := cfg.GetLogger().With("transport", string(typ), "endpoint", name)

	return &link{
		typ:       typ,
		name:      name,
		cfg:       cfg,
		dial:      dial,
		logger:    l,
		hub:       stream.NewHub[[]byte](stream.Block, cfg.bufferSize),
		taskMgr:   task.NewManager(context.Background(), l),
		writeSlot: make(chan struct{}, 1),
	}
}

// Type returns the transport kind.
func (l *link) Type() Type {
	return l.typ
}

// String returns the endpoint, such as a port path or URL.
func (l *link) String() string {
	return fmt.Sprintf("%s:%s", l.typ, l.name)
}

// IsOpen reports whether the link is usable.
func (l *link) IsOpen() bool {
	return l.opState.IsOpened()
}

// Subscribe returns the chunks received from now on. The hub outlives Close, so a
// subscription taken before Open keeps working across reconnects.
func (l *link) Subscribe() *stream.Subscription[[]byte] {
	return l.hub.Subscribe()
}

// Open dials the link and starts the reader.
func (l *link) Open(ctx context.Context) error {
	if l.opState.IsOpened() {
		return nil
	}

	if !l.opState.ToOpening() {
		return newError(l.typ, "open", fmt.Errorf("%w: state %s", ErrOpening, l.opState.String()))
	}

	c, err := l.dial(ctx)
	if err != nil {
		l.opState.Set(opstate.Closed)
		l.logger.Error("failed to open transport", "error", err)

		return newError(l.typ, "open", err)
	}

	l.connMu.Lock()
	l.conn = c
	l.connMu.Unlock()

	// tasks from a previous session must be gone before the new reader starts
	l.taskMgr.Wait()

	if err := l.taskMgr.Start("reader", l.readIteration(c)); err != nil {
		_ = c.close()
		l.opState.Set(opstate.Closed)

		return newError(l.typ, "open", err)
	}

	l.opState.ToOpened()
	l.logger.Debug("transport opened")

	return nil
}

// Close releases the link. It is a no-op on a closed link.
func (l *link) Close() error {
	if !l.opState.ToClosing() {
		return nil
	}

	err := l.closeConn()

	l.taskMgr.Stop()
	l.taskMgr.Wait()
	l.opState.ToClosed()
	l.logger.Debug("transport closed")

	return newError(l.typ, "close", err)
}

// Write sends p within the write timeout.
func (l *link) Write(ctx context.Context, p []byte) error {
	l.connMu.RLock()
	c := l.conn
	l.connMu.RUnlock()

	if !l.opState.IsOpened() || c == nil {
		return newError(l.typ, "write", ErrClosed)
	}

	deadline := pool.Arm(l.cfg.writeTimeout)
	defer deadline.Release()

	// a send abandoned by an earlier timeout may still hold the slot
	select {
	case l.writeSlot <- struct{}{}:
	case <-deadline.Expired():
		return newError(l.typ, "write", ErrWriteTimeout)
	case <-ctx.Done():
		return newError(l.typ, "write", ctx.Err())
	}

	errCh := make(chan error, 1)
	go func() {
		err := c.send(p)
		<-l.writeSlot
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			l.logger.Warn("write failed", "error", err)
			return newError(l.typ, "write", err)
		}
		l.logger.Debug("write", "bytes", len(p))

		return nil

	case <-deadline.Expired():
		return newError(l.typ, "write", ErrWriteTimeout)

	case <-ctx.Done():
		return newError(l.typ, "write", ctx.Err())
	}
}

func (l *link) readIteration(c conn) task.Func {
	buf := make([]byte, DefaultReadSize)

	return func(ctx context.Context) bool {
		chunk, err := c.recv(buf)
		if err != nil {
			if ctx.Err() != nil || l.opState.Get() == opstate.Closing {
				return false
			}

			l.logger.Warn("read failed, closing transport", "error", err)
			go func() { _ = l.Close() }()

			return false
		}

		if len(chunk) > 0 {
			// buf is reused by the next iteration
			data := make([]byte, len(chunk))
			copy(data, chunk)
			l.hub.Publish(data)
		}

		return true
	}
}

func (l *link) closeConn() error {
	l.connMu.Lock()
	c := l.conn
	l.conn = nil
	l.connMu.Unlock()

	if c == nil {
		return nil
	}

	if err := c.close(); err != nil && !isClosedErr(err) {
		l.logger.Error("failed to close transport", "error", err)
		return err
	}

	return nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed)
}
