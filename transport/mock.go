package transport

import (
	"context"
	"sync"

	"github.com/arloliu/go-cat/internal/util"
	"github.com/arloliu/go-cat/stream"
)

// Responder computes the chunks a simulated radio sends back after a write.
type Responder func(p []byte) [][]byte

// Mock is an in-memory transport for tests and simulations. It records every write,
// lets the caller inject incoming chunks, and can answer writes through a Responder.
type Mock struct {
	typ Type

	mu        sync.Mutex
	open      bool
	writes    [][]byte
	responder Responder
	writeErr  error
	openErr   error

	data      *stream.Hub[[]byte]
	writeLog  *stream.Hub[[]byte]
	openCount int
}

var _ Transport = (*Mock)(nil)

// NewMock creates a closed mock reporting typ as its kind. An empty typ selects TypeMock.
func NewMock(typ Type) *Mock {
	if typ == "" {
		typ = TypeMock
	}

	return &Mock{
		typ:      typ,
		data:     stream.NewHub[[]byte](stream.Block, 0),
		writeLog: stream.NewHub[[]byte](stream.Drop, 0),
	}
}

func (m *Mock) Type() Type {
	return m.typ
}

func (m *Mock) Open(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return newError(m.typ, "open", m.openErr)
	}

	if !m.open {
		m.open = true
		m.openCount++
	}

	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.open = false

	return nil
}

func (m *Mock) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.open
}

// Write records p and, when a responder is set, injects its replies before returning.
func (m *Mock) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return newError(m.typ, "write", err)
	}

	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return newError(m.typ, "write", ErrClosed)
	}
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()

		return newError(m.typ, "write", err)
	}

	data := util.CloneSlice(p, 0)
	m.writes = append(m.writes, data)
	responder := m.responder
	m.mu.Unlock()

	m.writeLog.Publish(data)

	if responder != nil {
		for _, reply := range responder(data) {
			m.Inject(reply)
		}
	}

	return nil
}

func (m *Mock) Subscribe() *stream.Subscription[[]byte] {
	return m.data.Subscribe()
}

// Inject delivers chunk to subscribers as if the radio had sent it.
func (m *Mock) Inject(chunk []byte) {
	m.data.Publish(util.CloneSlice(chunk, 0))
}

// InjectString delivers s as one chunk.
func (m *Mock) InjectString(s string) {
	m.Inject([]byte(s))
}

// OnWrite installs a responder; nil removes it.
func (m *Mock) OnWrite(r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responder = r
}

// FailWrites makes every following write fail with err; nil restores normal writes.
func (m *Mock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeErr = err
}

// FailOpen makes every following Open fail with err; nil restores normal opens.
func (m *Mock) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openErr = err
}

// Writes returns a copy of everything written so far.
func (m *Mock) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = util.CloneSlice(w, 0)
	}

	return out
}

// WriteCount returns the number of successful writes.
func (m *Mock) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.writes)
}

// LastWrite returns the most recent write, or nil.
func (m *Mock) LastWrite() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.writes) == 0 {
		return nil
	}

	return util.CloneSlice(m.writes[len(m.writes)-1], 0)
}

// ResetWrites forgets recorded writes.
func (m *Mock) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes = nil
}

// OpenCount returns how many times the mock went from closed to open.
func (m *Mock) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.openCount
}

// SubscribeWrites streams successful writes as they happen.
func (m *Mock) SubscribeWrites() *stream.Subscription[[]byte] {
	return m.writeLog.Subscribe()
}
