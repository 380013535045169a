package transport

import (
	"context"

	"github.com/arloliu/go-cat/stream"
)

// Type identifies a transport kind. Devices declare which types they support.
type Type string

const (
	TypeSerial    Type = "serial"
	TypeTCP       Type = "tcp"
	TypeWebSocket Type = "websocket"
	TypeMock      Type = "mock"
)

// Transport is the capability contract a device needs from its link.
type Transport interface {
	// Type returns the transport kind.
	Type() Type
	// Open acquires the link. Opening an open transport is a no-op.
	Open(ctx context.Context) error
	// Close releases the link. Closing a closed transport is a no-op.
	Close() error
	// IsOpen reports whether the link is usable.
	IsOpen() bool
	// Write sends p. Link failures are returned as *Error.
	Write(ctx context.Context, p []byte) error
	// Subscribe returns the incoming byte chunks received from now on.
	Subscribe() *stream.Subscription[[]byte]
}

// WriteString writes s as UTF-8.
func WriteString(ctx context.Context, t Transport, s string) error {
	return t.Write(ctx, []byte(s))
}

// StringData converts a chunk subscription to strings. The returned channel closes when
// sub ends or ctx is done; the caller still owns sub and must Close it.
func StringData(ctx context.Context, sub *stream.Subscription[[]byte]) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-sub.C():
				if !ok {
					return
				}
				select {
				case out <- string(chunk):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
