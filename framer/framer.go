// Package framer splits a continuous byte stream into frames bounded by a delimiter byte.
//
// A frame is every byte since the previous delimiter, plus the delimiter itself.
// Frames that would contain only the delimiter are never emitted, and an incomplete
// trailing segment is held until its delimiter arrives.
package framer

import (
	"bytes"
	"context"

	"github.com/arloliu/go-cat/internal/util"
)

// Framer accumulates chunks and cuts frames. It is not safe for concurrent use;
// each consumer owns its own Framer.
type Framer struct {
	delim byte
	buf   []byte
}

// New creates a Framer splitting on delim.
func New(delim byte) *Framer {
	return &Framer{delim: delim}
}

// Delimiter returns the delimiter byte.
func (f *Framer) Delimiter() byte {
	return f.delim
}

// Push appends chunk to the pending buffer and returns every frame completed by it,
// in arrival order. Returned frames do not alias chunk or the internal buffer.
func (f *Framer) Push(chunk []byte) [][]byte {
	var frames [][]byte

	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, f.delim)
		if idx < 0 {
			f.buf = append(f.buf, chunk...)
			break
		}

		if len(f.buf) > 0 || idx > 0 {
			frame := make([]byte, 0, len(f.buf)+idx+1)
			frame = append(frame, f.buf...)
			frame = append(frame, chunk[:idx+1]...)
			frames = append(frames, frame)
		}

		f.buf = f.buf[:0]
		chunk = chunk[idx+1:]
	}

	return frames
}

// Pending returns a copy of the incomplete trailing segment.
func (f *Framer) Pending() []byte {
	return util.CloneSlice(f.buf, 0)
}

// Reset discards the incomplete trailing segment.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Split reads chunks from in and sends frames to the returned channel until in is closed
// or ctx is done; the output channel is then closed and any incomplete segment is discarded.
func Split(ctx context.Context, in <-chan []byte, delim byte) <-chan []byte {
	out := make(chan []byte)

	go func() {
		defer close(out)

		f := New(delim)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-in:
				if !ok {
					return
				}

				for _, frame := range f.Push(chunk) {
					select {
					case out <- frame:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}
