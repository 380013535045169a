package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/internal/task"
	"github.com/arloliu/go-cat/logger"
	"github.com/arloliu/go-cat/stream"
)

// Sink receives recorded entries.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Write(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// sinkTimeout bounds one sink write.
const sinkTimeout = 5 * time.Second

// Recorder drains a device log subscription into sinks on its own goroutine.
// A failing sink is logged and does not stop the others.
type Recorder struct {
	sub     *stream.Subscription[device.LogEntry]
	sinks   []Sink
	logger  logger.Logger
	taskMgr *task.Manager

	recorded atomic.Uint64
	failed   atomic.Uint64
}

// NewRecorder creates a stopped recorder. It owns sub and closes it on Stop.
// l defaults to the package logger.
func NewRecorder(sub *stream.Subscription[device.LogEntry], l logger.Logger, sinks ...Sink) *Recorder {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Recorder{
		sub:     sub,
		sinks:   sinks,
		logger:  l,
		taskMgr: task.NewManager(context.Background(), l),
	}
}

// Start starts draining.
func (r *Recorder) Start() error {
	return r.taskMgr.Start("recorder", r.recordIteration)
}

// Stop closes the subscription, writes the entries already received and waits for the
// recorder goroutine to exit.
func (r *Recorder) Stop() {
	r.sub.Close()
	r.taskMgr.Wait()
	r.taskMgr.Stop()
}

// Recorded returns how many entries reached every sink.
func (r *Recorder) Recorded() uint64 {
	return r.recorded.Load()
}

// Failed returns how many entries at least one sink rejected.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

func (r *Recorder) recordIteration(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case entry, ok := <-r.sub.C():
		if !ok {
			return false
		}
		r.write(ctx, FromLogEntry(entry))

		return true
	}
}

func (r *Recorder) write(ctx context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	ok := true
	for _, sink := range r.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			ok = false
			r.logger.Warn("journal sink failed", "device", rec.Device, "command", rec.Command, "error", err)
		}
	}

	if ok {
		r.recorded.Add(1)
	} else {
		r.failed.Add(1)
	}
}
