package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/framer"
	"github.com/arloliu/go-cat/internal/opstate"
	"github.com/arloliu/go-cat/internal/pool"
	"github.com/arloliu/go-cat/internal/task"
	"github.com/arloliu/go-cat/logger"
	"github.com/arloliu/go-cat/stream"
	"github.com/arloliu/go-cat/transport"
)

// Device is one transceiver instance bound to one transport. All commands issued
// against a Device run one at a time, in call order.
type Device struct {
	class     *Class
	params    command.Params
	commands  *command.Registry
	transport transport.Transport
	cfg       *Config
	logger    logger.Logger

	opState  opstate.Atomic
	openOpts OpenOptions
	gate     *Gate
	taskMgr  *task.Manager
	metrics  Metrics

	// responses feeds Get commands and never drops; frames feeds Frames() watchers and may.
	framesMu  sync.RWMutex
	responses *stream.Hub[[]byte]
	frames    *stream.Hub[[]byte]
	rawSub    *stream.Subscription[[]byte]

	deviceLog    *stream.Hub[LogEntry]
	transportLog *stream.Hub[TrafficEntry]

	hookMu  sync.Mutex
	onClose []func()
}

// New creates a closed device of class over t.
//
// It returns a *command.ValidationError when params fail the class parameter schema, and
// an *UnsupportedTransportError when the class cannot use t's kind.
func New(class *Class, t transport.Transport, params command.Params, opts ...Option) (*Device, error) {
	if err := class.validate(); err != nil {
		return nil, err
	}

	if t == nil {
		return nil, fmt.Errorf("device: %s: nil transport", class.Name)
	}

	if !class.Supports(t.Type()) {
		return nil, &UnsupportedTransportError{Device: class.Name, Transport: t.Type(), Supported: class.Transports}
	}

	schema := class.Params
	if schema == nil {
		schema = command.Empty()
	}

	validated, err := schema.Validate(class.Name, params)
	if err != nil {
		return nil, err
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	l := cfg.GetLogger().With("device", class.Name)

	return &Device{
		class:        class,
		params:       validated,
		commands:     class.Commands(validated),
		transport:    t,
		cfg:          cfg,
		logger:       l,
		gate:         NewGate(),
		taskMgr:      task.NewManager(context.Background(), l),
		deviceLog:    stream.NewHub[LogEntry](stream.Drop, cfg.logBufferSize),
		transportLog: stream.NewHub[TrafficEntry](stream.Drop, cfg.logBufferSize),
	}, nil
}

// Name returns the model name.
func (d *Device) Name() string { return d.class.Name }

// Class returns the device class.
func (d *Device) Class() *Class { return d.class }

// Params returns a copy of the validated construction parameters.
func (d *Device) Params() command.Params { return d.params.Clone() }

// Transport returns the transport the device talks over.
func (d *Device) Transport() transport.Transport { return d.transport }

// GetLogger returns the device logger.
func (d *Device) GetLogger() logger.Logger { return d.logger }

// GetMetrics returns the device counters.
func (d *Device) GetMetrics() *Metrics { return &d.metrics }

// Config returns the device configuration.
func (d *Device) Config() *Config { return d.cfg }

// IsOpen reports whether the device accepts commands.
func (d *Device) IsOpen() bool {
	return d.opState.IsOpened()
}

// Open opens the transport when needed and starts framing its data.
// Opening an open device is a no-op.
func (d *Device) Open(ctx context.Context, opts ...OpenOptions) error {
	if d.opState.IsOpened() {
		return nil
	}

	if !d.opState.ToOpening() {
		return fmt.Errorf("device: %s: cannot open in state %s", d.class.Name, d.opState.String())
	}

	if len(opts) > 0 {
		d.openOpts = opts[0]
	} else {
		d.openOpts = OpenOptions{}
	}

	if !d.transport.IsOpen() {
		if err := d.transport.Open(ctx); err != nil {
			d.opState.Set(opstate.Closed)
			return err
		}
	}

	// a previous session's reader must be gone before the new one subscribes
	d.taskMgr.Wait()

	responses := stream.NewHub[[]byte](stream.Block, d.cfg.frameBufferSize)
	frames := stream.NewHub[[]byte](stream.Drop, d.cfg.frameBufferSize)
	raw := d.transport.Subscribe()

	d.framesMu.Lock()
	d.responses = responses
	d.frames = frames
	d.rawSub = raw
	d.framesMu.Unlock()

	if err := d.taskMgr.Start("framer", d.frameIteration(raw, responses, frames)); err != nil {
		raw.Close()
		responses.Close()
		frames.Close()
		d.opState.Set(opstate.Closed)

		return err
	}

	d.opState.ToOpened()
	d.logger.Debug("device opened", "transport", string(d.transport.Type()))

	return nil
}

// Close stops framing, runs OnClose hooks and closes the transport. Commands still
// waiting for a response end with an error; Close itself does not wait for them.
func (d *Device) Close() error {
	if !d.opState.ToClosing() {
		return nil
	}

	d.runCloseHooks()

	d.taskMgr.Stop()

	d.framesMu.Lock()
	responses, frames, raw := d.responses, d.frames, d.rawSub
	d.responses, d.frames, d.rawSub = nil, nil, nil
	d.framesMu.Unlock()

	if raw != nil {
		raw.Close()
	}
	if responses != nil {
		responses.Close()
	}
	if frames != nil {
		frames.Close()
	}

	d.taskMgr.Wait()

	err := d.transport.Close()
	if err != nil {
		d.logger.Warn("failed to close transport", "error", err)
	}

	d.opState.ToClosed()
	d.logger.Debug("device closed")

	return err
}

// OnClose registers fn to run when the device closes. Hooks run once per Close,
// in registration order, and stay registered across reopen.
func (d *Device) OnClose(fn func()) {
	d.hookMu.Lock()
	defer d.hookMu.Unlock()

	d.onClose = append(d.onClose, fn)
}

func (d *Device) runCloseHooks() {
	d.hookMu.Lock()
	hooks := append([]func(){}, d.onClose...)
	d.hookMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// ImplementsCommand reports whether the device can run name.
func (d *Device) ImplementsCommand(name string) bool {
	return d.commands.Implements(name)
}

// DeclaresCommand reports whether name is known to the device class, implemented or not.
func (d *Device) DeclaresCommand(name string) bool {
	return d.commands.Declared(name)
}

// CommandSchema returns the JSON schema of a declared command.
func (d *Device) CommandSchema(name string) (map[string]any, error) {
	return d.commands.Schema(name)
}

// Commands returns the names of the implemented commands.
func (d *Device) Commands() []string {
	return d.commands.Names()
}

// Registry returns the device command table.
func (d *Device) Registry() *command.Registry {
	return d.commands
}

// DeviceLog subscribes to command outcomes. Entries are published only while the
// device was opened with OpenOptions.LogDevice; a slow subscriber misses entries
// instead of stalling commands.
func (d *Device) DeviceLog() *stream.Subscription[LogEntry] {
	return d.deviceLog.Subscribe()
}

// TransportLog subscribes to transport traffic, published while the device was opened
// with OpenOptions.LogTransport.
func (d *Device) TransportLog() *stream.Subscription[TrafficEntry] {
	return d.transportLog.Subscribe()
}

// Frames subscribes to the frames received from now on. The subscription ends when
// the device closes. It returns nil when the device is not open.
//
// A subscriber that falls behind misses frames (see Subscription.Dropped); it never
// delays command responses.
func (d *Device) Frames() *stream.Subscription[[]byte] {
	d.framesMu.RLock()
	frames := d.frames
	d.framesMu.RUnlock()

	if frames == nil {
		return nil
	}

	return frames.Subscribe()
}

func (d *Device) subscribeResponses() *stream.Subscription[[]byte] {
	d.framesMu.RLock()
	responses := d.responses
	d.framesMu.RUnlock()

	if responses == nil {
		return nil
	}

	return responses.Subscribe()
}

// Invoke validates raw against the command schema and runs the command under the gate.
//
// Set commands resolve with nil once the transport accepted the write. Get commands
// resolve with the value decoded from the first matching frame received after the write.
func (d *Device) Invoke(ctx context.Context, name string, raw command.Params, opts ...CallOption) (any, error) {
	if !d.opState.IsOpened() {
		return nil, d.reject(name, raw, fmt.Errorf("%w: %s %s", ErrDeviceNotOpen, d.class.Name, name))
	}

	desc, ok := d.commands.Lookup(name)
	if !ok {
		return nil, d.reject(name, raw, fmt.Errorf("%w: %s", ErrUnknownCommand, name))
	}
	if !desc.Implemented() {
		return nil, d.reject(name, raw, &NotImplementedError{Device: d.class.Name, Command: name})
	}

	params, err := desc.Validate(raw)
	if err != nil {
		return nil, d.reject(name, raw, err)
	}

	call := callConfig{timeout: d.cfg.responseTimeout}
	for _, opt := range opts {
		opt(&call)
	}

	d.metrics.GateWaiting.Add(1)
	err = d.gate.Lock(ctx)
	d.metrics.GateWaiting.Add(-1)
	if err != nil {
		return nil, err
	}
	defer d.gate.Unlock()

	// the device may have closed while this call waited for the gate
	if !d.opState.IsOpened() {
		return nil, fmt.Errorf("%w: %s %s", ErrDeviceNotOpen, d.class.Name, name)
	}

	start := time.Now()
	x := &exchange{dev: d, command: name, timeout: call.timeout}
	result, err := d.run(ctx, x, desc, params)

	d.metrics.incCommandCount()
	if err != nil {
		d.metrics.incCommandErrCount()
		if errors.Is(err, ErrTimeout) {
			d.metrics.incTimeoutCount()
		}
	}
	d.record(name, params, result, err, start, time.Since(start))

	return result, err
}

func (d *Device) run(ctx context.Context, x *exchange, desc *command.Descriptor, p command.Params) (any, error) {
	switch {
	case desc.Exec != nil:
		return desc.Exec(ctx, x, p)
	case desc.IsQuery():
		return x.Query(ctx, desc.Encode(p), desc.Decode)
	default:
		return nil, x.Write(ctx, desc.Encode(p))
	}
}

// reject records a call that failed before it reached the gate and returns err.
func (d *Device) reject(name string, raw command.Params, err error) error {
	d.record(name, raw, nil, err, time.Now(), 0)
	return err
}

func (d *Device) record(name string, params command.Params, result any, err error, start time.Time, elapsed time.Duration) {
	opts := d.openOpts

	if opts.Log {
		if err != nil {
			d.logger.Warn("command failed", "command", name, "params", params, "error", err)
		} else {
			d.logger.Info("command", "command", name, "params", params, "result", result, "duration", elapsed)
		}
	}

	if opts.LogDevice {
		d.deviceLog.Publish(LogEntry{
			Time:     start,
			Device:   d.class.Name,
			Command:  name,
			Params:   params.Clone(),
			Result:   result,
			Err:      err,
			Duration: elapsed,
		})
	}
}

func (d *Device) traffic(dir Direction, data []byte, err error) {
	opts := d.openOpts

	if opts.Log {
		d.logger.Debug("traffic", "direction", dir.String(), "data", fmt.Sprintf("% X", data), "error", err)
	}

	if opts.LogTransport {
		cp := make([]byte, len(data))
		copy(cp, data)
		d.transportLog.Publish(TrafficEntry{Time: time.Now(), Device: d.class.Name, Direction: dir, Data: cp, Err: err})
	}
}

func (d *Device) frameIteration(raw *stream.Subscription[[]byte], responses, frames *stream.Hub[[]byte]) task.Func {
	fr := framer.New(d.class.Delimiter)

	return func(ctx context.Context) bool {
		select {
		case <-ctx.Done():
			return false

		case chunk, ok := <-raw.C():
			if !ok {
				return false
			}

			d.metrics.addBytesRecv(len(chunk))
			for _, frame := range fr.Push(chunk) {
				d.metrics.incFrameRecvCount()
				d.traffic(Rx, frame, nil)
				responses.Publish(frame)
				frames.Publish(frame)
			}

			return true
		}
	}
}

// exchange performs the I/O of one command while it holds the gate.
type exchange struct {
	dev     *Device
	command string
	timeout time.Duration
}

var _ command.Exchanger = (*exchange)(nil)

func (x *exchange) Write(ctx context.Context, payload []byte) error {
	err := x.dev.transport.Write(ctx, payload)
	x.dev.traffic(Tx, payload, err)
	if err != nil {
		return err
	}
	x.dev.metrics.addBytesSent(len(payload))

	return nil
}

// Query subscribes to frames before writing, so a response that arrives immediately
// after the write is never missed. The response timeout covers the whole exchange.
func (x *exchange) Query(ctx context.Context, payload []byte, decode command.DecodeFunc) (any, error) {
	deadline := pool.Arm(x.timeout)
	defer deadline.Release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := x.dev.subscribeResponses()
	if sub == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrDeviceNotOpen, x.dev.class.Name, x.command)
	}
	defer sub.Close()

	if err := x.Write(ctx, payload); err != nil {
		return nil, err
	}

	for {
		select {
		case frame, ok := <-sub.C():
			if !ok {
				return nil, fmt.Errorf("%w: %s closed while waiting for %s", ErrDeviceNotOpen, x.dev.class.Name, x.command)
			}
			if v, match := decode(frame); match {
				return v, nil
			}

		case <-deadline.Expired():
			return nil, &TimeoutError{Device: x.dev.class.Name, Command: x.command, Deadline: x.timeout}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
