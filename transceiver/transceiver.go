package transceiver

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/poll"
	"github.com/arloliu/go-cat/stream"
	"github.com/arloliu/go-cat/transport"
)

// Transceiver is a typed view of a device implementing the transceiver contract.
// Every method goes through Device.Invoke, so validation, the command gate and the
// device log apply to them unchanged.
type Transceiver struct {
	*device.Device

	mu       sync.Mutex
	events   *poll.Source[VFOState]
	hookOnce sync.Once
}

// New creates a device of class over t and wraps it.
func New(class *device.Class, t transport.Transport, params command.Params, opts ...device.Option) (*Transceiver, error) {
	dev, err := device.New(class, t, params, opts...)
	if err != nil {
		return nil, err
	}

	return Wrap(dev)
}

// Wrap returns the typed view of dev. It fails when dev lacks a mandatory command.
func Wrap(dev *device.Device) (*Transceiver, error) {
	for _, name := range contract.DeclaredNames() {
		if Mandatory(name) && !dev.ImplementsCommand(name) {
			return nil, fmt.Errorf("transceiver: %s does not implement mandatory command %s", dev.Name(), name)
		}
	}

	return &Transceiver{Device: dev}, nil
}

// VFOs returns the VFOs the model addresses, in schema order.
func (t *Transceiver) VFOs() []VFO {
	desc, ok := t.Registry().Lookup(CmdGetVFOFrequency)
	if !ok {
		return nil
	}

	f, ok := desc.Schema.Field(ParamVFO)
	if !ok {
		return nil
	}

	values := f.Values()
	out := make([]VFO, len(values))
	for i, v := range values {
		out[i] = VFO(v)
	}

	return out
}

// SetVFOFrequency tunes vfo to hz.
func (t *Transceiver) SetVFOFrequency(ctx context.Context, vfo VFO, hz uint64, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetVFOFrequency, command.Params{ParamVFO: vfo, ParamFrequency: hz}, opts...)
	return err
}

// VFOFrequency reads the frequency of vfo in Hz.
func (t *Transceiver) VFOFrequency(ctx context.Context, vfo VFO, opts ...device.CallOption) (uint64, error) {
	v, err := t.Invoke(ctx, CmdGetVFOFrequency, command.Params{ParamVFO: vfo}, opts...)
	if err != nil {
		return 0, err
	}

	return asUint(CmdGetVFOFrequency, v)
}

// SetAGCAttack sets the AGC attack (AGCOff, AGCFast, ...).
func (t *Transceiver) SetAGCAttack(ctx context.Context, attack string, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetAGCAttack, command.Params{ParamAttack: attack}, opts...)
	return err
}

// AGCAttack reads the AGC attack.
func (t *Transceiver) AGCAttack(ctx context.Context, opts ...device.CallOption) (string, error) {
	v, err := t.Invoke(ctx, CmdGetAGCAttack, nil, opts...)
	if err != nil {
		return "", err
	}

	return asString(CmdGetAGCAttack, v)
}

// SetAntennaTuner switches the antenna tuner (TunerOff, TunerOn) or starts tuning (TunerTune).
func (t *Transceiver) SetAntennaTuner(ctx context.Context, state string, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetAntennaTuner, command.Params{ParamState: state}, opts...)
	return err
}

// AntennaTuner reads the antenna tuner state.
func (t *Transceiver) AntennaTuner(ctx context.Context, opts ...device.CallOption) (string, error) {
	v, err := t.Invoke(ctx, CmdGetAntennaTuner, nil, opts...)
	if err != nil {
		return "", err
	}

	return asString(CmdGetAntennaTuner, v)
}

// SetAFGain sets the AF gain.
func (t *Transceiver) SetAFGain(ctx context.Context, gain uint64, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetAFGain, command.Params{ParamGain: gain}, opts...)
	return err
}

// AFGain reads the AF gain.
func (t *Transceiver) AFGain(ctx context.Context, opts ...device.CallOption) (uint64, error) {
	v, err := t.Invoke(ctx, CmdGetAFGain, nil, opts...)
	if err != nil {
		return 0, err
	}

	return asUint(CmdGetAFGain, v)
}

// SetRIT switches the receiver incremental tuning.
func (t *Transceiver) SetRIT(ctx context.Context, enabled bool, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetRIT, command.Params{ParamEnabled: enabled}, opts...)
	return err
}

// SetBreakIn switches CW break-in.
func (t *Transceiver) SetBreakIn(ctx context.Context, enabled bool, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetBreakIn, command.Params{ParamEnabled: enabled}, opts...)
	return err
}

// BandUp moves to the next band.
func (t *Transceiver) BandUp(ctx context.Context, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdBandUp, nil, opts...)
	return err
}

// BandDown moves to the previous band.
func (t *Transceiver) BandDown(ctx context.Context, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdBandDown, nil, opts...)
	return err
}

// SetManualNotch switches the manual notch, leaving its position unchanged.
func (t *Transceiver) SetManualNotch(ctx context.Context, enabled bool, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetManualNotch, command.Params{ParamEnabled: enabled}, opts...)
	return err
}

// SetManualNotchPosition enables the manual notch and moves it to position.
func (t *Transceiver) SetManualNotchPosition(ctx context.Context, position uint64, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetManualNotch, command.Params{ParamEnabled: true, ParamFrequency: position}, opts...)
	return err
}

// SetAutoNotch switches the automatic notch.
func (t *Transceiver) SetAutoNotch(ctx context.Context, enabled bool, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetAutoNotch, command.Params{ParamEnabled: enabled}, opts...)
	return err
}

// SetCTCSS sets the CTCSS tone, e.g. "88.5".
func (t *Transceiver) SetCTCSS(ctx context.Context, tone string, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetCTCSS, command.Params{ParamTone: tone}, opts...)
	return err
}

// SetDCS sets the DCS code, e.g. "023".
func (t *Transceiver) SetDCS(ctx context.Context, code string, opts ...device.CallOption) error {
	_, err := t.Invoke(ctx, CmdSetDCS, command.Params{ParamCode: code}, opts...)
	return err
}

func asUint(name string, v any) (uint64, error) {
	n, ok := v.(uint64)
	if !ok {
		return 0, fmt.Errorf("transceiver: %s returned %T, want uint64", name, v)
	}

	return n, nil
}

func asString(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("transceiver: %s returned %T, want string", name, v)
	}

	return s, nil
}

// VFOState is the frequency of one VFO.
type VFOState struct {
	VFO       VFO
	Frequency uint64
}

// Event is a VFO frequency change. Poller is "vfo" + the VFO name.
type Event = poll.Event[VFOState]

// Events subscribes to VFO frequency changes. One poller per VFO reads the frequency
// every interval (poll.DefaultInterval unless set by opts); only changes are emitted.
// All subscriptions share the pollers, which stop when the last subscription closes
// and end when the device closes. opts apply only when the pollers are first created.
func (t *Transceiver) Events(opts ...poll.Option) (*stream.Subscription[Event], error) {
	if !t.IsOpen() {
		return nil, fmt.Errorf("%w: %s events", device.ErrDeviceNotOpen, t.Name())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.events == nil {
		src, err := t.newEventSource(opts)
		if err != nil {
			return nil, err
		}

		t.events = src
		t.hookOnce.Do(func() { t.OnClose(t.closeEvents) })
	}

	return t.events.Subscribe(), nil
}

func (t *Transceiver) closeEvents() {
	t.mu.Lock()
	src := t.events
	t.events = nil
	t.mu.Unlock()

	if src != nil {
		src.Close()
	}
}

func (t *Transceiver) newEventSource(opts []poll.Option) (*poll.Source[VFOState], error) {
	vfos := t.VFOs()
	pollers := make([]poll.Poller[VFOState], 0, len(vfos))

	for _, vfo := range vfos {
		pollers = append(pollers, poll.Poller[VFOState]{
			Name: "vfo" + string(vfo),
			Fetch: func(ctx context.Context) (VFOState, error) {
				hz, err := t.VFOFrequency(ctx, vfo)
				return VFOState{VFO: vfo, Frequency: hz}, err
			},
			Key: func(s VFOState) any { return s.Frequency },
		})
	}

	opts = append([]poll.Option{poll.WithLogger(t.GetLogger())}, opts...)

	return poll.New(pollers, opts...)
}
