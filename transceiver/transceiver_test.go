package transceiver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/poll"
	"github.com/arloliu/go-cat/protocol/text"
	"github.com/arloliu/go-cat/transport"
	"github.com/stretchr/testify/require"
)

// simRadio answers FA;/FB; queries from its stored frequencies.
type simRadio struct {
	mu   sync.Mutex
	freq map[string]uint64
}

func (r *simRadio) set(op string, hz uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.freq[op] = hz
}

func (r *simRadio) respond(p []byte) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := string(p)
	op := s[:2]
	if len(s) == 3 {
		return [][]byte{text.Uint(op, 9, r.freq[op])}
	}
	if n, ok := text.ParseUint(p, op, 9); ok {
		r.freq[op] = n
	}

	return nil
}

var vfoOps = map[string]string{string(VFOA): "FA", string(VFOB): "FB"}

func simClass(withGet bool) *device.Class {
	return &device.Class{
		Name:       "Sim",
		Transports: []transport.Type{transport.TypeMock},
		Delimiter:  text.Delimiter,
		Commands: func(command.Params) *command.Registry {
			b := Builder().
				Set(CmdSetVFOFrequency, FrequencySchema(30_000, 56_000_000, VFOA, VFOB), func(p command.Params) []byte {
					return text.Uint(vfoOps[p.String(ParamVFO)], 9, p.Uint(ParamFrequency))
				})
			if withGet {
				b.Exec(CmdGetVFOFrequency, VFOSchema(VFOA, VFOB), func(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
					op := vfoOps[p.String(ParamVFO)]
					return x.Query(ctx, text.Query(op), text.DecodeUint(op, 9))
				})
			}

			return b.Build()
		},
	}
}

func openSim(t *testing.T) (*Transceiver, *simRadio) {
	t.Helper()

	radio := &simRadio{freq: map[string]uint64{"FA": 14_074_000, "FB": 7_074_000}}
	mock := transport.NewMock("")
	mock.OnWrite(radio.respond)

	trx, err := New(simClass(true), mock, nil)
	require.NoError(t, err)
	require.NoError(t, trx.Open(context.Background()))
	t.Cleanup(func() { _ = trx.Close() })

	return trx, radio
}

func TestContract(t *testing.T) {
	require := require.New(t)

	require.True(Mandatory(CmdSetVFOFrequency))
	require.True(Mandatory(CmdGetVFOFrequency))
	require.False(Mandatory(CmdSetAGCAttack))
	require.False(Mandatory("nope"))

	names := Contract().DeclaredNames()
	require.Len(names, 16)
	require.Empty(Contract().Names(), "the contract itself implements nothing")

	schema, err := Contract().Schema(CmdSetCTCSS)
	require.NoError(err)
	props := schema["properties"].(map[string]any)
	tone := props[ParamTone].(map[string]any)
	require.Len(tone["enum"], 50)
}

func TestWrap_MissingMandatory(t *testing.T) {
	dev, err := device.New(simClass(false), transport.NewMock(""), nil)
	require.NoError(t, err)

	_, err = Wrap(dev)
	require.ErrorContains(t, err, CmdGetVFOFrequency)
}

func TestTransceiver_TypedAPI(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	trx, _ := openSim(t)
	require.Equal([]VFO{VFOA, VFOB}, trx.VFOs())

	require.NoError(trx.SetVFOFrequency(ctx, VFOA, 14_250_000))
	hz, err := trx.VFOFrequency(ctx, VFOA)
	require.NoError(err)
	require.Equal(uint64(14_250_000), hz)

	err = trx.SetVFOFrequency(ctx, VFOA, 10)
	require.ErrorIs(err, command.ErrValidation)

	err = trx.SetVFOFrequency(ctx, VFOOther, 14_250_000)
	require.ErrorIs(err, command.ErrValidation, "the sim has no 'other' VFO")

	err = trx.SetAGCAttack(ctx, AGCFast)
	require.ErrorIs(err, device.ErrNotImplemented)
	_, err = trx.AFGain(ctx)
	require.ErrorIs(err, device.ErrNotImplemented)
	require.ErrorIs(trx.BandUp(ctx), device.ErrNotImplemented)
	require.ErrorIs(trx.SetCTCSS(ctx, "88.5"), device.ErrNotImplemented)
	require.ErrorIs(trx.SetManualNotch(ctx, true, device.CallTimeout(time.Second)), device.ErrNotImplemented)
	require.ErrorIs(trx.SetManualNotchPosition(ctx, 100, device.CallTimeout(time.Second)), device.ErrNotImplemented)
}

func TestTransceiver_Events(t *testing.T) {
	trx, radio := openSim(t)

	sub, err := trx.Events(poll.WithInterval(5 * time.Millisecond))
	require.NoError(t, err)
	defer sub.Close()

	initial := map[VFO]uint64{}
	for len(initial) < 2 {
		select {
		case ev := <-sub.C():
			initial[ev.Value.VFO] = ev.Value.Frequency
			require.Equal(t, fmt.Sprintf("vfo%s", ev.Value.VFO), ev.Poller)
			require.False(t, ev.Time.IsZero())
		case <-time.After(2 * time.Second):
			require.FailNow(t, "no initial events")
		}
	}
	require.Equal(t, map[VFO]uint64{VFOA: 14_074_000, VFOB: 7_074_000}, initial)

	radio.set("FB", 7_100_000)

	select {
	case ev := <-sub.C():
		require.Equal(t, VFOState{VFO: VFOB, Frequency: 7_100_000}, ev.Value)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no change event")
	}

	require.NoError(t, trx.Close())

	select {
	case _, ok := <-sub.C():
		for ok {
			_, ok = <-sub.C()
		}
	case <-time.After(2 * time.Second):
		require.FailNow(t, "events did not end on close")
	}

	_, err = trx.Events()
	require.ErrorIs(t, err, device.ErrDeviceNotOpen)
}

func TestTones(t *testing.T) {
	require := require.New(t)

	require.Len(CTCSSTones(), 50)
	require.Len(DCSCodes(), 104)
	require.Equal(8, CTCSSIndex("88.5"))
	require.Equal(-1, CTCSSIndex("88.6"))
	require.Equal(0, DCSIndex("023"))
	require.Equal(103, DCSIndex("754"))
	require.Equal(uint64(885), CTCSSTenths("88.5"))
	require.Equal(uint64(2541), CTCSSTenths("254.1"))
	require.Equal(uint64(23), DCSNumber("023"))
}
