package yaesu

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/transceiver"
	"github.com/arloliu/go-cat/transport"
	"github.com/stretchr/testify/require"
)

func openRadio(t *testing.T, class *device.Class) (*transceiver.Transceiver, *transport.Mock) {
	t.Helper()

	mock := transport.NewMock(transport.TypeSerial)
	trx, err := transceiver.New(class, mock, nil, device.WithResponseTimeout(100*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, trx.Open(context.Background()))
	t.Cleanup(func() { _ = trx.Close() })

	return trx, mock
}

func replyWith(frames ...string) transport.Responder {
	return func(p []byte) [][]byte {
		if p[len(p)-1] != ';' || len(p) > 4 {
			return nil
		}

		out := make([][]byte, len(frames))
		for i, f := range frames {
			out[i] = []byte(f)
		}

		return out
	}
}

func TestFT991A_VFORoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	trx, mock := openRadio(t, FT991A)

	require.NoError(trx.SetVFOFrequency(ctx, transceiver.VFOA, 14_250_000))
	require.Equal([]byte("FA014250000;"), mock.LastWrite())

	// unsolicited chatter and the other VFO's report are skipped
	mock.OnWrite(replyWith("IF001;", "FB007074000;", "FA014250000;"))

	hz, err := trx.VFOFrequency(ctx, transceiver.VFOA)
	require.NoError(err)
	require.Equal(uint64(14_250_000), hz)
	require.Equal([]byte("FA;"), mock.LastWrite())
}

func TestFT991A_VFOB(t *testing.T) {
	ctx := context.Background()
	trx, mock := openRadio(t, FT991A)

	require.NoError(t, trx.SetVFOFrequency(ctx, transceiver.VFOB, 7_074_000))
	require.Equal(t, []byte("FB007074000;"), mock.LastWrite())

	// a VFO A report arriving first is not taken as the VFO B frequency
	mock.OnWrite(replyWith("FA014250000;", "FB007074000;"))

	hz, err := trx.VFOFrequency(ctx, transceiver.VFOB)
	require.NoError(t, err)
	require.Equal(t, uint64(7_074_000), hz)
	require.Equal(t, []byte("FB;"), mock.LastWrite())

	mock.OnWrite(replyWith("FA014250000;"))
	_, err = trx.VFOFrequency(ctx, transceiver.VFOB)
	require.ErrorIs(t, err, device.ErrTimeout)
}

func TestFrequencyRange(t *testing.T) {
	ctx := context.Background()

	trx, _ := openRadio(t, FT991A)
	require.NoError(t, trx.SetVFOFrequency(ctx, transceiver.VFOA, 433_500_000))

	dx10, _ := openRadio(t, FTDX10)
	err := dx10.SetVFOFrequency(ctx, transceiver.VFOA, 433_500_000)
	require.ErrorIs(t, err, command.ErrValidation)

	var verr *command.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, transceiver.ParamFrequency, verr.Field)
	require.Equal(t, command.ConstraintMaximum, verr.Constraint)
	require.Equal(t, int64(75_000_000), verr.Limit)
}

func TestSetCommands(t *testing.T) {
	ctx := context.Background()
	trx, mock := openRadio(t, FT991A)

	tests := []struct {
		name string
		call func() error
		want []string
	}{
		{"agc fast", func() error { return trx.SetAGCAttack(ctx, transceiver.AGCFast) }, []string{"GT01;"}},
		{"agc auto", func() error { return trx.SetAGCAttack(ctx, transceiver.AGCAuto) }, []string{"GT04;"}},
		{"tuner tune", func() error { return trx.SetAntennaTuner(ctx, transceiver.TunerTune) }, []string{"AC002;"}},
		{"af gain", func() error { return trx.SetAFGain(ctx, 128) }, []string{"AG0128;"}},
		{"rit", func() error { return trx.SetRIT(ctx, true) }, []string{"RT1;"}},
		{"break-in", func() error { return trx.SetBreakIn(ctx, false) }, []string{"BI0;"}},
		{"band up", func() error { return trx.BandUp(ctx) }, []string{"BU0;"}},
		{"band down", func() error { return trx.BandDown(ctx) }, []string{"BD0;"}},
		{"manual notch", func() error { return trx.SetManualNotchPosition(ctx, 150) }, []string{"BP00001;", "BP01150;"}},
		{"manual notch off", func() error { return trx.SetManualNotch(ctx, false) }, []string{"BP00000;"}},
		{"auto notch", func() error { return trx.SetAutoNotch(ctx, true) }, []string{"BC01;"}},
		{"ctcss", func() error { return trx.SetCTCSS(ctx, "88.5") }, []string{"CN00008;"}},
		{"dcs", func() error { return trx.SetDCS(ctx, "754") }, []string{"CN01103;"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ResetWrites()
			require.NoError(t, tt.call())

			var got []string
			for _, w := range mock.Writes() {
				got = append(got, string(w))
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGetCommands(t *testing.T) {
	ctx := context.Background()
	trx, mock := openRadio(t, FT991A)

	mock.OnWrite(replyWith("GT05;"))
	agc, err := trx.AGCAttack(ctx)
	require.NoError(t, err)
	require.Equal(t, transceiver.AGCAuto, agc)

	mock.OnWrite(replyWith("AC001;"))
	tuner, err := trx.AntennaTuner(ctx)
	require.NoError(t, err)
	require.Equal(t, transceiver.TunerOn, tuner)

	mock.OnWrite(replyWith("AG0200;"))
	gain, err := trx.AFGain(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(200), gain)
}

func TestOptionalCapabilities(t *testing.T) {
	trx, _ := openRadio(t, FTDX10)

	require.False(t, trx.ImplementsCommand(transceiver.CmdSetCTCSS))
	require.ErrorIs(t, trx.SetCTCSS(context.Background(), "88.5"), device.ErrNotImplemented)

	schema, err := trx.CommandSchema(transceiver.CmdSetCTCSS)
	require.NoError(t, err, "declared commands keep their schema")
	require.Equal(t, "object", schema["type"])
}

func TestNotchValidation(t *testing.T) {
	trx, mock := openRadio(t, FT991A)

	err := trx.SetManualNotchPosition(context.Background(), 0)
	require.ErrorIs(t, err, command.ErrValidation)
	require.Zero(t, mock.WriteCount())
}

func TestClasses(t *testing.T) {
	for _, class := range Classes() {
		require.Equal(t, "Yaesu", class.Vendor)
		require.True(t, class.Supports(transport.TypeSerial))
		require.False(t, class.Supports(transport.TypeMock))

		_, err := transceiver.New(class, transport.NewMock(transport.TypeMock), nil)
		require.ErrorIs(t, err, device.ErrUnsupportedTransport)
	}
}
