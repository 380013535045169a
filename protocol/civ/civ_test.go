package civ

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	radio byte = 0x94
	ctrl  byte = 0xE0
)

func TestEncode_SetOtherVFO(t *testing.T) {
	ep := Endpoint{Device: radio, Controller: ctrl}

	got := ep.Request(0x25, 0x00, append([]byte{0x01}, FrequencyBytes(7_250_000)...)...)
	require.Equal(t, []byte{0xFE, 0xFE, radio, ctrl, 0x25, 0x00, 0x01, 0x00, 0x00, 0x25, 0x07, 0x00, 0xFD}, got)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	f, err := Parse([]byte{0xFE, 0xFE, 0xFE, ctrl, radio, 0x25, 0x00, 0x01, 0x00, 0x00, 0x25, 0x07, 0x00, 0xFD})
	require.NoError(err)
	require.Equal(ctrl, f.To)
	require.Equal(radio, f.From)
	require.Equal(byte(0x25), f.Command)
	require.Equal(byte(0x00), f.Subcommand)
	require.Equal([]byte{0x01, 0x00, 0x00, 0x25, 0x07, 0x00}, f.Data)
	require.Equal("FE FE E0 94 25 00 01 00 00 25 07 00 FD", f.String())

	f, err = Parse([]byte{0xFE, 0xFE, radio, ctrl, 0x03, 0x00, 0xFD})
	require.NoError(err)
	require.Nil(f.Data)

	_, err = Parse([]byte{0x25, 0x00, 0xFD})
	require.ErrorIs(err, ErrMalformed)
	_, err = Parse([]byte{0xFE, 0xFE, radio, ctrl, 0xFD})
	require.ErrorIs(err, ErrMalformed)
	_, err = Parse([]byte{0xFE, 0xFE, radio, ctrl, 0x25, 0x00, 0x01})
	require.ErrorIs(err, ErrMalformed)
}

func TestEndpoint_Match(t *testing.T) {
	ep := Endpoint{Device: radio, Controller: ctrl}
	payload := []byte{0x01, 0x00, 0x00, 0x25, 0x07, 0x00}

	tests := []struct {
		name  string
		frame []byte
		ok    bool
	}{
		{"match", Encode(ctrl, radio, 0x25, 0x00, payload...), true},
		{"wrong device address", Encode(ctrl, 0xA4, 0x25, 0x00, payload...), false},
		{"wrong controller address", Encode(0xE1, radio, 0x25, 0x00, payload...), false},
		{"echo of the request", Encode(radio, ctrl, 0x25, 0x00, payload...), false},
		{"wrong command", Encode(ctrl, radio, 0x26, 0x00, payload...), false},
		{"wrong subcommand", Encode(ctrl, radio, 0x25, 0x01, payload...), false},
		{"wrong selector", Encode(ctrl, radio, 0x25, 0x00, append([]byte{0x00}, payload[1:]...)...), false},
		{"garbage", []byte{0x00, 0xFD}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ok := ep.Match(tt.frame, 0x25, 0x00, 0x01)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, payload[1:], data)
			}
		})
	}
}

func TestEndpoint_Decoders(t *testing.T) {
	require := require.New(t)
	ep := Endpoint{Device: radio, Controller: ctrl}

	v, ok := ep.DecodeFrequency(0x25, 0x00, 0x01)(Encode(ctrl, radio, 0x25, 0x00, 0x01, 0x00, 0x00, 0x25, 0x07, 0x00))
	require.True(ok)
	require.Equal(uint64(7_250_000), v)

	_, ok = ep.DecodeFrequency(0x25, 0x00, 0x01)(Encode(ctrl, radio, 0x25, 0x00, 0x01, 0x00, 0x25, 0x07, 0x00))
	require.False(ok, "short frequency field")

	v, ok = ep.DecodeLevel(0x14, 0x01)(Encode(ctrl, radio, 0x14, 0x01, 0x01, 0x28))
	require.True(ok)
	require.Equal(uint64(128), v)

	v, ok = ep.DecodeByte(0x16, 0x12)(Encode(ctrl, radio, 0x16, 0x12, 0x02))
	require.True(ok)
	require.Equal(byte(0x02), v)
}

func TestEndpoint_IsAck(t *testing.T) {
	ep := Endpoint{Device: radio, Controller: ctrl}

	isAck, ok := ep.IsAck([]byte{0xFE, 0xFE, ctrl, radio, OK, 0xFD})
	require.True(t, isAck)
	require.True(t, ok)

	isAck, ok = ep.IsAck([]byte{0xFE, 0xFE, ctrl, radio, NG, 0xFD})
	require.True(t, isAck)
	require.False(t, ok)

	isAck, _ = ep.IsAck([]byte{0xFE, 0xFE, ctrl, 0xA4, OK, 0xFD})
	require.False(t, isAck)
}

func TestLevelBytes(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x28}, LevelBytes(128))
	require.Equal(t, []byte{0x02, 0x55}, LevelBytes(255))
	require.Equal(t, []byte{0x00, 0x00}, LevelBytes(0))

	n, ok := ParseLevel([]byte{0x02, 0x55})
	require.True(t, ok)
	require.Equal(t, uint64(255), n)

	_, ok = ParseLevel([]byte{0x0A, 0x00})
	require.False(t, ok)
}
