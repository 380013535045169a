// Package civ encodes and matches ICOM CI-V frames.
//
// A frame is
//
//	FE FE <to> <from> <command> <subcommand> [data...] FD
//
// where FE and FD never appear inside data. Several radios and controllers may share
// one bus, and a radio echoes what the controller sent, so a response is recognised by
// its addresses (to the controller, from the radio) as well as its command bytes.
package civ

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/arloliu/go-cat/bcd"
	"github.com/arloliu/go-cat/command"
)

const (
	Preamble   byte = 0xFE
	Terminator byte = 0xFD

	// DefaultController is the usual controller (PC) address.
	DefaultController byte = 0xE0

	// OK and NG are the data-less acknowledgement commands a radio answers set-commands with.
	OK byte = 0xFB
	NG byte = 0xFA
)

// Frequency fields are 10 digits: 5 bytes of little-endian BCD.
const FrequencySize = 5

var (
	// ErrMalformed indicates bytes that are not a CI-V frame.
	ErrMalformed = errors.New("civ: malformed frame")
)

// Frame is one decoded CI-V frame.
type Frame struct {
	To         byte
	From       byte
	Command    byte
	Subcommand byte
	Data       []byte
}

// Encode returns the wire bytes of a frame.
func Encode(to, from, cmd, sub byte, data ...byte) []byte {
	out := make([]byte, 0, 7+len(data))
	out = append(out, Preamble, Preamble, to, from, cmd, sub)
	out = append(out, data...)

	return append(out, Terminator)
}

// Bytes returns the wire bytes of f.
func (f Frame) Bytes() []byte {
	return Encode(f.To, f.From, f.Command, f.Subcommand, f.Data...)
}

func (f Frame) String() string {
	return fmt.Sprintf("% X", f.Bytes())
}

// Parse decodes one delimited frame. Extra leading preamble bytes are skipped.
func Parse(frame []byte) (Frame, error) {
	start := bytes.Index(frame, []byte{Preamble, Preamble})
	if start < 0 {
		return Frame{}, fmt.Errorf("%w: missing preamble", ErrMalformed)
	}

	body := frame[start+2:]
	for len(body) > 0 && body[0] == Preamble {
		body = body[1:]
	}

	if len(body) < 5 || body[len(body)-1] != Terminator {
		return Frame{}, fmt.Errorf("%w: too short or unterminated", ErrMalformed)
	}

	data := body[4 : len(body)-1]
	out := Frame{To: body[0], From: body[1], Command: body[2], Subcommand: body[3]}
	if len(data) > 0 {
		out.Data = append([]byte(nil), data...)
	}

	return out, nil
}

// Endpoint is a radio address paired with the controller address it answers to.
type Endpoint struct {
	Device     byte
	Controller byte
}

// Request returns a frame sent from the controller to the radio.
func (e Endpoint) Request(cmd, sub byte, data ...byte) []byte {
	return Encode(e.Device, e.Controller, cmd, sub, data...)
}

// Match reports whether frame is a response from the radio to the controller for cmd/sub
// whose data starts with prefix, and returns the data after prefix.
func (e Endpoint) Match(frame []byte, cmd, sub byte, prefix ...byte) ([]byte, bool) {
	f, err := Parse(frame)
	if err != nil {
		return nil, false
	}

	if f.To != e.Controller || f.From != e.Device || f.Command != cmd || f.Subcommand != sub {
		return nil, false
	}

	if !bytes.HasPrefix(f.Data, prefix) {
		return nil, false
	}

	return f.Data[len(prefix):], true
}

// IsAck reports whether frame is an OK or NG answer from the radio to the controller.
// ok is true for OK. Acknowledgements carry no subcommand: FE FE <ctrl> <dev> FB FD.
func (e Endpoint) IsAck(frame []byte) (isAck, ok bool) {
	if len(frame) < 6 {
		return false, false
	}

	tail := frame[len(frame)-6:]
	if tail[0] != Preamble || tail[1] != Preamble || tail[2] != e.Controller ||
		tail[3] != e.Device || tail[5] != Terminator {
		return false, false
	}

	switch tail[4] {
	case OK:
		return true, true
	case NG:
		return true, false
	}

	return false, false
}

// FrequencyBytes encodes hz as a 5-byte little-endian BCD field.
func FrequencyBytes(hz uint64) []byte {
	return bcd.Pad(bcd.Encode(hz), FrequencySize)
}

// ParseFrequency decodes a 5-byte little-endian BCD field.
func ParseFrequency(b []byte) (uint64, bool) {
	if len(b) != FrequencySize || bcd.Validate(b) != nil {
		return 0, false
	}

	return bcd.Decode(b), true
}

// LevelBytes encodes a 0-255 level as the 2-byte field used by level commands:
// four BCD digits, most significant byte first ("0128" is 01 28).
func LevelBytes(n uint64) []byte {
	return bcd.Reverse(bcd.Pad(bcd.Encode(n), 2))
}

// ParseLevel decodes a LevelBytes field.
func ParseLevel(b []byte) (uint64, bool) {
	if len(b) != 2 || bcd.Validate(b) != nil {
		return 0, false
	}

	return bcd.Decode(bcd.Reverse(b)), true
}

// DecodeByte returns a decoder resolving to the single data byte after prefix.
func (e Endpoint) DecodeByte(cmd, sub byte, prefix ...byte) command.DecodeFunc {
	return func(frame []byte) (any, bool) {
		data, ok := e.Match(frame, cmd, sub, prefix...)
		if !ok || len(data) != 1 {
			return nil, false
		}

		return data[0], true
	}
}

// DecodeLevel returns a decoder resolving to the 2-byte level after prefix, as uint64.
func (e Endpoint) DecodeLevel(cmd, sub byte, prefix ...byte) command.DecodeFunc {
	return func(frame []byte) (any, bool) {
		data, ok := e.Match(frame, cmd, sub, prefix...)
		if !ok {
			return nil, false
		}

		n, ok := ParseLevel(data)
		if !ok {
			return nil, false
		}

		return n, true
	}
}

// DecodeFrequency returns a decoder resolving to the 5-byte frequency after prefix, as uint64.
func (e Endpoint) DecodeFrequency(cmd, sub byte, prefix ...byte) command.DecodeFunc {
	return func(frame []byte) (any, bool) {
		data, ok := e.Match(frame, cmd, sub, prefix...)
		if !ok {
			return nil, false
		}

		hz, ok := ParseFrequency(data)
		if !ok {
			return nil, false
		}

		return hz, true
	}
}
