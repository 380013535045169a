// Package icom provides the device classes of ICOM transceivers speaking CI-V.
//
// Every model takes two construction parameters: deviceAddress, the CI-V address of the
// radio (defaulting to the model's factory address), and controllerAddress, the address
// the application answers to (default 0xE0).
package icom

import (
	"context"

	"github.com/arloliu/go-cat/bcd"
	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/protocol/civ"
	"github.com/arloliu/go-cat/transceiver"
	"github.com/arloliu/go-cat/transport"
)

const (
	ParamDeviceAddress     = "deviceAddress"
	ParamControllerAddress = "controllerAddress"
)

// CI-V command and subcommand bytes.
const (
	cmdLevel    byte = 0x14
	cmdFunction byte = 0x16
	cmdTone     byte = 0x1B
	cmdControl  byte = 0x1C
	cmdOffset   byte = 0x21
	cmdVFO      byte = 0x25

	subAFGain      byte = 0x01
	subNotchPos    byte = 0x0D
	subAutoNotch   byte = 0x41
	subAGC         byte = 0x12
	subBreakIn     byte = 0x47
	subManualNotch byte = 0x48
	subTuner       byte = 0x01
	subRIT         byte = 0x01
	subCTCSS       byte = 0x00
	subDCS         byte = 0x02
)

// VFO selector byte of command 0x25.
var vfoSelectors = map[string]byte{
	string(transceiver.VFOCurrent): 0x00,
	string(transceiver.VFOOther):   0x01,
}

var agcCodes = map[string]byte{
	transceiver.AGCFast: 0x01,
	transceiver.AGCMid:  0x02,
	transceiver.AGCSlow: 0x03,
}

var agcNames = map[byte]string{
	0x01: transceiver.AGCFast,
	0x02: transceiver.AGCMid,
	0x03: transceiver.AGCSlow,
}

var tunerCodes = map[string]byte{
	transceiver.TunerOff:  0x00,
	transceiver.TunerOn:   0x01,
	transceiver.TunerTune: 0x02,
}

var tunerNames = map[byte]string{
	0x00: transceiver.TunerOff,
	0x01: transceiver.TunerOn,
	0x02: transceiver.TunerTune,
}

var transports = []transport.Type{transport.TypeSerial, transport.TypeTCP, transport.TypeWebSocket}

type model struct {
	name     string
	address  byte
	minHz    int64
	maxHz    int64
	hasTuner bool
	hasTone  bool
}

// IC7300 is the ICOM IC-7300 HF/50/70 MHz transceiver.
var IC7300 = newClass(model{name: "IC-7300", address: 0x94, minHz: 30_000, maxHz: 74_800_000, hasTuner: true})

// IC705 is the ICOM IC-705 portable HF/VHF/UHF transceiver.
var IC705 = newClass(model{name: "IC-705", address: 0xA4, minHz: 30_000, maxHz: 470_000_000, hasTone: true})

// IC9700 is the ICOM IC-9700 VHF/UHF/SHF transceiver.
var IC9700 = newClass(model{name: "IC-9700", address: 0xA2, minHz: 144_000_000, maxHz: 1_300_000_000, hasTone: true})

// Classes lists every ICOM model.
func Classes() []*device.Class {
	return []*device.Class{IC7300, IC705, IC9700}
}

func newClass(m model) *device.Class {
	return &device.Class{
		Name:       m.name,
		Vendor:     "ICOM",
		Transports: transports,
		Params: command.Object(
			command.Int(ParamDeviceAddress, 0x00, 0xDF).Default(int64(m.address)).Describe("CI-V address of the radio"),
			command.Int(ParamControllerAddress, 0x00, 0xEF).Default(int64(civ.DefaultController)).Describe("CI-V address of the controller"),
		),
		Delimiter: civ.Terminator,
		Commands: func(p command.Params) *command.Registry {
			return commands(m, civ.Endpoint{
				Device:     byte(p.Uint(ParamDeviceAddress)),
				Controller: byte(p.Uint(ParamControllerAddress)),
			})
		},
	}
}

func commands(m model, e civ.Endpoint) *command.Registry {
	vfos := []transceiver.VFO{transceiver.VFOCurrent, transceiver.VFOOther}

	b := transceiver.Builder().
		Set(transceiver.CmdSetVFOFrequency, transceiver.FrequencySchema(m.minHz, m.maxHz, vfos...), func(p command.Params) []byte {
			data := append([]byte{vfoSelectors[p.String(transceiver.ParamVFO)]}, civ.FrequencyBytes(p.Uint(transceiver.ParamFrequency))...)
			return e.Request(cmdVFO, 0x00, data...)
		}).
		Exec(transceiver.CmdGetVFOFrequency, transceiver.VFOSchema(vfos...), func(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
			sel := vfoSelectors[p.String(transceiver.ParamVFO)]
			return x.Query(ctx, e.Request(cmdVFO, 0x00, sel), e.DecodeFrequency(cmdVFO, 0x00, sel))
		}).
		Set(transceiver.CmdSetAGCAttack, transceiver.AGCSchema(
			transceiver.AGCFast, transceiver.AGCMid, transceiver.AGCSlow,
		), func(p command.Params) []byte {
			return e.Request(cmdFunction, subAGC, agcCodes[p.String(transceiver.ParamAttack)])
		}).
		Get(transceiver.CmdGetAGCAttack, nil, constant(e.Request(cmdFunction, subAGC)), choice(e, cmdFunction, subAGC, agcNames)).
		Set(transceiver.CmdSetAFGain, transceiver.GainSchema(0, 255), func(p command.Params) []byte {
			return e.Request(cmdLevel, subAFGain, civ.LevelBytes(p.Uint(transceiver.ParamGain))...)
		}).
		Get(transceiver.CmdGetAFGain, nil, constant(e.Request(cmdLevel, subAFGain)), e.DecodeLevel(cmdLevel, subAFGain)).
		Set(transceiver.CmdSetRIT, transceiver.EnabledSchema(), flag(e, cmdOffset, subRIT)).
		Set(transceiver.CmdSetBreakIn, transceiver.EnabledSchema(), flag(e, cmdFunction, subBreakIn)).
		Exec(transceiver.CmdSetManualNotch, transceiver.NotchSchema(0, 255), func(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
			if err := x.Write(ctx, flag(e, cmdFunction, subManualNotch)(p)); err != nil {
				return nil, err
			}

			if !p.Has(transceiver.ParamFrequency) {
				return nil, nil
			}

			return nil, x.Write(ctx, e.Request(cmdLevel, subNotchPos, civ.LevelBytes(p.Uint(transceiver.ParamFrequency))...))
		}).
		Set(transceiver.CmdSetAutoNotch, transceiver.EnabledSchema(), flag(e, cmdFunction, subAutoNotch))

	if m.hasTuner {
		b.Set(transceiver.CmdSetAntennaTuner, transceiver.TunerSchema(
			transceiver.TunerOff, transceiver.TunerOn, transceiver.TunerTune,
		), func(p command.Params) []byte {
			return e.Request(cmdControl, subTuner, tunerCodes[p.String(transceiver.ParamState)])
		}).
			Get(transceiver.CmdGetAntennaTuner, nil, constant(e.Request(cmdControl, subTuner)), choice(e, cmdControl, subTuner, tunerNames))
	}

	if m.hasTone {
		b.Set(transceiver.CmdSetCTCSS, transceiver.CTCSSSchema(), func(p command.Params) []byte {
			return e.Request(cmdTone, subCTCSS, ToneBytes(transceiver.CTCSSTenths(p.String(transceiver.ParamTone)))...)
		}).
			Set(transceiver.CmdSetDCS, transceiver.DCSSchema(), func(p command.Params) []byte {
				return e.Request(cmdTone, subDCS, DCSBytes(transceiver.DCSNumber(p.String(transceiver.ParamCode)))...)
			})
	}

	return b.Build()
}

// ToneBytes encodes a CTCSS tone in tenths of Hz as the 3-byte field of command 1B 00:
// six BCD digits, most significant byte first (88.5 Hz is 00 08 85).
func ToneBytes(tenths uint64) []byte {
	return bcd.Reverse(bcd.Pad(bcd.Encode(tenths), 3))
}

// DCSBytes encodes a DCS code as the 3-byte field of command 1B 02: a polarity byte
// (normal) then the code as four BCD digits, most significant byte first (023 is 00 00 23).
func DCSBytes(code uint64) []byte {
	return append([]byte{0x00}, bcd.Reverse(bcd.Pad(bcd.Encode(code), 2))...)
}

func flag(e civ.Endpoint, cmd, sub byte) command.EncodeFunc {
	return func(p command.Params) []byte {
		var v byte
		if p.Bool(transceiver.ParamEnabled) {
			v = 0x01
		}

		return e.Request(cmd, sub, v)
	}
}

func choice(e civ.Endpoint, cmd, sub byte, names map[byte]string) command.DecodeFunc {
	decode := e.DecodeByte(cmd, sub)

	return func(frame []byte) (any, bool) {
		v, ok := decode(frame)
		if !ok {
			return nil, false
		}

		name, ok := names[v.(byte)]
		if !ok {
			return nil, false
		}

		return name, true
	}
}

func constant(b []byte) command.EncodeFunc {
	return func(command.Params) []byte {
		return b
	}
}
