// Package yaesu provides the device classes of Yaesu transceivers speaking the
// Yaesu text CAT protocol.
package yaesu

import (
	"context"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/protocol/text"
	"github.com/arloliu/go-cat/transceiver"
	"github.com/arloliu/go-cat/transport"
)

// Yaesu frequency fields are 9 digits.
const frequencyDigits = 9

var transports = []transport.Type{transport.TypeSerial, transport.TypeTCP, transport.TypeWebSocket}

var vfoOps = map[string]string{
	string(transceiver.VFOA): "FA",
	string(transceiver.VFOB): "FB",
}

var agcCodes = map[string]string{
	transceiver.AGCOff:  "0",
	transceiver.AGCFast: "1",
	transceiver.AGCMid:  "2",
	transceiver.AGCSlow: "3",
	transceiver.AGCAuto: "4",
}

// the radio reports which speed AUTO picked (4, 5, 6); all read back as auto
var agcNames = map[string]string{
	"0": transceiver.AGCOff,
	"1": transceiver.AGCFast,
	"2": transceiver.AGCMid,
	"3": transceiver.AGCSlow,
	"4": transceiver.AGCAuto,
	"5": transceiver.AGCAuto,
	"6": transceiver.AGCAuto,
}

var tunerCodes = map[string]string{
	transceiver.TunerOff:  "0",
	transceiver.TunerOn:   "1",
	transceiver.TunerTune: "2",
}

var tunerNames = map[string]string{
	"0": transceiver.TunerOff,
	"1": transceiver.TunerOn,
	"2": transceiver.TunerTune,
}

// Notch positions are 10 Hz steps, 10 Hz to 3200 Hz.
const maxNotchStep = 320

// model holds what differs between Yaesu radios.
type model struct {
	name     string
	minHz    int64
	maxHz    int64
	hasTuner bool
	hasTone  bool
}

// FT991A is the Yaesu FT-991A HF/VHF/UHF transceiver.
var FT991A = newClass(model{name: "FT-991A", minHz: 30_000, maxHz: 470_000_000, hasTuner: true, hasTone: true})

// FTDX10 is the Yaesu FTDX10 HF/50 MHz transceiver.
var FTDX10 = newClass(model{name: "FTDX10", minHz: 30_000, maxHz: 75_000_000, hasTuner: true})

// FT710 is the Yaesu FT-710 HF/50 MHz transceiver.
var FT710 = newClass(model{name: "FT-710", minHz: 30_000, maxHz: 75_000_000, hasTuner: true})

// Classes lists every Yaesu model.
func Classes() []*device.Class {
	return []*device.Class{FT991A, FTDX10, FT710}
}

func newClass(m model) *device.Class {
	registry := commands(m)

	return &device.Class{
		Name:       m.name,
		Vendor:     "Yaesu",
		Transports: transports,
		Delimiter:  text.Delimiter,
		Commands:   func(command.Params) *command.Registry { return registry },
	}
}

func commands(m model) *command.Registry {
	vfos := []transceiver.VFO{transceiver.VFOA, transceiver.VFOB}

	b := transceiver.Builder().
		Set(transceiver.CmdSetVFOFrequency, transceiver.FrequencySchema(m.minHz, m.maxHz, vfos...), setVFO).
		Exec(transceiver.CmdGetVFOFrequency, transceiver.VFOSchema(vfos...), getVFO).
		Set(transceiver.CmdSetAGCAttack, transceiver.AGCSchema(
			transceiver.AGCOff, transceiver.AGCFast, transceiver.AGCMid, transceiver.AGCSlow, transceiver.AGCAuto,
		), func(p command.Params) []byte {
			return text.Message("GT0", agcCodes[p.String(transceiver.ParamAttack)])
		}).
		Get(transceiver.CmdGetAGCAttack, nil, constant(text.Query("GT0")), text.DecodeChoice("GT0", 1, agcNames)).
		Set(transceiver.CmdSetAFGain, transceiver.GainSchema(0, 255), func(p command.Params) []byte {
			return text.Uint("AG0", 3, p.Uint(transceiver.ParamGain))
		}).
		Get(transceiver.CmdGetAFGain, nil, constant(text.Query("AG0")), text.DecodeUint("AG0", 3)).
		Set(transceiver.CmdSetRIT, transceiver.EnabledSchema(), flag("RT")).
		Set(transceiver.CmdSetBreakIn, transceiver.EnabledSchema(), flag("BI")).
		Set(transceiver.CmdBandUp, nil, constant(text.Message("BU0"))).
		Set(transceiver.CmdBandDown, nil, constant(text.Message("BD0"))).
		Exec(transceiver.CmdSetManualNotch, transceiver.NotchSchema(1, maxNotchStep), setManualNotch).
		Set(transceiver.CmdSetAutoNotch, transceiver.EnabledSchema(), flag("BC0"))

	if m.hasTuner {
		b.Set(transceiver.CmdSetAntennaTuner, transceiver.TunerSchema(
			transceiver.TunerOff, transceiver.TunerOn, transceiver.TunerTune,
		), func(p command.Params) []byte {
			return text.Message("AC00", tunerCodes[p.String(transceiver.ParamState)])
		}).
			Get(transceiver.CmdGetAntennaTuner, nil, constant(text.Query("AC")), text.DecodeChoice("AC00", 1, tunerNames))
	}

	if m.hasTone {
		b.Set(transceiver.CmdSetCTCSS, transceiver.CTCSSSchema(), func(p command.Params) []byte {
			return text.Uint("CN00", 3, uint64(transceiver.CTCSSIndex(p.String(transceiver.ParamTone))))
		}).
			Set(transceiver.CmdSetDCS, transceiver.DCSSchema(), func(p command.Params) []byte {
				return text.Uint("CN01", 3, uint64(transceiver.DCSIndex(p.String(transceiver.ParamCode))))
			})
	}

	return b.Build()
}

func setVFO(p command.Params) []byte {
	return text.Uint(vfoOps[p.String(transceiver.ParamVFO)], frequencyDigits, p.Uint(transceiver.ParamFrequency))
}

// getVFO only accepts the report of the queried VFO.
func getVFO(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
	op := vfoOps[p.String(transceiver.ParamVFO)]
	return x.Query(ctx, text.Query(op), text.DecodeUint(op, frequencyDigits))
}

// setManualNotch switches the notch and, when a position is given, moves it.
func setManualNotch(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
	state := "000"
	if p.Bool(transceiver.ParamEnabled) {
		state = "001"
	}

	if err := x.Write(ctx, text.Message("BP00", state)); err != nil {
		return nil, err
	}

	if !p.Has(transceiver.ParamFrequency) {
		return nil, nil
	}

	return nil, x.Write(ctx, text.Uint("BP01", 3, p.Uint(transceiver.ParamFrequency)))
}

func flag(op string) command.EncodeFunc {
	return func(p command.Params) []byte {
		return text.Flag(op, p.Bool(transceiver.ParamEnabled))
	}
}

func constant(b []byte) command.EncodeFunc {
	return func(command.Params) []byte {
		return b
	}
}
