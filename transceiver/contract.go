// Package transceiver defines the command contract every transceiver model follows,
// and a typed API over a device implementing it.
//
// The contract declares every command a transceiver may support. Getting and setting
// the VFO frequency are mandatory; the rest are optional capabilities. Vendor packages
// extend Contract with implementations and narrower schemas.
package transceiver

import (
	"github.com/arloliu/go-cat/command"
)

// Command names.
const (
	CmdSetVFOFrequency = "setVFOFrequency"
	CmdGetVFOFrequency = "getVFOFrequency"
	CmdSetAGCAttack    = "setAGCAttack"
	CmdGetAGCAttack    = "getAGCAttack"
	CmdSetAntennaTuner = "setAntennaTuner"
	CmdGetAntennaTuner = "getAntennaTuner"
	CmdSetAFGain       = "setAFGain"
	CmdGetAFGain       = "getAFGain"
	CmdSetRIT          = "setRIT"
	CmdSetBreakIn      = "setBreakIn"
	CmdBandUp          = "bandUp"
	CmdBandDown        = "bandDown"
	CmdSetManualNotch  = "setManualNotch"
	CmdSetAutoNotch    = "setAutoNotch"
	CmdSetCTCSS        = "setCTCSS"
	CmdSetDCS          = "setDCS"
)

// Parameter names.
const (
	ParamFrequency = "frequency"
	ParamVFO       = "vfo"
	ParamAttack    = "attack"
	ParamState     = "state"
	ParamGain      = "gain"
	ParamEnabled   = "enabled"
	ParamTone      = "tone"
	ParamCode      = "code"
)

// AGC attack settings.
const (
	AGCOff  = "off"
	AGCFast = "fast"
	AGCMid  = "mid"
	AGCSlow = "slow"
	AGCAuto = "auto"
)

// Antenna tuner states.
const (
	TunerOff  = "off"
	TunerOn   = "on"
	TunerTune = "tune"
)

// MaxFrequency bounds the generic frequency schema: 11 digits, the widest text field.
const MaxFrequency = 99_999_999_999

// MaxNotchFrequency bounds the generic manual notch position.
const MaxNotchFrequency = 3200

var contract = command.NewBuilder().
	Declare(CmdSetVFOFrequency, FrequencySchema(0, MaxFrequency, VFOA, VFOB, VFOCurrent, VFOOther), false).
	Declare(CmdGetVFOFrequency, VFOSchema(VFOA, VFOB, VFOCurrent, VFOOther), false).
	Declare(CmdSetAGCAttack, AGCSchema(AGCOff, AGCFast, AGCMid, AGCSlow, AGCAuto), true).
	Declare(CmdGetAGCAttack, nil, true).
	Declare(CmdSetAntennaTuner, TunerSchema(TunerOff, TunerOn, TunerTune), true).
	Declare(CmdGetAntennaTuner, nil, true).
	Declare(CmdSetAFGain, GainSchema(0, 255), true).
	Declare(CmdGetAFGain, nil, true).
	Declare(CmdSetRIT, EnabledSchema(), true).
	Declare(CmdSetBreakIn, EnabledSchema(), true).
	Declare(CmdBandUp, nil, true).
	Declare(CmdBandDown, nil, true).
	Declare(CmdSetManualNotch, NotchSchema(0, MaxNotchFrequency), true).
	Declare(CmdSetAutoNotch, EnabledSchema(), true).
	Declare(CmdSetCTCSS, CTCSSSchema(), true).
	Declare(CmdSetDCS, DCSSchema(), true).
	Build()

// Contract returns the declared transceiver commands with their generic schemas.
func Contract() *command.Registry {
	return contract
}

// Builder returns a command builder pre-loaded with Contract, for vendor tables.
func Builder() *command.Builder {
	return command.NewBuilder().Extend(contract)
}

// Mandatory reports whether every model must implement name.
func Mandatory(name string) bool {
	d, ok := contract.Lookup(name)
	return ok && !d.Optional
}

// FrequencySchema describes a frequency in Hz within [min, max] on one of vfos.
func FrequencySchema(min, max int64, vfos ...VFO) *command.Schema {
	return command.Object(
		command.Int(ParamFrequency, min, max).Describe("frequency in Hz"),
		vfoField(vfos),
	)
}

// VFOSchema describes a VFO selection.
func VFOSchema(vfos ...VFO) *command.Schema {
	return command.Object(vfoField(vfos))
}

func vfoField(vfos []VFO) *command.Field {
	names := make([]string, len(vfos))
	for i, v := range vfos {
		names[i] = string(v)
	}

	return command.Enum(ParamVFO, names...).Describe("VFO")
}

// AGCSchema describes an AGC attack setting restricted to attacks.
func AGCSchema(attacks ...string) *command.Schema {
	return command.Object(command.Enum(ParamAttack, attacks...).Describe("AGC attack"))
}

// TunerSchema describes an antenna tuner state restricted to states.
func TunerSchema(states ...string) *command.Schema {
	return command.Object(command.Enum(ParamState, states...).Describe("antenna tuner state"))
}

// GainSchema describes an AF gain level in [min, max].
func GainSchema(min, max int64) *command.Schema {
	return command.Object(command.Int(ParamGain, min, max).Describe("AF gain"))
}

// EnabledSchema describes an on/off switch.
func EnabledSchema() *command.Schema {
	return command.Object(command.Bool(ParamEnabled))
}

// NotchSchema describes a manual notch switch with an optional position in [min, max].
func NotchSchema(min, max int64) *command.Schema {
	return command.Object(
		command.Bool(ParamEnabled),
		command.Int(ParamFrequency, min, max).Optional().Describe("notch position"),
	)
}

// CTCSSSchema describes a CTCSS tone from the standard table.
func CTCSSSchema() *command.Schema {
	return command.Object(command.Enum(ParamTone, ctcssTones...).Describe("CTCSS tone in Hz"))
}

// DCSSchema describes a DCS code from the standard table.
func DCSSchema() *command.Schema {
	return command.Object(command.Enum(ParamCode, dcsCodes...).Describe("DCS code"))
}
