// Package kenwood provides the device classes of Kenwood transceivers speaking the
// Kenwood text CAT protocol.
package kenwood

import (
	"context"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/device"
	"github.com/arloliu/go-cat/protocol/text"
	"github.com/arloliu/go-cat/transceiver"
	"github.com/arloliu/go-cat/transport"
)

// Kenwood frequency fields are 11 digits.
const frequencyDigits = 11

// Manual notch positions are 0 to 127.
const maxNotchPosition = 127

var vfoOps = map[string]string{
	string(transceiver.VFOA): "FA",
	string(transceiver.VFOB): "FB",
}

// GC: 0 off, 1 slow, 2 mid, 3 fast.
var agcCodes = map[string]string{
	transceiver.AGCOff:  "0",
	transceiver.AGCSlow: "1",
	transceiver.AGCMid:  "2",
	transceiver.AGCFast: "3",
}

var agcNames = map[string]string{
	"0": transceiver.AGCOff,
	"1": transceiver.AGCSlow,
	"2": transceiver.AGCMid,
	"3": transceiver.AGCFast,
}

// AC P1 P2 P3: RX tuner, TX tuner, tuning in progress.
var tunerCodes = map[string]string{
	transceiver.TunerOff:  "000",
	transceiver.TunerOn:   "110",
	transceiver.TunerTune: "111",
}

type model struct {
	name       string
	maxHz      int64
	transports []transport.Type
	hasGC      bool
}

// TS590SG is the Kenwood TS-590SG HF/50 MHz transceiver.
var TS590SG = newClass(model{
	name:       "TS-590SG",
	maxHz:      60_000_000,
	transports: []transport.Type{transport.TypeSerial, transport.TypeWebSocket},
})

// TS890S is the Kenwood TS-890S HF/50/70 MHz transceiver. It also has a LAN port.
var TS890S = newClass(model{
	name:       "TS-890S",
	maxHz:      74_800_000,
	transports: []transport.Type{transport.TypeSerial, transport.TypeTCP, transport.TypeWebSocket},
	hasGC:      true,
})

// Classes lists every Kenwood model.
func Classes() []*device.Class {
	return []*device.Class{TS590SG, TS890S}
}

func newClass(m model) *device.Class {
	registry := commands(m)

	return &device.Class{
		Name:       m.name,
		Vendor:     "Kenwood",
		Transports: m.transports,
		Delimiter:  text.Delimiter,
		Commands:   func(command.Params) *command.Registry { return registry },
	}
}

func commands(m model) *command.Registry {
	vfos := []transceiver.VFO{transceiver.VFOA, transceiver.VFOB}

	b := transceiver.Builder().
		Set(transceiver.CmdSetVFOFrequency, transceiver.FrequencySchema(30_000, m.maxHz, vfos...), func(p command.Params) []byte {
			return text.Uint(vfoOps[p.String(transceiver.ParamVFO)], frequencyDigits, p.Uint(transceiver.ParamFrequency))
		}).
		Exec(transceiver.CmdGetVFOFrequency, transceiver.VFOSchema(vfos...), func(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
			op := vfoOps[p.String(transceiver.ParamVFO)]
			return x.Query(ctx, text.Query(op), text.DecodeUint(op, frequencyDigits))
		}).
		Set(transceiver.CmdSetAntennaTuner, transceiver.TunerSchema(
			transceiver.TunerOff, transceiver.TunerOn, transceiver.TunerTune,
		), func(p command.Params) []byte {
			return text.Message("AC", tunerCodes[p.String(transceiver.ParamState)])
		}).
		Get(transceiver.CmdGetAntennaTuner, nil, query("AC"), decodeTuner).
		Set(transceiver.CmdSetAFGain, transceiver.GainSchema(0, 255), func(p command.Params) []byte {
			return text.Uint("AG0", 3, p.Uint(transceiver.ParamGain))
		}).
		Get(transceiver.CmdGetAFGain, nil, query("AG0"), text.DecodeUint("AG0", 3)).
		Set(transceiver.CmdSetRIT, transceiver.EnabledSchema(), func(p command.Params) []byte {
			return text.Flag("RT", p.Bool(transceiver.ParamEnabled))
		}).
		Set(transceiver.CmdBandUp, nil, query("BU")).
		Set(transceiver.CmdBandDown, nil, query("BD")).
		Exec(transceiver.CmdSetManualNotch, transceiver.NotchSchema(0, maxNotchPosition), setManualNotch).
		Set(transceiver.CmdSetAutoNotch, transceiver.EnabledSchema(), func(p command.Params) []byte {
			if p.Bool(transceiver.ParamEnabled) {
				return text.Message("NT10")
			}
			return text.Message("NT00")
		})

	if m.hasGC {
		b.Set(transceiver.CmdSetAGCAttack, transceiver.AGCSchema(
			transceiver.AGCOff, transceiver.AGCFast, transceiver.AGCMid, transceiver.AGCSlow,
		), func(p command.Params) []byte {
			return text.Message("GC", agcCodes[p.String(transceiver.ParamAttack)])
		}).
			Get(transceiver.CmdGetAGCAttack, nil, query("GC"), text.DecodeChoice("GC", 1, agcNames))
	}

	return b.Build()
}

func decodeTuner(frame []byte) (any, bool) {
	body, ok := text.Field(frame, "AC", 3)
	if !ok {
		return nil, false
	}

	switch {
	case body[2] == '1':
		return transceiver.TunerTune, true
	case body[1] == '1':
		return transceiver.TunerOn, true
	default:
		return transceiver.TunerOff, true
	}
}

func setManualNotch(ctx context.Context, x command.Exchanger, p command.Params) (any, error) {
	mode := "NT00"
	if p.Bool(transceiver.ParamEnabled) {
		mode = "NT20"
	}

	if err := x.Write(ctx, text.Message(mode)); err != nil {
		return nil, err
	}

	if p.Has(transceiver.ParamFrequency) {
		return nil, x.Write(ctx, text.Uint("BP", 3, p.Uint(transceiver.ParamFrequency)))
	}

	return nil, nil
}

func query(op string) command.EncodeFunc {
	msg := text.Query(op)

	return func(command.Params) []byte {
		return msg
	}
}
