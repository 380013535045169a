package transceiver

// VFO names a frequency register. Text protocols address VFOs A and B; CI-V radios
// address the current and the other (unselected) VFO.
type VFO string

const (
	VFOA       VFO = "A"
	VFOB       VFO = "B"
	VFOCurrent VFO = "current"
	VFOOther   VFO = "other"
)

func (v VFO) String() string {
	return string(v)
}
