package protocol

import "fmt"

// ----------------------------
// Heights and Units
// ----------------------------

// Height is a desk height in millimetres.
type Height uint16

// Valid range of movement targets for the Desky controller. Targets outside
// this range are rejected before any traffic reaches the desk.
const (
	MinHeight Height = 620
	MaxHeight Height = 1280
)

// Valid reports whether h is an acceptable movement target.
func (h Height) Valid() bool {
	return h >= MinHeight && h <= MaxHeight
}

func (h Height) String() string {
	return fmt.Sprintf("%dmm", uint16(h))
}

// Unit is the desk's configured display unit. Height operands on the wire are
// expressed in this unit, so the codec must know it to produce millimetres.
type Unit byte

const (
	UnitMillimetres Unit = 0x00
	UnitInches      Unit = 0x01
)

func (u Unit) String() string {
	if u == UnitInches {
		return "in"
	}
	return "mm"
}

// mmPerInch is the conversion the controller itself uses; inch operands are
// carried as tenths of an inch.
const mmPerInch = 25.4

// encodeHeightOperand renders h as the 16-bit big-endian wire operand in the
// given unit.
func encodeHeightOperand(h Height, u Unit) []byte {
	v := uint16(h)
	if u == UnitInches {
		v = uint16(float64(h)/mmPerInch*10 + 0.5)
	}
	return []byte{byte(v >> 8), byte(v & 0xff)}
}

// decodeHeightOperand interprets a 16-bit big-endian wire operand in the given
// unit and returns millimetres.
func decodeHeightOperand(raw []byte, u Unit) Height {
	v := uint16(raw[0])<<8 | uint16(raw[1])
	if u == UnitInches {
		return Height(float64(v)/10*mmPerInch + 0.5)
	}
	return Height(v)
}

// ----------------------------
// Preset Slots
// ----------------------------

// PresetSlot identifies one of the four stored positions on the controller.
type PresetSlot int

// Valid reports whether s names an existing slot.
func (s PresetSlot) Valid() bool {
	return s >= 1 && s <= 4
}

// presetOpcodes maps a slot to its goto command, save command and report
// opcode. The goto/save opcodes for slots 3 and 4 are not contiguous with
// slots 1 and 2 on this controller family.
var presetOpcodes = map[PresetSlot]struct {
	goTo   byte
	save   byte
	report byte
}{
	1: {OpGotoPreset1, OpSetPreset1, RptPreset1},
	2: {OpGotoPreset2, OpSetPreset2, RptPreset2},
	3: {OpGotoPreset3, OpSetPreset3, RptPreset3},
	4: {OpGotoPreset4, OpSetPreset4, RptPreset4},
}

// PresetForReport returns the slot a host report opcode belongs to, or false
// if the opcode is not a preset report.
func PresetForReport(opcode byte) (PresetSlot, bool) {
	for slot, ops := range presetOpcodes {
		if ops.report == opcode {
			return slot, true
		}
	}
	return 0, false
}
