package protocol

import "fmt"

// ----------------------------
// Commands
// ----------------------------

// Command is one logical operation the host can issue. Commands are stateless
// values; Encode renders them into wire frames immediately before
// transmission.
type Command interface {
	frame() (Frame, error)
}

// MoveUp nudges the desk upward. The controller keeps moving only while the
// command is repeated.
type MoveUp struct{}

// MoveDown nudges the desk downward.
type MoveDown struct{}

// Stop halts any motion in progress.
type Stop struct{}

// GotoHeight drives the desk to an absolute height. Unit must match the
// desk's configured display unit (see UnitsReport); the controller interprets
// the operand in that unit.
type GotoHeight struct {
	Height Height
	Unit   Unit
}

// GotoPreset recalls a stored position.
type GotoPreset struct {
	Slot PresetSlot
}

// SavePreset stores the current height into a slot.
type SavePreset struct {
	Slot PresetSlot
}

// QueryHeight requests a height report. The controller reports height in
// response to a wake frame; there is no dedicated height-query opcode.
type QueryHeight struct{}

// QueryPreset requests the stored height of a slot. The controller answers a
// settings query with its full settings dump, preset reports included; the
// session filters for the slot it wants.
type QueryPreset struct {
	Slot PresetSlot
}

// QuerySettings requests the settings dump (units, memory mode, presets).
type QuerySettings struct{}

// Wake brings the controller out of BLE standby. Must be sent after connect
// before the desk will report anything.
type Wake struct{}

func (MoveUp) frame() (Frame, error)   { return Frame{Opcode: OpRaise, ToDesk: true}, nil }
func (MoveDown) frame() (Frame, error) { return Frame{Opcode: OpLower, ToDesk: true}, nil }
func (Stop) frame() (Frame, error)     { return Frame{Opcode: OpStop, ToDesk: true}, nil }
func (Wake) frame() (Frame, error)     { return Frame{Opcode: OpWake, ToDesk: true}, nil }

func (c GotoHeight) frame() (Frame, error) {
	if !c.Height.Valid() {
		return Frame{}, fmt.Errorf("height %s outside valid range [%s, %s]", c.Height, MinHeight, MaxHeight)
	}
	return Frame{Opcode: OpGotoHeight, ToDesk: true, Params: encodeHeightOperand(c.Height, c.Unit)}, nil
}

func (c GotoPreset) frame() (Frame, error) {
	ops, ok := presetOpcodes[c.Slot]
	if !ok {
		return Frame{}, fmt.Errorf("invalid preset slot %d", c.Slot)
	}
	return Frame{Opcode: ops.goTo, ToDesk: true}, nil
}

func (c SavePreset) frame() (Frame, error) {
	ops, ok := presetOpcodes[c.Slot]
	if !ok {
		return Frame{}, fmt.Errorf("invalid preset slot %d", c.Slot)
	}
	return Frame{Opcode: ops.save, ToDesk: true}, nil
}

func (QueryHeight) frame() (Frame, error) {
	return Frame{Opcode: OpWake, ToDesk: true}, nil
}

func (c QueryPreset) frame() (Frame, error) {
	if !c.Slot.Valid() {
		return Frame{}, fmt.Errorf("invalid preset slot %d", c.Slot)
	}
	return Frame{Opcode: OpQuerySettings, ToDesk: true}, nil
}

func (QuerySettings) frame() (Frame, error) {
	return Frame{Opcode: OpQuerySettings, ToDesk: true}, nil
}

// Encode renders a command into its wire frame. Encoding is total over all
// command kinds; the only failures are invalid operands (out-of-range height,
// bad slot), which are caught here before any bytes reach the transport.
func Encode(c Command) ([]byte, error) {
	f, err := c.frame()
	if err != nil {
		return nil, err
	}
	return f.MarshalBinary()
}
