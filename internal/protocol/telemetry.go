package protocol

import "fmt"

// ----------------------------
// Telemetry Events
// ----------------------------

// Event is one decoded notification from the desk. Events are only ever
// produced by decoding inbound frames.
type Event interface {
	isEvent()
}

// HeightReport carries the current height. Moving is set when the report's
// status byte indicates motion in progress; controllers that omit the status
// byte report Moving as false.
type HeightReport struct {
	Height Height
	Moving bool
}

// Stopped marks the end of motion. The controller signals it with an empty
// height frame once travel finishes.
type Stopped struct{}

// UnitsReport carries the desk's configured display unit.
type UnitsReport struct {
	Unit Unit
}

// PresetReport carries the height stored in one preset slot.
type PresetReport struct {
	Slot   PresetSlot
	Height Height
}

// Ack confirms a wake frame was accepted.
type Ack struct{}

// Nak reports a command the desk refused, or a preset slot with no stored
// height. Slot is zero when the refusal is not slot-specific.
type Nak struct {
	Reason string
	Slot   PresetSlot
}

func (HeightReport) isEvent() {}
func (Stopped) isEvent()      {}
func (UnitsReport) isEvent()  {}
func (PresetReport) isEvent() {}
func (Ack) isEvent()          {}
func (Nak) isEvent()          {}

// ----------------------------
// Decoder
// ----------------------------

// Decoder turns raw notification frames into telemetry events. It is stateful
// in exactly one way: height operands arrive in the desk's display unit, so
// the decoder tracks the most recent UnitsReport and converts heights to
// millimetres with it. Until a units report is seen, millimetres are assumed.
//
// A Decoder belongs to one session and is not safe for concurrent use.
type Decoder struct {
	unit Unit
}

// NewDecoder returns a decoder assuming millimetre operands.
func NewDecoder() *Decoder {
	return &Decoder{unit: UnitMillimetres}
}

// Unit returns the display unit the decoder is currently assuming.
func (d *Decoder) Unit() Unit {
	return d.unit
}

// Decode parses and interprets one raw frame. Integrity failures return
// ErrMalformed; frames addressed to the desk or carrying opcodes the engine
// does not consume return ErrUnknownFrame. Both are recoverable: the caller
// drops the frame and keeps reading.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	if f.ToDesk {
		// A notification carrying the host->desk address is not ours to
		// interpret; some controllers echo writes back.
		return nil, &DecodeError{Kind: UnknownFrame, Msg: "desk-bound frame on notify stream"}
	}
	return d.decodeReport(f)
}

func (d *Decoder) decodeReport(f Frame) (Event, error) {
	switch f.Opcode {
	case RptHeight:
		if len(f.Params) == 0 {
			return Stopped{}, nil
		}
		if len(f.Params) < 2 {
			return nil, malformed("height report with %d param bytes", len(f.Params))
		}
		ev := HeightReport{Height: decodeHeightOperand(f.Params, d.unit)}
		if len(f.Params) >= 3 {
			ev.Moving = f.Params[2]&0x01 != 0
		}
		return ev, nil

	case RptUnits:
		if len(f.Params) < 1 {
			return nil, malformed("units report with no params")
		}
		u := Unit(f.Params[0])
		if u != UnitMillimetres && u != UnitInches {
			return nil, malformed("units report with unknown unit 0x%02x", f.Params[0])
		}
		d.unit = u
		return UnitsReport{Unit: u}, nil

	case RptFault:
		if len(f.Params) < 1 {
			return nil, malformed("fault report with no params")
		}
		return Nak{Reason: fmt.Sprintf("desk fault 0x%02x", f.Params[0])}, nil

	case RptWakeAck:
		return Ack{}, nil
	}

	if slot, ok := PresetForReport(f.Opcode); ok {
		if len(f.Params) < 2 {
			return Nak{Reason: fmt.Sprintf("preset %d not set", slot), Slot: slot}, nil
		}
		h := decodeHeightOperand(f.Params, d.unit)
		if h == 0 {
			return Nak{Reason: fmt.Sprintf("preset %d not set", slot), Slot: slot}, nil
		}
		return PresetReport{Slot: slot, Height: h}, nil
	}

	// Settings chatter the engine does not consume (memory mode, collision
	// sensitivity) lands here along with genuinely unknown opcodes.
	return nil, &DecodeError{Kind: UnknownFrame, Msg: fmt.Sprintf("opcode 0x%02x", f.Opcode)}
}
