package protocol

import (
	"fmt"
)

// ----------------------------
// Wire Format Constants
// ----------------------------

// The Desky controller speaks a fixed-layout frame over a single write/notify
// characteristic pair:
//
//	addr(2) | opcode(1) | paramLen(1) | params(0..6) | checksum(1) | 0x7E
//
// The checksum covers opcode, paramLen and params, modulo 256. Frames sent to
// the desk carry the F1F1 address; frames from the desk carry F2F2. This table
// was captured from live traffic and must not be changed without re-verifying
// against a real controller.
const (
	FrameTerminator = 0x7e

	// MinFrameLen is a frame with no params: addr(2)+opcode+len+checksum+term.
	MinFrameLen = 6
	// MaxFrameLen bounds params at 6 bytes.
	MaxFrameLen = 12

	maxParamLen = MaxFrameLen - MinFrameLen
)

var (
	addrToDesk = [2]byte{0xf1, 0xf1}
	addrToHost = [2]byte{0xf2, 0xf2}
)

// Desk-bound opcodes (commands the host sends).
const (
	OpRaise         byte = 0x01
	OpLower         byte = 0x02
	OpSetPreset1    byte = 0x03
	OpSetPreset2    byte = 0x04
	OpGotoPreset1   byte = 0x05
	OpGotoPreset2   byte = 0x06
	OpQuerySettings byte = 0x07
	OpUnits         byte = 0x0e
	OpGotoHeight    byte = 0x1b
	OpSetPreset3    byte = 0x25
	OpSetPreset4    byte = 0x26
	OpGotoPreset3   byte = 0x27
	OpGotoPreset4   byte = 0x28
	OpStop          byte = 0x2b
	OpWake          byte = 0xb2
)

// Host-bound opcodes (reports the desk sends).
const (
	RptHeight        byte = 0x01
	RptUnits         byte = 0x0e
	RptFault         byte = 0x17
	RptMemMode       byte = 0x19
	RptCollisionSens byte = 0x1d
	RptPreset1       byte = 0x25
	RptPreset2       byte = 0x26
	RptPreset3       byte = 0x27
	RptPreset4       byte = 0x28
	RptWakeAck       byte = 0xb2
)

// ----------------------------
// Decode Errors
// ----------------------------

// DecodeErrorKind classifies why an inbound frame could not be decoded.
type DecodeErrorKind string

const (
	Malformed    DecodeErrorKind = "malformed"
	UnknownFrame DecodeErrorKind = "unknown_frame"
)

// DecodeError reports a frame that failed integrity checks or carried an
// opcode the engine does not consume. Callers drop the frame and keep reading.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is allows errors.Is to compare DecodeError values by Kind
func (e *DecodeError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors for decode failures
var (
	ErrMalformed    = &DecodeError{Kind: Malformed}
	ErrUnknownFrame = &DecodeError{Kind: UnknownFrame}
)

func malformed(format string, args ...interface{}) error {
	return &DecodeError{Kind: Malformed, Msg: fmt.Sprintf(format, args...)}
}

// ----------------------------
// Frame
// ----------------------------

// Frame is one raw protocol frame, direction-tagged but not yet interpreted.
type Frame struct {
	Opcode byte
	ToDesk bool
	Params []byte
}

// MarshalBinary renders the frame in wire layout.
func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Params) > maxParamLen {
		return nil, fmt.Errorf("param length %d exceeds maximum of %d", len(f.Params), maxParamLen)
	}

	msg := make([]byte, 0, MinFrameLen+len(f.Params))
	if f.ToDesk {
		msg = append(msg, addrToDesk[:]...)
	} else {
		msg = append(msg, addrToHost[:]...)
	}
	msg = append(msg, f.Opcode, byte(len(f.Params)))
	msg = append(msg, f.Params...)
	msg = append(msg, checksum(msg[2:]), FrameTerminator)

	return msg, nil
}

// ParseFrame validates frame integrity (length, terminator, checksum, address)
// and returns the contained opcode and params. Integrity failures yield a
// DecodeError of kind Malformed.
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < MinFrameLen {
		return Frame{}, malformed("frame too short (%d bytes)", len(raw))
	}
	if len(raw) > MaxFrameLen {
		return Frame{}, malformed("frame too long (%d bytes)", len(raw))
	}
	if int(raw[3])+MinFrameLen != len(raw) {
		return Frame{}, malformed("declared param length %d does not match frame length %d", raw[3], len(raw))
	}
	if raw[len(raw)-1] != FrameTerminator {
		return Frame{}, malformed("missing terminator, got 0x%02x", raw[len(raw)-1])
	}

	want := raw[len(raw)-2]
	got := checksum(raw[2 : len(raw)-2])
	if want != got {
		return Frame{}, malformed("checksum mismatch, expected 0x%02x but got 0x%02x", got, want)
	}

	var toDesk bool
	switch {
	case raw[0] == addrToDesk[0] && raw[1] == addrToDesk[1]:
		toDesk = true
	case raw[0] == addrToHost[0] && raw[1] == addrToHost[1]:
		toDesk = false
	default:
		return Frame{}, malformed("unrecognized address 0x%02x%02x", raw[0], raw[1])
	}

	params := make([]byte, raw[3])
	copy(params, raw[4:len(raw)-2])

	return Frame{Opcode: raw[2], ToDesk: toDesk, Params: params}, nil
}

func checksum(payload []byte) byte {
	var sum int
	for _, b := range payload {
		sum += int(b)
	}
	return byte(sum % 0x100)
}
