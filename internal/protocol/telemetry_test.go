package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// report builds a wire-valid host report frame for tests.
func report(t *testing.T, opcode byte, params ...byte) []byte {
	t.Helper()
	raw, err := Frame{Opcode: opcode, Params: params}.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func TestDecoderDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      func(t *testing.T) []byte
		expected Event
	}{
		{
			name:     "height report 750mm",
			raw:      func(t *testing.T) []byte { return report(t, RptHeight, 0x02, 0xee) },
			expected: HeightReport{Height: 750},
		},
		{
			name:     "height report with moving status",
			raw:      func(t *testing.T) []byte { return report(t, RptHeight, 0x02, 0xee, 0x01) },
			expected: HeightReport{Height: 750, Moving: true},
		},
		{
			name:     "empty height report is the stopped marker",
			raw:      func(t *testing.T) []byte { return report(t, RptHeight) },
			expected: Stopped{},
		},
		{
			name:     "units report",
			raw:      func(t *testing.T) []byte { return report(t, RptUnits, 0x01) },
			expected: UnitsReport{Unit: UnitInches},
		},
		{
			name:     "preset report",
			raw:      func(t *testing.T) []byte { return report(t, RptPreset2, 0x03, 0xe8) },
			expected: PresetReport{Slot: 2, Height: 1000},
		},
		{
			name:     "zero-height preset decodes as unset",
			raw:      func(t *testing.T) []byte { return report(t, RptPreset3, 0x00, 0x00) },
			expected: Nak{Reason: "preset 3 not set", Slot: 3},
		},
		{
			name:     "empty preset report decodes as unset",
			raw:      func(t *testing.T) []byte { return report(t, RptPreset2) },
			expected: Nak{Reason: "preset 2 not set", Slot: 2},
		},
		{
			name:     "wake ack",
			raw:      func(t *testing.T) []byte { return report(t, RptWakeAck) },
			expected: Ack{},
		},
		{
			name:     "fault report",
			raw:      func(t *testing.T) []byte { return report(t, RptFault, 0x03) },
			expected: Nak{Reason: "desk fault 0x03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewDecoder().Decode(tt.raw(t))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ev)
		})
	}
}

func TestDecoderTracksUnits(t *testing.T) {
	d := NewDecoder()
	assert.Equal(t, UnitMillimetres, d.Unit())

	// Desk reports inches; subsequent heights arrive as tenth-inches.
	_, err := d.Decode(report(t, RptUnits, 0x01))
	require.NoError(t, err)
	assert.Equal(t, UnitInches, d.Unit())

	// 400 tenth-inches = 40in = 1016mm
	ev, err := d.Decode(report(t, RptHeight, 0x01, 0x90))
	require.NoError(t, err)
	assert.Equal(t, HeightReport{Height: 1016}, ev)

	// Preset operands convert the same way.
	ev, err = d.Decode(report(t, RptPreset1, 0x01, 0x90))
	require.NoError(t, err)
	assert.Equal(t, PresetReport{Slot: 1, Height: 1016}, ev)

	// Switching back to millimetres restores raw interpretation.
	_, err = d.Decode(report(t, RptUnits, 0x00))
	require.NoError(t, err)

	ev, err = d.Decode(report(t, RptHeight, 0x03, 0xe8))
	require.NoError(t, err)
	assert.Equal(t, HeightReport{Height: 1000}, ev)
}

func TestDecoderRecoverableErrors(t *testing.T) {
	d := NewDecoder()

	t.Run("unknown opcode", func(t *testing.T) {
		_, err := d.Decode(report(t, 0x42))
		assert.ErrorIs(t, err, ErrUnknownFrame)
	})

	t.Run("settings chatter is skipped", func(t *testing.T) {
		_, err := d.Decode(report(t, RptMemMode, 0x01))
		assert.ErrorIs(t, err, ErrUnknownFrame)

		_, err = d.Decode(report(t, RptCollisionSens, 0x02))
		assert.ErrorIs(t, err, ErrUnknownFrame)
	})

	t.Run("desk-bound echo is skipped", func(t *testing.T) {
		raw, err := Encode(Wake{})
		require.NoError(t, err)

		_, err = d.Decode(raw)
		assert.ErrorIs(t, err, ErrUnknownFrame)
	})

	t.Run("corrupt frame is malformed", func(t *testing.T) {
		raw := report(t, RptHeight, 0x02, 0xee)
		raw[5] ^= 0xff
		_, err := d.Decode(raw)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("errors do not disturb unit state", func(t *testing.T) {
		assert.Equal(t, UnitMillimetres, d.Unit())
	})
}
