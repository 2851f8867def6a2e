package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMarshalBinary(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		expected []byte
	}{
		{
			name:     "wake frame with no params",
			frame:    Frame{Opcode: OpWake, ToDesk: true},
			expected: []byte{0xf1, 0xf1, 0xb2, 0x00, 0xb2, 0x7e},
		},
		{
			name:     "goto height 1000mm",
			frame:    Frame{Opcode: OpGotoHeight, ToDesk: true, Params: []byte{0x03, 0xe8}},
			expected: []byte{0xf1, 0xf1, 0x1b, 0x02, 0x03, 0xe8, 0x08, 0x7e},
		},
		{
			name:     "stop frame",
			frame:    Frame{Opcode: OpStop, ToDesk: true},
			expected: []byte{0xf1, 0xf1, 0x2b, 0x00, 0x2b, 0x7e},
		},
		{
			name:     "host-addressed frame",
			frame:    Frame{Opcode: RptHeight, Params: []byte{0x02, 0xee}},
			expected: []byte{0xf2, 0xf2, 0x01, 0x02, 0x02, 0xee, 0xf3, 0x7e},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.frame.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, raw)
		})
	}
}

func TestFrameMarshalBinaryRejectsOversizedParams(t *testing.T) {
	f := Frame{Opcode: OpGotoHeight, ToDesk: true, Params: make([]byte, maxParamLen+1)}
	_, err := f.MarshalBinary()
	assert.Error(t, err)
}

func TestParseFrame(t *testing.T) {
	t.Run("round-trips a marshalled frame", func(t *testing.T) {
		orig := Frame{Opcode: RptHeight, Params: []byte{0x02, 0xee, 0x01}}
		raw, err := orig.MarshalBinary()
		require.NoError(t, err)

		parsed, err := ParseFrame(raw)
		require.NoError(t, err)
		assert.Equal(t, orig, parsed)
	})

	t.Run("params are copied, not aliased", func(t *testing.T) {
		raw := []byte{0xf2, 0xf2, 0x01, 0x02, 0x02, 0xee, 0xf3, 0x7e}
		parsed, err := ParseFrame(raw)
		require.NoError(t, err)

		raw[4] = 0xff
		assert.Equal(t, []byte{0x02, 0xee}, parsed.Params)
	})
}

func TestParseFrameMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{
			name: "too short",
			raw:  []byte{0xf2, 0xf2, 0x01, 0x7e},
		},
		{
			name: "too long",
			raw:  make([]byte, MaxFrameLen+1),
		},
		{
			name: "declared length mismatch",
			raw:  []byte{0xf2, 0xf2, 0x01, 0x05, 0x02, 0xee, 0xf3, 0x7e},
		},
		{
			name: "missing terminator",
			raw:  []byte{0xf2, 0xf2, 0x01, 0x02, 0x02, 0xee, 0xf3, 0x00},
		},
		{
			name: "bad checksum",
			raw:  []byte{0xf2, 0xf2, 0x01, 0x02, 0x02, 0xee, 0x00, 0x7e},
		},
		{
			name: "unknown address",
			raw:  []byte{0xaa, 0xbb, 0x01, 0x02, 0x02, 0xee, 0xf3, 0x7e},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
