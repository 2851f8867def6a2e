package desk_test

import (
	"context"
	"testing"
	"time"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/protocol"
	"github.com/smarthall/blesk/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastOpts keeps movement tests well under a second.
func fastOpts() *desk.MoveOptions {
	return &desk.MoveOptions{
		StallTimeout: 60 * time.Millisecond,
		MaxDuration:  2 * time.Second,
	}
}

func countOpcode(conn *testutils.FakeConn, opcode byte) int {
	n := 0
	for _, op := range conn.Opcodes() {
		if op == opcode {
			n++
		}
	}
	return n
}

// deskAt scripts a desk currently at the given height that answers settings
// queries in millimetre mode, and ramps through heights when told to move.
func deskAt(current uint16, ramp []uint16, presets map[protocol.PresetSlot]uint16) func(conn *testutils.FakeConn, data []byte) {
	return func(conn *testutils.FakeConn, data []byte) {
		switch testutils.Opcode(data) {
		case protocol.OpWake:
			conn.Notify(testutils.Report(protocol.RptWakeAck))
			conn.Notify(testutils.HeightReport(current, false))
		case protocol.OpQuerySettings:
			conn.Notify(testutils.Report(protocol.RptUnits, 0x00))
			if presets != nil {
				// Full settings dump: every slot reports, unset
				// slots with a zero height.
				for slot := protocol.PresetSlot(1); slot <= 4; slot++ {
					conn.Notify(testutils.PresetReport(slot, presets[slot]))
				}
			}
		case protocol.OpGotoHeight, protocol.OpGotoPreset1, protocol.OpGotoPreset2,
			protocol.OpGotoPreset3, protocol.OpGotoPreset4:
			for _, mm := range ramp {
				conn.Notify(testutils.HeightReport(mm, true))
			}
		}
	}
}

func TestMoveToHeightReachesTarget(t *testing.T) {
	s, conn := connect(t, deskAt(750, []uint16{800, 900, 998, 1000}, nil))
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToHeight(context.Background(), 1000)

	assert.Equal(t, desk.Reached, outcome.State)
	assert.Equal(t, protocol.Height(1000), outcome.Height)
	assert.Equal(t, 1, countOpcode(conn, protocol.OpStop), "exactly one stop on arrival")
	assert.Equal(t, 1, countOpcode(conn, protocol.OpGotoHeight))
}

func TestMoveToHeightArrivesWithinTolerance(t *testing.T) {
	s, _ := connect(t, deskAt(750, []uint16{900, 999}, nil))
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToHeight(context.Background(), 1000)

	assert.Equal(t, desk.Reached, outcome.State)
	assert.Equal(t, protocol.Height(999), outcome.Height)
}

func TestMoveToHeightRejectsOutOfRangeBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name   string
		target protocol.Height
	}{
		{name: "below minimum", target: protocol.MinHeight - 1},
		{name: "above maximum", target: protocol.MaxHeight + 1},
		{name: "zero", target: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, conn := connect(t, nil)
			c := desk.NewController(s, testLogger(), fastOpts())
			before := conn.WriteCount()

			outcome := c.MoveToHeight(context.Background(), tt.target)

			assert.Equal(t, desk.Rejected, outcome.State)
			assert.Contains(t, outcome.Reason, "outside valid range")
			assert.Equal(t, before, conn.WriteCount(), "no commands may reach the transport")
		})
	}
}

func TestMoveToHeightConvertsForInchesDesk(t *testing.T) {
	s, conn := connect(t, func(conn *testutils.FakeConn, data []byte) {
		switch testutils.Opcode(data) {
		case protocol.OpQuerySettings:
			conn.Notify(testutils.Report(protocol.RptUnits, 0x01))
		case protocol.OpGotoHeight:
			// Echo the operand straight back; in inches mode it is
			// tenth-inches, which the decoder converts to mm.
			conn.Notify(testutils.Report(protocol.RptHeight, data[4], data[5], 0x00))
		}
	})
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToHeight(context.Background(), 1016)

	require.Equal(t, desk.Reached, outcome.State)
	assert.Equal(t, protocol.Height(1016), outcome.Height)

	// 1016mm = 40in = 400 tenth-inches on the wire.
	var gotoFrame []byte
	for _, w := range conn.Writes() {
		if testutils.Opcode(w) == protocol.OpGotoHeight {
			gotoFrame = w
		}
	}
	require.NotNil(t, gotoFrame)
	assert.Equal(t, []byte{0x01, 0x90}, gotoFrame[4:6])
}

func TestMoveRetriesOnceThenTimesOut(t *testing.T) {
	s, conn := connect(t, deskAt(750, []uint16{800}, nil))
	c := desk.NewController(s, testLogger(), fastOpts())

	start := time.Now()
	outcome := c.MoveToHeight(context.Background(), 1000)

	assert.Equal(t, desk.TimedOut, outcome.State)
	assert.Equal(t, protocol.Height(800), outcome.Height, "last known height")
	assert.Equal(t, 2, countOpcode(conn, protocol.OpGotoHeight), "initial command plus exactly one retry")
	assert.Less(t, time.Since(start), fastOpts().MaxDuration)
}

func TestMoveTimesOutAtMaxDuration(t *testing.T) {
	// Desk keeps reporting but never converges: stall timer never fires,
	// the absolute budget must end the run.
	s, conn := connect(t, nil)
	conn.OnWrite = func(data []byte) {
		if testutils.Opcode(data) == protocol.OpQuerySettings {
			conn.Notify(testutils.Report(protocol.RptUnits, 0x00))
		}
	}
	go func() {
		for i := 0; i < 100; i++ {
			conn.Notify(testutils.HeightReport(800, true))
			time.Sleep(10 * time.Millisecond)
		}
	}()

	c := desk.NewController(s, testLogger(), &desk.MoveOptions{
		StallTimeout: 100 * time.Millisecond,
		MaxDuration:  250 * time.Millisecond,
	})
	outcome := c.MoveToHeight(context.Background(), 1000)

	assert.Equal(t, desk.TimedOut, outcome.State)
	assert.Equal(t, protocol.Height(800), outcome.Height)
}

func TestMoveDisconnectMidTracking(t *testing.T) {
	s, conn := connect(t, func(conn *testutils.FakeConn, data []byte) {
		switch testutils.Opcode(data) {
		case protocol.OpQuerySettings:
			conn.Notify(testutils.Report(protocol.RptUnits, 0x00))
		case protocol.OpGotoHeight:
			conn.Notify(testutils.HeightReport(820, true))
			conn.Drop()
		}
	})
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToHeight(context.Background(), 1000)

	assert.Equal(t, desk.Disconnected, outcome.State)
	assert.Equal(t, protocol.Height(820), outcome.Height)
	// No writes are attempted once the stream has ended.
	assert.Equal(t, 0, countOpcode(conn, protocol.OpStop))
}

func TestMoveStoppedShortOfTarget(t *testing.T) {
	s, _ := connect(t, func(conn *testutils.FakeConn, data []byte) {
		switch testutils.Opcode(data) {
		case protocol.OpQuerySettings:
			conn.Notify(testutils.Report(protocol.RptUnits, 0x00))
		case protocol.OpGotoHeight:
			conn.Notify(testutils.HeightReport(850, true))
			conn.Notify(testutils.Report(protocol.RptHeight)) // stopped marker
		}
	})
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToHeight(context.Background(), 1000)

	assert.Equal(t, desk.TimedOut, outcome.State)
	assert.Equal(t, protocol.Height(850), outcome.Height)
}

func TestMoveCancellationStopsTheDesk(t *testing.T) {
	moving := make(chan struct{})
	s, conn := connect(t, func(conn *testutils.FakeConn, data []byte) {
		switch testutils.Opcode(data) {
		case protocol.OpQuerySettings:
			conn.Notify(testutils.Report(protocol.RptUnits, 0x00))
		case protocol.OpGotoHeight:
			conn.Notify(testutils.HeightReport(800, true))
			close(moving)
		}
	})
	c := desk.NewController(s, testLogger(), fastOpts())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-moving
		cancel()
	}()

	outcome := c.MoveToHeight(ctx, 1000)

	assert.Equal(t, desk.Cancelled, outcome.State)
	assert.Equal(t, 1, countOpcode(conn, protocol.OpStop), "best-effort stop on cancel")
}

func TestMoveToPreset(t *testing.T) {
	s, conn := connect(t, deskAt(750, []uint16{900, 1000}, map[protocol.PresetSlot]uint16{2: 1000}))
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToPreset(context.Background(), 2)

	assert.Equal(t, desk.Reached, outcome.State)
	assert.Equal(t, protocol.Height(1000), outcome.Height)
	assert.Equal(t, 1, countOpcode(conn, protocol.OpGotoPreset2))
}

func TestMoveToPresetUnsetIsRejectedWithoutMovement(t *testing.T) {
	s, conn := connect(t, deskAt(750, nil, map[protocol.PresetSlot]uint16{1: 720}))
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToPreset(context.Background(), 2)

	assert.Equal(t, desk.Rejected, outcome.State)
	assert.Equal(t, "preset 2 not set", outcome.Reason)
	for _, op := range []byte{
		protocol.OpGotoPreset2, protocol.OpGotoHeight, protocol.OpRaise, protocol.OpLower,
	} {
		assert.Zero(t, countOpcode(conn, op), "no movement commands for opcode 0x%02x", op)
	}
}

func TestMoveToPresetRejectsBadSlot(t *testing.T) {
	s, _ := connect(t, nil)
	c := desk.NewController(s, testLogger(), fastOpts())

	outcome := c.MoveToPreset(context.Background(), 0)
	assert.Equal(t, desk.Rejected, outcome.State)
}

func TestDeskFacade(t *testing.T) {
	transport := testutils.NewFakeTransport()
	conn := transport.Conn
	conn.OnWrite = func(data []byte) {
		deskAt(750, []uint16{900, 1000}, map[protocol.PresetSlot]uint16{1: 720})(conn, data)
	}

	d, err := desk.Dial(context.Background(), transport, "AA:BB:CC:DD:EE:FF", testLogger(), fastOpts())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	d.Session().SetResponseTimeout(200 * time.Millisecond)

	h, err := d.Height(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.Height(750), h)

	p, err := d.Preset(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, protocol.Height(720), p)

	outcome := d.GoToHeight(context.Background(), 1000)
	assert.Equal(t, desk.Reached, outcome.State)
}
