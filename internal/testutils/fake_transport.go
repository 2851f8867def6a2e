// Package testutils provides in-memory fakes and frame builders shared by
// package tests. The fake transport stands in for the platform BLE stack:
// tests script the desk side by reacting to recorded writes and injecting
// notification bytes.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/protocol"
)

// ----------------------------
// Fake Transport
// ----------------------------

// FakeTransport implements desk.Transport against scripted data.
type FakeTransport struct {
	mu sync.Mutex

	// Advertisements are replayed, in order, to each Scan call.
	Advertisements []desk.Advertisement

	// ConnectErr, when set, fails every Connect attempt.
	ConnectErr error

	// Conn is handed out by Connect. Defaults to a fresh FakeConn.
	Conn *FakeConn

	connected []string
}

// NewFakeTransport creates a transport that connects to a fresh FakeConn.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Conn: NewFakeConn()}
}

// Scan replays the scripted advertisements and completes. A context that is
// already done is honored before any delivery.
func (t *FakeTransport) Scan(ctx context.Context, handler func(desk.Advertisement)) error {
	for _, adv := range t.Advertisements {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		handler(adv)
	}
	return nil
}

// Connect records the attempt and hands out the scripted connection.
func (t *FakeTransport) Connect(ctx context.Context, address string) (desk.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	t.connected = append(t.connected, address)
	if t.Conn == nil {
		t.Conn = NewFakeConn()
	}
	return t.Conn, nil
}

// Connected returns the addresses Connect was called with.
func (t *FakeTransport) Connected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.connected))
	copy(out, t.connected)
	return out
}

// ----------------------------
// Fake Connection
// ----------------------------

// FakeConn implements desk.Conn in memory. Writes are recorded; the test (or
// an OnWrite script) injects notification bytes via Notify.
type FakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool

	notif chan []byte

	// OnWrite, when set, runs synchronously after each recorded write.
	// Scripts use it to play the desk's side of the conversation.
	OnWrite func(data []byte)

	// WriteErr, when set, fails every Write.
	WriteErr error
}

// NewFakeConn creates a connection with a generously buffered notify stream.
func NewFakeConn() *FakeConn {
	return &FakeConn{notif: make(chan []byte, 128)}
}

// Write records the frame and triggers the OnWrite script.
func (c *FakeConn) Write(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("write on closed connection")
	}
	if c.WriteErr != nil {
		err := c.WriteErr
		c.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	script := c.OnWrite
	c.mu.Unlock()

	if script != nil {
		script(cp)
	}
	return nil
}

// Notifications returns the notify stream; closed by Close or Drop.
func (c *FakeConn) Notifications() <-chan []byte {
	return c.notif
}

// Close closes the link and ends the notification stream. Idempotent.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.notif)
	}
	return nil
}

// Drop simulates the peer vanishing mid-session: same observable behavior as
// Close, named for test readability.
func (c *FakeConn) Drop() {
	_ = c.Close()
}

// Notify injects raw notification bytes. Safe to call after close (silently
// dropped, as a radio would).
func (c *FakeConn) Notify(raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	c.notif <- cp
}

// Writes returns a copy of every recorded write, in order.
func (c *FakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	for i, w := range c.writes {
		cp := make([]byte, len(w))
		copy(cp, w)
		out[i] = cp
	}
	return out
}

// WriteCount returns the number of recorded writes.
func (c *FakeConn) WriteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// Opcodes returns the opcode byte of every recorded write, in order.
func (c *FakeConn) Opcodes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, 0, len(c.writes))
	for _, w := range c.writes {
		if len(w) >= 3 {
			out = append(out, w[2])
		}
	}
	return out
}

// ----------------------------
// Frame Builders
// ----------------------------

// Report builds a wire-valid desk-to-host report frame.
func Report(opcode byte, params ...byte) []byte {
	raw, err := protocol.Frame{Opcode: opcode, Params: params}.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return raw
}

// HeightReport builds a height report frame for mm millimetres.
func HeightReport(mm uint16, moving bool) []byte {
	status := byte(0x00)
	if moving {
		status = 0x01
	}
	return Report(protocol.RptHeight, byte(mm>>8), byte(mm&0xff), status)
}

// PresetReport builds a preset report frame for the given slot.
func PresetReport(slot protocol.PresetSlot, mm uint16) []byte {
	opcodes := map[protocol.PresetSlot]byte{
		1: protocol.RptPreset1,
		2: protocol.RptPreset2,
		3: protocol.RptPreset3,
		4: protocol.RptPreset4,
	}
	return Report(opcodes[slot], byte(mm>>8), byte(mm&0xff))
}

// Opcode extracts the opcode byte of a raw frame.
func Opcode(raw []byte) byte {
	if len(raw) < 3 {
		return 0
	}
	return raw[2]
}
