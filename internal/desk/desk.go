// Package desk implements the Desky control engine: the session owning one
// BLE link, the single-shot height/preset queries, and the closed-loop
// movement controller that drives the desk to a target and reports a terminal
// outcome. The BLE stack itself is consumed through the Transport contract.
package desk

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/smarthall/blesk/internal/protocol"
)

// Desk is the high-level handle the CLI layer drives: one session plus a
// movement controller over it.
type Desk struct {
	session *Session
	logger  *logrus.Logger
	opts    *MoveOptions
}

// Dial connects to the desk at address and returns a ready handle.
func Dial(ctx context.Context, t Transport, address string, logger *logrus.Logger, opts *MoveOptions) (*Desk, error) {
	s, err := Connect(ctx, t, address, logger)
	if err != nil {
		return nil, err
	}
	return &Desk{session: s, logger: logger, opts: opts}, nil
}

// Session exposes the underlying session.
func (d *Desk) Session() *Session {
	return d.session
}

// Close releases the connection.
func (d *Desk) Close() error {
	return d.session.Close()
}

// Height reads the current height.
func (d *Desk) Height(ctx context.Context) (protocol.Height, error) {
	return d.session.QueryHeight(ctx)
}

// Preset reads the stored height of one slot.
func (d *Desk) Preset(ctx context.Context, slot protocol.PresetSlot) (protocol.Height, error) {
	return d.session.QueryPreset(ctx, slot)
}

// SavePreset stores the current height into a slot and confirms the stored
// value with a re-read.
func (d *Desk) SavePreset(ctx context.Context, slot protocol.PresetSlot) (protocol.Height, error) {
	if !slot.Valid() {
		return 0, fmt.Errorf("invalid preset slot %d", slot)
	}
	if err := d.session.Send(protocol.SavePreset{Slot: slot}); err != nil {
		return 0, err
	}
	return d.session.QueryPreset(ctx, slot)
}

// GoToHeight runs the movement controller toward an absolute height.
func (d *Desk) GoToHeight(ctx context.Context, target protocol.Height) Outcome {
	return NewController(d.session, d.logger, d.opts).MoveToHeight(ctx, target)
}

// GoToPreset runs the movement controller toward a stored preset.
func (d *Desk) GoToPreset(ctx context.Context, slot protocol.PresetSlot) Outcome {
	return NewController(d.session, d.logger, d.opts).MoveToPreset(ctx, slot)
}
