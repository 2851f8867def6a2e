package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/protocol"
	"github.com/smarthall/blesk/pkg/config"
	"github.com/smarthall/blesk/scanner"
)

// Exit codes. Scripts key off these, keep them stable.
const (
	exitOK        = 0
	exitOther     = 1
	exitConfig    = 2
	exitDiscovery = 3
	exitConnect   = 4
	exitProtocol  = 5
	exitMovement  = 6
)

// movementError wraps a terminal movement outcome that is not Reached so it
// can travel through cobra's error return.
type movementError struct {
	Outcome desk.Outcome
}

func (e *movementError) Error() string {
	return e.Outcome.String()
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var (
		noAddr  *config.NoAddressError
		connect *desk.ConnectError
		decode  *protocol.DecodeError
		nak     *desk.NakError
		move    *movementError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitOK
	case errors.As(err, &noAddr):
		return exitConfig
	case errors.Is(err, scanner.ErrNoDesksFound):
		return exitDiscovery
	case errors.As(err, &connect):
		return exitConnect
	case errors.As(err, &decode),
		errors.As(err, &nak),
		errors.Is(err, desk.ErrResponseTimeout),
		errors.Is(err, desk.ErrDisconnected):
		return exitProtocol
	case errors.As(err, &move):
		return exitMovement
	default:
		return exitOther
	}
}

// FormatUserError renders an error for the terminal, without Go error-chain
// noise where a friendlier message exists.
func FormatUserError(err error) string {
	var (
		connect *desk.ConnectError
		nak     *desk.NakError
		move    *movementError
	)
	switch {
	case errors.As(err, &connect):
		switch connect.State {
		case desk.ConnectTimeout:
			return fmt.Sprintf("%s\nIs the desk powered and in range? Try 'blesk scan'.", connect.Msg)
		case desk.Busy:
			return "desk is busy (already paired with another controller)"
		default:
			return connect.Error()
		}
	case errors.Is(err, desk.ErrResponseTimeout):
		return "the desk did not answer in time"
	case errors.Is(err, desk.ErrDisconnected):
		return "lost the connection to the desk"
	case errors.As(err, &nak):
		return nak.Reason
	case errors.As(err, &move):
		return move.Outcome.String()
	default:
		return err.Error()
	}
}
