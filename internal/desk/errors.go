package desk

import (
	"errors"
	"fmt"

	"github.com/smarthall/blesk/internal/protocol"
)

// ConnectState represents the specific kind of connection failure
type ConnectState string

const (
	NotFound       ConnectState = "not_found"
	Busy           ConnectState = "busy"
	ConnectTimeout ConnectState = "timeout"
)

// ConnectError represents a failure to establish a session
type ConnectError struct {
	State ConnectState
	Msg   string
}

// Error implements the error interface
func (e *ConnectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectError values by State
func (e *ConnectError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connect failures
var (
	ErrNotFound       = &ConnectError{State: NotFound}
	ErrBusy           = &ConnectError{State: Busy}
	ErrConnectTimeout = &ConnectError{State: ConnectTimeout}
)

// Operation errors
var (
	// ErrDisconnected is returned by Send and the queries once the session
	// is closed or the link has dropped.
	ErrDisconnected = errors.New("disconnected")

	// ErrResponseTimeout is returned when a single-shot query sees no
	// matching report within its response window.
	ErrResponseTimeout = errors.New("response timeout")
)

// NakError reports a command the desk refused.
type NakError struct {
	Reason string
	Slot   protocol.PresetSlot
}

func (e *NakError) Error() string {
	return e.Reason
}
