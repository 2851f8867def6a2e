package desk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarthall/blesk/internal/protocol"
)

// ----------------------------
// Movement Outcomes
// ----------------------------

// OutcomeState is the terminal state of a movement run.
type OutcomeState string

const (
	Reached      OutcomeState = "reached"
	TimedOut     OutcomeState = "timed_out"
	Disconnected OutcomeState = "disconnected"
	Rejected     OutcomeState = "rejected"
	Cancelled    OutcomeState = "cancelled"
)

// Outcome is the terminal result of one movement run. Height carries the
// final height for Reached and the last known height otherwise (zero if no
// report was ever seen). Never mutated after construction.
type Outcome struct {
	State   OutcomeState
	Height  protocol.Height
	Reason  string
	Elapsed time.Duration
}

func (o Outcome) String() string {
	switch o.State {
	case Reached:
		return fmt.Sprintf("reached %s in %s", o.Height, o.Elapsed.Truncate(time.Millisecond))
	case Rejected:
		return fmt.Sprintf("rejected: %s", o.Reason)
	default:
		return fmt.Sprintf("%s at %s after %s", o.State, o.Height, o.Elapsed.Truncate(time.Millisecond))
	}
}

// ----------------------------
// Movement Controller
// ----------------------------

// Movement timing defaults. StallTimeout guards against a single dropped
// height report without masking a genuinely stuck desk; MaxDuration bounds
// the whole run regardless of retry state.
const (
	DefaultTolerance    protocol.Height = 1
	DefaultStallTimeout                 = 3 * time.Second
	DefaultMaxDuration                  = 40 * time.Second
)

// MoveOptions tunes a movement run. The zero value selects the defaults.
type MoveOptions struct {
	Tolerance    protocol.Height
	StallTimeout time.Duration
	MaxDuration  time.Duration
}

func (o *MoveOptions) withDefaults() MoveOptions {
	out := MoveOptions{
		Tolerance:    DefaultTolerance,
		StallTimeout: DefaultStallTimeout,
		MaxDuration:  DefaultMaxDuration,
	}
	if o == nil {
		return out
	}
	if o.Tolerance != 0 {
		out.Tolerance = o.Tolerance
	}
	if o.StallTimeout != 0 {
		out.StallTimeout = o.StallTimeout
	}
	if o.MaxDuration != 0 {
		out.MaxDuration = o.MaxDuration
	}
	return out
}

// Controller drives the desk to a target and tracks the run to a terminal
// outcome. One controller run may be active per session at a time; the run
// owns the session's event stream while it is tracking.
type Controller struct {
	session *Session
	logger  *logrus.Logger
	opts    MoveOptions
}

// NewController creates a movement controller over an established session.
func NewController(s *Session, logger *logrus.Logger, opts *MoveOptions) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		session: s,
		logger:  logger,
		opts:    opts.withDefaults(),
	}
}

// MoveToHeight drives the desk to target millimetres. Out-of-range targets
// are rejected before any command reaches the transport.
func (c *Controller) MoveToHeight(ctx context.Context, target protocol.Height) Outcome {
	if !target.Valid() {
		return Outcome{
			State:  Rejected,
			Reason: fmt.Sprintf("height %s outside valid range [%s, %s]", target, protocol.MinHeight, protocol.MaxHeight),
		}
	}

	// The goto operand is expressed in the desk's display unit.
	unit, err := c.session.Units(ctx)
	if err != nil {
		return c.requestFailure(err, 0)
	}

	return c.track(ctx, target, protocol.GotoHeight{Height: target, Unit: unit})
}

// MoveToPreset resolves the slot's stored height with a query round-trip,
// then recalls the preset and tracks motion toward the resolved target. An
// unset slot rejects the run before any movement command is issued.
func (c *Controller) MoveToPreset(ctx context.Context, slot protocol.PresetSlot) Outcome {
	if !slot.Valid() {
		return Outcome{State: Rejected, Reason: fmt.Sprintf("invalid preset slot %d", slot)}
	}

	target, err := c.session.QueryPreset(ctx, slot)
	if err != nil {
		var nak *NakError
		if errors.As(err, &nak) {
			return Outcome{State: Rejected, Reason: nak.Reason}
		}
		return c.requestFailure(err, 0)
	}

	return c.track(ctx, target, protocol.GotoPreset{Slot: slot})
}

// requestFailure maps a pre-tracking session error to a terminal outcome.
func (c *Controller) requestFailure(err error, last protocol.Height) Outcome {
	switch {
	case errors.Is(err, ErrDisconnected):
		return Outcome{State: Disconnected, Height: last}
	case errors.Is(err, context.Canceled):
		return Outcome{State: Cancelled, Height: last}
	default:
		return Outcome{State: Rejected, Height: last, Reason: err.Error()}
	}
}

// track is the Tracking phase: issue the goto command, consume height
// reports, detect arrival, stall and disconnect, and stop the desk when the
// run ends early.
func (c *Controller) track(ctx context.Context, target protocol.Height, cmd protocol.Command) Outcome {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{
		"address": c.session.Address(),
		"target":  target.String(),
	})

	last, haveLast := c.session.LastHeight()
	done := func(state OutcomeState, reason string) Outcome {
		return Outcome{State: state, Height: last, Reason: reason, Elapsed: time.Since(start)}
	}

	if err := c.session.Send(cmd); err != nil {
		return c.requestFailure(err, last)
	}
	log.Debug("Movement requested")

	stall := time.NewTimer(c.opts.StallTimeout)
	defer stall.Stop()
	overall := time.NewTimer(c.opts.MaxDuration)
	defer overall.Stop()

	retried := false

	for {
		select {
		case <-ctx.Done():
			// Best-effort halt; the user interrupting a move expects
			// the desk to stop promptly, not a confirmation wait.
			_ = c.session.Send(protocol.Stop{})
			log.Debug("Movement cancelled")
			return done(Cancelled, "")

		case <-overall.C:
			_ = c.session.Send(protocol.Stop{})
			log.WithField("last_height", last.String()).Warn("Movement exceeded maximum duration")
			return done(TimedOut, "maximum duration exceeded")

		case <-stall.C:
			if !retried {
				// One retry covers a dropped notification or a
				// swallowed goto without masking a stuck desk.
				retried = true
				log.Debug("No height report, re-issuing movement command")
				if err := c.session.Send(cmd); err != nil {
					return c.requestFailure(err, last)
				}
				stall.Reset(c.opts.StallTimeout)
				continue
			}
			log.WithField("last_height", last.String()).Warn("Desk stopped reporting")
			return done(TimedOut, "no height reports")

		case ev, ok := <-c.session.Events():
			if !ok {
				log.Warn("Connection lost mid-movement")
				return done(Disconnected, "")
			}

			switch e := ev.(type) {
			case protocol.HeightReport:
				last, haveLast = e.Height, true
				if !stall.Stop() {
					<-stall.C
				}
				stall.Reset(c.opts.StallTimeout)

				if within(e.Height, target, c.opts.Tolerance) {
					_ = c.session.Send(protocol.Stop{})
					log.WithField("height", e.Height.String()).Debug("Target reached")
					return done(Reached, "")
				}

			case protocol.Stopped:
				// Desk declared end of travel. Short of target this
				// is indistinguishable from a stall from the
				// caller's point of view.
				if haveLast && within(last, target, c.opts.Tolerance) {
					return done(Reached, "")
				}
				log.WithField("last_height", last.String()).Warn("Desk stopped short of target")
				return done(TimedOut, "desk stopped short of target")

			case protocol.Nak:
				// Slot-tagged naks are settings-dump chatter about
				// unset presets, not a refusal of this run.
				if e.Slot != 0 {
					continue
				}
				_ = c.session.Send(protocol.Stop{})
				return done(Rejected, e.Reason)
			}
		}
	}
}

func within(h, target, tolerance protocol.Height) bool {
	if h > target {
		return h-target <= tolerance
	}
	return target-h <= tolerance
}
