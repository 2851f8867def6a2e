package desk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/smarthall/blesk/internal/groutine"
	"github.com/smarthall/blesk/internal/protocol"
	"github.com/smarthall/blesk/internal/ringchan"
)

// ----------------------------
// Configuration Constants
// ----------------------------

const (
	// DefaultEventBuffer bounds the telemetry ring; producers drop oldest
	// rather than block, matching the gap tolerance of the link itself.
	DefaultEventBuffer = 64

	// DefaultResponseTimeout bounds single-shot query round-trips.
	DefaultResponseTimeout = 2 * time.Second
)

// ----------------------------
// Telemetry Cache Keys
// ----------------------------

const (
	cacheKeyHeight uint8 = iota
	cacheKeyUnits
	cacheKeyPresetBase // + slot
)

func cacheKeyFor(ev protocol.Event) (uint8, bool) {
	switch e := ev.(type) {
	case protocol.HeightReport:
		return cacheKeyHeight, true
	case protocol.UnitsReport:
		return cacheKeyUnits, true
	case protocol.PresetReport:
		return cacheKeyPresetBase + uint8(e.Slot), true
	}
	return 0, false
}

// ----------------------------
// Session
// ----------------------------

// Session owns one live connection to one desk. It serializes command writes,
// decodes the notification stream into telemetry events, and exposes that
// stream plus bounded single-shot queries.
//
// At most one consumer may drain Events at a time; the engine alternates
// between query round-trips and a movement run, never both at once.
type Session struct {
	address string
	conn    Conn
	logger  *logrus.Logger

	writeMu sync.Mutex
	events  *ringchan.Ring[protocol.Event]

	// Most recent report of each kind, refreshed by the reader loop. Read
	// concurrently by Units and by movement logging.
	cache *hashmap.Map[uint8, protocol.Event]

	closed     atomic.Bool
	readerDone chan struct{}

	// responseTimeout bounds query round-trips; overridable in tests.
	responseTimeout time.Duration
}

// Connect establishes a session with the desk at address via the given
// transport. On success the desk has been woken and is reporting telemetry.
// The context bounds the connection attempt only.
func Connect(ctx context.Context, t Transport, address string, logger *logrus.Logger) (*Session, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := t.Connect(ctx, address)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ConnectError{State: ConnectTimeout, Msg: err.Error()}
		}
		return nil, err
	}

	s := &Session{
		address:         address,
		conn:            conn,
		logger:          logger,
		events:          ringchan.New[protocol.Event](DefaultEventBuffer),
		cache:           hashmap.New[uint8, protocol.Event](),
		readerDone:      make(chan struct{}),
		responseTimeout: DefaultResponseTimeout,
	}

	groutine.Go(nil, "desk-read-"+address, func(context.Context) { s.readLoop() })

	// The controller stays silent until woken.
	if err := s.Send(protocol.Wake{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("wake failed: %w", err)
	}

	logger.WithField("address", address).Debug("Session established")
	return s, nil
}

// SetResponseTimeout overrides the single-shot query response window.
func (s *Session) SetResponseTimeout(d time.Duration) {
	if d > 0 {
		s.responseTimeout = d
	}
}

// Address returns the address of the connected desk.
func (s *Session) Address() string {
	return s.address
}

// Events returns the decoded telemetry stream. Events arrive in delivery
// order but delivery is not guaranteed; the channel is closed when the link
// drops or the session is closed (the end-of-stream sentinel).
func (s *Session) Events() <-chan protocol.Event {
	return s.events.C()
}

// Closed reports whether the session has reached its terminal state.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Send encodes and writes one command. Writes are serialized; a concurrent
// Send blocks until the previous transport write completes. Returns
// ErrDisconnected once the session is closed.
func (s *Session) Send(cmd protocol.Command) error {
	if s.closed.Load() {
		return ErrDisconnected
	}

	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return ErrDisconnected
	}

	s.logger.WithFields(logrus.Fields{
		"address": s.address,
		"bytes":   fmt.Sprintf("%x", data),
	}).Debug("Sending frame")

	if err := s.conn.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close releases the transport. Idempotent; safe to call from any goroutine.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()

	// The reader observes the notification channel closing and closes the
	// event stream; wait so callers see a quiesced session.
	<-s.readerDone
	return err
}

// readLoop reassembles and decodes notifications until the link drops.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer s.events.Close()

	framer := protocol.NewFramer()
	decoder := protocol.NewDecoder()

	for raw := range s.conn.Notifications() {
		for _, frame := range framer.Push(raw) {
			ev, err := decoder.Decode(frame)
			if err != nil {
				// Recoverable by contract: drop the frame, keep the
				// stream alive.
				if errors.Is(err, protocol.ErrMalformed) {
					s.logger.WithFields(logrus.Fields{
						"address": s.address,
						"bytes":   fmt.Sprintf("%x", frame),
					}).WithError(err).Warn("Dropping malformed frame")
				} else {
					s.logger.WithError(err).Debug("Skipping frame")
				}
				continue
			}

			if key, ok := cacheKeyFor(ev); ok {
				s.cache.Set(key, ev)
			}
			if s.events.Send(ev) {
				s.logger.WithField("address", s.address).Debug("Telemetry ring full, dropped oldest event")
			}
		}
	}

	s.closed.Store(true)
	s.logger.WithField("address", s.address).Debug("Notification stream ended")
}

// ----------------------------
// Single-shot Queries
// ----------------------------

// await drains the event stream until match accepts an event, the response
// window lapses, or the stream ends.
func (s *Session) await(ctx context.Context, match func(protocol.Event) (protocol.Event, bool)) (protocol.Event, error) {
	timer := time.NewTimer(s.responseTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrResponseTimeout
		case ev, ok := <-s.events.C():
			if !ok {
				return nil, ErrDisconnected
			}
			if res, done := match(ev); done {
				return res, nil
			}
		}
	}
}

// QueryHeight performs one height request/response round-trip.
func (s *Session) QueryHeight(ctx context.Context) (protocol.Height, error) {
	if err := s.Send(protocol.QueryHeight{}); err != nil {
		return 0, err
	}
	ev, err := s.await(ctx, func(ev protocol.Event) (protocol.Event, bool) {
		if hr, ok := ev.(protocol.HeightReport); ok {
			return hr, true
		}
		return nil, false
	})
	if err != nil {
		return 0, err
	}
	return ev.(protocol.HeightReport).Height, nil
}

// QueryPreset re-reads the stored height of one slot from the device. A slot
// with no stored height returns a *NakError.
func (s *Session) QueryPreset(ctx context.Context, slot protocol.PresetSlot) (protocol.Height, error) {
	if !slot.Valid() {
		return 0, fmt.Errorf("invalid preset slot %d", slot)
	}
	if err := s.Send(protocol.QueryPreset{Slot: slot}); err != nil {
		return 0, err
	}

	ev, err := s.await(ctx, func(ev protocol.Event) (protocol.Event, bool) {
		switch e := ev.(type) {
		case protocol.PresetReport:
			if e.Slot == slot {
				return e, true
			}
		case protocol.Nak:
			if e.Slot == slot {
				return e, true
			}
		}
		return nil, false
	})
	if err != nil {
		return 0, err
	}

	switch e := ev.(type) {
	case protocol.PresetReport:
		return e.Height, nil
	case protocol.Nak:
		return 0, &NakError{Reason: e.Reason, Slot: e.Slot}
	default:
		return 0, fmt.Errorf("unexpected event %T", ev)
	}
}

// Units returns the desk's configured display unit, using the session cache
// when a units report has already been seen.
func (s *Session) Units(ctx context.Context) (protocol.Unit, error) {
	if ev, ok := s.cache.Get(cacheKeyUnits); ok {
		return ev.(protocol.UnitsReport).Unit, nil
	}

	if err := s.Send(protocol.QuerySettings{}); err != nil {
		return protocol.UnitMillimetres, err
	}
	ev, err := s.await(ctx, func(ev protocol.Event) (protocol.Event, bool) {
		if ur, ok := ev.(protocol.UnitsReport); ok {
			return ur, true
		}
		return nil, false
	})
	if err != nil {
		return protocol.UnitMillimetres, err
	}
	return ev.(protocol.UnitsReport).Unit, nil
}

// LastHeight returns the most recently reported height, if any report has
// been seen this session.
func (s *Session) LastHeight() (protocol.Height, bool) {
	if ev, ok := s.cache.Get(cacheKeyHeight); ok {
		return ev.(protocol.HeightReport).Height, true
	}
	return 0, false
}
