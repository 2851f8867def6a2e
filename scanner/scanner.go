// Package scanner discovers Desky controllers over the transport's scan
// primitive, filtering advertisement noise down to (address, name) results.
package scanner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/protocol"
	"github.com/smarthall/blesk/internal/ringchan"
)

// ErrNoDesksFound is returned by callers when a scan completes without a
// single match.
var ErrNoDesksFound = errors.New("no desks found")

// Result is one discovered desk.
type Result struct {
	Address string
	Name    string
	RSSI    int
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration time.Duration
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{Duration: 5 * time.Second}
}

// Scanner handles desk discovery. Each Scan call is an independent scan;
// results within one scan are de-duplicated by address in discovery order.
type Scanner struct {
	transport desk.Transport
	logger    *logrus.Logger
	events    *ringchan.Ring[Result]
}

// NewScanner creates a scanner over the given transport.
func NewScanner(t desk.Transport, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		transport: t,
		logger:    logger,
		events:    ringchan.New[Result](32),
	}
}

// Events returns a live stream of newly discovered desks, useful for
// incremental display while a scan runs. Duplicates are already filtered.
func (s *Scanner) Events() <-chan Result {
	return s.events.C()
}

// Scan discovers desks for the configured duration and returns them in
// discovery order. Ending by timeout or cancellation is a normal completion,
// not an error.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) ([]Result, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithField("duration", opts.Duration).Info("Scanning for desks")

	found := orderedmap.New[string, Result]()
	err := s.transport.Scan(ctx, func(adv desk.Advertisement) {
		if !matches(adv) {
			return
		}
		if _, seen := found.Get(adv.Address); seen {
			return
		}

		r := Result{Address: adv.Address, Name: adv.Name, RSSI: adv.RSSI}
		found.Set(adv.Address, r)
		s.events.Send(r)

		s.logger.WithFields(logrus.Fields{
			"address": r.Address,
			"name":    r.Name,
			"rssi":    r.RSSI,
		}).Info("Discovered desk")
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	results := make([]Result, 0, found.Len())
	for pair := found.Oldest(); pair != nil; pair = pair.Next() {
		results = append(results, pair.Value)
	}

	s.logger.WithField("desk_count", len(results)).Info("Scan completed")
	return results, nil
}

// matches filters for the Desky advertisement signature: the vendor service
// UUID, or the vendor name prefix when the advertisement omits services.
func matches(adv desk.Advertisement) bool {
	for _, svc := range adv.Services {
		switch normalizeUUID(svc) {
		case normalizeUUID(protocol.ServiceUUID), "ff12":
			// Full 128-bit form, or the 16-bit short form some
			// advertisements carry.
			return true
		}
	}
	return strings.HasPrefix(strings.ToLower(adv.Name), strings.ToLower(protocol.AdvertisedNamePrefix))
}

func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}
