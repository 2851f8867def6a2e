package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/smarthall/blesk/internal/protocol"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// stdoutIsTerminal gates all progress output; piped output stays clean.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ProgressPrinter redraws a single status line until stopped. Disabled
// entirely when stdout is not a terminal.
//
// A ProgressPrinter is single-use: Start at most once, then Stop exactly
// once. Stop is safe to call multiple times.
type ProgressPrinter struct {
	prefix    string
	render    func(elapsed time.Duration) string
	startTime time.Time
	ticker    *time.Ticker
	stopChan  chan struct{}
	done      chan struct{}
	enabled   bool
}

// NewCountdownProgressPrinter creates a printer that counts down from
// duration, for bounded waits like scanning.
func NewCountdownProgressPrinter(prefix string, duration time.Duration) *ProgressPrinter {
	return &ProgressPrinter{
		prefix:  prefix,
		enabled: stdoutIsTerminal(),
		render: func(elapsed time.Duration) string {
			remaining := duration - elapsed
			if remaining < 0 {
				remaining = 0
			}
			return fmt.Sprintf("%ds left", int(remaining.Seconds()+0.5))
		},
	}
}

// NewHeightProgressPrinter creates a printer that shows the desk's live
// height while a movement run is in flight. heightFn is polled each redraw.
func NewHeightProgressPrinter(prefix string, heightFn func() (protocol.Height, bool)) *ProgressPrinter {
	return &ProgressPrinter{
		prefix:  prefix,
		enabled: stdoutIsTerminal(),
		render: func(elapsed time.Duration) string {
			if h, ok := heightFn(); ok {
				return fmt.Sprintf("now %s, %ds", h, int(elapsed.Seconds()))
			}
			return fmt.Sprintf("%ds", int(elapsed.Seconds()))
		},
	}
}

// Start begins redrawing in a background goroutine.
func (p *ProgressPrinter) Start() {
	if !p.enabled {
		return
	}
	if p.stopChan != nil {
		panic("ProgressPrinter cannot be reused")
	}

	p.startTime = time.Now()
	p.ticker = time.NewTicker(progressUpdateInterval)
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	fmt.Printf("\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-p.ticker.C:
				fmt.Printf("\r%s (%s)   ", p.prefix, p.render(time.Since(p.startTime)))
			}
		}
	}()
}

// Stop halts the redraw loop and clears the line. Safe to call twice.
func (p *ProgressPrinter) Stop() {
	if !p.enabled || p.stopChan == nil {
		return
	}
	p.ticker.Stop()
	close(p.stopChan)
	<-p.done
	p.stopChan = nil

	fmt.Print(clearLineSequence)
}
