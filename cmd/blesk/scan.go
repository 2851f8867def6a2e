package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smarthall/blesk/internal/goble"
	"github.com/smarthall/blesk/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Desky desks",
	Long: `Scan for Desky standing desks in the vicinity.

Only devices advertising the desk control service (or a Desky device name)
are shown. Use 'blesk set <address>' to remember a discovered desk.`,
	RunE: runScan,
}

var scanDuration time.Duration

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := scanner.DefaultScanOptions()
	opts.Duration = cfg.ScanDuration
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	// Setup progress printer
	progress := NewCountdownProgressPrinter("Scanning for desks", opts.Duration)
	progress.Start()

	s := scanner.NewScanner(goble.NewTransport(logger, cfg.ConnectTimeout), logger)
	results, err := s.Scan(ctx, opts)
	progress.Stop()
	if err != nil {
		return err
	}

	if len(results) == 0 {
		return scanner.ErrNoDesksFound
	}

	if err := displayResultsTable(results); err != nil {
		return err
	}
	fmt.Println("\nRun 'blesk set <address>' to remember your desk.")
	return nil
}

func displayResultsTable(results []scanner.Result) error {
	var base io.Writer = os.Stdout
	if base == nil {
		base = io.Discard
	}
	w := tabwriter.NewWriter(base, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	fmt.Fprintln(w, strings.Repeat("-", 50))

	for _, r := range results {
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\n", name, r.Address, r.RSSI)
	}

	return w.Flush()
}
