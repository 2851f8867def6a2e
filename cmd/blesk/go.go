package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/protocol"
)

// goCmd represents the go command
var goCmd = &cobra.Command{
	Use:   "go",
	Short: "Move the desk and wait for arrival",
	Long: `Move the desk to an absolute height or a stored preset.

The command keeps the connection open until the desk reaches the target,
stops short, stalls, or the run times out. Ctrl+C asks the desk to stop
and exits.`,
}

var goHeightCmd = &cobra.Command{
	Use:   "height <mm>",
	Short: "Move to an absolute height in millimetres",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoHeight,
}

var goPresetCmd = &cobra.Command{
	Use:   "preset <slot>",
	Short: "Move to a stored preset (1-4)",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoPreset,
}

var goTolerance uint16

func init() {
	goCmd.AddCommand(goHeightCmd)
	goCmd.AddCommand(goPresetCmd)

	for _, c := range []*cobra.Command{goHeightCmd, goPresetCmd} {
		c.Flags().Uint16Var(&goTolerance, "tolerance", 0, "Arrival tolerance in millimetres (default 1)")
	}
}

func runGoHeight(cmd *cobra.Command, args []string) error {
	mm, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid height %q: expected millimetres, e.g. 1000", args[0])
	}
	target := protocol.Height(mm)
	if !target.Valid() {
		return fmt.Errorf("height %s is outside the desk's range (%s to %s)",
			target, protocol.MinHeight, protocol.MaxHeight)
	}

	return runMove(cmd, fmt.Sprintf("Moving to %s", target), func(ctx context.Context, d *desk.Desk) desk.Outcome {
		return d.GoToHeight(ctx, target)
	})
}

func runGoPreset(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}

	return runMove(cmd, fmt.Sprintf("Moving to preset %d", slot), func(ctx context.Context, d *desk.Desk) desk.Outcome {
		return d.GoToPreset(ctx, slot)
	})
}

// runMove drives one movement run and renders the outcome.
func runMove(cmd *cobra.Command, label string, move func(context.Context, *desk.Desk) desk.Outcome) error {
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	opts := &desk.MoveOptions{Tolerance: protocol.Height(goTolerance)}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	d, cfg, _, err := dialDesk(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer d.Close()

	if timeout > 0 {
		opts.MaxDuration = timeout
	} else {
		opts.MaxDuration = cfg.MoveTimeout
	}

	progress := NewHeightProgressPrinter(label, d.Session().LastHeight)
	progress.Start()
	outcome := move(ctx, d)
	progress.Stop()

	switch outcome.State {
	case desk.Reached:
		color.New(color.FgGreen).Printf("Reached %s in %s\n", outcome.Height, outcome.Elapsed.Truncate(time.Millisecond))
		return nil
	case desk.Cancelled:
		fmt.Printf("Stopped at %s\n", outcome.Height)
		return context.Canceled
	default:
		return &movementError{Outcome: outcome}
	}
}

// parseSlot parses a preset slot argument.
func parseSlot(arg string) (protocol.PresetSlot, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || !protocol.PresetSlot(n).Valid() {
		return 0, fmt.Errorf("invalid preset slot %q: expected 1-4", arg)
	}
	return protocol.PresetSlot(n), nil
}
