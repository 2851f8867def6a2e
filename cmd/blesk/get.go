package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/protocol"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Read desk state",
}

var getCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Read the current height",
	Args:  cobra.NoArgs,
	RunE:  runGetCurrent,
}

var getPresetCmd = &cobra.Command{
	Use:   "preset <slot|all>",
	Short: "Read a stored preset, or all of them",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetPreset,
}

func init() {
	getCmd.AddCommand(getCurrentCmd)
	getCmd.AddCommand(getPresetCmd)
}

func runGetCurrent(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	d, _, _, err := dialDesk(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.Height(ctx)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}

func runGetPreset(cmd *cobra.Command, args []string) error {
	all := args[0] == "all"
	var slot protocol.PresetSlot
	if !all {
		var err error
		slot, err = parseSlot(args[0])
		if err != nil {
			return err
		}
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	d, _, _, err := dialDesk(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	if !all {
		h, err := d.Preset(ctx, slot)
		if err != nil {
			return err
		}
		fmt.Println(h)
		return nil
	}

	return displayPresetsTable(ctx, d)
}

func displayPresetsTable(ctx context.Context, d *desk.Desk) error {
	var base io.Writer = os.Stdout
	if base == nil {
		base = io.Discard
	}
	w := tabwriter.NewWriter(base, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tHEIGHT")

	for slot := protocol.PresetSlot(1); slot <= 4; slot++ {
		h, err := d.Preset(ctx, slot)
		var nak *desk.NakError
		switch {
		case errors.As(err, &nak):
			fmt.Fprintf(w, "%d\t(not set)\n", slot)
		case err != nil:
			return err
		default:
			fmt.Fprintf(w, "%d\t%s\n", slot, h)
		}
	}

	return w.Flush()
}
