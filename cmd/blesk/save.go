package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// saveCmd represents the save command
var saveCmd = &cobra.Command{
	Use:   "save <slot>",
	Short: "Store the current height into a preset slot (1-4)",
	Long: `Store the desk's current height into a preset slot.

The stored value is read back from the desk to confirm the save took.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func runSave(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[0])
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	d, _, _, err := dialDesk(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.SavePreset(ctx, slot)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Preset %d saved at %s\n", slot, h)
	return nil
}
