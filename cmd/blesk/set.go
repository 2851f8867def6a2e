package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smarthall/blesk/pkg/config"
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <address>",
	Short: "Remember a desk address for the selected profile",
	Long: `Store a desk address in the config file so later commands can omit it.

The address comes from 'blesk scan'. With --profile the address is stored
under that profile instead of the default one.`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	profile, _ := cmd.Flags().GetString("profile")
	cfg.SetDefaultAddress(profile, args[0])

	if err := cfg.Save(path); err != nil {
		return err
	}

	if profile == "" {
		profile = config.DefaultProfile
	}
	fmt.Printf("Desk %s saved to profile %q (%s)\n", args[0], profile, path)
	return nil
}
