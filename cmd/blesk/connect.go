package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/goble"
	"github.com/smarthall/blesk/pkg/config"
)

// loadConfig reads the config file named by --config, or the default
// location.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// resolveAddress picks the desk address: --address wins, otherwise the
// selected profile's configured address.
func resolveAddress(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr, nil
	}
	profile, _ := cmd.Flags().GetString("profile")
	return cfg.DefaultAddress(profile)
}

// dialDesk assembles the full stack for one command: config, logger, BLE
// transport, session. The caller owns the returned desk and must Close it.
func dialDesk(ctx context.Context, cmd *cobra.Command, opts *desk.MoveOptions) (*desk.Desk, *config.Config, *logrus.Logger, error) {
	logger, err := configureLogger(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	address, err := resolveAddress(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	transport := goble.NewTransport(logger, cfg.ConnectTimeout)

	if stdoutIsTerminal() {
		fmt.Printf("Connecting to %s...\n", address)
	}
	d, err := desk.Dial(ctx, transport, address, logger, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	d.Session().SetResponseTimeout(cfg.ResponseTimeout)
	return d, cfg, logger, nil
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nCtrl+C pressed, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
