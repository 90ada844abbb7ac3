package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KrystianD/bm2-battery-monitor/internal/ble"
	"github.com/KrystianD/bm2-battery-monitor/internal/config"
	"github.com/KrystianD/bm2-battery-monitor/internal/logging"
)

var (
	configPath string
	bm2Addr    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bm2",
	Short: "BM2 battery monitor client",
	Long: `bm2 - read a BM2 Bluetooth LE battery voltage monitor.

Connects to the monitor, keeps the link alive across drops, and reads either
live voltage or the on-device history log.

The device address comes from --addr or device.address in the config file
(default ~/.config/bm2/config.yaml). Run "bm2 scan" to find it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/bm2/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&bm2Addr, "addr", "a", "", "BM2 device MAC address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads the config from --config, or the default config path if
// it exists, or built-in defaults, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configPath != "":
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	default:
		defaultPath := config.DefaultConfigPath()
		if _, err := os.Stat(defaultPath); err == nil {
			c, err := config.Load(defaultPath)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
			}
			cfg = c
		} else {
			cfg = config.Default()
		}
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Device.Address = bm2Addr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	log := logging.New(cfg.Log.Level, cfg.Log.Format, w)
	slog.SetDefault(log)
	return log
}

// clientOptions maps config timings onto the BLE client.
func clientOptions(cfg *config.Config, log *slog.Logger) (ble.ClientOptions, error) {
	fd, err := ble.NewForceDisconnector(cfg.Device.ForceDisconnect, cfg.Device.Adapter)
	if err != nil {
		return ble.ClientOptions{}, err
	}
	return ble.ClientOptions{
		VoltageTimeout:       cfg.Timeouts.Voltage,
		HistoryTimeout:       cfg.Timeouts.History,
		HistoryTransferDelay: cfg.Timeouts.HistoryTransferDelay,
		PollInterval:         cfg.Timeouts.PollInterval,
		RetryDelay:           cfg.Timeouts.RetryDelay,
		ForceDisconnector:    fd,
		Logger:               log,
	}, nil
}

// startClient validates the config and starts a client for the configured
// device. prepare, if non-nil, may adjust and check the config first. The
// caller must Stop the client.
func startClient(cmd *cobra.Command, prepare func(*config.Config) error) (*ble.Client, *config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	if prepare != nil {
		if err := prepare(cfg); err != nil {
			return nil, nil, nil, fmt.Errorf("config validation: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		if cfg.Device.Address == "" {
			err = errors.New("no device address: pass --addr or set device.address in the config file")
		}
		return nil, nil, nil, fmt.Errorf("config validation: %w", err)
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	opts, err := clientOptions(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := ble.NewClient(ble.NewTinyGoAdapter(), cfg.Device.Address, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	client.Start()
	log.Info("monitoring", "address", client.Address())
	return client, cfg, log, nil
}
