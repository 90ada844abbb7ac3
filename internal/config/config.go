package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

// DeviceConfig identifies the monitor and how to recover stale links.
type DeviceConfig struct {
	Address         string `yaml:"address"` // MAC on Linux, CoreBluetooth UUID on macOS
	ForceDisconnect string `yaml:"force_disconnect"` // "bluez", "bluetoothctl" or "none"
	Adapter         string `yaml:"adapter"`          // BlueZ adapter, e.g. "hci0"
}

// TimeoutsConfig holds protocol timings.
type TimeoutsConfig struct {
	Voltage              time.Duration `yaml:"voltage"`
	History              time.Duration `yaml:"history"`
	HistoryTransferDelay time.Duration `yaml:"history_transfer_delay"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
}

// MQTTConfig holds broker settings for voltage publishing.
type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bm2")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values. The device address
// has no default.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ForceDisconnect: "bluez",
			Adapter:         "hci0",
		},
		Timeouts: TimeoutsConfig{
			Voltage:              60 * time.Second,
			History:              5 * time.Second,
			HistoryTransferDelay: 1 * time.Second,
			PollInterval:         1 * time.Second,
			RetryDelay:           1 * time.Second,
		},
		MQTT: MQTTConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			Topic:    "bm2",
			ClientID: "bm2-monitor",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes the default config to DefaultConfigPath. If a config
// file already exists it is left alone and ("", nil) is returned.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	content := "# bm2 battery monitor configuration\n# Set device.address to your monitor's MAC address (see `bm2 scan`).\n" + string(data)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return errors.New("device.address must not be empty")
	}
	if !validAddress(c.Device.Address) {
		return fmt.Errorf("device.address must be a MAC address like AA:BB:CC:DD:EE:FF or, on macOS, a CoreBluetooth UUID, got %q", c.Device.Address)
	}

	switch c.Device.ForceDisconnect {
	case "bluez", "bluetoothctl", "none":
	default:
		return fmt.Errorf("device.force_disconnect must be bluez, bluetoothctl, or none, got %q", c.Device.ForceDisconnect)
	}

	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"timeouts.voltage", c.Timeouts.Voltage},
		{"timeouts.history", c.Timeouts.History},
		{"timeouts.history_transfer_delay", c.Timeouts.HistoryTransferDelay},
		{"timeouts.poll_interval", c.Timeouts.PollInterval},
		{"timeouts.retry_delay", c.Timeouts.RetryDelay},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return fmt.Errorf("%s must be > 0", t.name)
		}
	}

	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port must be between 1 and 65535, got %d", c.MQTT.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return nil
}

// ValidateMQTT checks the settings only the mqtt command needs.
func (c *Config) ValidateMQTT() error {
	if c.MQTT.Host == "" {
		return errors.New("mqtt.host must not be empty")
	}
	if c.MQTT.Topic == "" {
		return errors.New("mqtt.topic must not be empty")
	}
	return nil
}

// validAddress accepts a 6-byte MAC address (BlueZ) or a canonical
// CoreBluetooth peripheral UUID (macOS).
func validAddress(addr string) bool {
	if hw, err := net.ParseMAC(addr); err == nil && len(hw) == 6 {
		return true
	}
	if len(addr) != 36 {
		return false
	}
	_, err := uuid.Parse(addr)
	return err == nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
