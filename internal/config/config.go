// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Relay configuration: which devices to pick up and how
	Relay RelayConfig `mapstructure:"relay"`

	// Gadget configuration: the output side
	Gadget GadgetConfig `mapstructure:"gadget"`

	// Movement configuration
	Movement MovementConfig `mapstructure:"movement"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// RelayConfig selects input devices and relay behavior
type RelayConfig struct {
	Devices          []string `mapstructure:"devices"`            // paths, hardware addresses, or name fragments
	AutoDiscover     bool     `mapstructure:"auto_discover"`      // relay every device regardless of the allow-list
	SkipNamePrefixes []string `mapstructure:"skip_name_prefixes"` // device names to never relay
	GrabDevices      bool     `mapstructure:"grab_devices"`       // take exclusive hold of relayed devices
	PauseHotkey      string   `mapstructure:"pause_hotkey"`       // e.g. "ctrl+shift+f12"; empty disables
	BluetoothAdapter string   `mapstructure:"bluetooth_adapter"`  // adapter for connectivity diagnostics
}

// GadgetConfig describes the USB gadget endpoints
type GadgetConfig struct {
	Sink            string `mapstructure:"sink"` // "gadget" or "uinput"
	KeyboardDevice  string `mapstructure:"keyboard_device"`
	MouseDevice     string `mapstructure:"mouse_device"`
	ConsumerDevice  string `mapstructure:"consumer_device"`
	UDCStatePath    string `mapstructure:"udc_state_path"`    // empty auto-detects
	UDCPollInterval string `mapstructure:"udc_poll_interval"` // e.g. "500ms"
}

// MovementConfig locates the synthetic movement pattern file
type MovementConfig struct {
	ConfigPath string `mapstructure:"config_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Relay: RelayConfig{
			Devices:          []string{},
			AutoDiscover:     false,
			SkipNamePrefixes: []string{"vc4-hdmi"},
			GrabDevices:      false,
			PauseHotkey:      "",
			BluetoothAdapter: "hci0",
		},
		Gadget: GadgetConfig{
			Sink:            "gadget",
			KeyboardDevice:  "/dev/hidg0",
			MouseDevice:     "/dev/hidg1",
			ConsumerDevice:  "/dev/hidg2",
			UDCStatePath:    "",
			UDCPollInterval: "500ms",
		},
		Movement: MovementConfig{
			ConfigPath: "/etc/btrelay/mouse_patterns.toml",
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("btrelay")
	viper.SetConfigType("toml")

	// If a specific path is set, use only that
	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		// Add config paths in order of precedence
		viper.AddConfigPath("/etc/btrelay") // System config directory (primary)

		// If running with sudo, try the real user's config
		if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
			userConfigPath := fmt.Sprintf("/home/%s/.config/btrelay", sudoUser)
			viper.AddConfigPath(userConfigPath)
		} else if home := os.Getenv("HOME"); home != "" && home != "/root" {
			// Normal user config
			viper.AddConfigPath(filepath.Join(home, ".config", "btrelay"))
		}

		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("relay.devices", DefaultConfig.Relay.Devices)
	viper.SetDefault("relay.auto_discover", DefaultConfig.Relay.AutoDiscover)
	viper.SetDefault("relay.skip_name_prefixes", DefaultConfig.Relay.SkipNamePrefixes)
	viper.SetDefault("relay.grab_devices", DefaultConfig.Relay.GrabDevices)
	viper.SetDefault("relay.pause_hotkey", DefaultConfig.Relay.PauseHotkey)
	viper.SetDefault("relay.bluetooth_adapter", DefaultConfig.Relay.BluetoothAdapter)

	viper.SetDefault("gadget.sink", DefaultConfig.Gadget.Sink)
	viper.SetDefault("gadget.keyboard_device", DefaultConfig.Gadget.KeyboardDevice)
	viper.SetDefault("gadget.mouse_device", DefaultConfig.Gadget.MouseDevice)
	viper.SetDefault("gadget.consumer_device", DefaultConfig.Gadget.ConsumerDevice)
	viper.SetDefault("gadget.udc_state_path", DefaultConfig.Gadget.UDCStatePath)
	viper.SetDefault("gadget.udc_poll_interval", DefaultConfig.Gadget.UDCPollInterval)

	viper.SetDefault("movement.config_path", DefaultConfig.Movement.ConfigPath)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal config
	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// ParsedUDCPollInterval parses the configured poll interval, falling
// back to the default when the value does not parse.
func (g GadgetConfig) ParsedUDCPollInterval() time.Duration {
	d, err := time.ParseDuration(g.UDCPollInterval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		// If we can't create it (e.g., /etc/btrelay needs sudo), provide helpful message
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	// If override is set, use that
	if configPathOverride != "" {
		return configPathOverride
	}

	// Check if config file is already loaded
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	// The relay runs as root, so prefer the system config
	if os.Getuid() == 0 || os.Getenv("SUDO_USER") != "" {
		return "/etc/btrelay/btrelay.toml"
	}

	// For regular users, use user config directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/btrelay/btrelay.toml"
	}

	return filepath.Join(home, ".config", "btrelay", "btrelay.toml")
}
