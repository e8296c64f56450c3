// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Projector   ProjectorConfig   `mapstructure:"projector"`
	Virtual     VirtualConfig     `mapstructure:"virtual"`
	Framebuffer FramebufferConfig `mapstructure:"framebuffer"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
	Sway        SwayConfig        `mapstructure:"sway"`
	Control     ControlConfig     `mapstructure:"control"`
	Session     SessionConfig     `mapstructure:"session"`
	UI          UIConfig          `mapstructure:"ui"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ProjectorConfig describes which physical output counts as the projector
type ProjectorConfig struct {
	// Acceptable connector names, e.g. the same port under two naming schemes
	Candidates          []string        `mapstructure:"candidates"`
	PollInterval        time.Duration   `mapstructure:"poll_interval"`
	ReleaseOnDisconnect bool            `mapstructure:"release_on_disconnect"`
	Offscreen           PlacementConfig `mapstructure:"offscreen"`
}

// PlacementConfig is a mode + position + background for one output
type PlacementConfig struct {
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	X          int    `mapstructure:"x"`
	Y          int    `mapstructure:"y"`
	Background string `mapstructure:"background"`
}

// VirtualConfig contains headless output settings
type VirtualConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Name       string `mapstructure:"name"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	Placement  string `mapstructure:"placement"` // left, right, above, below, manual
	X          int    `mapstructure:"x"`         // manual placement only
	Y          int    `mapstructure:"y"`
	Background string `mapstructure:"background"`

	// Leftover outputs named <SweepPrefix>-<i>, i in [0, SweepCount), are unplugged on teardown
	SweepPrefix string `mapstructure:"sweep_prefix"`
	SweepCount  int    `mapstructure:"sweep_count"`
}

// FramebufferConfig contains virtual display device settings
type FramebufferConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Device        string `mapstructure:"device"` // evdi, mock
	Width         int    `mapstructure:"width"`
	Height        int    `mapstructure:"height"`
	BytesPerPixel int    `mapstructure:"bytes_per_pixel"`
}

// ShutdownConfig bounds the grace period after a termination request
type ShutdownConfig struct {
	Step  time.Duration `mapstructure:"step"`
	Steps int           `mapstructure:"steps"`
}

// SwayConfig contains compositor IPC settings
type SwayConfig struct {
	Socket          string        `mapstructure:"socket"` // empty means $SWAYSOCK discovery
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

// ControlConfig contains the status socket settings
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Socket  string `mapstructure:"socket"`
}

// SessionConfig contains settings applied while a projector session is active
type SessionConfig struct {
	InhibitIdle bool `mapstructure:"inhibit_idle"`
}

// UIConfig selects the progress display
type UIConfig struct {
	Mode string `mapstructure:"mode"` // auto, inline, plain, none
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Projector: ProjectorConfig{
			Candidates:          []string{"DP1", "DP-1"},
			PollInterval:        250 * time.Millisecond,
			ReleaseOnDisconnect: true,
			Offscreen: PlacementConfig{
				Width:      1920,
				Height:     1080,
				X:          -19200,
				Y:          0,
				Background: "#000000",
			},
		},
		Virtual: VirtualConfig{
			Enabled:     true,
			Name:        "HEADLESS-1",
			Width:       1920,
			Height:      1080,
			Placement:   "left",
			Background:  "#000000",
			SweepPrefix: "HEADLESS",
			SweepCount:  12,
		},
		Framebuffer: FramebufferConfig{
			Enabled:       true,
			Device:        "evdi",
			Width:         1920,
			Height:        1080,
			BytesPerPixel: 4,
		},
		Shutdown: ShutdownConfig{
			Step:  50 * time.Millisecond,
			Steps: 20,
		},
		Sway: SwayConfig{
			ConnectAttempts: 10,
			ConnectDelay:    500 * time.Millisecond,
			CallTimeout:     2 * time.Second,
		},
		Control: ControlConfig{
			Enabled: true,
		},
		Session: SessionConfig{
			InhibitIdle: true,
		},
		UI: UIConfig{
			Mode: "auto",
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
	viper.SetConfigName("swayproj")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "swayproj"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "swayproj"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c

	return nil
}

// setDefaults registers individual fields so partial files merge properly
func setDefaults() {
	d := DefaultConfig

	viper.SetDefault("projector.candidates", d.Projector.Candidates)
	viper.SetDefault("projector.poll_interval", d.Projector.PollInterval)
	viper.SetDefault("projector.release_on_disconnect", d.Projector.ReleaseOnDisconnect)
	viper.SetDefault("projector.offscreen.width", d.Projector.Offscreen.Width)
	viper.SetDefault("projector.offscreen.height", d.Projector.Offscreen.Height)
	viper.SetDefault("projector.offscreen.x", d.Projector.Offscreen.X)
	viper.SetDefault("projector.offscreen.y", d.Projector.Offscreen.Y)
	viper.SetDefault("projector.offscreen.background", d.Projector.Offscreen.Background)

	viper.SetDefault("virtual.enabled", d.Virtual.Enabled)
	viper.SetDefault("virtual.name", d.Virtual.Name)
	viper.SetDefault("virtual.width", d.Virtual.Width)
	viper.SetDefault("virtual.height", d.Virtual.Height)
	viper.SetDefault("virtual.placement", d.Virtual.Placement)
	viper.SetDefault("virtual.x", d.Virtual.X)
	viper.SetDefault("virtual.y", d.Virtual.Y)
	viper.SetDefault("virtual.background", d.Virtual.Background)
	viper.SetDefault("virtual.sweep_prefix", d.Virtual.SweepPrefix)
	viper.SetDefault("virtual.sweep_count", d.Virtual.SweepCount)

	viper.SetDefault("framebuffer.enabled", d.Framebuffer.Enabled)
	viper.SetDefault("framebuffer.device", d.Framebuffer.Device)
	viper.SetDefault("framebuffer.width", d.Framebuffer.Width)
	viper.SetDefault("framebuffer.height", d.Framebuffer.Height)
	viper.SetDefault("framebuffer.bytes_per_pixel", d.Framebuffer.BytesPerPixel)

	viper.SetDefault("shutdown.step", d.Shutdown.Step)
	viper.SetDefault("shutdown.steps", d.Shutdown.Steps)

	viper.SetDefault("sway.socket", d.Sway.Socket)
	viper.SetDefault("sway.connect_attempts", d.Sway.ConnectAttempts)
	viper.SetDefault("sway.connect_delay", d.Sway.ConnectDelay)
	viper.SetDefault("sway.call_timeout", d.Sway.CallTimeout)

	viper.SetDefault("control.enabled", d.Control.Enabled)
	viper.SetDefault("control.socket", d.Control.Socket)

	viper.SetDefault("session.inhibit_idle", d.Session.InhibitIdle)
	viper.SetDefault("ui.mode", d.UI.Mode)
	viper.SetDefault("logging.level", d.Logging.Level)
}

// Validate rejects values the daemon cannot work with
func (c *Config) Validate() error {
	if len(c.Projector.Candidates) == 0 {
		return fmt.Errorf("projector.candidates must not be empty")
	}
	if c.Projector.PollInterval <= 0 {
		return fmt.Errorf("projector.poll_interval must be positive, got %s", c.Projector.PollInterval)
	}
	if c.Virtual.Enabled && c.Virtual.Name == "" {
		return fmt.Errorf("virtual.name must be set when virtual.enabled is true")
	}
	switch c.Virtual.Placement {
	case "left", "right", "above", "below", "manual":
	default:
		return fmt.Errorf("unknown virtual.placement %q", c.Virtual.Placement)
	}
	if c.Virtual.SweepCount < 0 {
		return fmt.Errorf("virtual.sweep_count must not be negative")
	}
	if c.Framebuffer.Enabled {
		if c.Framebuffer.Width <= 0 || c.Framebuffer.Height <= 0 || c.Framebuffer.BytesPerPixel <= 0 {
			return fmt.Errorf("framebuffer geometry must be positive, got %dx%dx%d",
				c.Framebuffer.Width, c.Framebuffer.Height, c.Framebuffer.BytesPerPixel)
		}
	}
	switch c.Framebuffer.Device {
	case "evdi":
		// libevdi scans out 32-bit XRGB only
		if c.Framebuffer.Enabled && c.Framebuffer.BytesPerPixel != 4 {
			return fmt.Errorf("framebuffer.device \"evdi\" needs bytes_per_pixel = 4, got %d", c.Framebuffer.BytesPerPixel)
		}
	case "mock":
	default:
		return fmt.Errorf("unknown framebuffer.device %q", c.Framebuffer.Device)
	}
	switch c.UI.Mode {
	case "auto", "inline", "plain", "none":
	default:
		return fmt.Errorf("unknown ui.mode %q", c.UI.Mode)
	}
	if c.Shutdown.Step <= 0 || c.Shutdown.Steps <= 0 {
		return fmt.Errorf("shutdown.step and shutdown.steps must be positive")
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// SetCandidates replaces the projector candidate list in memory and in viper
func SetCandidates(names []string) {
	c := Get()
	c.Projector.Candidates = append([]string(nil), names...)
	viper.Set("projector.candidates", c.Projector.Candidates)
	cfg = c
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swayproj", "swayproj.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "swayproj.toml"
	}

	return filepath.Join(home, ".config", "swayproj", "swayproj.toml")
}
