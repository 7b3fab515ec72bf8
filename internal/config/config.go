// Package config loads boardctl configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissing marks a required configuration value that is absent.
var ErrMissing = errors.New("config: required value missing")

// FileName is the per-project configuration file looked up in the working
// directory.
const FileName = "boardctl.yaml"

// Config is the root configuration structure.
type Config struct {
	Filter  FilterConfig     `yaml:"filter"`
	ITM     ITMConfig        `yaml:"itm"`
	Build   BuildConfig      `yaml:"build"`
	OpenOCD OpenOCDConfig    `yaml:"openocd"`
	JLink   JLinkConfig      `yaml:"jlink"`
	Bossac  ToolConfig       `yaml:"bossac"`
	Teensy  TeensyConfig     `yaml:"teensy"`
	DFU     DFUConfig        `yaml:"dfu"`
	GDB     ToolConfig       `yaml:"gdb"`
	Screen  ToolConfig       `yaml:"screen"`
	Console ConsoleConfig    `yaml:"console"`
	Logging LoggingConfig    `yaml:"logging"`
	Devices []DeviceOverride `yaml:"devices"`
}

// FilterConfig holds default device selection criteria.
type FilterConfig struct {
	Device string `yaml:"device"`
	Serial string `yaml:"serial"`
	Type   string `yaml:"type"`
}

// ITMConfig holds trace defaults.
type ITMConfig struct {
	TargetClock uint32 `yaml:"target_clock"`
}

// BuildConfig describes the external build step.
type BuildConfig struct {
	Command  []string `yaml:"command"`
	Artifact string   `yaml:"artifact"`
}

// ToolConfig names the executable for a tool.
type ToolConfig struct {
	Path string `yaml:"path"`
}

// OpenOCDConfig contains OpenOCD invocation settings.
type OpenOCDConfig struct {
	Path   string `yaml:"path"`
	Config string `yaml:"config"`
}

// JLinkConfig contains J-Link Commander settings.
type JLinkConfig struct {
	Path      string `yaml:"path"`
	Device    string `yaml:"device"`
	Interface string `yaml:"interface"`
	Speed     int    `yaml:"speed"`
}

// TeensyConfig contains teensy_loader_cli settings.
type TeensyConfig struct {
	Path string `yaml:"path"`
	MCU  string `yaml:"mcu"`
}

// DFUConfig contains dfu-util settings.
type DFUConfig struct {
	Path    string `yaml:"path"`
	Address uint32 `yaml:"address"`
}

// ConsoleConfig tunes the serial console.
type ConsoleConfig struct {
	MaxReadErrors int `yaml:"max_read_errors"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DeviceOverride assigns or replaces capability tags for matching devices.
// A device matches when every non-zero selector matches.
type DeviceOverride struct {
	ID        string `yaml:"id"`
	VendorID  uint16 `yaml:"vid"`
	ProductID uint16 `yaml:"pid"`
	Serial    string `yaml:"serial"`

	Type     string `yaml:"type"`
	Loader   string `yaml:"loader"`
	Debugger string `yaml:"debugger"`
	TraceITM *bool  `yaml:"trace_itm"`
}

// Default returns a Config with defaults for every tool.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Command: []string{"make"},
		},
		OpenOCD: OpenOCDConfig{Path: "openocd", Config: "openocd.cfg"},
		JLink:   JLinkConfig{Path: "JLinkExe", Interface: "SWD", Speed: 4000},
		Bossac:  ToolConfig{Path: "bossac"},
		Teensy:  TeensyConfig{Path: "teensy_loader_cli", MCU: "TEENSY31"},
		DFU:     DFUConfig{Path: "dfu-util", Address: 0x08000000},
		GDB:     ToolConfig{Path: "arm-none-eabi-gdb"},
		Screen:  ToolConfig{Path: "screen"},
		Console: ConsoleConfig{MaxReadErrors: 10},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration at path. An empty path searches the default
// locations; finding nothing there is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = locate()
		if path == "" {
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func locate() string {
	candidates := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "boardctl", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOARDCTL_ITM_TARGET_CLOCK"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 32); err == nil {
			cfg.ITM.TargetClock = uint32(n)
		}
	}
	if v := os.Getenv("BOARDCTL_DEVICE"); v != "" {
		cfg.Filter.Device = v
	}
	if v := os.Getenv("BOARDCTL_OPENOCD_CONFIG"); v != "" {
		cfg.OpenOCD.Config = v
	}
	if v := os.Getenv("BOARDCTL_BUILD_ARTIFACT"); v != "" {
		cfg.Build.Artifact = v
	}
	if v := os.Getenv("BOARDCTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Console.MaxReadErrors < 0 {
		return fmt.Errorf("console.max_read_errors must not be negative, got %d", c.Console.MaxReadErrors)
	}
	if c.JLink.Speed < 0 {
		return fmt.Errorf("jlink.speed must not be negative, got %d", c.JLink.Speed)
	}
	for i, d := range c.Devices {
		if d.ID == "" && d.VendorID == 0 && d.ProductID == 0 && d.Serial == "" {
			return fmt.Errorf("devices[%d]: needs at least one of id, vid, pid, serial", i)
		}
		if strings.Trim(d.ID, "0123456789abcdefABCDEF") != "" {
			return fmt.Errorf("devices[%d]: id %q is not hexadecimal", i, d.ID)
		}
	}
	return nil
}

// TargetClock returns the configured ITM target clock, if any.
func (c *Config) TargetClock() (uint32, bool) {
	if c == nil || c.ITM.TargetClock == 0 {
		return 0, false
	}
	return c.ITM.TargetClock, true
}
