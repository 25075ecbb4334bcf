package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the assembler configuration
type Config struct {
	// Assembly settings
	Assembly struct {
		Imagebase     string `toml:"imagebase"`       // hex (0x...) or decimal load address
		Sigma16Labels bool   `toml:"sigma16_labels"`  // Sigma16-style label syntax
		MaxMatchDepth int    `toml:"max_match_depth"` // grammar recursion limit
	} `toml:"assembly"`

	// Output settings
	Output struct {
		DefaultBin   string `toml:"default_bin"`   // output path when no output flag is given
		WriteSigma16 string `toml:"write_sigma16"` // Sigma16 data dump path used when the flag is absent
	} `toml:"output"`

	// Display settings
	Display struct {
		ColorOutput  bool `toml:"color_output"`
		BytesPerLine int  `toml:"bytes_per_line"`
	} `toml:"display"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Assembly defaults
	cfg.Assembly.Imagebase = "0x1000"
	cfg.Assembly.Sigma16Labels = false
	cfg.Assembly.MaxMatchDepth = 500

	// Output defaults
	cfg.Output.DefaultBin = "default.out"
	cfg.Output.WriteSigma16 = ""

	// Display defaults
	cfg.Display.ColorOutput = true
	cfg.Display.BytesPerLine = 16

	return cfg
}

// Imagebase parses the configured load address.
func (c *Config) Imagebase() (uint32, error) {
	return ParseAddress(c.Assembly.Imagebase)
}

// ParseAddress parses a hex (0x...) or decimal address string.
func ParseAddress(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	var value uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		value, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		value, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint32(value), nil
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\adlasm\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "adlasm")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/adlasm/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "adlasm")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	// Encode to TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
