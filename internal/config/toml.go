// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Store StoreConfig `toml:"store"`
	Login LoginConfig `toml:"login"`
}

// StoreConfig maps storage settings.
type StoreConfig struct {
	Backend  *string `toml:"backend"`
	Path     *string `toml:"path"`
	Template *string `toml:"template"`
}

// LoginConfig maps login automation settings.
type LoginConfig struct {
	WindowTitle     *string   `toml:"window-title"`
	Strategy        *string   `toml:"strategy"`
	Templates       []string  `toml:"templates"`
	Confidence      *float64  `toml:"confidence"`
	OffsetX         *int      `toml:"offset-x"`
	OffsetY         *int      `toml:"offset-y"`
	SubmitTabs      *int      `toml:"submit-tabs"`
	Resubmit        *bool     `toml:"resubmit"`
	ClearWithDelete *bool     `toml:"clear-with-delete"`
	Timeout         *Duration `toml:"timeout"`
	RestoreDelay    *Duration `toml:"restore-delay"`
	ActivateDelay   *Duration `toml:"activate-delay"`
	// CaptureCommand must write a PNG screenshot to stdout.
	CaptureCommand  []string  `toml:"capture-command"`
}

// Duration decodes TOML strings such as "30s" or "200ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
