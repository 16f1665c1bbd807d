// Package config loads optional defaults for the netprobe command from an INI file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// FileName is the default config file name, looked up in the user config directory.
const FileName = "netprobe.ini"

// Config holds the settings a config file may provide.
// Command-line flags always win over file values.
type Config struct {
	General GeneralConfig `ini:"General"`
	Scan    ScanConfig    `ini:"Scan"`
	Output  OutputConfig  `ini:"Output"`
}

type GeneralConfig struct {
	Debug int `ini:"Debug"` // 0 off, 1 basic, 2 verbose
}

type ScanConfig struct {
	Workers          int           `ini:"Workers"`
	Timeout          time.Duration `ini:"Timeout"`
	StopOnExhaustion bool          `ini:"StopOnExhaustion"`
}

type OutputConfig struct {
	Resolve     bool   `ini:"Resolve"`
	MAC         bool   `ini:"MAC"`
	OUIDatabase string `ini:"OUIDatabase"`
	Progress    bool   `ini:"Progress"`
}

// Default returns standard defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Workers: 64,
			Timeout: 500 * time.Millisecond,
		},
	}
}

// DefaultPath returns the per-user config file path, or "" if there is no
// user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "netprobe", FileName)
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := ini.MapTo(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path if it exists and returns the defaults otherwise.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Scan.Workers < 1 {
		return fmt.Errorf("[Scan] Workers must be at least 1, got %d", c.Scan.Workers)
	}
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("[Scan] Timeout must be positive, got %v", c.Scan.Timeout)
	}
	if c.General.Debug < 0 || c.General.Debug > 2 {
		return fmt.Errorf("[General] Debug must be 0, 1 or 2, got %d", c.General.Debug)
	}
	return nil
}

// Save writes the config to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	iniFile := ini.Empty()
	if err := ini.ReflectFrom(iniFile, cfg); err != nil {
		return err
	}
	return iniFile.SaveTo(path)
}
