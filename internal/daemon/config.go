// Package daemon holds the settled daemon configuration.
package daemon

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from a TOML file.
type Config struct {
	API    APIConfig    `toml:"api"`
	Store  StoreConfig  `toml:"store"`
	Ledger LedgerConfig `toml:"ledger"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig configures the sqlite store.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// LedgerConfig configures ledger behavior.
type LedgerConfig struct {
	PageSize int    `toml:"page_size"`
	Currency string `toml:"currency"` // display label only, never used in arithmetic
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	dir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".settled")
	}
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8475,
			Metrics: true,
		},
		Store: StoreConfig{
			Dir: dir,
		},
		Ledger: LedgerConfig{
			PageSize: 10,
			Currency: "LYD",
		},
	}
}

// LoadConfig reads the TOML file at path, falling back to defaults for a
// missing file or any unset field.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Ledger.PageSize <= 0 {
		cfg.Ledger.PageSize = 10
	}
	return cfg, nil
}
