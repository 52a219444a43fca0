package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8475 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8475)
	}
	if !cfg.API.Metrics {
		t.Error("API.Metrics should be true by default")
	}
	if cfg.Ledger.PageSize != 10 {
		t.Errorf("Ledger.PageSize = %d, want 10", cfg.Ledger.PageSize)
	}
	if cfg.Ledger.Currency != "LYD" {
		t.Errorf("Ledger.Currency = %q, want %q", cfg.Ledger.Currency, "LYD")
	}
	if cfg.Store.Dir == "" {
		t.Error("Store.Dir should have a default")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.API.Port != 8475 {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
host = "0.0.0.0"
port = 9000
metrics = false

[store]
dir = "/var/lib/settled"

[ledger]
page_size = 25
currency = "USD"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 || cfg.API.Metrics {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Store.Dir != "/var/lib/settled" {
		t.Errorf("Store.Dir = %q", cfg.Store.Dir)
	}
	if cfg.Ledger.PageSize != 25 || cfg.Ledger.Currency != "USD" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
}

func TestLoadConfigBadPageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ledger]\npage_size = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.PageSize != 10 {
		t.Errorf("PageSize = %d, want fallback 10", cfg.Ledger.PageSize)
	}
}
