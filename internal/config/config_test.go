package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "link.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
network = "Device"
address = " /dev/ttyUSB0 "
listen = true
capacity = 0
leading_end = false
read_size = 64
log_level = "debug"
call_timeout = "250ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Network != NetworkDevice {
		t.Fatalf("unexpected network: %q", cfg.Network)
	}
	if cfg.Address != "/dev/ttyUSB0" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if !cfg.Listen {
		t.Fatalf("expected listen enabled")
	}
	if cfg.Capacity != 0 {
		t.Fatalf("unexpected capacity: %d", cfg.Capacity)
	}
	if cfg.LeadingEnd {
		t.Fatalf("expected leading end disabled")
	}
	if cfg.ReadSize != 64 {
		t.Fatalf("unexpected read size: %d", cfg.ReadSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
	if cfg.CallTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected call timeout: %v", cfg.CallTimeout)
	}
}

func TestLoadBadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, `call_timeout = "soon"`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadUnknownNetwork(t *testing.T) {
	_, err := Load(writeConfig(t, `network = "udp"`))
	if !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("Load() error = %v, want ErrUnknownNetwork", err)
	}
}

func TestLoadMissingAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `address = ""`))
	if !errors.Is(err, ErrMissingAddress) {
		t.Fatalf("Load() error = %v, want ErrMissingAddress", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg != Default() {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	cfg, err = LoadOrDefault(writeConfig(t, `read_size = 8`))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.ReadSize != 8 {
		t.Fatalf("unexpected read size: %d", cfg.ReadSize)
	}
}
