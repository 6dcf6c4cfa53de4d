package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestOpenDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write device: %v", err)
	}

	cfg := Default()
	cfg.Network = NetworkDevice
	cfg.Address = path

	rwc, err := cfg.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rwc.Close()

	if _, err := rwc.Write([]byte{0xC0}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestOpenTCP(t *testing.T) {
	cfg := Default()
	cfg.Address = "127.0.0.1:0"

	lis, err := cfg.Listener(context.Background())
	if err != nil {
		t.Fatalf("Listener() error = %v", err)
	}
	defer lis.Close()

	cfg.Address = lis.Addr().String()
	rwc, err := cfg.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rwc.Close()
}

func TestListenerRequiresTCP(t *testing.T) {
	cfg := Default()
	cfg.Network = NetworkDevice

	if _, err := cfg.Listener(context.Background()); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("Listener() error = %v, want ErrUnknownNetwork", err)
	}
}

func TestLinkOptions(t *testing.T) {
	if got := len(Default().LinkOptions(zerolog.Nop())); got != 4 {
		t.Fatalf("LinkOptions() returned %d options, want 4", got)
	}
}
