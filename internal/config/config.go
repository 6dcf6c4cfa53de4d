// Package config loads link settings shared by the command line tools.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	NetworkTCP    = "tcp"
	NetworkDevice = "device"
)

var (
	ErrUnknownNetwork = errors.New("config: unknown network")
	ErrMissingAddress = errors.New("config: missing address")
)

// Link describes how a tool reaches its peer and frames traffic on it.
type Link struct {
	Network     string
	Address     string
	Listen      bool
	Capacity    int
	LeadingEnd  bool
	ReadSize    int
	LogLevel    string
	CallTimeout time.Duration
}

type fileConfig struct {
	Network     string `toml:"network"`
	Address     string `toml:"address"`
	Listen      bool   `toml:"listen"`
	Capacity    int    `toml:"capacity"`
	LeadingEnd  bool   `toml:"leading_end"`
	ReadSize    int    `toml:"read_size"`
	LogLevel    string `toml:"log_level"`
	CallTimeout string `toml:"call_timeout"`
}

func Default() Link {
	return Link{
		Network:     NetworkTCP,
		Address:     "localhost:8111",
		Capacity:    1006,
		LeadingEnd:  true,
		ReadSize:    4096,
		LogLevel:    "info",
		CallTimeout: 5 * time.Second,
	}
}

// Load overlays the settings in the TOML file at path on Default.
func Load(path string) (Link, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Link{}, fmt.Errorf("load link config: %w", err)
	}

	if meta.IsDefined("network") {
		cfg.Network = strings.ToLower(strings.TrimSpace(raw.Network))
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}

	if meta.IsDefined("listen") {
		cfg.Listen = raw.Listen
	}

	if meta.IsDefined("capacity") {
		cfg.Capacity = raw.Capacity
	}

	if meta.IsDefined("leading_end") {
		cfg.LeadingEnd = raw.LeadingEnd
	}

	if meta.IsDefined("read_size") {
		cfg.ReadSize = raw.ReadSize
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
		if err != nil {
			return Link{}, fmt.Errorf("parse call_timeout: %w", err)
		}
		cfg.CallTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Link{}, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, except an empty path yields Default.
func LoadOrDefault(path string) (Link, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (l Link) Validate() error {
	switch l.Network {
	case NetworkTCP, NetworkDevice:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, l.Network)
	}

	if l.Address == "" {
		return ErrMissingAddress
	}

	return nil
}
