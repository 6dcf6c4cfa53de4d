package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestApplyWritesComponent(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	var out bytes.Buffer
	Apply(Config{Level: zerolog.DebugLevel, NoColor: true, Out: &out})

	logger := New("decoder")
	logger.Info().Int("frames", 3).Msg("decoded")

	line := out.String()
	for _, want := range []string{"decoded", "component=decoder", "frames=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
}

func TestDefaultConfigProfiles(t *testing.T) {
	if cfg := DefaultConfig(ProfileTest); cfg.Level != zerolog.DebugLevel || cfg.Timestamp {
		t.Fatalf("unexpected test profile: %+v", cfg)
	}
	if cfg := DefaultConfig(ProfileRuntime); cfg.Level != zerolog.InfoLevel || !cfg.Timestamp {
		t.Fatalf("unexpected runtime profile: %+v", cfg)
	}
}
