package config

import (
	"strings"
	"testing"
)

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: debug
engine:
  sample_rate: 48000
  channels: 1
  bit_depth: 16
  frame_ms: 10
  latency_budget_ms: 40
devices:
  acquire_timeout_ms: 2000
assets:
  preload:
    - clips/airhorn.wav
    - clips/applause.mp3
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Engine.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.Engine.SampleRate)
	}
	if got := cfg.Engine.FrameLength(); got != 480 {
		t.Errorf("FrameLength = %d, want 480", got)
	}
	if got := cfg.Engine.RingCapacity(); got != 4 {
		t.Errorf("RingCapacity = %d, want 4", got)
	}
	if len(cfg.Assets.Preload) != 2 {
		t.Errorf("Preload = %d entries, want 2", len(cfg.Assets.Preload))
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Engine.SampleRate != 48000 || cfg.Engine.Channels != 1 || cfg.Engine.BitDepth != 16 {
		t.Errorf("defaults = %v, want 48000Hz mono 16-bit", cfg.Engine.Format())
	}
	if cfg.Engine.MicGain != 1.0 || cfg.Engine.ClipGain != 1.0 {
		t.Errorf("gains = %.2f/%.2f, want 1.00/1.00", cfg.Engine.MicGain, cfg.Engine.ClipGain)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("engine:\n  sample_rte: 48000\n"))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unsupported bit depth",
			mutate: func(c *Config) { c.Engine.BitDepth = 24 },
			want:   "bit_depth",
		},
		{
			name:   "bad channel count",
			mutate: func(c *Config) { c.Engine.Channels = 5 },
			want:   "channels",
		},
		{
			name:   "sample rate too low",
			mutate: func(c *Config) { c.Engine.SampleRate = 4000 },
			want:   "sample_rate",
		},
		{
			name:   "fractional frame",
			mutate: func(c *Config) { c.Engine.SampleRate = 44100; c.Engine.FrameMS = 7 },
			want:   "whole number of samples",
		},
		{
			name:   "latency budget below two frames",
			mutate: func(c *Config) { c.Engine.LatencyBudgetMS = 15 },
			want:   "latency_budget_ms",
		},
		{
			name:   "negative gain",
			mutate: func(c *Config) { c.Engine.MicGain = -0.5 },
			want:   "gains",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.LogLevel = "loud" },
			want:   "log_level",
		},
		{
			name:   "empty preload entry",
			mutate: func(c *Config) { c.Assets.Preload = []string{""} },
			want:   "preload",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateJoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Engine.BitDepth = 8
	cfg.Engine.Channels = 3
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	msg := err.Error()
	if !strings.Contains(msg, "bit_depth") || !strings.Contains(msg, "channels") {
		t.Errorf("joined error %q missing one of the failures", msg)
	}
}
