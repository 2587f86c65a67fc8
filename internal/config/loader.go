package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Default budgets applied when the config omits them.
const (
	defaultSampleRate      = 48000
	defaultChannels        = 1
	defaultBitDepth        = 16
	defaultFrameMS         = 10
	defaultLatencyBudgetMS = 40
	defaultAcquireTimeout  = 3000
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a validated config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with the engine defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.SampleRate == 0 {
		cfg.Engine.SampleRate = defaultSampleRate
	}
	if cfg.Engine.Channels == 0 {
		cfg.Engine.Channels = defaultChannels
	}
	if cfg.Engine.BitDepth == 0 {
		cfg.Engine.BitDepth = defaultBitDepth
	}
	if cfg.Engine.FrameMS == 0 {
		cfg.Engine.FrameMS = defaultFrameMS
	}
	if cfg.Engine.LatencyBudgetMS == 0 {
		cfg.Engine.LatencyBudgetMS = defaultLatencyBudgetMS
	}
	if cfg.Engine.MicGain == 0 {
		cfg.Engine.MicGain = 1.0
	}
	if cfg.Engine.ClipGain == 0 {
		cfg.Engine.ClipGain = 1.0
	}
	if cfg.Devices.AcquireTimeoutMS == 0 {
		cfg.Devices.AcquireTimeoutMS = defaultAcquireTimeout
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	e := cfg.Engine
	if e.SampleRate < 8000 || e.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("engine.sample_rate %d is out of range [8000, 192000]", e.SampleRate))
	}
	if e.Channels != 1 && e.Channels != 2 {
		errs = append(errs, fmt.Errorf("engine.channels %d is invalid; valid values: 1 (mono), 2 (stereo)", e.Channels))
	}
	if e.BitDepth != 16 {
		errs = append(errs, fmt.Errorf("engine.bit_depth %d is unsupported; only 16 is supported", e.BitDepth))
	}
	if e.FrameMS < 1 || e.FrameMS > 60 {
		errs = append(errs, fmt.Errorf("engine.frame_ms %d is out of range [1, 60]", e.FrameMS))
	} else if e.SampleRate*e.FrameMS%1000 != 0 {
		errs = append(errs, fmt.Errorf("engine.frame_ms %d does not yield a whole number of samples at %dHz", e.FrameMS, e.SampleRate))
	}
	if e.LatencyBudgetMS < 2*e.FrameMS {
		errs = append(errs, fmt.Errorf("engine.latency_budget_ms %d must be at least two frames (%dms)", e.LatencyBudgetMS, 2*e.FrameMS))
	}
	if e.MicGain < 0 || e.ClipGain < 0 {
		errs = append(errs, fmt.Errorf("engine gains must not be negative (mic_gain=%.2f, clip_gain=%.2f)", e.MicGain, e.ClipGain))
	}

	if cfg.Devices.AcquireTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("devices.acquire_timeout_ms %d must not be negative", cfg.Devices.AcquireTimeoutMS))
	}

	for i, p := range cfg.Assets.Preload {
		if p == "" {
			errs = append(errs, fmt.Errorf("assets.preload[%d] is empty", i))
		}
	}

	// The recommended backlog is 3–6 frames; anything else still works but
	// trades latency against robustness in ways worth flagging.
	if len(errs) == 0 {
		if n := e.RingCapacity(); n < 3 || n > 6 {
			slog.Warn("capture ring backlog outside the recommended 3-6 frame band",
				"frames", n,
				"latency_budget_ms", e.LatencyBudgetMS,
				"frame_ms", e.FrameMS,
			)
		}
	}

	return errors.Join(errs...)
}
