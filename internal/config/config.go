// Package config provides the configuration schema, loader, and validation
// for the Bullhorn broadcast engine.
package config

import (
	"time"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// LogLevel controls log verbosity for the engine.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Bullhorn.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// HealthAddr, when set, serves /healthz and /readyz on this address
	// (e.g. ":8080"). Empty disables the HTTP listener.
	HealthAddr string `yaml:"health_addr"`

	Engine  EngineConfig  `yaml:"engine"`
	Devices DevicesConfig `yaml:"devices"`
	Assets  AssetsConfig  `yaml:"assets"`
}

// EngineConfig fixes the session audio format and the real-time budgets.
// All values are checked once at load time; invalid combinations fail fast
// here instead of surfacing later as device errors.
type EngineConfig struct {
	// SampleRate in Hz for the whole session (capture, clips, output).
	SampleRate int `yaml:"sample_rate"`

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int `yaml:"channels"`

	// BitDepth is the bits per sample. Only 16 is supported.
	BitDepth int `yaml:"bit_depth"`

	// FrameMS is the duration of one frame in milliseconds. Every pipeline
	// tick processes exactly one frame of this length.
	FrameMS int `yaml:"frame_ms"`

	// LatencyBudgetMS sizes the capture ring: budget / frame duration frames
	// of backlog are allowed before drop-oldest engages.
	LatencyBudgetMS int `yaml:"latency_budget_ms"`

	// MicGain scales the live microphone in the mix. Default 1.0.
	MicGain float64 `yaml:"mic_gain"`

	// ClipGain is the default gain applied to triggered clips. Default 1.0.
	ClipGain float64 `yaml:"clip_gain"`
}

// DevicesConfig holds platform device acquisition settings.
type DevicesConfig struct {
	// AcquireTimeoutMS bounds each device acquisition attempt. Expiry fails
	// the start with a device-unavailable error rather than blocking.
	AcquireTimeoutMS int `yaml:"acquire_timeout_ms"`
}

// AssetsConfig configures soundboard clip preloading.
type AssetsConfig struct {
	// Preload lists clip files decoded into the cache before the engine is
	// handed to the caller. Individual decode failures are logged, not fatal.
	Preload []string `yaml:"preload"`
}

// Format returns the session [pcm.Format] described by the engine config.
func (e EngineConfig) Format() pcm.Format {
	return pcm.Format{SampleRate: e.SampleRate, Channels: e.Channels, BitDepth: e.BitDepth}
}

// FrameLength returns the per-frame sample count (all channels interleaved).
func (e EngineConfig) FrameLength() int {
	return e.Format().SamplesPerFrame(e.FrameMS)
}

// FrameDuration returns the wall-clock duration of one frame.
func (e EngineConfig) FrameDuration() time.Duration {
	return time.Duration(e.FrameMS) * time.Millisecond
}

// RingCapacity returns the capture ring size in frames: the latency budget
// divided by the frame duration, never less than two.
func (e EngineConfig) RingCapacity() int {
	n := e.LatencyBudgetMS / e.FrameMS
	if n < 2 {
		n = 2
	}
	return n
}

// AcquireTimeout returns the device acquisition deadline.
func (d DevicesConfig) AcquireTimeout() time.Duration {
	return time.Duration(d.AcquireTimeoutMS) * time.Millisecond
}
