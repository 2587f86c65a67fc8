// Package device defines the platform audio host abstraction the broadcast
// engine is built against.
//
// The two primary abstractions are:
//
//   - [Host] — acquires capture and output devices for a session format.
//   - [InputStream] / [OutputStream] — an acquired device driving its own
//     real-time callback cadence.
//
// Implementations wrap a platform audio layer (AAudio, CoreAudio, ALSA, …)
// supplied by the surrounding application. The interfaces are intentionally
// narrow so the engine never depends on platform details; the
// [github.com/bullhornlabs/bullhorn/pkg/device/synth] package provides an
// in-memory implementation for tests and the demo binary.
package device

import (
	"context"
	"errors"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

var (
	// ErrPermissionDenied indicates the user or platform refused microphone
	// access. Surfaced before any device acquisition is attempted; never
	// retried automatically.
	ErrPermissionDenied = errors.New("device: permission denied")

	// ErrDeviceUnavailable indicates a device could not be acquired — absent,
	// busy, or the acquisition deadline expired. The session does not start.
	ErrDeviceUnavailable = errors.New("device: unavailable")

	// ErrDeviceLost indicates an acquired device disappeared mid-session
	// (unplugged headset, Bluetooth drop). Forces session teardown.
	ErrDeviceLost = errors.New("device: lost")
)

// StreamConfig fixes the format and frame length a stream is opened with.
// Every callback delivers or requests exactly FrameLength samples.
type StreamConfig struct {
	Format      pcm.Format
	FrameLength int
}

// InputStream is an acquired capture device. The platform drives the callback
// at its own real-time cadence on a dedicated execution context; the callback
// must not block on locks held by slower contexts.
type InputStream interface {
	// Start begins frame delivery. fn receives exactly one frame per hardware
	// tick; the frame buffer is only valid for the duration of the call.
	Start(fn func(pcm.Frame)) error

	// Close releases the device. Cooperative: any frame mid-delivery
	// completes first. Safe to call more than once.
	Close() error

	// Errors delivers at most one mid-session failure (typically
	// [ErrDeviceLost]) and is closed when the stream ends.
	Errors() <-chan error
}

// OutputStream is an acquired playback device. On each device tick it calls
// fn to have the next frame written into dst.
type OutputStream interface {
	// Start begins pulling frames. fn must fill dst completely within one
	// frame duration — this is the pipeline's hard real-time constraint.
	Start(fn func(dst pcm.Frame)) error

	// Close releases the device. Safe to call more than once.
	Close() error

	// Errors delivers at most one mid-session failure and is closed when the
	// stream ends.
	Errors() <-chan error
}

// Host acquires devices from the underlying platform audio layer.
// Acquisition must honor ctx — the session controller bounds every attempt
// with a short deadline and maps expiry to [ErrDeviceUnavailable] rather than
// blocking indefinitely.
type Host interface {
	OpenInput(ctx context.Context, cfg StreamConfig) (InputStream, error)
	OpenOutput(ctx context.Context, cfg StreamConfig) (OutputStream, error)
}

// PermissionFunc asks the surrounding application shell whether microphone
// access is granted, prompting the user if needed. A nil return means
// granted; denial is reported as (or wrapped around) [ErrPermissionDenied].
type PermissionFunc func(ctx context.Context) error
