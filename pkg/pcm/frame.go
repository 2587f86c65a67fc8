// Package pcm defines the PCM sample types shared by every stage of the
// broadcast pipeline, the fixed-capacity frame ring buffer that connects the
// capture and mix contexts, and the format-normalization routines (resampling
// and channel remixing) used when decoded clips do not match the session
// format.
//
// A session runs with exactly one [Format] from start to stop; every [Frame]
// in flight has the same fixed length. Samples are signed 16-bit integers,
// interleaved for multi-channel audio.
package pcm

import "fmt"

// Format describes the sample rate, channel count, and bit depth of a PCM
// stream. All frames in a session share one Format, fixed at session start.
type Format struct {
	// SampleRate in Hz (e.g., 48000).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// BitDepth is the bits per sample. Only 16 is supported by the engine;
	// the config layer rejects anything else before a session can start.
	BitDepth int
}

// SamplesPerFrame returns the frame length (in samples, all channels
// interleaved) for a frame of frameMS milliseconds at this format.
func (f Format) SamplesPerFrame(frameMS int) int {
	return f.SampleRate * frameMS / 1000 * f.Channels
}

// String returns a human-readable description, e.g. "48000Hz mono 16-bit".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s %d-bit", f.SampleRate, ch, f.BitDepth)
}

// Frame is a fixed-length block of interleaved int16 PCM samples, the atomic
// unit processed per pipeline tick. Frame length is constant for the lifetime
// of a session.
type Frame []int16

// NewFrame allocates a zeroed (silent) frame of n samples.
func NewFrame(n int) Frame {
	return make(Frame, n)
}

// Zero overwrites the frame with silence in place.
func (f Frame) Zero() {
	for i := range f {
		f[i] = 0
	}
}

// Clone returns an independent copy of the frame.
func (f Frame) Clone() Frame {
	c := make(Frame, len(f))
	copy(c, f)
	return c
}

// Clip is a fully decoded, immutable PCM buffer together with the format its
// samples are in. Decoders produce clips in their source format; the asset
// manager normalizes them to the session format before caching.
type Clip struct {
	Samples []int16
	Format  Format
}
