// Package output owns the playback side of a session: it answers the output
// device's pull callback by running one mix tick per frame.
package output

import (
	"context"
	"sync"

	"github.com/bullhornlabs/bullhorn/internal/mix"
	"github.com/bullhornlabs/bullhorn/pkg/device"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// Pipeline drives the mixer from the output stream's cadence. It owns the
// output stream for the life of the session.
type Pipeline struct {
	stream device.OutputStream
	mixer  *mix.Mixer

	closeOnce sync.Once
	closeErr  error
}

// NewPipeline wraps an acquired output stream. The stream is not started yet.
func NewPipeline(stream device.OutputStream, mixer *mix.Mixer) *Pipeline {
	return &Pipeline{stream: stream, mixer: mixer}
}

// Start begins pulling frames. Each device tick runs exactly one mix tick on
// the device's output context.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.stream.Start(func(dst pcm.Frame) {
		p.mixer.Tick(ctx, dst)
	})
}

// Errors surfaces the stream's mid-session failure channel.
func (p *Pipeline) Errors() <-chan error {
	return p.stream.Errors()
}

// Close releases the output device. Idempotent.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.stream.Close()
	})
	return p.closeErr
}
