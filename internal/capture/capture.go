// Package capture owns the microphone side of a session: it adapts the
// platform input stream's push callback onto the capture ring.
package capture

import (
	"context"
	"sync"

	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/pkg/device"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// Pipeline pushes every captured frame into the ring with the drop-oldest
// overflow policy. It owns the input stream for the life of the session.
type Pipeline struct {
	stream  device.InputStream
	ring    *pcm.Ring
	metrics *observe.Metrics

	closeOnce sync.Once
	closeErr  error
}

// NewPipeline wraps an acquired input stream. The stream is not started yet.
func NewPipeline(stream device.InputStream, ring *pcm.Ring, metrics *observe.Metrics) *Pipeline {
	return &Pipeline{stream: stream, ring: ring, metrics: metrics}
}

// Start begins frame delivery. The callback runs on the device's capture
// context: one ForcePush per frame, no blocking, no allocation.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.stream.Start(func(f pcm.Frame) {
		if p.ring.ForcePush(f) {
			p.metrics.CaptureOverruns.Add(ctx, 1)
		}
	})
}

// Errors surfaces the stream's mid-session failure channel.
func (p *Pipeline) Errors() <-chan error {
	return p.stream.Errors()
}

// Close releases the capture device. Idempotent.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.stream.Close()
	})
	return p.closeErr
}
