// Package mix combines the live microphone with the playing soundboard
// voices into the frames handed to the output device.
package mix

import (
	"context"
	"time"

	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/internal/voice"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// Mixer produces one output frame per tick: the oldest captured mic frame
// (or silence on underrun) summed with every playing voice, saturated to
// int16 range.
//
// Tick is called from exactly one goroutine, the output device's pull
// context. All buffers are preallocated; a tick allocates nothing.
type Mixer struct {
	ring    *pcm.Ring
	pool    *voice.Pool
	micGain float64
	metrics *observe.Metrics

	mic pcm.Frame
	acc []int32
}

// NewMixer wires the capture ring and the voice pool into a mixer producing
// frames of ring.FrameLen() samples.
func NewMixer(ring *pcm.Ring, pool *voice.Pool, micGain float64, metrics *observe.Metrics) *Mixer {
	n := ring.FrameLen()
	return &Mixer{
		ring:    ring,
		pool:    pool,
		micGain: micGain,
		metrics: metrics,
		mic:     pcm.NewFrame(n),
		acc:     make([]int32, n),
	}
}

// Tick fills dst with the next output frame. dst must be ring.FrameLen()
// samples long. Summation happens in 32-bit headroom; the final samples are
// saturated, never wrapped.
func (m *Mixer) Tick(ctx context.Context, dst pcm.Frame) {
	start := time.Now()

	if m.ring.Pop(m.mic) {
		for i, s := range m.mic {
			m.acc[i] = scale(s, m.micGain)
		}
	} else {
		m.metrics.OutputUnderruns.Add(ctx, 1)
		for i := range m.acc {
			m.acc[i] = 0
		}
	}

	for _, vf := range m.pool.Advance() {
		for i, s := range vf.PCM {
			m.acc[i] += scale(s, vf.Gain)
		}
	}

	for i, v := range m.acc {
		dst[i] = pcm.ClampSample(v)
	}

	m.metrics.MixTickDuration.Record(ctx, time.Since(start).Seconds())
}

func scale(s int16, gain float64) int32 {
	if gain == 1.0 {
		return int32(s)
	}
	return int32(float64(s) * gain)
}
