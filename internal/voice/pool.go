// Package voice manages the set of playing soundboard voices.
//
// The pool is written for the split the mixer needs: Trigger and Stop may be
// called from any worker goroutine and only enqueue commands; the playing set
// itself is touched exclusively by [Pool.Advance] on the mix context, which
// drains the queue at the start of every tick. A triggered voice therefore
// becomes audible on the next tick boundary, never mid-frame.
package voice

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// Clip is the playable surface of a cached asset. Samples must stay valid
// until Release is called; the pool calls Release exactly once per voice,
// when the voice finishes or is stopped.
type Clip interface {
	Samples() []int16
	Release()
}

// Frame is one voice's contribution to a mix tick.
type Frame struct {
	ID   uuid.UUID
	Gain float64
	PCM  pcm.Frame
}

type voice struct {
	id      uuid.UUID
	clip    Clip
	samples []int16 // cached at trigger; immutable while the voice holds its reference
	pos     int
	gain    float64
	buf     pcm.Frame
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
)

type command struct {
	kind cmdKind
	v    *voice    // cmdStart
	id   uuid.UUID // cmdStop
}

// Pool holds the playing voices. Trigger, Stop, and Active are safe for
// concurrent use; Advance and Reset belong to the mix context's owner.
type Pool struct {
	frameLen int
	metrics  *observe.Metrics

	mu      sync.Mutex
	pending []command

	// Mix context only.
	active []*voice
	frames []Frame

	count atomic.Int32
}

// NewPool creates a pool producing frames of frameLen interleaved samples.
func NewPool(frameLen int, metrics *observe.Metrics) *Pool {
	return &Pool{frameLen: frameLen, metrics: metrics}
}

// Trigger enqueues a new voice for clip at the given gain and returns its
// identifier. The voice starts playing at the next tick boundary. The pool
// takes ownership of the clip reference.
func (p *Pool) Trigger(clip Clip, gain float64) uuid.UUID {
	v := &voice{
		id:      uuid.New(),
		clip:    clip,
		samples: clip.Samples(),
		gain:    gain,
		buf:     pcm.NewFrame(p.frameLen),
	}
	p.mu.Lock()
	p.pending = append(p.pending, command{kind: cmdStart, v: v})
	p.mu.Unlock()
	return v.id
}

// Stop enqueues removal of the voice with the given identifier. Stopping an
// unknown or already finished voice is a no-op.
func (p *Pool) Stop(id uuid.UUID) {
	p.mu.Lock()
	p.pending = append(p.pending, command{kind: cmdStop, id: id})
	p.mu.Unlock()
}

// Active returns the number of voices in the playing set as of the last tick.
func (p *Pool) Active() int {
	return int(p.count.Load())
}

// Advance applies queued commands and produces one frame per playing voice.
// A voice that consumes its final sample this tick emits a zero-padded frame
// and leaves the playing set afterwards. The returned slice and its frames
// are valid until the next call. Mix context only.
func (p *Pool) Advance() []Frame {
	p.mu.Lock()
	cmds := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range cmds {
		switch c.kind {
		case cmdStart:
			p.active = append(p.active, c.v)
		case cmdStop:
			p.removeVoice(c.id)
		}
	}

	p.frames = p.frames[:0]
	kept := p.active[:0]
	for _, v := range p.active {
		n := copy(v.buf, v.samples[v.pos:])
		v.buf[n:].Zero()
		v.pos += n
		p.frames = append(p.frames, Frame{ID: v.id, Gain: v.gain, PCM: v.buf})

		if v.pos >= len(v.samples) {
			v.clip.Release()
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(p.active); i++ {
		p.active[i] = nil
	}
	p.active = kept

	p.updateCount()
	return p.frames
}

// Reset stops every voice and drops queued commands, releasing all clip
// references. Call only while the mix context is stopped.
func (p *Pool) Reset() {
	p.mu.Lock()
	cmds := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range cmds {
		if c.kind == cmdStart {
			c.v.clip.Release()
		}
	}
	for i, v := range p.active {
		v.clip.Release()
		p.active[i] = nil
	}
	p.active = p.active[:0]
	p.updateCount()
}

func (p *Pool) removeVoice(id uuid.UUID) {
	for i, v := range p.active {
		if v.id == id {
			v.clip.Release()
			p.active = append(p.active[:i], p.active[i+1:]...)
			return
		}
	}
}

func (p *Pool) updateCount() {
	now := int32(len(p.active))
	if prev := p.count.Swap(now); prev != now {
		p.metrics.ActiveVoices.Add(context.Background(), int64(now-prev))
	}
}
