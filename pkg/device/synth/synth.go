// Package synth provides an in-memory [device.Host] implementation.
//
// It exists for two consumers: engine tests, which drive the clock by hand so
// every tick is deterministic, and the demo binary, which runs the host on a
// real ticker at the configured frame cadence. The input side produces frames
// from a configurable generator (silence by default); the output side hands
// mixed frames to a configurable sink (discard by default). Device failures
// can be injected to exercise the session fault paths.
package synth

import (
	"context"
	"sync"
	"time"

	"github.com/bullhornlabs/bullhorn/pkg/device"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// Option configures a [Host] during construction.
type Option func(*Host)

// WithGenerator sets the function that fills each captured frame.
// The default generator leaves frames silent.
func WithGenerator(fn func(dst pcm.Frame)) Option {
	return func(h *Host) { h.gen = fn }
}

// WithSink sets the function that receives each played frame. The frame
// buffer is only valid for the duration of the call; copy it to keep it.
// The default sink discards frames.
func WithSink(fn func(pcm.Frame)) Option {
	return func(h *Host) { h.sink = fn }
}

// WithClock switches the host from manual stepping to a self-driving ticker
// with the given frame duration. Tests normally omit this and call
// [Host.Step] instead.
func WithClock(frameDuration time.Duration) Option {
	return func(h *Host) { h.tick = frameDuration }
}

// Host is an in-memory audio host. Safe for concurrent use.
type Host struct {
	mu   sync.Mutex
	gen  func(dst pcm.Frame)
	sink func(pcm.Frame)
	tick time.Duration

	inputUnavailable  bool
	outputUnavailable bool

	in  *inputStream
	out *outputStream
}

// New creates a synthetic host. With no options it is a manually-stepped
// silent microphone and a discarding speaker.
func New(opts ...Option) *Host {
	h := &Host{
		gen:  func(dst pcm.Frame) { dst.Zero() },
		sink: func(pcm.Frame) {},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetInputUnavailable controls whether subsequent OpenInput calls fail with
// [device.ErrDeviceUnavailable].
func (h *Host) SetInputUnavailable(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputUnavailable = v
}

// SetOutputUnavailable controls whether subsequent OpenOutput calls fail with
// [device.ErrDeviceUnavailable].
func (h *Host) SetOutputUnavailable(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputUnavailable = v
}

// OpenInput implements [device.Host].
func (h *Host) OpenInput(ctx context.Context, cfg device.StreamConfig) (device.InputStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, device.ErrDeviceUnavailable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inputUnavailable {
		return nil, device.ErrDeviceUnavailable
	}
	h.in = &inputStream{
		gen:  h.gen,
		tick: h.tick,
		buf:  pcm.NewFrame(cfg.FrameLength),
		errs: make(chan error, 1),
		stop: make(chan struct{}),
	}
	return h.in, nil
}

// OpenOutput implements [device.Host].
func (h *Host) OpenOutput(ctx context.Context, cfg device.StreamConfig) (device.OutputStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, device.ErrDeviceUnavailable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outputUnavailable {
		return nil, device.ErrDeviceUnavailable
	}
	h.out = &outputStream{
		sink: h.sink,
		tick: h.tick,
		buf:  pcm.NewFrame(cfg.FrameLength),
		errs: make(chan error, 1),
		stop: make(chan struct{}),
	}
	return h.out, nil
}

// StepInput delivers one generated frame to the capture callback, as one
// hardware input tick would. No-op if no started input stream exists.
func (h *Host) StepInput() {
	h.mu.Lock()
	in := h.in
	h.mu.Unlock()
	if in != nil {
		in.step()
	}
}

// StepOutput pulls one frame through the playback callback and hands it to
// the sink, as one hardware output tick would. No-op if no started output
// stream exists.
func (h *Host) StepOutput() {
	h.mu.Lock()
	out := h.out
	h.mu.Unlock()
	if out != nil {
		out.step()
	}
}

// Step advances both sides by one tick: input first, then output — the order
// a live capture→mix→output pipeline experiences within one frame period.
func (h *Host) Step() {
	h.StepInput()
	h.StepOutput()
}

// FailInput injects a mid-session capture device loss.
func (h *Host) FailInput() {
	h.mu.Lock()
	in := h.in
	h.mu.Unlock()
	if in != nil {
		in.fail(device.ErrDeviceLost)
	}
}

// FailOutput injects a mid-session output device loss.
func (h *Host) FailOutput() {
	h.mu.Lock()
	out := h.out
	h.mu.Unlock()
	if out != nil {
		out.fail(device.ErrDeviceLost)
	}
}

// ─── streams ──────────────────────────────────────────────────────────────────

type inputStream struct {
	mu     sync.Mutex
	gen    func(dst pcm.Frame)
	cb     func(pcm.Frame)
	buf    pcm.Frame
	tick   time.Duration
	errs   chan error
	stop   chan struct{}
	closed bool
}

func (s *inputStream) Start(fn func(pcm.Frame)) error {
	s.mu.Lock()
	s.cb = fn
	s.mu.Unlock()
	if s.tick > 0 {
		go s.run()
	}
	return nil
}

func (s *inputStream) run() {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.step()
		}
	}
}

func (s *inputStream) step() {
	s.mu.Lock()
	cb := s.cb
	if s.closed || cb == nil {
		s.mu.Unlock()
		return
	}
	s.gen(s.buf)
	buf := s.buf
	s.mu.Unlock()
	cb(buf)
}

func (s *inputStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.errs <- err
	close(s.errs)
	close(s.stop)
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.errs)
	close(s.stop)
	return nil
}

func (s *inputStream) Errors() <-chan error {
	return s.errs
}

type outputStream struct {
	mu     sync.Mutex
	sink   func(pcm.Frame)
	cb     func(dst pcm.Frame)
	buf    pcm.Frame
	tick   time.Duration
	errs   chan error
	stop   chan struct{}
	closed bool
}

func (s *outputStream) Start(fn func(dst pcm.Frame)) error {
	s.mu.Lock()
	s.cb = fn
	s.mu.Unlock()
	if s.tick > 0 {
		go s.run()
	}
	return nil
}

func (s *outputStream) run() {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.step()
		}
	}
}

func (s *outputStream) step() {
	s.mu.Lock()
	cb := s.cb
	if s.closed || cb == nil {
		s.mu.Unlock()
		return
	}
	buf := s.buf
	s.mu.Unlock()
	cb(buf)
	s.sink(buf)
}

func (s *outputStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.errs <- err
	close(s.errs)
	close(s.stop)
}

func (s *outputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.errs)
	close(s.stop)
	return nil
}

func (s *outputStream) Errors() <-chan error {
	return s.errs
}
