// Package session owns the broadcast lifecycle: device acquisition, the
// capture and output pipelines, and the state machine that guards them.
//
// Only one broadcast can be live at a time (enforced by mutex). All exported
// methods are safe for concurrent use. The soundboard facade (asset and voice
// operations) works in every state — clips can be loaded and even triggered
// before going live; queued voices become audible on the first mix tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bullhornlabs/bullhorn/internal/asset"
	"github.com/bullhornlabs/bullhorn/internal/capture"
	"github.com/bullhornlabs/bullhorn/internal/config"
	"github.com/bullhornlabs/bullhorn/internal/mix"
	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/internal/output"
	"github.com/bullhornlabs/bullhorn/internal/voice"
	"github.com/bullhornlabs/bullhorn/pkg/device"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// State is the session lifecycle state.
type State int

const (
	// Idle: no devices held, no audio flowing. The starting and resting state.
	Idle State = iota

	// Starting: permission check and device acquisition in progress.
	Starting

	// Live: both pipelines running, audio flowing end to end.
	Live

	// Stopping: cooperative teardown in progress.
	Stopping

	// Faulted: a device was lost mid-session or acquisition failed after
	// permission was granted. Requires [Controller.Reset] before a new start.
	Faulted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Live:
		return "live"
	case Stopping:
		return "stopping"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrAlreadyLive is returned by StartBroadcast while a broadcast is
	// starting, live, or stopping.
	ErrAlreadyLive = errors.New("session: broadcast already live")

	// ErrNotFaulted is returned by Reset in any state other than Faulted.
	ErrNotFaulted = errors.New("session: not faulted")
)

// Snapshot is a point-in-time view of the session for UIs and health checks.
type Snapshot struct {
	State State

	// CaptureActive and OutputActive are equal in every reachable state: the
	// engine starts and stops the two pipelines as one unit.
	CaptureActive bool
	OutputActive  bool

	Format      pcm.Format
	FrameLength int

	ActiveVoices int
	LoadedAssets int

	// Overruns and Underruns are cumulative ring counters for the current
	// broadcast; zero when no broadcast is live.
	Overruns  uint64
	Underruns uint64

	// Err is the fault cause while State is Faulted, nil otherwise.
	Err error
}

// ControllerConfig holds all dependencies for a [Controller].
type ControllerConfig struct {
	Config     *config.Config
	Host       device.Host
	Permission device.PermissionFunc // nil means always granted
	Assets     *asset.Manager
	Metrics    *observe.Metrics
}

// Controller is the single entry point the surrounding application drives.
type Controller struct {
	cfg        *config.Config
	host       device.Host
	permission device.PermissionFunc
	assets     *asset.Manager
	metrics    *observe.Metrics
	pool       *voice.Pool

	mu      sync.Mutex
	state   State
	lastErr error

	// Per-broadcast, nil outside Live.
	ring    *pcm.Ring
	capture *capture.Pipeline
	output  *output.Pipeline
	cancel  context.CancelFunc
}

// NewController wires a controller. The voice pool outlives individual
// broadcasts so triggers queued while idle survive into the next session.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		cfg:        cfg.Config,
		host:       cfg.Host,
		permission: cfg.Permission,
		assets:     cfg.Assets,
		metrics:    cfg.Metrics,
		pool:       voice.NewPool(cfg.Config.Engine.FrameLength(), cfg.Metrics),
	}
}

// StartBroadcast acquires both devices and brings the pipeline live.
//
// Permission denial leaves the session Idle — the user simply said no, the
// engine is still healthy. Device acquisition failure transitions to Faulted:
// the platform audio layer is in an unknown state and the user must
// acknowledge via [Controller.Reset] before retrying.
func (c *Controller) StartBroadcast(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Starting, Live, Stopping:
		return ErrAlreadyLive
	case Faulted:
		return fmt.Errorf("session: faulted, reset required: %w", c.lastErr)
	}
	c.state = Starting

	if c.permission != nil {
		if err := c.permission(ctx); err != nil {
			c.state = Idle
			slog.Warn("broadcast start refused", "err", err)
			return fmt.Errorf("session: microphone permission: %w", err)
		}
	}

	e := c.cfg.Engine
	streamCfg := device.StreamConfig{Format: e.Format(), FrameLength: e.FrameLength()}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, c.cfg.Devices.AcquireTimeout())
	defer cancelAcquire()

	in, err := c.host.OpenInput(acquireCtx, streamCfg)
	if err != nil {
		return c.failStartLocked(fmt.Errorf("session: acquire capture device: %w", err))
	}
	out, err := c.host.OpenOutput(acquireCtx, streamCfg)
	if err != nil {
		_ = in.Close()
		return c.failStartLocked(fmt.Errorf("session: acquire output device: %w", err))
	}

	ring := pcm.NewRing(e.RingCapacity(), e.FrameLength())
	mixer := mix.NewMixer(ring, c.pool, e.MicGain, c.metrics)
	capt := capture.NewPipeline(in, ring, c.metrics)
	outp := output.NewPipeline(out, mixer)

	sessionCtx, cancel := context.WithCancel(context.Background())

	if err := capt.Start(sessionCtx); err != nil {
		cancel()
		_ = capt.Close()
		_ = outp.Close()
		return c.failStartLocked(fmt.Errorf("session: start capture: %w", err))
	}
	if err := outp.Start(sessionCtx); err != nil {
		cancel()
		_ = capt.Close()
		_ = outp.Close()
		return c.failStartLocked(fmt.Errorf("session: start output: %w", err))
	}

	go c.monitor(sessionCtx, capt.Errors(), outp.Errors())

	c.ring = ring
	c.capture = capt
	c.output = outp
	c.cancel = cancel
	c.state = Live
	c.lastErr = nil

	c.metrics.SessionsStarted.Add(ctx, 1)
	slog.Info("broadcast live",
		"format", e.Format().String(),
		"frame_ms", e.FrameMS,
		"ring_frames", e.RingCapacity(),
	)
	return nil
}

// failStartLocked records a failed start. Caller holds c.mu and is in Starting.
func (c *Controller) failStartLocked(err error) error {
	c.state = Faulted
	c.lastErr = err
	slog.Error("broadcast start failed", "err", err)
	return err
}

// StopBroadcast tears the live pipeline down cooperatively: devices are
// released in parallel, playing voices are stopped, loaded assets stay
// cached. Calling it when no broadcast is live is a no-op.
func (c *Controller) StopBroadcast(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Live {
		return nil
	}
	c.state = Stopping
	c.cancel()

	var g errgroup.Group
	g.Go(c.capture.Close)
	g.Go(c.output.Close)
	if err := g.Wait(); err != nil {
		slog.Warn("device release error during stop", "err", err)
	}

	c.pool.Reset()
	overruns, underruns := c.ring.Overruns(), c.ring.Underruns()
	c.clearBroadcastLocked()
	c.state = Idle

	slog.Info("broadcast stopped", "overruns", overruns, "underruns", underruns)
	return nil
}

// Reset acknowledges a fault and returns the session to Idle. The asset
// cache and any queued triggers are kept.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Faulted {
		return ErrNotFaulted
	}
	c.lastErr = nil
	c.state = Idle
	slog.Info("session reset")
	return nil
}

// monitor waits for the first mid-session device failure and faults the
// session. It exits silently when the broadcast stops first.
func (c *Controller) monitor(ctx context.Context, capErrs, outErrs <-chan error) {
	select {
	case <-ctx.Done():
	case err, ok := <-capErrs:
		if ok && err != nil {
			c.fault("capture", err)
		}
	case err, ok := <-outErrs:
		if ok && err != nil {
			c.fault("output", err)
		}
	}
}

// fault tears down a live broadcast after a device loss. Runs on the monitor
// goroutine; a concurrent StopBroadcast wins and makes this a no-op.
func (c *Controller) fault(side string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Live {
		return
	}
	c.metrics.RecordDeviceFault(context.Background(), side)
	c.cancel()

	var g errgroup.Group
	g.Go(c.capture.Close)
	g.Go(c.output.Close)
	if cerr := g.Wait(); cerr != nil {
		slog.Warn("device release error during fault teardown", "err", cerr)
	}

	c.pool.Reset()
	c.clearBroadcastLocked()
	c.lastErr = err
	c.state = Faulted

	slog.Error("device lost, session faulted", "side", side, "err", err)
}

// clearBroadcastLocked drops per-broadcast resources. Caller holds c.mu.
func (c *Controller) clearBroadcastLocked() {
	c.ring = nil
	c.capture = nil
	c.output = nil
	c.cancel = nil
}

// ─── soundboard facade ─────────────────────────────────────────────────────────

// AddAsset loads and caches the clip file at path. Works in every state.
func (c *Controller) AddAsset(ctx context.Context, path string) (uuid.UUID, error) {
	return c.assets.Load(ctx, path)
}

// RemoveAsset removes a cached clip. A clip still feeding playing voices is
// removed from the catalog immediately and freed when the last voice ends.
func (c *Controller) RemoveAsset(id uuid.UUID) bool {
	return c.assets.Remove(id)
}

// ListAssets returns the cached clips in the order they were added.
func (c *Controller) ListAssets() []asset.Metadata {
	return c.assets.List()
}

// TriggerAsset starts a new voice for the clip at the configured default clip
// gain and returns the voice identifier. Fails with [asset.ErrNotFound] for
// unknown or removed clips.
func (c *Controller) TriggerAsset(id uuid.UUID) (uuid.UUID, error) {
	return c.TriggerAssetGain(id, c.cfg.Engine.ClipGain)
}

// TriggerAssetGain is [Controller.TriggerAsset] with an explicit gain.
func (c *Controller) TriggerAssetGain(id uuid.UUID, gain float64) (uuid.UUID, error) {
	a, err := c.assets.Retain(id)
	if err != nil {
		return uuid.Nil, err
	}
	voiceID := c.pool.Trigger(a, gain)
	slog.Debug("voice triggered", "asset", id, "voice", voiceID, "gain", gain)
	return voiceID, nil
}

// StopVoice removes one playing voice. Unknown or finished voices are a no-op.
func (c *Controller) StopVoice(id uuid.UUID) {
	c.pool.Stop(id)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ObserveState returns a consistent snapshot of the session.
func (c *Controller) ObserveState() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:         c.state,
		CaptureActive: c.state == Live,
		OutputActive:  c.state == Live,
		Format:        c.cfg.Engine.Format(),
		FrameLength:   c.cfg.Engine.FrameLength(),
		ActiveVoices:  c.pool.Active(),
		LoadedAssets:  len(c.assets.List()),
		Err:           c.lastErr,
	}
	if c.ring != nil {
		s.Overruns = c.ring.Overruns()
		s.Underruns = c.ring.Underruns()
	}
	return s
}
