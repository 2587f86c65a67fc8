// Command bullhorn runs the broadcast engine against the synthetic audio
// host: a generated microphone tone, the configured preloaded soundboard
// clips, and a discarding speaker (or a WAV recording of the program output
// via -record). It exercises the full capture → mix → output pipeline end to
// end without real hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bullhornlabs/bullhorn/internal/asset"
	"github.com/bullhornlabs/bullhorn/internal/config"
	"github.com/bullhornlabs/bullhorn/internal/health"
	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/internal/session"
	"github.com/bullhornlabs/bullhorn/pkg/codec"
	"github.com/bullhornlabs/bullhorn/pkg/device/synth"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	recordPath := flag.String("record", "", "record the program output to this WAV file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "bullhorn: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("bullhorn starting",
		"version", version,
		"config", *configPath,
		"format", cfg.Engine.Format().String(),
		"frame_ms", cfg.Engine.FrameMS,
		"latency_budget_ms", cfg.Engine.LatencyBudgetMS,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "bullhorn",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Engine wiring ─────────────────────────────────────────────────────────
	hostOpts := []synth.Option{
		synth.WithClock(cfg.Engine.FrameDuration()),
		synth.WithGenerator(toneGenerator(cfg.Engine.Format())),
	}

	var recorder *codec.WAVWriter
	var recordFile *os.File
	if *recordPath != "" {
		recordFile, err = os.Create(*recordPath)
		if err != nil {
			slog.Error("failed to create recording file", "path", *recordPath, "err", err)
			return 1
		}
		recorder = codec.NewWAVWriter(recordFile, cfg.Engine.Format())
		hostOpts = append(hostOpts, synth.WithSink(func(f pcm.Frame) {
			if err := recorder.WriteFrame(f); err != nil {
				slog.Warn("recording write failed", "err", err)
			}
		}))
		slog.Info("recording program output", "path", *recordPath)
	}

	host := synth.New(hostOpts...)

	assets := asset.NewManager(cfg.Engine.Format(), metrics)
	if len(cfg.Assets.Preload) > 0 {
		if err := assets.LoadAll(ctx, cfg.Assets.Preload); err != nil {
			slog.Error("asset preload aborted", "err", err)
			return 1
		}
		slog.Info("assets preloaded", "count", len(assets.List()), "requested", len(cfg.Assets.Preload))
	}

	ctrl := session.NewController(session.ControllerConfig{
		Config:  cfg,
		Host:    host,
		Assets:  assets,
		Metrics: metrics,
	})

	if err := ctrl.StartBroadcast(ctx); err != nil {
		slog.Error("failed to start broadcast", "err", err)
		return 1
	}

	// ── Health endpoints (optional) ───────────────────────────────────────────
	var healthSrv *http.Server
	if cfg.HealthAddr != "" {
		mux := http.NewServeMux()
		health.New(health.SessionChecker(ctrl)).Register(mux)
		healthSrv = &http.Server{Addr: cfg.HealthAddr, Handler: mux}
		go func() {
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("health listener error", "err", err)
			}
		}()
		slog.Info("health endpoints up", "addr", cfg.HealthAddr)
	}

	// Fire each preloaded clip once, a second apart, so the demo is audible
	// in the metrics even with a silent sink.
	go triggerLoop(ctx, ctrl)

	slog.Info("broadcast running — press Ctrl+C to shut down")
	statusLoop(ctx, ctrl)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if healthSrv != nil {
		if err := healthSrv.Shutdown(stopCtx); err != nil {
			slog.Warn("health listener shutdown error", "err", err)
		}
	}
	if err := ctrl.StopBroadcast(stopCtx); err != nil {
		slog.Warn("stop error", "err", err)
	}
	// The output stream is closed, so the sink is quiet: safe to finalize.
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			slog.Warn("recording finalize error", "err", err)
		}
		if err := recordFile.Close(); err != nil {
			slog.Warn("recording file close error", "err", err)
		}
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// triggerLoop plays the preloaded clips in catalog order, one per second.
func triggerLoop(ctx context.Context, ctrl *session.Controller) {
	for _, meta := range ctrl.ListAssets() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		if _, err := ctrl.TriggerAsset(meta.ID); err != nil {
			slog.Warn("trigger failed", "name", meta.Name, "err", err)
			continue
		}
		slog.Info("clip triggered", "name", meta.Name, "samples", meta.SampleCount)
	}
}

// statusLoop logs a session snapshot every five seconds until ctx ends.
func statusLoop(ctx context.Context, ctrl *session.Controller) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := ctrl.ObserveState()
			slog.Info("session status",
				"state", snap.State.String(),
				"voices", snap.ActiveVoices,
				"assets", snap.LoadedAssets,
				"overruns", snap.Overruns,
				"underruns", snap.Underruns,
			)
			if snap.State == session.Faulted {
				slog.Error("session faulted", "err", snap.Err)
				return
			}
		}
	}
}

// toneGenerator returns a synth generator producing a quiet 440Hz sine, the
// stand-in for a live microphone.
func toneGenerator(f pcm.Format) func(pcm.Frame) {
	const freq, amp = 440.0, 3000.0
	step := 2 * math.Pi * freq / float64(f.SampleRate)
	var phase float64
	return func(dst pcm.Frame) {
		for i := 0; i < len(dst); i += f.Channels {
			s := int16(amp * math.Sin(phase))
			for c := 0; c < f.Channels; c++ {
				dst[i+c] = s
			}
			phase += step
		}
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
