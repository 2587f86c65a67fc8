// Package observe provides application-wide observability primitives for
// Bullhorn: OpenTelemetry metrics, tracing, and structured logging helpers.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped by the surrounding deployment. A package-level default [Metrics]
// instance ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Bullhorn metrics.
const meterName = "github.com/bullhornlabs/bullhorn"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Real-time path histograms ---

	// MixTickDuration tracks how long one mix tick takes. A tick must finish
	// within one frame duration or underruns cascade.
	MixTickDuration metric.Float64Histogram

	// DecodeDuration tracks clip decode + normalize latency on the worker
	// context.
	DecodeDuration metric.Float64Histogram

	// --- Degradation counters (never fatal, see ring buffer policies) ---

	// CaptureOverruns counts capture frames discarded by drop-oldest.
	CaptureOverruns metric.Int64Counter

	// OutputUnderruns counts output ticks that substituted silence because
	// the capture ring was empty.
	OutputUnderruns metric.Int64Counter

	// --- Error counters ---

	// DecodeErrors counts failed clip loads.
	DecodeErrors metric.Int64Counter

	// DeviceFaults counts mid-session device losses. Use with attribute:
	//   attribute.String("side", "capture"|"output")
	DeviceFaults metric.Int64Counter

	// --- Gauges ---

	// ActiveVoices tracks the number of currently audible soundboard voices.
	ActiveVoices metric.Int64UpDownCounter

	// LoadedAssets tracks the number of decoded clips resident in the cache.
	LoadedAssets metric.Int64UpDownCounter

	// --- Session counters ---

	// SessionsStarted counts broadcast sessions reaching the Live state.
	SessionsStarted metric.Int64Counter
}

// tickBuckets defines histogram bucket boundaries (in seconds) for the mix
// tick, which has a hard budget of one frame duration (2.5–60ms).
var tickBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.06,
}

// decodeBuckets defines histogram bucket boundaries (in seconds) for clip
// decodes, which run off the real-time path and may take much longer.
var decodeBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.MixTickDuration, err = m.Float64Histogram("bullhorn.mix.tick.duration",
		metric.WithDescription("Duration of one mix tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("bullhorn.asset.decode.duration",
		metric.WithDescription("Duration of clip decode and normalization."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(decodeBuckets...),
	); err != nil {
		return nil, err
	}

	// Degradation counters.
	if met.CaptureOverruns, err = m.Int64Counter("bullhorn.capture.overruns",
		metric.WithDescription("Capture frames discarded by the drop-oldest overflow policy."),
	); err != nil {
		return nil, err
	}
	if met.OutputUnderruns, err = m.Int64Counter("bullhorn.output.underruns",
		metric.WithDescription("Output ticks that substituted silence on an empty capture ring."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DecodeErrors, err = m.Int64Counter("bullhorn.asset.decode.errors",
		metric.WithDescription("Failed clip loads."),
	); err != nil {
		return nil, err
	}
	if met.DeviceFaults, err = m.Int64Counter("bullhorn.device.faults",
		metric.WithDescription("Mid-session device losses by side."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveVoices, err = m.Int64UpDownCounter("bullhorn.voices.active",
		metric.WithDescription("Number of currently audible soundboard voices."),
	); err != nil {
		return nil, err
	}
	if met.LoadedAssets, err = m.Int64UpDownCounter("bullhorn.assets.loaded",
		metric.WithDescription("Number of decoded clips resident in the cache."),
	); err != nil {
		return nil, err
	}

	// Session counters.
	if met.SessionsStarted, err = m.Int64Counter("bullhorn.sessions.started",
		metric.WithDescription("Broadcast sessions that reached the Live state."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDeviceFault records a mid-session device loss for the given side
// ("capture" or "output").
func (m *Metrics) RecordDeviceFault(ctx context.Context, side string) {
	m.DeviceFaults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("side", side)),
	)
}
