package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestTickHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.MixTickDuration.Record(ctx, 0.0003)
	m.MixTickDuration.Record(ctx, 0.0007)

	rm := collect(t, reader)
	metric := findMetric(rm, "bullhorn.mix.tick.duration")
	if metric == nil {
		t.Fatal("bullhorn.mix.tick.duration not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data type = %T, want Histogram[float64]", metric.Data)
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}

func TestDegradationCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.CaptureOverruns.Add(ctx, 3)
	m.OutputUnderruns.Add(ctx, 1)

	rm := collect(t, reader)
	over := findMetric(rm, "bullhorn.capture.overruns")
	if over == nil {
		t.Fatal("bullhorn.capture.overruns not found")
	}
	sum, ok := over.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", over.Data)
	}
	if got := sum.DataPoints[0].Value; got != 3 {
		t.Errorf("overruns = %d, want 3", got)
	}
}

func TestRecordDeviceFaultAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordDeviceFault(context.Background(), "capture")

	rm := collect(t, reader)
	faults := findMetric(rm, "bullhorn.device.faults")
	if faults == nil {
		t.Fatal("bullhorn.device.faults not found")
	}
	sum := faults.Data.(metricdata.Sum[int64])
	dp := sum.DataPoints[0]
	if v, ok := dp.Attributes.Value(attribute.Key("side")); !ok || v.AsString() != "capture" {
		t.Errorf("side attribute = %v, want \"capture\"", v)
	}
}
