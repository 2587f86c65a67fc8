package output

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/bullhornlabs/bullhorn/internal/mix"
	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/internal/voice"
	"github.com/bullhornlabs/bullhorn/pkg/device"
	"github.com/bullhornlabs/bullhorn/pkg/device/synth"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

const frameLen = 4

func newFixture(t *testing.T, host *synth.Host) (*Pipeline, *pcm.Ring) {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ring := pcm.NewRing(4, frameLen)
	pool := voice.NewPool(frameLen, m)
	mixer := mix.NewMixer(ring, pool, 1.0, m)

	ctx := context.Background()
	stream, err := host.OpenOutput(ctx, device.StreamConfig{FrameLength: frameLen})
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	p := NewPipeline(stream, mixer)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, ring
}

func TestEachTickRunsOneMix(t *testing.T) {
	t.Parallel()

	var played []pcm.Frame
	host := synth.New(synth.WithSink(func(f pcm.Frame) {
		played = append(played, f.Clone())
	}))
	_, ring := newFixture(t, host)

	ring.ForcePush(pcm.Frame{10, 20, 30, 40})
	host.StepOutput()
	host.StepOutput() // empty ring: silence

	if len(played) != 2 {
		t.Fatalf("played %d frames, want 2", len(played))
	}
	if played[0][0] != 10 || played[0][3] != 40 {
		t.Errorf("frame 1 = %v, want [10 20 30 40]", played[0])
	}
	if played[1][0] != 0 {
		t.Errorf("frame 2 = %v, want silence on underrun", played[1])
	}
	if ring.Underruns() != 1 {
		t.Errorf("underruns = %d, want 1", ring.Underruns())
	}
}

func TestDeviceLossSurfacesOnErrors(t *testing.T) {
	t.Parallel()

	host := synth.New()
	p, _ := newFixture(t, host)

	host.FailOutput()
	err, ok := <-p.Errors()
	if !ok {
		t.Fatal("Errors closed without delivering the fault")
	}
	if !errors.Is(err, device.ErrDeviceLost) {
		t.Errorf("err = %v, want ErrDeviceLost", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	host := synth.New()
	p, _ := newFixture(t, host)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
