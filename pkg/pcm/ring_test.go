package pcm_test

import (
	"testing"

	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// frameOf builds a frame of n samples all set to v, so a frame's origin can be
// identified after it crosses the ring.
func frameOf(n int, v int16) pcm.Frame {
	f := pcm.NewFrame(n)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestRingPushPopRoundTrip(t *testing.T) {
	t.Parallel()

	r := pcm.NewRing(4, 3)
	if !r.Push(frameOf(3, 7)) {
		t.Fatal("Push on empty ring returned false")
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	dst := pcm.NewFrame(3)
	if !r.Pop(dst) {
		t.Fatal("Pop on non-empty ring returned false")
	}
	for i, s := range dst {
		if s != 7 {
			t.Fatalf("dst[%d] = %d, want 7", i, s)
		}
	}
	if got := r.Len(); got != 0 {
		t.Fatalf("Len after pop = %d, want 0", got)
	}
}

func TestRingPushRejectsWhenFull(t *testing.T) {
	t.Parallel()

	r := pcm.NewRing(2, 1)
	if !r.Push(frameOf(1, 1)) || !r.Push(frameOf(1, 2)) {
		t.Fatal("Push failed before ring was full")
	}
	if r.Push(frameOf(1, 3)) {
		t.Fatal("Push on full ring returned true")
	}

	// The rejected frame must not have displaced anything.
	dst := pcm.NewFrame(1)
	if !r.Pop(dst) || dst[0] != 1 {
		t.Fatalf("oldest frame = %d, want 1", dst[0])
	}
}

func TestRingDropOldestLaw(t *testing.T) {
	t.Parallel()

	const capacity = 4
	r := pcm.NewRing(capacity, 2)

	// Sustained overflow: push 3x capacity frames with increasing markers.
	for v := int16(1); v <= 3*capacity; v++ {
		r.ForcePush(frameOf(2, v))
	}

	if got := r.Len(); got != capacity {
		t.Fatalf("backlog = %d frames, exceeds capacity %d", got, capacity)
	}
	if got := r.Overruns(); got != 2*capacity {
		t.Fatalf("Overruns = %d, want %d", got, 2*capacity)
	}

	// The consumer must observe the most recently pushed frames, never stale
	// ones: the survivors are exactly the last `capacity` markers in order.
	dst := pcm.NewFrame(2)
	for i := 0; i < capacity; i++ {
		if !r.Pop(dst) {
			t.Fatalf("Pop %d returned false, want frame", i)
		}
		want := int16(2*capacity + 1 + i)
		if dst[0] != want {
			t.Fatalf("frame %d marker = %d, want %d", i, dst[0], want)
		}
	}
}

func TestRingUnderrun(t *testing.T) {
	t.Parallel()

	r := pcm.NewRing(2, 4)
	dst := frameOf(4, 99)
	if r.Pop(dst) {
		t.Fatal("Pop on empty ring returned true")
	}
	// dst untouched: the consumer substitutes silence itself.
	if dst[0] != 99 {
		t.Fatalf("Pop on empty ring modified dst: %d", dst[0])
	}
	if got := r.Underruns(); got != 1 {
		t.Fatalf("Underruns = %d, want 1", got)
	}
}

// TestRingSingleProducerSingleConsumer hammers the ring from one producer and
// one consumer goroutine and checks that every observed frame is internally
// consistent (all samples carry the same marker) and markers never go
// backwards — drop-oldest may skip values but must preserve order.
func TestRingSingleProducerSingleConsumer(t *testing.T) {
	t.Parallel()

	const (
		frames   = 10000
		frameLen = 8
	)
	r := pcm.NewRing(4, frameLen)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := int16(1); v <= frames; v++ {
			r.ForcePush(frameOf(frameLen, v))
		}
	}()

	var last int16
	dst := pcm.NewFrame(frameLen)
	for {
		select {
		case <-done:
			// Drain what remains, then stop.
			for r.Pop(dst) {
				checkFrame(t, dst, &last)
			}
			return
		default:
			if r.Pop(dst) {
				checkFrame(t, dst, &last)
			}
		}
	}
}

func checkFrame(t *testing.T, f pcm.Frame, last *int16) {
	t.Helper()
	for i := 1; i < len(f); i++ {
		if f[i] != f[0] {
			t.Fatalf("torn frame: f[%d] = %d, f[0] = %d", i, f[i], f[0])
		}
	}
	if f[0] <= *last {
		t.Fatalf("marker went backwards: %d after %d", f[0], *last)
	}
	*last = f[0]
}
