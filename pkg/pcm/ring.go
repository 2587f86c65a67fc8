package pcm

import (
	"sync"
	"sync/atomic"
)

// Ring is a fixed-capacity queue of fixed-size PCM frames connecting exactly
// one producer (the capture callback) and one consumer (the mix tick).
//
// Frames cross the ring by value: Push copies the caller's samples into a
// preallocated slot, Pop copies them back out into the caller's buffer, so no
// two contexts ever hold a writable view of the same memory. All operations
// are O(1) and allocate nothing after construction; the single mutex is held
// only for the duration of one frame copy.
//
// Overflow policy: the producer calls [Ring.ForcePush], which discards the
// oldest frame to make room — a megaphone favours "what you say now" over
// historical completeness. Underrun policy: [Ring.Pop] reports false and the
// consumer substitutes silence, keeping the output cadence unbroken.
type Ring struct {
	mu    sync.Mutex
	slots []Frame
	head  int // index of the oldest frame
	size  int // number of frames currently queued

	frameLen int

	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// NewRing creates a ring of capacity frames, each frameLen samples long.
// Capacity is fixed for the life of the ring; there is no resizing.
// Panics if capacity < 1 or frameLen < 1 — both are validated by the config
// layer long before a ring is built.
func NewRing(capacity, frameLen int) *Ring {
	if capacity < 1 || frameLen < 1 {
		panic("pcm: ring capacity and frame length must be positive")
	}
	slots := make([]Frame, capacity)
	for i := range slots {
		slots[i] = NewFrame(frameLen)
	}
	return &Ring{slots: slots, frameLen: frameLen}
}

// Push copies f into the ring. Returns false (without writing) when the ring
// is full; the producer then applies the overflow policy via [Ring.ForcePush].
func (r *Ring) Push(f Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == len(r.slots) {
		return false
	}
	r.writeLocked(f)
	return true
}

// ForcePush copies f into the ring, discarding the oldest queued frame first
// if the ring is full (drop-oldest). Returns true when a frame was dropped.
func (r *Ring) ForcePush(f Frame) (dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == len(r.slots) {
		r.head = (r.head + 1) % len(r.slots)
		r.size--
		r.overruns.Add(1)
		dropped = true
	}
	r.writeLocked(f)
	return dropped
}

// Pop copies the oldest frame into dst and removes it from the ring.
// Returns false on underrun (ring empty); dst is left untouched and the
// consumer substitutes a silence frame.
func (r *Ring) Pop(dst Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		r.underruns.Add(1)
		return false
	}
	copy(dst, r.slots[r.head])
	r.head = (r.head + 1) % len(r.slots)
	r.size--
	return true
}

// writeLocked copies f into the next free slot. Caller holds r.mu and has
// ensured there is room.
func (r *Ring) writeLocked(f Frame) {
	slot := r.slots[(r.head+r.size)%len(r.slots)]
	copy(slot, f)
	r.size++
}

// Len returns the number of frames currently queued.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed capacity in frames.
func (r *Ring) Cap() int {
	return len(r.slots)
}

// FrameLen returns the fixed per-frame sample count.
func (r *Ring) FrameLen() int {
	return r.frameLen
}

// Overruns returns the number of frames discarded by drop-oldest so far.
// Over/underruns are degradation signals, never errors.
func (r *Ring) Overruns() uint64 {
	return r.overruns.Load()
}

// Underruns returns the number of empty Pop calls so far.
func (r *Ring) Underruns() uint64 {
	return r.underruns.Load()
}
