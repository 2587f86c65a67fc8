// Package asset decodes soundboard clips and caches them as immutable PCM in
// the session format.
//
// Decode work runs on whatever worker goroutine calls Load — never on the
// capture or output contexts — and a finished asset is published to the cache
// in one step, so a half-decoded clip is never visible. Assets are
// reference-counted: the pool retains an asset for each playing voice, and
// removal of a still-playing asset is deferred until the last voice lets go.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bullhornlabs/bullhorn/internal/observe"
	"github.com/bullhornlabs/bullhorn/pkg/codec"
	"github.com/bullhornlabs/bullhorn/pkg/pcm"
)

// ErrNotFound indicates an asset identifier that is unknown or has been
// removed and fully released.
var ErrNotFound = errors.New("asset: not found")

// Metadata describes a cached asset. SampleCount counts interleaved samples
// in the session format.
type Metadata struct {
	ID          uuid.UUID
	Name        string
	SampleCount int
	Channels    int
	SampleRate  int
}

// Asset is an immutable decoded clip plus its refcount. The manager owns the
// table entry; voices share the PCM read-only via [Manager.Retain].
type Asset struct {
	meta Metadata

	// samples is immutable while refs > 0; dropped by finalize once the
	// asset is removed and the last reference is released.
	samples []int16

	refs     atomic.Int32
	removed  atomic.Bool
	released atomic.Bool

	mgr *Manager
}

// Metadata returns the asset's descriptive metadata.
func (a *Asset) Metadata() Metadata {
	return a.meta
}

// Samples returns the asset's PCM in the session format. The slice is
// read-only and valid while the caller holds a reference.
func (a *Asset) Samples() []int16 {
	return a.samples
}

// Release returns one reference. When the asset has been removed and this was
// the last reference, its PCM memory is released. Safe to call from the mix
// context — it takes no locks.
func (a *Asset) Release() {
	if a.refs.Add(-1) == 0 && a.removed.Load() {
		a.finalize()
	}
}

// finalize drops the PCM buffer exactly once. The table entry itself is
// unlinked lazily by the manager on its next mutation (worker context).
func (a *Asset) finalize() {
	if !a.released.CompareAndSwap(false, true) {
		return
	}
	a.samples = nil
	a.mgr.metrics.LoadedAssets.Add(context.Background(), -1)
}

// Manager owns the asset cache. Load/Remove/List/Retain are worker-context
// operations and are safe for concurrent use; only [Asset.Release] is called
// from the mix context.
type Manager struct {
	target  pcm.Format
	metrics *observe.Metrics

	mu    sync.Mutex
	byID  map[uuid.UUID]*Asset
	order []uuid.UUID // insertion order, the user's add order
}

// NewManager creates a manager that normalizes every decoded clip to the
// session format. metrics must not be nil.
func NewManager(target pcm.Format, metrics *observe.Metrics) *Manager {
	return &Manager{
		target:  target,
		metrics: metrics,
		byID:    make(map[uuid.UUID]*Asset),
	}
}

// Load decodes the audio file at path and publishes it under a fresh
// identifier. Unsupported or corrupt input fails with a [*codec.DecodeError]
// and leaves the cache unchanged.
func (m *Manager) Load(ctx context.Context, path string) (uuid.UUID, error) {
	f, err := os.Open(path)
	if err != nil {
		m.metrics.DecodeErrors.Add(ctx, 1)
		return uuid.Nil, fmt.Errorf("asset: open %q: %w", path, err)
	}
	defer f.Close()

	return m.LoadReader(ctx, filepath.Base(path), f)
}

// LoadReader decodes a clip from r and publishes it under a fresh identifier.
// The display name is used in listings and error messages.
func (m *Manager) LoadReader(ctx context.Context, name string, r io.ReadSeeker) (uuid.UUID, error) {
	ctx, span := observe.StartSpan(ctx, "asset.decode")
	defer span.End()

	start := time.Now()
	clip, err := codec.Decode(name, r)
	if err != nil {
		m.metrics.DecodeErrors.Add(ctx, 1)
		return uuid.Nil, err
	}
	clip = pcm.Normalize(clip, m.target)
	m.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds())

	a := &Asset{
		meta: Metadata{
			ID:          uuid.New(),
			Name:        name,
			SampleCount: len(clip.Samples),
			Channels:    m.target.Channels,
			SampleRate:  m.target.SampleRate,
		},
		samples: clip.Samples,
		mgr:     m,
	}

	// Publish: the asset becomes visible in one step, fully decoded.
	m.mu.Lock()
	m.sweepLocked()
	m.byID[a.meta.ID] = a
	m.order = append(m.order, a.meta.ID)
	m.mu.Unlock()

	m.metrics.LoadedAssets.Add(ctx, 1)
	observe.Logger(ctx).Debug("asset loaded",
		"id", a.meta.ID,
		"name", name,
		"samples", a.meta.SampleCount,
		"decode_ms", time.Since(start).Milliseconds(),
	)
	return a.meta.ID, nil
}

// LoadAll preloads multiple clip files concurrently, bounded to the CPU
// count. Individual decode failures are logged and skipped; the first
// non-decode failure (context cancellation) aborts the batch.
func (m *Manager) LoadAll(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.Load(ctx, path); err != nil {
				slog.Warn("asset preload failed", "path", path, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Remove marks the asset for removal. Returns false if the identifier is
// unknown. Memory release is deferred until no voice references the asset;
// an unreferenced asset is released immediately.
func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok || a.removed.Load() {
		return false
	}
	a.removed.Store(true)
	if a.refs.Load() == 0 {
		a.finalize()
	}
	m.sweepLocked()
	return true
}

// List returns metadata for all cached assets in insertion order, which
// matches the user's add order. Removed assets are excluded even while a
// voice still holds their data.
func (m *Manager) List() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Metadata, 0, len(m.order))
	for _, id := range m.order {
		a, ok := m.byID[id]
		if !ok || a.removed.Load() {
			continue
		}
		out = append(out, a.meta)
	}
	return out
}

// Retain looks up an asset and takes a reference on it for a new voice.
// Fails with [ErrNotFound] when the id is unknown or the asset has been
// removed. The caller must call [Asset.Release] exactly once.
func (m *Manager) Retain(id uuid.UUID) (*Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok || a.removed.Load() {
		return nil, ErrNotFound
	}
	a.refs.Add(1)
	return a, nil
}

// sweepLocked unlinks table entries whose PCM has been released. Caller
// holds m.mu.
func (m *Manager) sweepLocked() {
	kept := m.order[:0]
	for _, id := range m.order {
		a, ok := m.byID[id]
		if ok && a.released.Load() {
			delete(m.byID, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}
