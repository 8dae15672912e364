// Package lifecycle keeps the voice-cloning engine warm across generation
// runs. After each run the loaded model is released, memory is reclaimed
// and a fresh engine is built right away so the next request does not pay
// the load cost.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nadzzz/podsite/internal/observe"
	"github.com/nadzzz/podsite/internal/tts"
)

// ErrUnavailable is returned by Current when no engine is loaded and a
// reconstruction attempt failed.
var ErrUnavailable = errors.New("lifecycle: voice-cloning engine unavailable")

// gcRounds is how many collections run between release and reload.
const gcRounds = 3

// Factory builds a new engine instance.
type Factory func(ctx context.Context) (tts.VoiceCloner, error)

// Manager owns the single voice-cloning engine instance.
type Manager struct {
	factory Factory
	metrics *observe.Metrics
	reclaim func()

	// build serializes release and construction. mu only guards the slot,
	// so status readers never wait on a model load.
	build sync.Mutex

	mu      sync.Mutex
	current tts.VoiceCloner
	lastErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithReclaim replaces the memory reclamation step run after release.
func WithReclaim(fn func()) Option {
	return func(m *Manager) { m.reclaim = fn }
}

// WithMetrics sets the metrics reloads are recorded to.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = met }
}

// New creates a Manager holding initial, which may be nil when the first
// construction failed; Current then retries through factory.
func New(factory Factory, initial tts.VoiceCloner, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		current: initial,
		reclaim: reclaimMemory,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Current returns the loaded engine, building one when the slot is empty.
func (m *Manager) Current(ctx context.Context) (tts.VoiceCloner, error) {
	if e := m.Loaded(); e != nil {
		return e, nil
	}

	m.build.Lock()
	defer m.build.Unlock()

	// A concurrent Recycle or Current may have filled the slot.
	if e := m.Loaded(); e != nil {
		return e, nil
	}
	slog.Info("voice-cloning engine not loaded, constructing")
	e, err := m.rebuild(ctx, "")
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return e, nil
}

// Loaded returns the engine without constructing one, or nil.
func (m *Manager) Loaded() tts.VoiceCloner {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastError returns the most recent construction error, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Recycle releases the current engine, reclaims memory and eagerly builds a
// replacement that inherits the reference voice. Release and
// reconstruction errors are logged; a failed reconstruction leaves the slot
// empty so the next Current call retries. The slot reads as empty while the
// replacement loads.
func (m *Manager) Recycle(ctx context.Context) {
	m.build.Lock()
	defer m.build.Unlock()

	start := time.Now()
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.mu.Unlock()

	var reference string
	if old != nil {
		reference = old.ReferenceAudio()
		if err := old.Release(ctx); err != nil {
			slog.Warn("releasing voice-cloning engine", "error", err)
		}
	}

	m.reclaim()

	e, err := m.rebuild(ctx, reference)
	if err != nil {
		slog.Error("reloading voice-cloning engine failed, will retry on next request", "error", err)
		return
	}
	slog.Info("voice-cloning engine reloaded", "device", e.Device(), "duration", time.Since(start))
}

// rebuild constructs a new engine, reapplies reference when it is set and
// stores it in the slot. m.build must be held.
func (m *Manager) rebuild(ctx context.Context, reference string) (tts.VoiceCloner, error) {
	e, err := m.factory(ctx)
	m.metrics.RecordReload(ctx, err)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return nil, err
	}
	if reference != "" {
		if err := e.SetReferenceAudio(reference); err != nil {
			slog.Warn("reference audio not carried over", "path", reference, "error", err)
		}
	}

	m.mu.Lock()
	m.current, m.lastErr = e, nil
	m.mu.Unlock()
	return e, nil
}

// Close releases the current engine.
func (m *Manager) Close() error {
	m.build.Lock()
	defer m.build.Unlock()

	m.mu.Lock()
	e := m.current
	m.current = nil
	m.mu.Unlock()

	if e == nil {
		return nil
	}
	return e.Close()
}

// reclaimMemory forces several collections and returns freed memory to the
// operating system.
func reclaimMemory() {
	for range gcRounds {
		runtime.GC()
	}
	debug.FreeOSMemory()
}
