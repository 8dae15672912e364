package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nadzzz/podsite/internal/audio"
	"github.com/nadzzz/podsite/internal/config"
	"github.com/nadzzz/podsite/internal/modelrt/modelrttest"
	"github.com/nadzzz/podsite/internal/observe"
	"github.com/nadzzz/podsite/internal/tts"
	"github.com/nadzzz/podsite/internal/tts/chatterbox"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type harness struct {
	fake     *modelrttest.Fake
	builds   int
	failNext bool
	reclaims int
}

func (h *harness) factory(ctx context.Context) (tts.VoiceCloner, error) {
	h.builds++
	if h.failNext {
		h.failNext = false
		return nil, errors.New("runtime unreachable")
	}
	return chatterbox.New(ctx, config.ChatterboxConfig{}, h.fake)
}

func newManager(t *testing.T, h *harness, initial tts.VoiceCloner) *Manager {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return New(h.factory, initial, WithMetrics(met), WithReclaim(func() { h.reclaims++ }))
}

func TestRecycle_ReleasesAndReloads(t *testing.T) {
	h := &harness{fake: &modelrttest.Fake{CUDA: true}}
	first, err := h.factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m := newManager(t, h, first)

	m.Recycle(context.Background())

	if h.fake.Unloads != 1 {
		t.Errorf("unloads = %d, want 1", h.fake.Unloads)
	}
	if len(h.fake.EmptyCaches) != 1 || h.fake.EmptyCaches[0] != "cuda" {
		t.Errorf("empty caches = %v", h.fake.EmptyCaches)
	}
	if h.reclaims != 1 {
		t.Errorf("reclaims = %d, want 1", h.reclaims)
	}
	if h.builds != 2 {
		t.Errorf("builds = %d, want 2", h.builds)
	}
	next := m.Loaded()
	if next == nil || next == first {
		t.Fatal("engine not replaced")
	}
	if h.fake.Loaded() != "cuda" {
		t.Errorf("runtime loaded on %q after reload", h.fake.Loaded())
	}
}

func TestRecycle_CarriesReferenceVoice(t *testing.T) {
	h := &harness{fake: &modelrttest.Fake{}}
	first, err := h.factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ref := filepath.Join(t.TempDir(), "ref.wav")
	if err := audio.WriteWAV(ref, audio.Waveform{Samples: []float32{0.2}, SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}
	if err := first.SetReferenceAudio(ref); err != nil {
		t.Fatal(err)
	}

	m := newManager(t, h, first)
	m.Recycle(context.Background())

	if got := m.Loaded().ReferenceAudio(); got != ref {
		t.Errorf("reference after reload = %q, want %q", got, ref)
	}
}

func TestRecycle_ReloadFailureIsRecoveredLazily(t *testing.T) {
	h := &harness{fake: &modelrttest.Fake{}}
	first, err := h.factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m := newManager(t, h, first)

	h.failNext = true
	m.Recycle(context.Background())
	if m.Loaded() != nil {
		t.Fatal("slot should be empty after a failed reload")
	}
	if m.LastError() == nil {
		t.Error("LastError not recorded")
	}

	e, err := m.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if e == nil || m.Loaded() != e {
		t.Error("Current did not rebuild the engine")
	}
	if m.LastError() != nil {
		t.Errorf("LastError = %v after successful rebuild", m.LastError())
	}
}

func TestCurrent_Unavailable(t *testing.T) {
	h := &harness{fake: &modelrttest.Fake{}, failNext: true}
	m := newManager(t, h, nil)

	if _, err := m.Current(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestClose(t *testing.T) {
	h := &harness{fake: &modelrttest.Fake{}}
	first, err := h.factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m := newManager(t, h, first)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Loaded() != nil || h.fake.Unloads != 1 {
		t.Errorf("loaded = %v, unloads = %d", m.Loaded(), h.fake.Unloads)
	}
}

func TestRecycle_StatusReadableDuringReload(t *testing.T) {
	fake := &modelrttest.Fake{}
	first, err := chatterbox.New(context.Background(), config.ChatterboxConfig{}, fake)
	if err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()

	factory := func(ctx context.Context) (tts.VoiceCloner, error) {
		close(entered)
		<-release
		e, err := chatterbox.New(ctx, config.ChatterboxConfig{}, fake)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	h := &harness{}
	m := newManager(t, h, first)
	m.factory = factory

	done := make(chan struct{})
	go func() {
		m.Recycle(context.Background())
		close(done)
	}()
	<-entered

	status := make(chan tts.VoiceCloner, 1)
	go func() {
		_ = m.LastError()
		status <- m.Loaded()
	}()
	select {
	case e := <-status:
		if e != nil {
			t.Error("released engine still reported while the replacement loads")
		}
	case <-time.After(time.Second):
		t.Fatal("Loaded blocked while the model reloads")
	}

	unblock()
	<-done
	if m.Loaded() == nil {
		t.Fatal("engine not reloaded")
	}
}
