package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nadzzz/podsite/internal/audio"
	"github.com/nadzzz/podsite/internal/config"
	"github.com/nadzzz/podsite/internal/lifecycle"
	"github.com/nadzzz/podsite/internal/message"
	"github.com/nadzzz/podsite/internal/modelrt"
	"github.com/nadzzz/podsite/internal/modelrt/modelrttest"
	"github.com/nadzzz/podsite/internal/observe"
	"github.com/nadzzz/podsite/internal/tts"
	"github.com/nadzzz/podsite/internal/tts/chatterbox"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// stubSynth is a fixed-voice backend returning one sample per character.
type stubSynth struct{}

func (stubSynth) Name() string    { return config.EngineKokoro }
func (stubSynth) SampleRate() int { return 24000 }
func (stubSynth) Close() error    { return nil }
func (stubSynth) Synthesize(_ context.Context, text string) (audio.Waveform, error) {
	if strings.Contains(text, "FAIL") {
		return audio.Waveform{}, errors.New("kokoro exploded")
	}
	return audio.Waveform{Samples: make([]float32, len(text)), SampleRate: 24000}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	pacing := config.PacingConfig{MaxChars: 800, PhasePause: 300 * time.Millisecond, SegmentPause: 500 * time.Millisecond}
	return &config.Config{
		Output: config.OutputConfig{Dir: t.TempDir()},
		Engines: config.EnginesConfig{
			Default:    config.EngineKokoro,
			Kokoro:     config.KokoroConfig{Pacing: pacing},
			Chatterbox: config.ChatterboxConfig{Pacing: pacing},
		},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newCloner(t *testing.T, fake *modelrttest.Fake, met *observe.Metrics) *lifecycle.Manager {
	t.Helper()
	factory := func(ctx context.Context) (tts.VoiceCloner, error) {
		e, err := chatterbox.New(ctx, config.ChatterboxConfig{}, fake)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	first, err := factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return lifecycle.New(factory, first, lifecycle.WithMetrics(met), lifecycle.WithReclaim(func() {}))
}

func request(lines ...string) *message.GenerateRequest {
	req := &message.GenerateRequest{Metadata: message.ScriptMetadata{SourceDocument: "test"}}
	for _, l := range lines {
		req.Script = append(req.Script, map[string]string{"Speaker": l})
	}
	return req
}

func TestGenerate_Kokoro(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, Backends{Kokoro: stubSynth{}}, testMetrics(t))
	d.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	res, err := d.Generate(context.Background(), request("One.", "Two."))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.RunID != "podcast_20260102_030405" {
		t.Errorf("run id = %q", res.RunID)
	}
	if res.OutputDir != filepath.Join(cfg.Output.Dir, res.RunID) {
		t.Errorf("output dir = %q", res.OutputDir)
	}
	if len(res.Files) != 3 || res.CombinedPath != res.Files[2] {
		t.Fatalf("files = %v, combined = %q", res.Files, res.CombinedPath)
	}
	if res.Engine != config.EngineKokoro || res.Error != "" {
		t.Errorf("engine = %q, error = %q", res.Engine, res.Error)
	}

	// Same second: the second run gets a suffixed directory.
	again, err := d.Generate(context.Background(), request("Three."))
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if again.RunID != "podcast_20260102_030405_2" {
		t.Errorf("second run id = %q", again.RunID)
	}
}

func TestGenerate_NoCombine(t *testing.T) {
	d := New(testConfig(t), Backends{Kokoro: stubSynth{}}, testMetrics(t))
	req := request("One.", "Two.")
	no := false
	req.Combine = &no

	res, err := d.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Files) != 2 || res.CombinedPath != "" {
		t.Fatalf("files = %v, combined = %q", res.Files, res.CombinedPath)
	}
}

func TestGenerate_RunLevelFailureKeepsFiles(t *testing.T) {
	d := New(testConfig(t), Backends{Kokoro: stubSynth{}}, testMetrics(t))

	res, err := d.Generate(context.Background(), request("FAIL.", "FAIL again."))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Error == "" {
		t.Error("run-level failure not reported")
	}
	if len(res.Failures) != 2 || len(res.Files) != 0 {
		t.Errorf("failures = %v, files = %v", res.Failures, res.Files)
	}
}

func TestGenerate_Busy(t *testing.T) {
	d := New(testConfig(t), Backends{Kokoro: stubSynth{}}, testMetrics(t))
	d.running.Lock()
	defer d.running.Unlock()

	if _, err := d.Generate(context.Background(), request("One.")); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if err := d.SetReferenceAudio(context.Background(), ""); !errors.Is(err, ErrBusy) {
		t.Fatalf("SetReferenceAudio err = %v, want ErrBusy", err)
	}
}

func TestGenerate_RequestErrors(t *testing.T) {
	cfg := testConfig(t)
	met := testMetrics(t)
	tests := []struct {
		name     string
		backends Backends
		req      *message.GenerateRequest
		want     error
	}{
		{"empty script", Backends{Kokoro: stubSynth{}}, request(), ErrInvalidRequest},
		{"unknown engine", Backends{Kokoro: stubSynth{}}, func() *message.GenerateRequest {
			r := request("One.")
			r.Engine = "espeak"
			return r
		}(), ErrUnknownEngine},
		{"kokoro unavailable", Backends{KokoroErr: tts.ErrUnavailable}, request("One."), ErrEngineUnavailable},
		{"chatterbox disabled", Backends{Kokoro: stubSynth{}}, func() *message.GenerateRequest {
			r := request("One.")
			r.Engine = config.EngineChatterbox
			return r
		}(), ErrEngineUnavailable},
		{"reference with kokoro", Backends{Kokoro: stubSynth{}}, func() *message.GenerateRequest {
			r := request("One.")
			r.ReferenceAudio = "/tmp/voice.wav"
			return r
		}(), ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(cfg, tt.backends, met)
			if _, err := d.Generate(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerate_ChatterboxRecyclesAndUsesReference(t *testing.T) {
	met := testMetrics(t)
	fake := &modelrttest.Fake{MPS: true}
	cloner := newCloner(t, fake, met)
	d := New(testConfig(t), Backends{Kokoro: stubSynth{}, Cloner: cloner}, met)

	ref := filepath.Join(t.TempDir(), "voice.wav")
	if err := audio.WriteWAV(ref, audio.Waveform{Samples: []float32{0.3}, SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}

	req := request("Hello there.")
	req.Engine = config.EngineChatterbox
	req.ReferenceAudio = ref
	res, err := d.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Device != "mps" || len(res.Files) != 2 {
		t.Errorf("device = %q, files = %v", res.Device, res.Files)
	}
	if got := fake.LastGenerate().AudioPromptPath; got != ref {
		t.Errorf("generate used reference %q, want %q", got, ref)
	}
	if fake.Unloads != 1 || len(fake.Loads) != 2 {
		t.Errorf("unloads = %d, loads = %d; want engine recycled once", fake.Unloads, len(fake.Loads))
	}
	if cloner.Loaded() == nil || cloner.Loaded().ReferenceAudio() != ref {
		t.Error("reloaded engine lost the reference voice")
	}
}

func TestGenerate_ChatterboxRecyclesAfterFailedRun(t *testing.T) {
	met := testMetrics(t)
	fake := &modelrttest.Fake{}
	cloner := newCloner(t, fake, met)
	d := New(testConfig(t), Backends{Cloner: cloner}, met)

	fake.GenerateFunc = func(*modelrt.GenerateRequest) (*modelrt.GenerateResponse, error) { return nil, errors.New("cuda error") }
	req := request("Hello.")
	req.Engine = config.EngineChatterbox
	res, err := d.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Error == "" {
		t.Error("expected run-level error")
	}
	if fake.Unloads != 1 {
		t.Errorf("unloads = %d, want 1", fake.Unloads)
	}
}

func TestGenerate_MissingReference(t *testing.T) {
	met := testMetrics(t)
	fake := &modelrttest.Fake{}
	d := New(testConfig(t), Backends{Cloner: newCloner(t, fake, met)}, met)

	req := request("Hello.")
	req.Engine = config.EngineChatterbox
	req.ReferenceAudio = filepath.Join(t.TempDir(), "nope.wav")
	if _, err := d.Generate(context.Background(), req); !errors.Is(err, tts.ErrReferenceNotFound) {
		t.Fatalf("err = %v, want ErrReferenceNotFound", err)
	}
	if fake.Unloads != 0 {
		t.Errorf("engine recycled for a rejected request")
	}
	entries, _ := os.ReadDir(d.OutputDir())
	if len(entries) != 0 {
		t.Errorf("rejected request created %d run dirs", len(entries))
	}
}

func TestSetReferenceAudioAndEngines(t *testing.T) {
	met := testMetrics(t)
	fake := &modelrttest.Fake{CUDA: true}
	d := New(testConfig(t), Backends{KokoroErr: errors.New("kokoro server down"), Cloner: newCloner(t, fake, met)}, met)

	ref := filepath.Join(t.TempDir(), "voice.wav")
	if err := audio.WriteWAV(ref, audio.Waveform{Samples: []float32{0.3}, SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}
	if err := d.SetReferenceAudio(context.Background(), ref); err != nil {
		t.Fatalf("SetReferenceAudio: %v", err)
	}

	status := d.Engines()
	if len(status) != 2 {
		t.Fatalf("status = %+v", status)
	}
	if status[0].Available || status[0].Error != "kokoro server down" || !status[0].Default {
		t.Errorf("kokoro status = %+v", status[0])
	}
	if !status[1].Available || status[1].Device != "cuda" || status[1].Reference != ref {
		t.Errorf("chatterbox status = %+v", status[1])
	}
}
