// Package dispatch implements the entry points transports call into.
//
// The dispatcher owns both synthesis backends. It runs at most one
// generation at a time: the voice-cloning model is a single heavyweight
// resource, so a second request while a run is active is rejected with
// ErrBusy rather than queued. After every run on the voice-cloning engine,
// success or not, the engine is recycled.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nadzzz/podsite/internal/config"
	"github.com/nadzzz/podsite/internal/lifecycle"
	"github.com/nadzzz/podsite/internal/message"
	"github.com/nadzzz/podsite/internal/observe"
	"github.com/nadzzz/podsite/internal/pipeline"
	"github.com/nadzzz/podsite/internal/tts"
)

var (
	// ErrBusy is returned when a generation run is already active.
	ErrBusy = errors.New("dispatch: a generation run is already in progress")

	// ErrUnknownEngine is returned for an engine name that is not configured.
	ErrUnknownEngine = errors.New("dispatch: unknown engine")

	// ErrEngineUnavailable is returned when the selected engine could not be
	// constructed.
	ErrEngineUnavailable = errors.New("dispatch: engine unavailable")

	// ErrInvalidRequest wraps malformed requests, such as an empty script.
	ErrInvalidRequest = errors.New("dispatch: invalid request")
)

// Backends are the synthesis engines handed to the dispatcher.
type Backends struct {
	// Kokoro is the fixed-voice engine, nil when it is unavailable.
	Kokoro tts.Synthesizer

	// KokoroErr is why Kokoro is nil, reported in engine status.
	KokoroErr error

	// Cloner manages the voice-cloning engine, nil when it is disabled.
	Cloner *lifecycle.Manager
}

// Dispatcher serializes generation runs over the configured backends.
type Dispatcher struct {
	backends Backends
	engines  config.EnginesConfig
	output   string
	metrics  *observe.Metrics
	now      func() time.Time

	running sync.Mutex
}

// New creates a Dispatcher. A nil metrics uses observe.DefaultMetrics.
func New(cfg *config.Config, backends Backends, metrics *observe.Metrics) *Dispatcher {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Dispatcher{
		backends: backends,
		engines:  cfg.Engines,
		output:   cfg.Output.Dir,
		metrics:  metrics,
		now:      time.Now,
	}
}

// OutputDir is the parent directory of all run directories.
func (d *Dispatcher) OutputDir() string { return d.output }

// Generate runs one podcast generation.
//
// Request-level problems (busy, invalid script, unknown or unavailable
// engine, missing reference audio) are returned as errors and nothing is
// written. Once the run has started the result is always returned with a
// nil error; a run-level failure is reported in result.Error alongside the
// files that were produced.
func (d *Dispatcher) Generate(ctx context.Context, req *message.GenerateRequest) (*message.GenerateResult, error) {
	if !d.running.TryLock() {
		return nil, ErrBusy
	}
	defer d.running.Unlock()

	doc, err := req.Document()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	engine := req.Engine
	if engine == "" {
		engine = d.engines.Default
	}

	var (
		backend tts.Synthesizer
		pacing  config.PacingConfig
		dev     string
	)
	switch engine {
	case config.EngineKokoro:
		if req.ReferenceAudio != "" {
			return nil, fmt.Errorf("%w: reference audio requires the %s engine", ErrInvalidRequest, config.EngineChatterbox)
		}
		if d.backends.Kokoro == nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, engine, d.backends.KokoroErr)
		}
		backend, pacing = d.backends.Kokoro, d.engines.Kokoro.Pacing

	case config.EngineChatterbox:
		if d.backends.Cloner == nil {
			return nil, fmt.Errorf("%w: %s: disabled", ErrEngineUnavailable, engine)
		}
		cloner, err := d.backends.Cloner.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, engine, err)
		}
		if req.ReferenceAudio != "" {
			if err := cloner.SetReferenceAudio(req.ReferenceAudio); err != nil {
				return nil, err
			}
		}
		// The model is recycled after the run whatever its outcome, and
		// without the request's cancellation.
		defer d.backends.Cloner.Recycle(context.WithoutCancel(ctx))
		backend, pacing, dev = cloner, d.engines.Chatterbox.Pacing, cloner.Device()

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}

	runID, outDir, err := d.runDir(req.OutputDir)
	if err != nil {
		return nil, err
	}

	logger := slog.With("run_id", runID, "engine", engine)
	logger.Info("generation run started", "lines", doc.LineCount, "source", doc.SourceName, "device", dev)

	start := time.Now()
	gen := pipeline.New(backend, pipeline.Options{
		MaxChars:     pacing.MaxChars,
		PhasePause:   pacing.PhasePause,
		SegmentPause: pacing.SegmentPause,
	}, d.metrics)

	// Runs are not cancellable once started.
	res, runErr := gen.Generate(context.WithoutCancel(ctx), doc, outDir, req.WantCombine())
	d.metrics.RecordRun(ctx, engine, time.Since(start), runErr)

	result := buildResult(runID, engine, dev, outDir, res, runErr)
	if runErr != nil {
		logger.Error("generation run failed", "error", runErr, "files", len(result.Files))
	} else {
		logger.Info("generation run complete",
			"files", len(result.Files),
			"failures", len(result.Failures),
			"duration", time.Since(start))
	}
	return result, nil
}

// runDir creates the run directory. An explicit dir is used as is;
// otherwise a podcast_<timestamp> directory is created under the output
// root, with a numeric suffix if that name is taken.
func (d *Dispatcher) runDir(explicit string) (string, string, error) {
	if explicit != "" {
		if err := os.MkdirAll(explicit, 0o755); err != nil {
			return "", "", fmt.Errorf("dispatch: creating %s: %w", explicit, err)
		}
		return filepath.Base(explicit), explicit, nil
	}

	if err := os.MkdirAll(d.output, 0o755); err != nil {
		return "", "", fmt.Errorf("dispatch: creating %s: %w", d.output, err)
	}
	base := "podcast_" + d.now().Format("20060102_150405")
	for n := 1; ; n++ {
		id := base
		if n > 1 {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		dir := filepath.Join(d.output, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("dispatch: creating %s: %w", dir, err)
		}
	}
}

func buildResult(runID, engine, dev, outDir string, res *pipeline.Result, runErr error) *message.GenerateResult {
	result := &message.GenerateResult{
		RunID:     runID,
		Engine:    engine,
		Device:    dev,
		OutputDir: outDir,
		Files:     []string{},
		Segments:  []message.SegmentInfo{},
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if res == nil {
		return result
	}

	result.Files = append(result.Files, res.Files...)
	result.CombinedPath = res.CombinedPath
	for _, s := range res.Segments {
		result.DurationSeconds += s.Duration
		result.Segments = append(result.Segments, message.SegmentInfo{
			Index:           s.Index,
			Speaker:         s.Speaker,
			Text:            s.Text,
			DurationSeconds: s.Duration,
			Path:            s.Path,
		})
	}
	for _, f := range res.Failures {
		result.Failures = append(result.Failures, message.SegmentFailure{
			Index:   f.Index,
			Speaker: f.Speaker,
			Error:   f.Err.Error(),
		})
	}
	return result
}

// SetReferenceAudio sets or, with an empty path, clears the reference voice
// of the voice-cloning engine. It is rejected with ErrBusy during a run.
func (d *Dispatcher) SetReferenceAudio(ctx context.Context, path string) error {
	if !d.running.TryLock() {
		return ErrBusy
	}
	defer d.running.Unlock()

	if d.backends.Cloner == nil {
		return fmt.Errorf("%w: %s: disabled", ErrEngineUnavailable, config.EngineChatterbox)
	}
	cloner, err := d.backends.Cloner.Current(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, config.EngineChatterbox, err)
	}
	return cloner.SetReferenceAudio(path)
}

// Engines reports the availability of every backend.
func (d *Dispatcher) Engines() []message.EngineStatus {
	kokoro := message.EngineStatus{
		Name:      config.EngineKokoro,
		Default:   d.engines.Default == config.EngineKokoro,
		Available: d.backends.Kokoro != nil,
	}
	if d.backends.KokoroErr != nil {
		kokoro.Error = d.backends.KokoroErr.Error()
	}

	cb := message.EngineStatus{
		Name:    config.EngineChatterbox,
		Default: d.engines.Default == config.EngineChatterbox,
	}
	if d.backends.Cloner == nil {
		cb.Error = "disabled"
	} else if e := d.backends.Cloner.Loaded(); e != nil {
		cb.Available = true
		cb.Device = e.Device()
		cb.Reference = e.ReferenceAudio()
	} else if err := d.backends.Cloner.LastError(); err != nil {
		cb.Error = err.Error()
	}
	return []message.EngineStatus{kokoro, cb}
}

// Close releases both backends.
func (d *Dispatcher) Close() error {
	var errs []error
	if d.backends.Kokoro != nil {
		errs = append(errs, d.backends.Kokoro.Close())
	}
	if d.backends.Cloner != nil {
		errs = append(errs, d.backends.Cloner.Close())
	}
	return errors.Join(errs...)
}
