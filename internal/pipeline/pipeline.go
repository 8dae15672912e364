// Package pipeline turns a narration script into podcast audio.
//
// For every line, in script order, the Generator normalizes the text, splits
// it into phases that fit the backend's input budget, synthesizes each phase,
// joins the phases with a short pause and writes the line to
// segment_NNN_<speaker>.wav. A line that fails is logged and skipped. The
// surviving segments are then joined with a longer pause into
// complete_podcast.wav.
//
// A Generator is not safe for concurrent runs; callers serialize them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/podsite/internal/audio"
	"github.com/nadzzz/podsite/internal/narration"
	"github.com/nadzzz/podsite/internal/observe"
	"github.com/nadzzz/podsite/internal/script"
	"github.com/nadzzz/podsite/internal/tts"
)

// CombinedFileName is the name of the joined podcast inside a run directory.
const CombinedFileName = "complete_podcast.wav"

// ErrNoSegments is returned when there is nothing to combine: Combine was
// called with no segments, or every line of a run failed.
var ErrNoSegments = errors.New("pipeline: no segments")

// ErrNoSpeech marks a line that has nothing left to synthesize after
// normalization, such as one made only of punctuation.
var ErrNoSpeech = errors.New("pipeline: no speakable text")

// Options are the engine-specific pacing values of a run.
type Options struct {
	// MaxChars is the phase budget passed to narration.SplitPhases.
	MaxChars int

	// PhasePause separates the phases of one line.
	PhasePause time.Duration

	// SegmentPause separates lines in the combined file.
	SegmentPause time.Duration
}

// Segment is the synthesized audio of one narration line.
type Segment struct {
	Index    int // 1-based position in the script
	Speaker  string
	Text     string
	Audio    audio.Waveform
	Duration float64 // seconds, len(Audio.Samples) / Audio.SampleRate
	Path     string
}

// LineError records a line that was skipped.
type LineError struct {
	Index   int // 1-based position in the script
	Speaker string
	Err     error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("segment %d (%s): %v", e.Index, e.Speaker, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Result is what one run produced.
type Result struct {
	Segments []Segment

	// Files lists every file written, segment files in script order and the
	// combined file last when it was written.
	Files []string

	// CombinedPath is empty when combination was disabled or failed.
	CombinedPath string

	// Failures lists the skipped lines in script order.
	Failures []*LineError
}

// Generator runs the script-to-audio pipeline against one backend.
type Generator struct {
	backend tts.Synthesizer
	opts    Options
	metrics *observe.Metrics
}

// New creates a Generator. A nil metrics uses observe.DefaultMetrics.
func New(backend tts.Synthesizer, opts Options, metrics *observe.Metrics) *Generator {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Generator{backend: backend, opts: opts, metrics: metrics}
}

// Generate synthesizes doc into outDir and, when combine is set and at least
// one line succeeded, writes the combined podcast.
//
// The returned Result is never nil once outDir exists: it lists the files
// actually written even when err is non-nil. err is ErrNoSegments when every
// line failed and wraps the combination error when combining failed.
func (g *Generator) Generate(ctx context.Context, doc *script.Document, outDir string, combine bool) (*Result, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: creating output dir: %w", err)
	}

	logger := slog.With("engine", g.backend.Name(), "output_dir", outDir)
	logger.Info("generating podcast audio", "segments", doc.LineCount, "combine", combine)

	res := g.Assemble(ctx, doc, outDir)
	if len(res.Segments) == 0 {
		logger.Error("every segment failed", "failures", len(res.Failures))
		return res, ErrNoSegments
	}

	if combine {
		path, err := g.Combine(res.Segments, outDir)
		if err != nil {
			return res, err
		}
		res.CombinedPath = path
		res.Files = append(res.Files, path)
	}

	logger.Info("podcast generation complete", "files", len(res.Files), "failures", len(res.Failures))
	return res, nil
}

// Assemble synthesizes every line of doc into a segment file under outDir.
// Failed lines are logged, recorded in Result.Failures and skipped.
func (g *Generator) Assemble(ctx context.Context, doc *script.Document, outDir string) *Result {
	res := &Result{}
	total := len(doc.Lines)
	engine := g.backend.Name()

	for i, line := range doc.Lines {
		index := i + 1
		logger := slog.With("engine", engine, "segment", index, "of", total)
		logger.Info("processing segment", "speaker", line.Speaker)

		seg, err := g.segment(ctx, logger, index, line, outDir)
		g.metrics.RecordSegment(ctx, engine, err)
		if err != nil {
			logger.Error("segment failed", "error", err)
			res.Failures = append(res.Failures, &LineError{Index: index, Speaker: line.Speaker, Err: err})
			continue
		}

		res.Segments = append(res.Segments, seg)
		res.Files = append(res.Files, seg.Path)
		logger.Info("segment generated", "file", filepath.Base(seg.Path), "duration", seg.Duration)
	}
	return res
}

func (g *Generator) segment(ctx context.Context, logger *slog.Logger, index int, line script.Line, outDir string) (Segment, error) {
	if strings.TrimSpace(line.Text) == "" {
		return Segment{}, errors.New("empty text")
	}
	clean := narration.Normalize(line.Text)
	phases := narration.SplitPhases(clean, g.opts.MaxChars)
	if len(phases) == 0 {
		return Segment{}, ErrNoSpeech
	}

	parts := make([]audio.Waveform, 0, len(phases))
	for p, phase := range phases {
		logger.Debug("generating phase", "phase", p+1, "phases", len(phases), "chars", len(phase))
		start := time.Now()
		w, err := g.backend.Synthesize(ctx, phase)
		g.metrics.RecordPhase(ctx, g.backend.Name(), time.Since(start))
		if err != nil {
			return Segment{}, fmt.Errorf("phase %d/%d: %w", p+1, len(phases), err)
		}
		parts = append(parts, w)
	}

	joined, err := audio.Join(parts, g.opts.PhasePause)
	if err != nil {
		return Segment{}, err
	}
	if len(joined.Samples) == 0 {
		return Segment{}, errors.New("backend returned no audio")
	}

	path := filepath.Join(outDir, SegmentFileName(index, line.Speaker))
	if err := audio.WriteWAV(path, joined); err != nil {
		return Segment{}, err
	}

	return Segment{
		Index:    index,
		Speaker:  line.Speaker,
		Text:     line.Text,
		Audio:    joined,
		Duration: joined.Seconds(),
		Path:     path,
	}, nil
}

// Combine joins segments in order with the segment pause between
// consecutive ones and writes CombinedFileName under outDir. With no
// segments it returns ErrNoSegments and writes nothing. A failed write
// leaves no combined file behind.
func (g *Generator) Combine(segments []Segment, outDir string) (string, error) {
	if len(segments) == 0 {
		return "", ErrNoSegments
	}
	slog.Info("combining audio segments", "segments", len(segments))

	parts := make([]audio.Waveform, len(segments))
	for i, s := range segments {
		parts[i] = s.Audio
	}
	joined, err := audio.Join(parts, g.opts.SegmentPause)
	if err != nil {
		return "", fmt.Errorf("pipeline: combining segments: %w", err)
	}

	path := filepath.Join(outDir, CombinedFileName)
	if err := audio.WriteWAV(path, joined); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("pipeline: writing combined podcast: %w", err)
	}

	slog.Info("combined podcast saved", "path", path, "duration", joined.Seconds())
	return path, nil
}

// SegmentFileName returns segment_NNN_<speaker>.wav for a 1-based index.
// The speaker is lower-cased and reduced to [a-z0-9_-].
func SegmentFileName(index int, speaker string) string {
	return fmt.Sprintf("segment_%03d_%s.wav", index, speakerSlug(speaker))
}

func speakerSlug(speaker string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(speaker)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "speaker"
	}
	return b.String()
}
