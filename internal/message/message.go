// Package message defines the request and result types exchanged between
// the transports and the dispatcher.
package message

import (
	"github.com/nadzzz/podsite/internal/script"
)

// ScriptMetadata mirrors the metadata block emitted by the script generator.
type ScriptMetadata struct {
	SourceDocument    string `json:"source_document"`
	TotalLines        int    `json:"total_lines"`
	EstimatedDuration string `json:"estimated_duration"`
}

// GenerateRequest asks for one podcast generation run.
type GenerateRequest struct {
	// Script is the ordered list of {speaker: text} narration lines.
	Script []map[string]string `json:"script"`

	// Metadata describes the script.
	Metadata ScriptMetadata `json:"metadata"`

	// Engine selects the backend ("kokoro" or "chatterbox"). Empty uses the
	// configured default.
	Engine string `json:"engine,omitempty"`

	// Combine controls whether complete_podcast.wav is written. Defaults to
	// true when omitted.
	Combine *bool `json:"combine,omitempty"`

	// ReferenceAudio is a server-side path to a voice clip for the
	// voice-cloning engine. It replaces the current reference voice.
	ReferenceAudio string `json:"reference_audio,omitempty"`

	// OutputDir overrides the run directory. It is only settable in-process
	// (the one-shot CLI), never from a transport.
	OutputDir string `json:"-"`
}

// NewGenerateRequest builds a request for doc with default options.
func NewGenerateRequest(doc *script.Document) *GenerateRequest {
	entries := make([]map[string]string, len(doc.Lines))
	for i, l := range doc.Lines {
		entries[i] = map[string]string{l.Speaker: l.Text}
	}
	return &GenerateRequest{
		Script: entries,
		Metadata: ScriptMetadata{
			SourceDocument:    doc.SourceName,
			TotalLines:        doc.LineCount,
			EstimatedDuration: doc.TargetDuration,
		},
	}
}

// Document converts the request script into a validated script.Document.
func (r *GenerateRequest) Document() (*script.Document, error) {
	return script.FromEntries(r.Script, r.Metadata.SourceDocument, r.Metadata.EstimatedDuration)
}

// WantCombine reports whether the combined podcast should be written.
func (r *GenerateRequest) WantCombine() bool {
	return r.Combine == nil || *r.Combine
}

// GenerateResult is the outcome of a generation run. It always lists the
// files that were written, even when the run failed.
type GenerateResult struct {
	// RunID names the run directory (e.g., "podcast_20260101_120000").
	RunID string `json:"run_id"`

	Engine    string `json:"engine"`
	Device    string `json:"device,omitempty"`
	OutputDir string `json:"output_dir"`

	// Files lists segment files in script order, then the combined file.
	Files []string `json:"files"`

	// CombinedPath is the complete podcast, when it was written.
	CombinedPath string `json:"combined_path,omitempty"`

	// DurationSeconds is the total voiced length of the produced segments.
	DurationSeconds float64 `json:"duration_seconds"`

	Segments []SegmentInfo    `json:"segments"`
	Failures []SegmentFailure `json:"failures,omitempty"`

	// Error is set when the run failed as a whole (no segment succeeded or
	// the combined file could not be written).
	Error string `json:"error,omitempty"`
}

// SegmentInfo describes one written segment.
type SegmentInfo struct {
	Index           int     `json:"index"`
	Speaker         string  `json:"speaker"`
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
	Path            string  `json:"path"`
}

// SegmentFailure describes one skipped line.
type SegmentFailure struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Error   string `json:"error"`
}

// ReferenceAudioRequest sets or clears the reference voice.
type ReferenceAudioRequest struct {
	// Path to a RIFF/WAVE file on the server. Empty clears the
	// reference voice.
	Path string `json:"path"`
}

// ReferenceAudioResult echoes the active reference voice.
type ReferenceAudioResult struct {
	Path string `json:"path"`
}

// EngineStatus reports one backend's availability.
type EngineStatus struct {
	Name      string `json:"name"`
	Default   bool   `json:"default"`
	Available bool   `json:"available"`
	Device    string `json:"device,omitempty"`
	Reference string `json:"reference_audio,omitempty"`
	Error     string `json:"error,omitempty"`
}
