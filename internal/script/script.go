// Package script defines the narration script handed to the synthesis
// pipeline and reads it from the JSON format the script generator emits:
//
//	{
//	  "script": [{"Speaker": "Welcome to the show."}, ...],
//	  "metadata": {"source_document": "...", "total_lines": 2, "estimated_duration": "10 minutes"}
//	}
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nadzzz/podsite/internal/narration"
)

// Narrator is the single speaker label every line is normalized to.
const Narrator = "Speaker"

// ErrEmpty is returned for a script with no usable lines.
var ErrEmpty = errors.New("script: no narration lines")

// Line is one narration line.
type Line struct {
	Speaker string
	Text    string
}

// Document is an ordered narration script plus its metadata. It is not
// modified once handed to the pipeline.
type Document struct {
	Lines          []Line
	SourceName     string
	LineCount      int
	TargetDuration string
}

// New builds a Document from lines, filling LineCount.
func New(sourceName, targetDuration string, lines []Line) *Document {
	return &Document{
		Lines:          lines,
		SourceName:     sourceName,
		LineCount:      len(lines),
		TargetDuration: targetDuration,
	}
}

// Validate checks that d is non-empty, that LineCount matches the number of
// lines and that no line text is blank.
func (d *Document) Validate() error {
	if d == nil || len(d.Lines) == 0 {
		return ErrEmpty
	}
	if d.LineCount != len(d.Lines) {
		return fmt.Errorf("script: line_count %d does not match %d lines", d.LineCount, len(d.Lines))
	}
	for i, l := range d.Lines {
		if strings.TrimSpace(l.Text) == "" {
			return fmt.Errorf("script: line %d has empty text", i+1)
		}
	}
	return nil
}

// wireDocument is the JSON shape of a script.
type wireDocument struct {
	Script   []map[string]string `json:"script"`
	Metadata struct {
		SourceDocument    string `json:"source_document"`
		TotalLines        int    `json:"total_lines"`
		EstimatedDuration string `json:"estimated_duration"`
	} `json:"metadata"`
}

// Parse decodes a script from r and normalizes it with Clean.
func Parse(r io.Reader) (*Document, error) {
	var w wireDocument
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}
	return FromEntries(w.Script, w.Metadata.SourceDocument, w.Metadata.EstimatedDuration)
}

// FromEntries builds a Document from {speaker: text} entries. Entries that
// do not hold exactly one pair are skipped.
func FromEntries(entries []map[string]string, sourceName, targetDuration string) (*Document, error) {
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		if len(e) != 1 {
			continue
		}
		for speaker, text := range e {
			lines = append(lines, Line{Speaker: speaker, Text: text})
		}
	}
	doc := New(sourceName, targetDuration, Clean(lines))
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Clean applies single-narrator normalization: every speaker label becomes
// Narrator, blank lines are dropped and each text ends in terminal
// punctuation.
func Clean(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if !narration.HasTerminal(text) {
			text += "."
		}
		out = append(out, Line{Speaker: Narrator, Text: text})
	}
	return out
}

// MarshalJSON writes d in the wire format accepted by Parse.
func (d *Document) MarshalJSON() ([]byte, error) {
	var w wireDocument
	w.Script = make([]map[string]string, len(d.Lines))
	for i, l := range d.Lines {
		w.Script[i] = map[string]string{l.Speaker: l.Text}
	}
	w.Metadata.SourceDocument = d.SourceName
	w.Metadata.TotalLines = d.LineCount
	w.Metadata.EstimatedDuration = d.TargetDuration
	return json.Marshal(w)
}

// UnmarshalJSON reads the wire format, so a Document can be embedded in
// request bodies.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	doc, err := FromEntries(w.Script, w.Metadata.SourceDocument, w.Metadata.EstimatedDuration)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}
