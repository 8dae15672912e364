package message

import (
	"testing"

	"github.com/nadzzz/podsite/internal/script"
)

func TestNewGenerateRequest_RoundTripsDocument(t *testing.T) {
	doc := script.New("notes.pdf", "5 minutes", []script.Line{
		{Speaker: script.Narrator, Text: "First."},
		{Speaker: script.Narrator, Text: "Second."},
	})

	req := NewGenerateRequest(doc)
	if !req.WantCombine() {
		t.Error("combine should default to true")
	}
	if req.Metadata.TotalLines != 2 || req.Metadata.SourceDocument != "notes.pdf" {
		t.Errorf("metadata = %+v", req.Metadata)
	}

	got, err := req.Document()
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if got.LineCount != 2 || got.Lines[1].Text != "Second." || got.TargetDuration != "5 minutes" {
		t.Errorf("document = %+v", got)
	}
}

func TestDocument_Invalid(t *testing.T) {
	req := &GenerateRequest{Script: []map[string]string{{"Speaker": "   "}}}
	if _, err := req.Document(); err == nil {
		t.Fatal("expected error for blank script")
	}
}

func TestWantCombine(t *testing.T) {
	no := false
	if (&GenerateRequest{Combine: &no}).WantCombine() {
		t.Error("explicit false ignored")
	}
}
