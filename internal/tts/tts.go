// Package tts defines the interface for text-to-speech synthesis backends.
//
// Podsite ships two backends: a fast fixed-voice engine (kokoro) and a slower
// voice-cloning engine (chatterbox). The synthesis pipeline only sees the
// Synthesizer contract; callers pick the backend when they construct it.
package tts

import (
	"context"
	"errors"

	"github.com/nadzzz/podsite/internal/audio"
)

var (
	// ErrUnavailable is returned when a backend cannot be constructed because
	// its model server is unreachable or the model failed to load.
	ErrUnavailable = errors.New("tts: backend unavailable")

	// ErrReferenceNotFound is returned when a reference clip does not exist.
	// It wraps fs.ErrNotExist.
	ErrReferenceNotFound = errors.New("tts: reference audio not found")
)

// Synthesizer converts one cleaned chunk of text into a waveform.
type Synthesizer interface {
	// Name returns the engine identifier (e.g., "kokoro", "chatterbox").
	Name() string

	// SampleRate is the rate of every waveform this backend returns.
	SampleRate() int

	// Synthesize generates mono audio for text. It does not retry.
	Synthesize(ctx context.Context, text string) (audio.Waveform, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// VoiceCloner is a Synthesizer that conditions its output on a reference
// clip. The reference is a single slot per instance: it applies to every
// following Synthesize call until replaced or cleared.
type VoiceCloner interface {
	Synthesizer

	// SetReferenceAudio validates and stores path. An empty path clears the
	// slot. On error the previous reference is kept.
	SetReferenceAudio(path string) error

	// ReferenceAudio returns the current reference path, or "".
	ReferenceAudio() string

	// Device returns the compute device the model is loaded on.
	Device() string

	// Release unloads the model and frees accelerator memory. The instance
	// is unusable afterwards.
	Release(ctx context.Context) error
}
