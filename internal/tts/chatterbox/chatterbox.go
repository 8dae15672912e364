// Package chatterbox implements the voice-cloning TTS backend.
//
// The Chatterbox model lives in the model runtime (package modelrt). This
// package resolves the compute device, loads the model with a fallback to
// CPU, and keeps the reference voice used to condition every synthesis call.
package chatterbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/podsite/internal/audio"
	"github.com/nadzzz/podsite/internal/config"
	"github.com/nadzzz/podsite/internal/device"
	"github.com/nadzzz/podsite/internal/modelrt"
	"github.com/nadzzz/podsite/internal/tts"
)

// Name is the engine identifier.
const Name = config.EngineChatterbox

var _ tts.VoiceCloner = (*Engine)(nil)

// Engine implements tts.VoiceCloner on top of a model runtime.
type Engine struct {
	rt         modelrt.Runtime
	device     string
	sampleRate int

	mu        sync.Mutex
	reference string
	released  bool
}

// New resolves a device, loads the model on it and returns the engine. When
// an accelerator fails to load the model, the load is retried once on CPU.
// Failure on CPU is fatal; the error wraps tts.ErrUnavailable.
func New(ctx context.Context, cfg config.ChatterboxConfig, rt modelrt.Runtime) (*Engine, error) {
	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	avail, err := rt.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chatterbox: probing devices: %v", tts.ErrUnavailable, err)
	}
	dev := device.Resolve(device.Availability{CUDA: avail.CUDA, MPS: avail.MPS}, cfg.Device)

	slog.Info("loading chatterbox model", "device", dev)
	start := time.Now()
	load := func(ctx context.Context, opts device.LoadOptions) (*modelrt.LoadResponse, error) {
		return rt.Load(ctx, &modelrt.LoadRequest{Device: opts.Device, MapLocation: opts.MapLocation})
	}

	resp, err := device.LoadWithRemap(ctx, dev, load)
	if err != nil && dev != device.Fallback {
		slog.Error("chatterbox load failed, falling back", "device", dev, "fallback", device.Fallback, "error", err)
		dev = device.Fallback
		resp, err = device.LoadWithRemap(ctx, dev, load)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: chatterbox: %v", tts.ErrUnavailable, err)
	}
	if resp.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: chatterbox: runtime reported sample rate %d", tts.ErrUnavailable, resp.SampleRate)
	}

	slog.Info("chatterbox tts initialized",
		"device", dev,
		"sample_rate", resp.SampleRate,
		"duration", time.Since(start))
	return &Engine{rt: rt, device: dev, sampleRate: resp.SampleRate}, nil
}

// Name implements tts.Synthesizer.
func (e *Engine) Name() string { return Name }

// SampleRate is the model's native rate. Output is never resampled.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Device returns the device the model was loaded on, which is the fallback
// device when the resolved accelerator failed.
func (e *Engine) Device() string { return e.device }

// SetReferenceAudio validates path and makes it the reference voice for all
// following calls. An empty path clears it. A missing file yields an error
// wrapping tts.ErrReferenceNotFound and leaves the current reference as is.
func (e *Engine) SetReferenceAudio(path string) error {
	if path != "" {
		if err := audio.ValidateFile(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s: %w", tts.ErrReferenceNotFound, path, err)
			}
			return fmt.Errorf("chatterbox: reference audio: %w", err)
		}
	}

	e.mu.Lock()
	e.reference = path
	e.mu.Unlock()

	if path == "" {
		slog.Info("reference audio cleared")
	} else {
		slog.Info("reference audio set", "path", path)
	}
	return nil
}

// ReferenceAudio returns the current reference path, or "".
func (e *Engine) ReferenceAudio() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reference
}

// Synthesize generates text with the reference voice when one is set and
// with the model's built-in voice otherwise.
func (e *Engine) Synthesize(ctx context.Context, text string) (audio.Waveform, error) {
	if text == "" {
		return audio.Waveform{}, fmt.Errorf("chatterbox: empty text for synthesis")
	}

	e.mu.Lock()
	ref, released := e.reference, e.released
	e.mu.Unlock()
	if released {
		return audio.Waveform{}, fmt.Errorf("chatterbox: model released")
	}

	resp, err := e.rt.Generate(ctx, &modelrt.GenerateRequest{Text: text, AudioPromptPath: ref})
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("chatterbox: %w", err)
	}
	return audio.Waveform{Samples: resp.Samples, SampleRate: e.sampleRate}, nil
}

// Release unloads the model and empties the accelerator cache of the device
// it ran on. CPU has no separate cache to empty. Errors from both steps are
// joined.
func (e *Engine) Release(ctx context.Context) error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	e.mu.Unlock()

	var errs []error
	if err := e.rt.Unload(ctx); err != nil {
		errs = append(errs, fmt.Errorf("chatterbox: unload: %w", err))
	}
	if device.IsAccelerator(e.device) {
		if err := e.rt.EmptyCache(ctx, e.device); err != nil {
			errs = append(errs, fmt.Errorf("chatterbox: empty %s cache: %w", e.device, err))
		}
	}
	slog.Info("chatterbox model released", "device", e.device)
	return errors.Join(errs...)
}

// Close releases the model.
func (e *Engine) Close() error {
	return e.Release(context.Background())
}
