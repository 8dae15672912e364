// Package modelrttest provides an in-memory model runtime for tests.
package modelrttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nadzzz/podsite/internal/modelrt"
)

// Fake is a scripted modelrt.Runtime. The zero value reports no
// accelerators, loads on every device at 24000 Hz and answers Generate with
// one sample per character of text.
type Fake struct {
	CUDA, MPS bool

	// SampleRate returned by Load. Zero means 24000.
	SampleRate int

	// FailLoad lists devices whose Load call fails.
	FailLoad map[string]error

	// GenerateFunc overrides the default Generate behaviour.
	GenerateFunc func(req *modelrt.GenerateRequest) (*modelrt.GenerateResponse, error)

	mu          sync.Mutex
	Loads       []modelrt.LoadRequest
	Generates   []modelrt.GenerateRequest
	Unloads     int
	EmptyCaches []string
	loaded      string
}

var _ modelrt.Runtime = (*Fake)(nil)

// Devices implements modelrt.Runtime.
func (f *Fake) Devices(context.Context) (*modelrt.DevicesResponse, error) {
	return &modelrt.DevicesResponse{CUDA: f.CUDA, MPS: f.MPS}, nil
}

// Load implements modelrt.Runtime.
func (f *Fake) Load(_ context.Context, req *modelrt.LoadRequest) (*modelrt.LoadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loads = append(f.Loads, *req)
	if err := f.FailLoad[req.Device]; err != nil {
		return nil, err
	}
	f.loaded = req.Device
	rate := f.SampleRate
	if rate == 0 {
		rate = 24000
	}
	return &modelrt.LoadResponse{SampleRate: rate}, nil
}

// Generate implements modelrt.Runtime.
func (f *Fake) Generate(_ context.Context, req *modelrt.GenerateRequest) (*modelrt.GenerateResponse, error) {
	f.mu.Lock()
	f.Generates = append(f.Generates, *req)
	loaded := f.loaded
	fn := f.GenerateFunc
	f.mu.Unlock()

	if loaded == "" {
		return nil, fmt.Errorf("no model loaded")
	}
	if fn != nil {
		return fn(req)
	}
	samples := make([]float32, len(req.Text))
	for i := range samples {
		samples[i] = 0.1
	}
	return &modelrt.GenerateResponse{Samples: samples}, nil
}

// Unload implements modelrt.Runtime.
func (f *Fake) Unload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unloads++
	f.loaded = ""
	return nil
}

// EmptyCache implements modelrt.Runtime.
func (f *Fake) EmptyCache(_ context.Context, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EmptyCaches = append(f.EmptyCaches, device)
	return nil
}

// Loaded returns the device the model is currently loaded on, or "".
func (f *Fake) Loaded() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// LastGenerate returns the most recent Generate request.
func (f *Fake) LastGenerate() modelrt.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Generates) == 0 {
		return modelrt.GenerateRequest{}
	}
	return f.Generates[len(f.Generates)-1]
}
