// Package modelrt is the client for the model runtime process that hosts the
// voice-cloning model.
//
// The runtime owns the neural model and the accelerator. Podsite drives it
// over gRPC on service podsite.runtime.v1.Runtime, with JSON-encoded
// messages (see package jsoncodec):
//
//	Devices     {}                              -> {cuda, mps}
//	Load        {device, map_location}          -> {sample_rate}
//	Generate    {text, audio_prompt_path}       -> {samples}
//	Unload      {}                              -> {}
//	EmptyCache  {device}                        -> {}
package modelrt

import "context"

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "podsite.runtime.v1.Runtime"

// MaxMessageSize bounds one runtime response. Generate returns a whole phase
// as a JSON number array, up to about 12 bytes per sample: a two-minute
// phase at 48 kHz is roughly 70 MB.
const MaxMessageSize = 256 << 20

// Runtime is the set of calls the voice-cloning engine makes against the
// model runtime. Client implements it over gRPC; RegisterServer exposes any
// implementation as a gRPC service.
type Runtime interface {
	// Devices reports which accelerators the runtime can use.
	Devices(ctx context.Context) (*DevicesResponse, error)

	// Load loads the model onto req.Device, replacing any loaded model.
	Load(ctx context.Context, req *LoadRequest) (*LoadResponse, error)

	// Generate synthesizes req.Text with the loaded model.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Unload drops the loaded model.
	Unload(ctx context.Context) error

	// EmptyCache releases cached accelerator memory on device.
	EmptyCache(ctx context.Context, device string) error
}

// DevicesResponse lists accelerator availability. CPU is always available.
type DevicesResponse struct {
	CUDA bool `json:"cuda"`
	MPS  bool `json:"mps"`
}

// LoadRequest asks the runtime to load the model.
type LoadRequest struct {
	Device string `json:"device"`

	// MapLocation remaps checkpoint tensors onto this device while loading.
	// Empty leaves checkpoint placement untouched.
	MapLocation string `json:"map_location,omitempty"`
}

// LoadResponse describes the loaded model.
type LoadResponse struct {
	SampleRate int `json:"sample_rate"`
}

// GenerateRequest is one synthesis call.
type GenerateRequest struct {
	Text string `json:"text"`

	// AudioPromptPath is the reference clip used to clone a voice. Empty
	// selects the model's built-in voice.
	AudioPromptPath string `json:"audio_prompt_path,omitempty"`
}

// GenerateResponse carries mono float samples at the model's sample rate.
type GenerateResponse struct {
	Samples []float32 `json:"samples"`
}

// EmptyCacheRequest names the device whose cache is released.
type EmptyCacheRequest struct {
	Device string `json:"device"`
}

// Empty is the request or response of calls that carry no data.
type Empty struct{}
