// Package device picks the compute device for the voice-cloning model and
// scopes the checkpoint remap used while loading it.
package device

import (
	"context"
	"fmt"
	"log/slog"
)

// Device identifiers understood by the model runtime.
const (
	CUDA = "cuda"
	MPS  = "mps"
	CPU  = "cpu"
)

// Fallback is the device used when an accelerator cannot load the model.
const Fallback = CPU

// Availability reports which accelerators are present. CPU is implied.
type Availability struct {
	CUDA bool
	MPS  bool
}

// Resolve returns pinned when it is set, otherwise the best available device
// in priority order: CUDA, then MPS, then CPU.
func Resolve(avail Availability, pinned string) string {
	if pinned != "" {
		return pinned
	}
	switch {
	case avail.CUDA:
		return CUDA
	case avail.MPS:
		return MPS
	default:
		return CPU
	}
}

// Valid reports whether name is a known device identifier.
func Valid(name string) bool {
	switch name {
	case CUDA, MPS, CPU:
		return true
	}
	return false
}

// IsAccelerator reports whether name holds accelerator memory that has to be
// released separately from host memory.
func IsAccelerator(name string) bool {
	return name == CUDA || name == MPS
}

// LoadOptions are passed to a LoadFunc for one load attempt.
type LoadOptions struct {
	Device string

	// MapLocation is the device checkpoint tensors are remapped onto. It is
	// only set for the duration of a LoadWithRemap call.
	MapLocation string
}

// LoadFunc loads a model with the given options.
type LoadFunc[T any] func(ctx context.Context, opts LoadOptions) (T, error)

// LoadWithRemap calls load once with the checkpoint remap pointing at dev.
// Checkpoints saved on another device type (for example CUDA tensors loaded
// on an MPS or CPU host) are mapped onto dev. The override lives only in the
// options of this call; nothing outside it observes the remap.
func LoadWithRemap[T any](ctx context.Context, dev string, load LoadFunc[T]) (T, error) {
	slog.Debug("loading with checkpoint remap", "device", dev)
	v, err := load(ctx, LoadOptions{Device: dev, MapLocation: dev})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load on %s: %w", dev, err)
	}
	return v, nil
}
