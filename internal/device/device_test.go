package device

import (
	"context"
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		avail  Availability
		pinned string
		want   string
	}{
		{"cuda wins", Availability{CUDA: true, MPS: true}, "", CUDA},
		{"mps when no cuda", Availability{MPS: true}, "", MPS},
		{"cpu fallback", Availability{}, "", CPU},
		{"pinned overrides", Availability{CUDA: true}, CPU, CPU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.avail, tt.pinned); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAccelerator(t *testing.T) {
	if !IsAccelerator(CUDA) || !IsAccelerator(MPS) {
		t.Error("cuda and mps are accelerators")
	}
	if IsAccelerator(CPU) {
		t.Error("cpu is not an accelerator")
	}
}

func TestLoadWithRemap_ScopesMapLocation(t *testing.T) {
	var seen []LoadOptions
	load := func(_ context.Context, opts LoadOptions) (int, error) {
		seen = append(seen, opts)
		return 24000, nil
	}

	got, err := LoadWithRemap(context.Background(), MPS, load)
	if err != nil {
		t.Fatalf("LoadWithRemap: %v", err)
	}
	if got != 24000 {
		t.Errorf("got %d, want 24000", got)
	}
	if len(seen) != 1 || seen[0].Device != MPS || seen[0].MapLocation != MPS {
		t.Fatalf("load saw %+v", seen)
	}
}

func TestLoadWithRemap_WrapsError(t *testing.T) {
	boom := errors.New("out of memory")
	_, err := LoadWithRemap(context.Background(), CUDA, func(context.Context, LoadOptions) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}
