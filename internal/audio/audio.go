// Package audio holds the in-memory waveform type used across the synthesis
// pipeline and the WAV file I/O for it.
//
// Waveforms are single-channel float32 samples in [-1, 1]. Files on disk are
// 16-bit PCM mono WAV at the waveform's sample rate.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrRateMismatch is returned when waveforms with different sample rates are
// joined.
var ErrRateMismatch = errors.New("audio: sample rate mismatch")

// Waveform is a mono float32 signal.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of w.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Seconds returns len(Samples) / SampleRate.
func (w Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Silence returns a zero-valued waveform lasting d at the given rate.
func Silence(sampleRate int, d time.Duration) Waveform {
	return Waveform{
		Samples:    make([]float32, SilenceSamples(sampleRate, d)),
		SampleRate: sampleRate,
	}
}

// SilenceSamples returns the number of samples d spans at sampleRate.
func SilenceSamples(sampleRate int, d time.Duration) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Join concatenates parts in order, inserting gap of silence between
// consecutive parts and none after the last. All parts must share one
// sample rate.
func Join(parts []Waveform, gap time.Duration) (Waveform, error) {
	if len(parts) == 0 {
		return Waveform{}, nil
	}
	rate := parts[0].SampleRate
	gapLen := SilenceSamples(rate, gap)

	total := gapLen * (len(parts) - 1)
	for i, p := range parts {
		if p.SampleRate != rate {
			return Waveform{}, fmt.Errorf("%w: part %d is %d Hz, want %d Hz", ErrRateMismatch, i, p.SampleRate, rate)
		}
		total += len(p.Samples)
	}

	out := make([]float32, 0, total)
	for i, p := range parts {
		out = append(out, p.Samples...)
		if i < len(parts)-1 {
			out = append(out, make([]float32, gapLen)...)
		}
	}
	return Waveform{Samples: out, SampleRate: rate}, nil
}

// DecodePCM16LE converts little-endian signed 16-bit PCM to float32 samples.
// A trailing odd byte is dropped.
func DecodePCM16LE(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// toPCM16 clamps a float sample to [-1, 1] and scales it to int16 range.
func toPCM16(s float32) int {
	c := math.Max(-1, math.Min(1, float64(s)))
	return int(c * 32767)
}
