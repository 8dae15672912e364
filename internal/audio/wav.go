package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// ErrInvalidWAV is returned when a file does not carry a readable RIFF/WAVE
// header.
var ErrInvalidWAV = errors.New("audio: invalid wav file")

// wavFile is the file WriteWAV encodes into.
type wavFile interface {
	io.WriteSeeker
	io.Closer
}

var createWAV = func(path string) (wavFile, error) { return os.Create(path) }

// WriteWAV writes w to path as 16-bit PCM mono WAV, replacing any existing
// file. A failed write leaves no file at path.
func WriteWAV(path string, w Waveform) (err error) {
	if w.SampleRate <= 0 {
		return fmt.Errorf("audio: write %s: invalid sample rate %d", path, w.SampleRate)
	}
	f, err := createWAV(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audio: close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = toPCM16(s)
	}

	enc := wav.NewEncoder(f, w.SampleRate, wavBitDepth, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: w.SampleRate, NumChannels: 1},
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize %s: %w", path, err)
	}
	return nil
}

// ReadWAV decodes a PCM WAV file into a mono waveform. Multi-channel input is
// down-mixed by averaging.
func ReadWAV(path string) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Waveform{}, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: decode %s: %w", path, err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = wavBitDepth
	}
	scale := float32(int(1) << (depth - 1))
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c])
		}
		samples[i] = sum / float32(channels) / scale
	}
	return Waveform{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

// ValidateFile checks that path names an existing, readable regular file
// with a valid RIFF/WAVE header, whatever its extension. Missing files yield
// an error wrapping os.ErrNotExist; anything that is not a WAV file yields
// ErrInvalidWAV.
func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("audio: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("audio: %s is a directory", path)
	}
	if !wav.NewDecoder(f).IsValidFile() {
		return fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	return nil
}
