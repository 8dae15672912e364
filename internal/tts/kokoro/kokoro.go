// Package kokoro implements the fixed-voice TTS backend.
//
// The Kokoro model runs out of process behind a Wyoming protocol server. Each
// synthesis call opens a TCP connection, sends a synthesize event carrying the
// configured voice and language code, and collects audio-chunk payloads until
// audio-stop. The server may split long text internally; chunks are joined in
// the order they arrive.
package kokoro

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/podsite/internal/audio"
	"github.com/nadzzz/podsite/internal/config"
	"github.com/nadzzz/podsite/internal/tts"
)

// Name is the engine identifier.
const Name = config.EngineKokoro

const (
	dialTimeout    = 10 * time.Second
	describeWait   = 5 * time.Second
	defaultTimeout = 2 * time.Minute
	pcmWidth       = 2
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer implements tts.Synthesizer against a Kokoro Wyoming server.
type Synthesizer struct {
	endpoint   string
	langCode   string
	voice      string
	sampleRate int
	timeout    time.Duration
}

// New creates a Kokoro synthesizer and checks that the server answers a
// describe request. A server that cannot be reached or does not answer with
// an info event makes the engine unusable: the error wraps tts.ErrUnavailable.
func New(ctx context.Context, cfg config.KokoroConfig) (*Synthesizer, error) {
	s := &Synthesizer{
		endpoint:   cleanEndpoint(cfg.Endpoint),
		langCode:   cfg.LangCode,
		voice:      cfg.Voice,
		sampleRate: cfg.SampleRate,
		timeout:    cfg.Timeout,
	}
	if s.sampleRate <= 0 {
		s.sampleRate = 24000
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.endpoint == "" {
		return nil, fmt.Errorf("%w: kokoro: no endpoint configured", tts.ErrUnavailable)
	}

	if err := s.describe(ctx); err != nil {
		return nil, fmt.Errorf("%w: kokoro: %v", tts.ErrUnavailable, err)
	}

	slog.Info("kokoro tts initialized",
		"endpoint", s.endpoint,
		"lang_code", s.langCode,
		"voice", s.voice,
		"sample_rate", s.sampleRate)
	return s, nil
}

func cleanEndpoint(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	ep = strings.TrimPrefix(ep, "http://")
	return ep
}

// Name implements tts.Synthesizer.
func (s *Synthesizer) Name() string { return Name }

// SampleRate implements tts.Synthesizer.
func (s *Synthesizer) SampleRate() int { return s.sampleRate }

// Voice returns the fixed voice identifier.
func (s *Synthesizer) Voice() string { return s.voice }

func (s *Synthesizer) dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to kokoro: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	return conn, nil
}

// describe sends a describe event and waits for info.
func (s *Synthesizer) describe(ctx context.Context) error {
	conn, err := s.dial(ctx, describeWait)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := writeEvent(conn, wyomingEvent{Type: "describe"}, nil); err != nil {
		return fmt.Errorf("sending describe event: %w", err)
	}
	r := bufio.NewReader(conn)
	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return fmt.Errorf("waiting for info: %w", err)
		}
		if evt.Type == "info" {
			return nil
		}
		slog.Debug("kokoro describe: skipping event", "type", evt.Type)
	}
}

// Synthesize sends text to the Kokoro server and returns the joined audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (audio.Waveform, error) {
	if text == "" {
		return audio.Waveform{}, fmt.Errorf("kokoro: empty text for synthesis")
	}

	slog.Debug("kokoro synthesize", "text_length", len(text), "voice", s.voice, "endpoint", s.endpoint)

	conn, err := s.dial(ctx, s.timeout)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("kokoro: %w", err)
	}
	defer conn.Close()

	synthEvent := wyomingEvent{
		Type: "synthesize",
		Data: map[string]any{
			"text": text,
			"voice": map[string]any{
				"name": s.voice,
			},
			"language": s.langCode,
		},
	}
	if err := writeEvent(conn, synthEvent, nil); err != nil {
		return audio.Waveform{}, fmt.Errorf("kokoro: sending synthesize event: %w", err)
	}

	// audio-start → audio-chunk* → audio-stop
	var (
		samples []float32
		chunks  int
		r       = bufio.NewReader(conn)
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return audio.Waveform{}, fmt.Errorf("kokoro: reading event: %w", err)
		}

		switch evt.Type {
		case "audio-start", "audio-chunk":
			if err := s.checkFormat(evt.Data); err != nil {
				return audio.Waveform{}, err
			}
			if evt.Type == "audio-chunk" && len(payload) > 0 {
				samples = append(samples, audio.DecodePCM16LE(payload)...)
				chunks++
			}

		case "audio-stop":
			slog.Debug("kokoro audio-stop", "chunks", chunks, "samples", len(samples))
			return audio.Waveform{Samples: samples, SampleRate: s.sampleRate}, nil

		case "error":
			msg := "unknown error"
			if t, ok := evt.Data["text"].(string); ok {
				msg = t
			}
			return audio.Waveform{}, fmt.Errorf("kokoro error: %s", msg)

		default:
			slog.Debug("kokoro unknown event", "type", evt.Type)
		}
	}
}

// checkFormat rejects audio the pipeline cannot join with the rest of the
// run: a different rate, more than one channel, or non-16-bit samples.
func (s *Synthesizer) checkFormat(data map[string]any) error {
	if rate, ok := intField(data, "rate"); ok && rate != s.sampleRate {
		return fmt.Errorf("kokoro: server sent %d Hz audio, want %d Hz", rate, s.sampleRate)
	}
	if ch, ok := intField(data, "channels"); ok && ch != 1 {
		return fmt.Errorf("kokoro: server sent %d channels, want mono", ch)
	}
	if w, ok := intField(data, "width"); ok && w != pcmWidth {
		return fmt.Errorf("kokoro: server sent %d-byte samples, want %d", w, pcmWidth)
	}
	return nil
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
