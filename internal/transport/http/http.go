// Package http implements the HTTP transport for podsite.
//
// It exposes a REST API to start generation runs, manage the reference
// voice and download the produced audio, plus the Swagger UI.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/podsite/internal/message"
	"github.com/nadzzz/podsite/internal/transport"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const (
	maxRequestBytes = 10 << 20 // JSON scripts
	maxUploadBytes  = 50 << 20 // reference voice uploads
)

// Options configures the HTTP transport.
type Options struct {
	Port int

	// OutputDir is the parent of the run directories served by /files.
	OutputDir string

	// UploadDir receives reference voices uploaded as raw audio.
	UploadDir string

	// Middleware wraps the whole mux, typically observe.Middleware.
	Middleware func(http.Handler) http.Handler
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	opts   Options
	server *http.Server

	// upload is the uploaded file currently set as the reference voice.
	mu     sync.Mutex
	upload string
}

var _ transport.Transport = (*Transport)(nil)

// New creates a new HTTP transport.
func New(opts Options) *Transport {
	return &Transport{opts: opts}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the routed handler for svc.
func (t *Transport) Handler(svc transport.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /podcasts", func(w http.ResponseWriter, r *http.Request) {
		t.handleGenerate(w, r, svc)
	})
	mux.HandleFunc("PUT /reference-audio", func(w http.ResponseWriter, r *http.Request) {
		t.handleSetReference(w, r, svc)
	})
	mux.HandleFunc("DELETE /reference-audio", func(w http.ResponseWriter, r *http.Request) {
		t.handleClearReference(w, r, svc)
	})
	mux.HandleFunc("GET /files/{run}/{name}", t.handleFile)

	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if t.opts.Middleware != nil {
		return t.opts.Middleware(mux)
	}
	return mux
}

// Listen starts the HTTP server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.opts.Port),
		Handler:           t.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.opts.Port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleGenerate processes a POST /podcasts request.
//
// @Summary     Generate a podcast
// @Description Synthesizes every script line to its own WAV segment and, unless combine is false,
// @Description joins them into complete_podcast.wav. Runs are not queued: while one is active
// @Description further requests get 409. A run that produced no usable audio answers 500 with
// @Description the result body, which still lists any files written.
// @Tags        podcasts
// @Accept      json
// @Produce     json
// @Param       request  body      message.GenerateRequest  true  "Script document plus engine options"
// @Success     200  {object}  message.GenerateResult
// @Failure     400  {string}  string  "Invalid script, engine, or reference audio"
// @Failure     404  {string}  string  "Reference audio not found"
// @Failure     409  {string}  string  "A generation run is already in progress"
// @Failure     500  {object}  message.GenerateResult  "Run failed"
// @Failure     503  {string}  string  "Engine unavailable"
// @Router      /podcasts [post]
func (t *Transport) handleGenerate(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	var req message.GenerateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := svc.Generate(r.Context(), &req)
	if err != nil {
		writeError(w, "generate", err)
		return
	}

	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// handleSetReference processes a PUT /reference-audio request.
//
// @Summary     Set the reference voice
// @Description Sets the voice clip the voice-cloning engine imitates. Send JSON with a server-side
// @Description path, or POST the WAV bytes directly with Content-Type audio/wav; uploads are
// @Description stored in the cache. Any file given must be a RIFF/WAVE file. An empty path clears
// @Description the reference voice.
// @Tags        reference-audio
// @Accept      json
// @Accept      audio/wav
// @Produce     json
// @Param       request  body      message.ReferenceAudioRequest  false  "Server-side path (JSON). For uploads, send the raw WAV bytes."
// @Success     200  {object}  message.ReferenceAudioResult
// @Failure     400  {string}  string  "Invalid body or not a WAV file"
// @Failure     404  {string}  string  "Reference audio not found"
// @Failure     409  {string}  string  "A generation run is already in progress"
// @Failure     503  {string}  string  "Voice-cloning engine unavailable"
// @Router      /reference-audio [put]
func (t *Transport) handleSetReference(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	var path string
	uploaded := false

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var req message.ReferenceAudioRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		path = req.Path
	default:
		p, err := t.saveUpload(r.Body)
		if err != nil {
			slog.Error("saving reference upload failed", "error", err)
			http.Error(w, "saving upload: "+err.Error(), http.StatusInternalServerError)
			return
		}
		path, uploaded = p, true
	}

	if err := svc.SetReferenceAudio(r.Context(), path); err != nil {
		if uploaded {
			_ = os.Remove(path)
		}
		writeError(w, "set reference audio", err)
		return
	}
	t.replaceUpload(path, uploaded)
	writeJSON(w, http.StatusOK, message.ReferenceAudioResult{Path: path})
}

// handleClearReference processes a DELETE /reference-audio request.
//
// @Summary     Clear the reference voice
// @Description The voice-cloning engine falls back to its built-in voice.
// @Tags        reference-audio
// @Success     204
// @Failure     409  {string}  string  "A generation run is already in progress"
// @Failure     503  {string}  string  "Voice-cloning engine unavailable"
// @Router      /reference-audio [delete]
func (t *Transport) handleClearReference(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	if err := svc.SetReferenceAudio(r.Context(), ""); err != nil {
		writeError(w, "clear reference audio", err)
		return
	}
	t.replaceUpload("", false)
	w.WriteHeader(http.StatusNoContent)
}

// replaceUpload records the active reference voice and deletes the
// previously uploaded file once nothing refers to it.
func (t *Transport) replaceUpload(path string, uploaded bool) {
	t.mu.Lock()
	prev := t.upload
	t.upload = ""
	if uploaded {
		t.upload = path
	}
	t.mu.Unlock()

	if prev != "" && prev != path {
		if err := os.Remove(prev); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("removing replaced reference upload", "path", prev, "error", err)
		}
	}
}

// handleFile processes a GET /files/{run}/{name} request.
//
// @Summary     Download produced audio
// @Tags        files
// @Produce     audio/wav
// @Param       run   path  string  true  "Run directory, e.g. podcast_20260101_120000"
// @Param       name  path  string  true  "File name, e.g. complete_podcast.wav"
// @Success     200  {file}    binary
// @Failure     400  {string}  string  "Invalid path"
// @Failure     404  {string}  string  "No such file"
// @Router      /files/{run}/{name} [get]
func (t *Transport) handleFile(w http.ResponseWriter, r *http.Request) {
	run, name := r.PathValue("run"), r.PathValue("name")
	if !safeName(run) || !safeName(name) || filepath.Ext(name) != ".wav" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	path := filepath.Join(t.opts.OutputDir, run, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// saveUpload writes body to a new file in the upload directory.
func (t *Transport) saveUpload(body io.Reader) (string, error) {
	if err := os.MkdirAll(t.opts.UploadDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(t.opts.UploadDir, "reference_*.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, io.LimitReader(body, maxUploadBytes)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// safeName accepts a single path element.
func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func statusFor(err error) int {
	switch transport.Classify(err) {
	case transport.KindBusy:
		return http.StatusConflict
	case transport.KindInvalid:
		return http.StatusBadRequest
	case transport.KindNotFound:
		return http.StatusNotFound
	case transport.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err)
	}
	http.Error(w, op+": "+err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
