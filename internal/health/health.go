// Package health serves liveness, readiness, engine status and metrics.
//
// /healthz answers 200 once the daemon has started its transports.
// /readyz additionally requires at least one synthesis engine to be
// available. /engines lists every engine and /metrics exposes the
// Prometheus registry when metrics are enabled.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nadzzz/podsite/internal/message"
)

// EnginesFunc reports the current engine status.
type EnginesFunc func() []message.EngineStatus

// Server is a lightweight HTTP server for operational endpoints.
type Server struct {
	port    int
	engines EnginesFunc
	metrics http.Handler
	ready   atomic.Bool
	server  *http.Server
}

// New creates a health server. metrics may be nil.
func New(port int, engines EnginesFunc, metrics http.Handler) *Server {
	return &Server{port: port, engines: engines, metrics: metrics}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		for _, e := range s.engines() {
			if e.Available {
				writeStatus(w, http.StatusOK, "ok")
				return
			}
		}
		writeStatus(w, http.StatusServiceUnavailable, "no_engine")
	})

	mux.HandleFunc("GET /engines", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.engines())
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
