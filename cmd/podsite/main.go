// Podsite turns podcast narration scripts into WAV audio with either a
// fixed-voice or a voice-cloning TTS engine.
//
// Usage:
//
//	podsite [flags]
//	podsite --config /path/to/podsite.yaml
//	podsite --script script.json --engine chatterbox --reference voice.wav
//
// @title       podsite API
// @version     1.0
// @description Turns podcast narration scripts into WAV audio.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/nadzzz/podsite/docs" // registers the Swagger document
	"github.com/nadzzz/podsite/internal/cache"
	"github.com/nadzzz/podsite/internal/config"
	"github.com/nadzzz/podsite/internal/dispatch"
	"github.com/nadzzz/podsite/internal/health"
	"github.com/nadzzz/podsite/internal/lifecycle"
	"github.com/nadzzz/podsite/internal/message"
	"github.com/nadzzz/podsite/internal/modelrt"
	"github.com/nadzzz/podsite/internal/observe"
	"github.com/nadzzz/podsite/internal/prefetch"
	"github.com/nadzzz/podsite/internal/script"
	"github.com/nadzzz/podsite/internal/transport"
	grpctransport "github.com/nadzzz/podsite/internal/transport/grpc"
	httptransport "github.com/nadzzz/podsite/internal/transport/http"
	"github.com/nadzzz/podsite/internal/tts"
	"github.com/nadzzz/podsite/internal/tts/chatterbox"
	"github.com/nadzzz/podsite/internal/tts/kokoro"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/podsite.yaml)")
	scriptFile := flag.String("script", "", "generate audio for this script file and exit")
	outDir := flag.String("out", "", "run directory for -script (default: a new podcast_<timestamp> directory)")
	engine := flag.String("engine", "", "engine for -script: kokoro or chatterbox (default: engines.default)")
	reference := flag.String("reference", "", "reference voice for -script with the chatterbox engine")
	noCombine := flag.Bool("no-combine", false, "with -script, skip complete_podcast.wav")
	flag.Parse()

	if *showVersion {
		fmt.Printf("podsite %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("podsite starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics go to a dedicated Prometheus registry served by the health server.
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider("podsite", version)
		if err != nil {
			slog.Error("failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		defer func() { _ = provider.Shutdown(context.Background()) }()
		metricsHandler = provider.Handler()
	}
	metrics := observe.DefaultMetrics()

	paths, err := cache.Setup(cfg.Cache)
	if err != nil {
		slog.Error("failed to set up model cache", "error", err)
		os.Exit(1)
	}

	oneShot := *scriptFile != ""
	if cfg.Cache.Prefetch {
		tasks := kokoro.WarmupTasks(paths, prefetch.NewHub(cfg.Cache.HFEndpoint, cfg.Cache.HFToken))
		if oneShot {
			prefetch.RunAll(ctx, tasks...)
		} else {
			go prefetch.RunAll(ctx, tasks...)
		}
	}

	backends, closeRuntime := buildBackends(ctx, cfg, metrics)
	defer closeRuntime()

	dispatcher := dispatch.New(cfg, backends, metrics)
	defer dispatcher.Close()

	if oneShot {
		req, err := loadRequest(*scriptFile)
		if err != nil {
			slog.Error("failed to read script", "path", *scriptFile, "error", err)
			os.Exit(1)
		}
		req.Engine = *engine
		req.ReferenceAudio = *reference
		req.OutputDir = *outDir
		if *noCombine {
			combine := false
			req.Combine = &combine
		}
		if !runOnce(ctx, dispatcher, req) {
			dispatcher.Close()
			closeRuntime()
			os.Exit(1)
		}
		return
	}

	serve(ctx, cfg, paths, dispatcher, metrics, metricsHandler)
}

// buildBackends constructs both engines. Either may be unavailable; the
// daemon still starts and reports it through /engines.
func buildBackends(ctx context.Context, cfg *config.Config, metrics *observe.Metrics) (dispatch.Backends, func()) {
	var b dispatch.Backends
	closeRuntime := func() {}

	if cfg.Engines.Kokoro.Enabled {
		k, err := kokoro.New(ctx, cfg.Engines.Kokoro)
		if err != nil {
			slog.Warn("kokoro engine unavailable", "endpoint", cfg.Engines.Kokoro.Endpoint, "error", err)
			b.KokoroErr = err
		} else {
			b.Kokoro = k
		}
	} else {
		b.KokoroErr = errors.New("disabled")
	}

	if cfg.Engines.Chatterbox.Enabled {
		rt, err := modelrt.Dial(cfg.Engines.Chatterbox.Endpoint)
		if err != nil {
			slog.Warn("chatterbox engine unavailable", "endpoint", cfg.Engines.Chatterbox.Endpoint, "error", err)
			return b, closeRuntime
		}
		closeRuntime = func() { _ = rt.Close() }

		factory := func(ctx context.Context) (tts.VoiceCloner, error) {
			e, err := chatterbox.New(ctx, cfg.Engines.Chatterbox, rt)
			if err != nil {
				return nil, err
			}
			return e, nil
		}
		first, err := factory(ctx)
		if err != nil {
			slog.Warn("chatterbox engine unavailable, will retry on first use",
				"endpoint", cfg.Engines.Chatterbox.Endpoint, "error", err)
		}
		b.Cloner = lifecycle.New(factory, first, lifecycle.WithMetrics(metrics))
	}
	return b, closeRuntime
}

func loadRequest(path string) (*message.GenerateRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := script.Parse(f)
	if err != nil {
		return nil, err
	}
	return message.NewGenerateRequest(doc), nil
}

// runOnce generates one podcast and prints the written files. It reports
// whether the run succeeded.
func runOnce(ctx context.Context, svc transport.Service, req *message.GenerateRequest) bool {
	result, err := svc.Generate(ctx, req)
	if err != nil {
		slog.Error("generation rejected", "error", err)
		return false
	}
	for _, f := range result.Files {
		fmt.Println(f)
	}
	if result.Error != "" {
		slog.Error("generation failed", "run_id", result.RunID, "error", result.Error)
		return false
	}
	slog.Info("podcast written",
		"run_id", result.RunID,
		"files", len(result.Files),
		"failures", len(result.Failures),
		"duration_seconds", result.DurationSeconds)
	return true
}

func serve(ctx context.Context, cfg *config.Config, paths *cache.Paths, dispatcher *dispatch.Dispatcher,
	metrics *observe.Metrics, metricsHandler http.Handler) {
	// Initialize enabled transports.
	var transports []transport.Transport

	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(httptransport.Options{
			Port:       cfg.Transports.HTTP.Port,
			OutputDir:  dispatcher.OutputDir(),
			UploadDir:  paths.References,
			Middleware: observe.Middleware(metrics),
		}))
	}

	if len(transports) == 0 {
		slog.Error("no transports enabled, enable at least one in config")
		os.Exit(1)
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort, dispatcher.Engines, metricsHandler)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("podsite ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"default_engine", cfg.Engines.Default)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("podsite stopped")
}
