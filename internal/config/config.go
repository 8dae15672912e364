// Package config handles loading and validating the podsite configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Engine names accepted in engines.default and in generation requests.
const (
	EngineKokoro     = "kokoro"
	EngineChatterbox = "chatterbox"
)

// Config is the root configuration for the podsite daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Output     OutputConfig     `mapstructure:"output"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Engines    EnginesConfig    `mapstructure:"engines"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// OutputConfig controls where generation runs write their audio.
type OutputConfig struct {
	// Dir is the parent of the per-run podcast_<timestamp> directories.
	Dir string `mapstructure:"dir"`
}

// CacheConfig locates the persistent model asset cache.
type CacheConfig struct {
	Root         string `mapstructure:"root"`
	KokoroRepoID string `mapstructure:"kokoro_repo_id"`
	AuxRepoID    string `mapstructure:"aux_repo_id"` // auxiliary NLP model used by the Kokoro pipeline
	HFEndpoint   string `mapstructure:"hf_endpoint"`
	HFToken      string `mapstructure:"hf_token"`
	Prefetch     bool   `mapstructure:"prefetch"`
}

// EnginesConfig selects the default engine and configures both engines.
type EnginesConfig struct {
	Default    string           `mapstructure:"default"` // "kokoro" or "chatterbox"
	Kokoro     KokoroConfig     `mapstructure:"kokoro"`
	Chatterbox ChatterboxConfig `mapstructure:"chatterbox"`
}

// PacingConfig is the phase budget and the silence inserted by one engine.
type PacingConfig struct {
	MaxChars     int           `mapstructure:"max_chars"`
	PhasePause   time.Duration `mapstructure:"phase_pause"`
	SegmentPause time.Duration `mapstructure:"segment_pause"`
}

// KokoroConfig holds fixed-voice engine settings. The model is served by a
// Wyoming protocol TCP server.
type KokoroConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`  // host:port
	LangCode   string        `mapstructure:"lang_code"` // Kokoro language code, "a" = American English
	Voice      string        `mapstructure:"voice"`
	SampleRate int           `mapstructure:"sample_rate"`
	Timeout    time.Duration `mapstructure:"timeout"` // per synthesis call
	Pacing     PacingConfig  `mapstructure:",squash"`
}

// ChatterboxConfig holds voice-cloning engine settings. The model is served
// by a model runtime reached over gRPC.
type ChatterboxConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"` // host:port
	Device      string        `mapstructure:"device"`   // "", "cuda", "mps" or "cpu"; empty = auto
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Pacing      PacingConfig  `mapstructure:",squash"`
}

// MetricsConfig toggles the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./podsite.yaml, ./configs/podsite.yaml, /etc/podsite/podsite.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("podsite")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/podsite")
	}

	// Environment variables: PODSITE_SERVER_HEALTH_PORT, PODSITE_ENGINES_DEFAULT, etc.
	v.SetEnvPrefix("PODSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variables recognised by earlier releases.
	_ = v.BindEnv("cache.root", "PODSITE_CACHE_ROOT", "PODCAST_CACHE_DIR")
	_ = v.BindEnv("cache.kokoro_repo_id", "PODSITE_CACHE_KOKORO_REPO_ID", "KOKORO_REPO_ID")

	// Read config file (optional, env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${HF_TOKEN}")
	cfg.Cache.HFToken = resolveEnvRef(cfg.Cache.HFToken)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("output.dir", "podcast_outputs")
	v.SetDefault("cache.root", defaultCacheRoot())
	v.SetDefault("cache.kokoro_repo_id", "hexgrad/Kokoro-82M")
	v.SetDefault("cache.aux_repo_id", "spacy/en_core_web_sm")
	v.SetDefault("cache.hf_endpoint", "https://huggingface.co")
	v.SetDefault("cache.hf_token", "")
	v.SetDefault("cache.prefetch", true)
	v.SetDefault("engines.default", EngineKokoro)
	v.SetDefault("engines.kokoro.enabled", true)
	v.SetDefault("engines.kokoro.endpoint", "localhost:10210")
	v.SetDefault("engines.kokoro.lang_code", "a")
	v.SetDefault("engines.kokoro.voice", "af_heart")
	v.SetDefault("engines.kokoro.sample_rate", 24000)
	v.SetDefault("engines.kokoro.timeout", "2m")
	v.SetDefault("engines.kokoro.max_chars", 1000)
	v.SetDefault("engines.kokoro.phase_pause", "200ms")
	v.SetDefault("engines.kokoro.segment_pause", "200ms")
	v.SetDefault("engines.chatterbox.enabled", true)
	v.SetDefault("engines.chatterbox.endpoint", "localhost:50061")
	v.SetDefault("engines.chatterbox.device", "")
	v.SetDefault("engines.chatterbox.load_timeout", "5m")
	v.SetDefault("engines.chatterbox.max_chars", 800)
	v.SetDefault("engines.chatterbox.phase_pause", "300ms")
	v.SetDefault("engines.chatterbox.segment_pause", "500ms")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func defaultCacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".podsite_cache"
	}
	return filepath.Join(home, ".podsite_cache")
}

// Validate checks that cfg contains a coherent set of values and returns a
// joined error listing every problem found.
func (c *Config) Validate() error {
	var errs []error
	switch c.Engines.Default {
	case EngineKokoro, EngineChatterbox:
	default:
		errs = append(errs, fmt.Errorf("engines.default: unknown engine %q", c.Engines.Default))
	}
	if c.Engines.Kokoro.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("engines.kokoro.sample_rate: must be positive, got %d", c.Engines.Kokoro.SampleRate))
	}
	switch c.Engines.Chatterbox.Device {
	case "", "cuda", "mps", "cpu":
	default:
		errs = append(errs, fmt.Errorf("engines.chatterbox.device: unknown device %q", c.Engines.Chatterbox.Device))
	}
	errs = append(errs, c.Engines.Kokoro.Pacing.validate("engines.kokoro")...)
	errs = append(errs, c.Engines.Chatterbox.Pacing.validate("engines.chatterbox")...)
	if c.Cache.Root == "" {
		errs = append(errs, errors.New("cache.root: must not be empty"))
	}
	return errors.Join(errs...)
}

func (p PacingConfig) validate(prefix string) []error {
	var errs []error
	if p.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_chars: must be positive, got %d", prefix, p.MaxChars))
	}
	if p.PhasePause < 0 {
		errs = append(errs, fmt.Errorf("%s.phase_pause: must not be negative", prefix))
	}
	if p.SegmentPause < 0 {
		errs = append(errs, fmt.Errorf("%s.segment_pause: must not be negative", prefix))
	}
	return errs
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
