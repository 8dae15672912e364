package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "podsite.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engines.Default != EngineKokoro {
		t.Errorf("default engine = %q", cfg.Engines.Default)
	}
	if got := cfg.Engines.Kokoro.Pacing; got.MaxChars != 1000 || got.PhasePause != 200*time.Millisecond {
		t.Errorf("kokoro pacing = %+v", got)
	}
	if got := cfg.Engines.Chatterbox.Pacing; got.MaxChars != 800 || got.SegmentPause != 500*time.Millisecond {
		t.Errorf("chatterbox pacing = %+v", got)
	}
	if cfg.Engines.Chatterbox.LoadTimeout != 5*time.Minute {
		t.Errorf("load timeout = %v", cfg.Engines.Chatterbox.LoadTimeout)
	}
	if cfg.Output.Dir != "podcast_outputs" || cfg.Cache.KokoroRepoID != "hexgrad/Kokoro-82M" {
		t.Errorf("output = %q, repo = %q", cfg.Output.Dir, cfg.Cache.KokoroRepoID)
	}
	if !strings.HasSuffix(cfg.Cache.Root, ".podsite_cache") {
		t.Errorf("cache root = %q", cfg.Cache.Root)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
engines:
  default: chatterbox
  chatterbox:
    device: mps
    max_chars: 400
cache:
  hf_token: ${TEST_PODSITE_HF_TOKEN}
`)
	t.Setenv("TEST_PODSITE_HF_TOKEN", "secret")
	t.Setenv("PODSITE_ENGINES_KOKORO_VOICE", "am_adam")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engines.Default != EngineChatterbox || cfg.Engines.Chatterbox.Device != "mps" {
		t.Errorf("engines = %+v", cfg.Engines)
	}
	if cfg.Engines.Chatterbox.Pacing.MaxChars != 400 {
		t.Errorf("chatterbox max_chars = %d", cfg.Engines.Chatterbox.Pacing.MaxChars)
	}
	if cfg.Engines.Kokoro.Voice != "am_adam" {
		t.Errorf("kokoro voice = %q", cfg.Engines.Kokoro.Voice)
	}
	if cfg.Cache.HFToken != "secret" {
		t.Errorf("hf token = %q", cfg.Cache.HFToken)
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PODCAST_CACHE_DIR", dir)
	t.Setenv("KOKORO_REPO_ID", "someone/Kokoro-fork")

	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Root != dir {
		t.Errorf("cache root = %q, want %q", cfg.Cache.Root, dir)
	}
	if cfg.Cache.KokoroRepoID != "someone/Kokoro-fork" {
		t.Errorf("repo id = %q", cfg.Cache.KokoroRepoID)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown engine", "engines:\n  default: espeak\n", "engines.default"},
		{"bad device", "engines:\n  chatterbox:\n    device: tpu\n", "engines.chatterbox.device"},
		{"zero max chars", "engines:\n  kokoro:\n    max_chars: 0\n", "engines.kokoro.max_chars"},
		{"negative pause", "engines:\n  chatterbox:\n    phase_pause: -1s\n", "engines.chatterbox.phase_pause"},
		{"zero sample rate", "engines:\n  kokoro:\n    sample_rate: 0\n", "engines.kokoro.sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("TEST_PODSITE_REF", "value")
	if got := resolveEnvRef("${TEST_PODSITE_REF}"); got != "value" {
		t.Errorf("got %q", got)
	}
	if got := resolveEnvRef("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
	if got := resolveEnvRef("${TEST_PODSITE_UNSET}"); got != "${TEST_PODSITE_UNSET}" {
		t.Errorf("unset ref = %q", got)
	}
}
