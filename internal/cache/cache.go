// Package cache prepares the persistent directory tree for downloaded model
// assets. Setup runs once at process start; engines and prefetch tasks take
// the resulting Paths instead of reading the environment.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nadzzz/podsite/internal/config"
)

// Paths is the resolved cache layout.
type Paths struct {
	Root        string
	HuggingFace string // hub snapshots (models--org--name/)
	Kokoro      string // fixed-voice engine assets
	References  string // uploaded reference clips

	KokoroRepoID string
	AuxRepoID    string
}

// Setup creates the cache tree under cfg.Root and returns its paths.
// Existing directories are reused, so repeated starts keep their downloads.
func Setup(cfg config.CacheConfig) (*Paths, error) {
	if cfg.Root == "" {
		return nil, errors.New("cache: root not set")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("cache: resolving %s: %w", cfg.Root, err)
	}

	p := &Paths{
		Root:         root,
		HuggingFace:  filepath.Join(root, "huggingface"),
		Kokoro:       filepath.Join(root, "kokoro"),
		References:   filepath.Join(root, "references"),
		KokoroRepoID: cfg.KokoroRepoID,
		AuxRepoID:    cfg.AuxRepoID,
	}
	for _, dir := range []string{p.Root, p.HuggingFace, p.Kokoro, p.References} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
		}
	}

	slog.Info("model cache ready", "root", p.Root, "kokoro_repo_id", p.KokoroRepoID)
	return p, nil
}
