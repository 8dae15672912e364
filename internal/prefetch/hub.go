package prefetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// completeMarker is written into a snapshot directory once every file is
// present.
const completeMarker = ".complete"

// Hub downloads repository snapshots from a Hugging Face compatible hub.
type Hub struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHub creates a hub client. token may be empty for public repositories.
func NewHub(endpoint, token string) *Hub {
	return &Hub{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Minute},
	}
}

// SnapshotDir returns where repoID is stored under dir, using the hub cache
// naming scheme models--{org}--{name}.
func SnapshotDir(dir, repoID string) string {
	return filepath.Join(dir, "models--"+strings.ReplaceAll(repoID, "/", "--"))
}

// IsComplete reports whether a full snapshot of repoID is already in dir.
func IsComplete(dir, repoID string) bool {
	_, err := os.Stat(filepath.Join(SnapshotDir(dir, repoID), completeMarker))
	return err == nil
}

// SnapshotTask returns a task that mirrors repoID into dir.
func SnapshotTask(h *Hub, repoID, dir string) Task {
	return Task{
		Name: "snapshot " + repoID,
		Run: func(ctx context.Context) error {
			_, err := h.Snapshot(ctx, repoID, dir)
			return err
		},
	}
}

type repoInfo struct {
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// Snapshot downloads every file of repoID into SnapshotDir(dir, repoID) and
// returns that directory. Files already on disk are skipped, and a complete
// snapshot is not contacted again.
func (h *Hub) Snapshot(ctx context.Context, repoID, dir string) (string, error) {
	target := SnapshotDir(dir, repoID)
	if IsComplete(dir, repoID) {
		slog.Debug("snapshot already cached", "repo", repoID, "dir", target)
		return target, nil
	}

	var info repoInfo
	if err := h.getJSON(ctx, h.endpoint+"/api/models/"+repoID, &info); err != nil {
		return "", fmt.Errorf("prefetch: listing %s: %w", repoID, err)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("prefetch: %w", err)
	}

	fetched := 0
	for _, s := range info.Siblings {
		name := s.RFilename
		local, err := safeJoin(target, name)
		if err != nil {
			return "", fmt.Errorf("prefetch: %s: %w", repoID, err)
		}
		if _, err := os.Stat(local); err == nil {
			continue
		}
		if err := h.download(ctx, repoID, name, local); err != nil {
			return "", fmt.Errorf("prefetch: %s/%s: %w", repoID, name, err)
		}
		fetched++
	}

	if err := os.WriteFile(filepath.Join(target, completeMarker), nil, 0o644); err != nil {
		return "", fmt.Errorf("prefetch: marking %s complete: %w", repoID, err)
	}
	slog.Info("snapshot cached", "repo", repoID, "files", len(info.Siblings), "fetched", fetched)
	return target, nil
}

// safeJoin joins a repository file name onto dir, rejecting names that
// would escape it.
func safeJoin(dir, name string) (string, error) {
	clean := path.Clean(name)
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

func (h *Hub) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	return req, nil
}

func (h *Hub) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := h.newRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// download fetches one file into local through a temporary file, so an
// interrupted download never leaves a partial file that would be skipped on
// the next start.
func (h *Hub) download(ctx context.Context, repoID, name, local string) error {
	fileURL := h.endpoint + "/" + repoID + "/resolve/main/" + escapePath(name)
	req, err := h.newRequest(ctx, fileURL)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(local), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), local)
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
