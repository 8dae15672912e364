package prefetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunAll_FailuresDoNotStopOthers(t *testing.T) {
	var mu sync.Mutex
	ran := map[string]bool{}
	mark := func(name string, err error) Task {
		return Task{Name: name, Run: func(context.Context) error {
			mu.Lock()
			ran[name] = true
			mu.Unlock()
			return err
		}}
	}

	RunAll(context.Background(),
		mark("a", nil),
		mark("b", errors.New("network down")),
		mark("c", nil),
	)

	for _, name := range []string{"a", "b", "c"} {
		if !ran[name] {
			t.Errorf("task %s did not run", name)
		}
	}
}

func TestRunAll_NoTasks(t *testing.T) {
	RunAll(context.Background())
}

// newFakeHub serves a two-file repository and counts file downloads.
func newFakeHub(t *testing.T, token string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var downloads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models/hexgrad/Kokoro-82M", func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"siblings":[{"rfilename":"config.json"},{"rfilename":"voices/af_heart.pt"}]}`))
	})
	mux.HandleFunc("GET /hexgrad/Kokoro-82M/resolve/main/config.json", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		_, _ = w.Write([]byte(`{"dim":512}`))
	})
	mux.HandleFunc("GET /hexgrad/Kokoro-82M/resolve/main/voices/af_heart.pt", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		_, _ = w.Write([]byte("weights"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func TestSnapshot_DownloadsAndMarksComplete(t *testing.T) {
	srv, downloads := newFakeHub(t, "secret")
	dir := t.TempDir()
	hub := NewHub(srv.URL, "secret")

	got, err := hub.Snapshot(context.Background(), "hexgrad/Kokoro-82M", dir)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got != SnapshotDir(dir, "hexgrad/Kokoro-82M") {
		t.Errorf("dir = %s", got)
	}
	data, err := os.ReadFile(filepath.Join(got, "voices", "af_heart.pt"))
	if err != nil || string(data) != "weights" {
		t.Fatalf("voice file = %q, %v", data, err)
	}
	if !IsComplete(dir, "hexgrad/Kokoro-82M") {
		t.Error("snapshot not marked complete")
	}
	if n := downloads.Load(); n != 2 {
		t.Errorf("downloads = %d, want 2", n)
	}

	// A second run must not download again.
	if _, err := hub.Snapshot(context.Background(), "hexgrad/Kokoro-82M", dir); err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if n := downloads.Load(); n != 2 {
		t.Errorf("downloads after second run = %d, want 2", n)
	}
}

func TestSnapshot_SkipsPresentFiles(t *testing.T) {
	srv, downloads := newFakeHub(t, "")
	dir := t.TempDir()
	target := SnapshotDir(dir, "hexgrad/Kokoro-82M")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "config.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewHub(srv.URL, "").Snapshot(context.Background(), "hexgrad/Kokoro-82M", dir); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if n := downloads.Load(); n != 1 {
		t.Errorf("downloads = %d, want 1", n)
	}
}

func TestSnapshot_UnknownRepo(t *testing.T) {
	srv, _ := newFakeHub(t, "")
	dir := t.TempDir()
	if _, err := NewHub(srv.URL, "").Snapshot(context.Background(), "nobody/nothing", dir); err == nil {
		t.Fatal("expected error")
	}
	if IsComplete(dir, "nobody/nothing") {
		t.Error("failed snapshot marked complete")
	}
}

func TestSafeJoin(t *testing.T) {
	for _, bad := range []string{"../escape", "/abs", "..", "."} {
		if _, err := safeJoin("/cache", bad); err == nil {
			t.Errorf("safeJoin(%q) accepted", bad)
		}
	}
	if got, err := safeJoin("/cache", "a/b.txt"); err != nil || got != filepath.Join("/cache", "a", "b.txt") {
		t.Errorf("safeJoin = %q, %v", got, err)
	}
}
