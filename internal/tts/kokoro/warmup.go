package kokoro

import (
	"github.com/nadzzz/podsite/internal/cache"
	"github.com/nadzzz/podsite/internal/prefetch"
)

// WarmupTasks returns the best-effort cache warm-up steps for the Kokoro
// server: the auxiliary NLP model its text pipeline uses and the main model
// repository. Both land in the shared hub cache, so a server started with the
// same cache root does not download them again.
func WarmupTasks(paths *cache.Paths, hub *prefetch.Hub) []prefetch.Task {
	var tasks []prefetch.Task
	if paths.AuxRepoID != "" {
		tasks = append(tasks, prefetch.SnapshotTask(hub, paths.AuxRepoID, paths.HuggingFace))
	}
	if paths.KokoroRepoID != "" {
		tasks = append(tasks, prefetch.SnapshotTask(hub, paths.KokoroRepoID, paths.HuggingFace))
	}
	return tasks
}
