// Package prefetch runs best-effort warm-up tasks such as downloading model
// snapshots into the cache. A failed task is logged and otherwise ignored:
// the model servers fetch what they need on first use.
package prefetch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxParallel bounds how many tasks download at once.
const maxParallel = 4

// Task is one independent warm-up step.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunAll runs tasks concurrently and returns once all of them have finished.
// Task errors are logged at warn level and never returned.
func RunAll(ctx context.Context, tasks ...Task) {
	var g errgroup.Group
	g.SetLimit(maxParallel)

	for _, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			if err := task.Run(ctx); err != nil {
				slog.Warn("prefetch task failed", "task", task.Name, "error", err)
				return nil
			}
			slog.Info("prefetch task complete", "task", task.Name, "duration", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()
}
