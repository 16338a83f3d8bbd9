package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"swiftslice/internal/core/ports"
	"swiftslice/internal/core/watcher"
	"swiftslice/internal/data/slicestore"
	"time"
)

// StartWatcher re-slices the affected projects of req whenever their Swift
// sources or manifests change. It returns once the watcher is running.
func (a *App) StartWatcher(ctx context.Context, req ports.SliceRequest) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Scan.ExcludeDirs,
		a.Config.Scan.ExcludeFiles,
		func(paths []string) {
			a.HandleChanges(ctx, req, paths)
		},
	)
	if err != nil {
		return err
	}
	if err := w.Watch([]string{req.Root}); err != nil {
		_ = w.Close()
		return err
	}

	a.stateMu.Lock()
	a.activeWatcher = w
	a.stateMu.Unlock()

	go func() {
		<-ctx.Done()
		a.StopWatcher()
	}()
	return nil
}

func (a *App) StopWatcher() {
	a.stateMu.Lock()
	w := a.activeWatcher
	a.activeWatcher = nil
	a.stateMu.Unlock()
	if w != nil {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
	}
}

// HandleChanges re-slices every project owning one of paths. A manifest
// change also drops the project's cached dependency modules.
func (a *App) HandleChanges(ctx context.Context, req ports.SliceRequest, paths []string) []ports.ProjectOutcome {
	if ctx.Err() != nil {
		return nil
	}
	projects, err := a.DiscoverProjects(req)
	if err != nil {
		slog.Warn("failed to discover projects after change", "error", err)
		return nil
	}

	affected := make(map[string]bool)
	for _, path := range paths {
		owner, ok := owningProject(projects, path)
		if !ok {
			continue
		}
		if watcher.IsManifest(path) {
			affected[owner] = true
		} else if _, seen := affected[owner]; !seen {
			affected[owner] = false
		}
	}
	if len(affected) == 0 {
		return nil
	}

	dirs := make([]string, 0, len(affected))
	for dir := range affected {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	a.passMu.Lock()
	defer a.passMu.Unlock()

	runID := slicestore.NewRunID()
	outcomes := make([]ports.ProjectOutcome, 0, len(dirs))
	for _, dir := range dirs {
		if affected[dir] {
			if n := a.slicer.ForgetProject(dir); n > 0 {
				slog.Debug("dropped cached modules after manifest change", "project", dir, "modules", n)
			}
		}
		started := time.Now()
		outcome := a.sliceProject(ctx, runID, req.Root, dir)
		slog.Info("re-sliced project", "project", dir, "status", outcome.Status, "duration", time.Since(started).Round(time.Millisecond))
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// owningProject picks the deepest project directory containing path.
func owningProject(projects []string, path string) (string, bool) {
	best := ""
	for _, dir := range projects {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(dir) > len(best) {
			best = dir
		}
	}
	return best, best != ""
}
