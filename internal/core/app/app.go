package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"swiftslice/internal/core/config"
	"swiftslice/internal/core/errors"
	"swiftslice/internal/core/ports"
	"swiftslice/internal/core/watcher"
	"swiftslice/internal/data/slicestore"
	"swiftslice/internal/engine/semantics"
	"swiftslice/internal/shared/observability"
	"swiftslice/internal/shared/util"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

// Dependencies are the adapters an App is wired with. Scanner defaults to a
// filesystem Scanner built from the scan config; Store may be nil.
type Dependencies struct {
	Toolchain ports.Toolchain
	Scanner   ports.FileScanner
	Store     ports.SliceStore
	OutputDir string
}

type App struct {
	Config *config.Config

	slicer    *Slicer
	scanner   ports.FileScanner
	store     ports.SliceStore
	outputDir string

	// passMu serializes slicing passes; watch events may arrive mid-pass.
	passMu sync.Mutex

	stateMu       sync.RWMutex
	lastResult    *ports.SliceResult
	activeWatcher *watcher.Watcher
}

func NewWithDependencies(cfg *config.Config, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "app requires a config")
	}
	if deps.Toolchain == nil {
		return nil, errors.New(errors.CodeValidationError, "app requires a toolchain")
	}

	scanner := deps.Scanner
	if scanner == nil {
		s, err := NewScanner(ScanOptions{
			ExcludeDirs:  cfg.Scan.ExcludeDirs,
			ExcludeFiles: cfg.Scan.ExcludeFiles,
			UseGitignore: cfg.Scan.GitignoreEnabled(),
		})
		if err != nil {
			return nil, err
		}
		scanner = s
	}

	slicer, err := NewSlicer(deps.Toolchain, scanner, SlicerOptions{
		Workers:         cfg.Slice.Workers,
		BuildDir:        cfg.Slice.BuildDir,
		CompilerArgs:    cfg.Toolchain.CompilerArgs,
		SDKArgs:         cfg.Toolchain.SDKArgs,
		ExtraArgs:       cfg.Toolchain.ExtraArgs,
		InContainer:     cfg.Toolchain.InContainer,
		ModuleCacheSize: cfg.Slice.ModuleCacheSize,
	})
	if err != nil {
		return nil, err
	}

	outputDir := deps.OutputDir
	if strings.TrimSpace(outputDir) == "" {
		outputDir = cfg.Output.Dir
	}

	return &App{
		Config:    cfg,
		slicer:    slicer,
		scanner:   scanner,
		store:     deps.Store,
		outputDir: outputDir,
	}, nil
}

// DiscoverProjects returns the package directories a request covers. In
// multi-project mode that is every directory holding a Package*.swift.
func (a *App) DiscoverProjects(req ports.SliceRequest) ([]string, error) {
	root := filepath.Clean(req.Root)
	if !req.MultiProject {
		return []string{root}, nil
	}

	manifests, err := a.scanner.Glob(root, "**/"+manifestPattern)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "discover swift packages"), errors.CtxPath, root)
	}
	seen := make(map[string]struct{}, len(manifests))
	for _, m := range manifests {
		seen[filepath.Dir(m)] = struct{}{}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run slices every project of the request. A failing project is logged and
// recorded; the others still run. The returned error aggregates the
// failures and is nil when every project was sliced.
func (a *App) Run(ctx context.Context, req ports.SliceRequest) (ports.SliceResult, error) {
	a.passMu.Lock()
	defer a.passMu.Unlock()

	started := time.Now()
	result := ports.SliceResult{RunID: slicestore.NewRunID()}

	projects, err := a.DiscoverProjects(req)
	if err != nil {
		return result, err
	}
	if len(projects) == 0 {
		return result, errors.AddContext(errors.New(errors.CodeNoManifest, "no swift packages found"), errors.CtxPath, req.Root)
	}

	var merr *multierror.Error
	for _, dir := range projects {
		if err := ctx.Err(); err != nil {
			merr = multierror.Append(merr, err)
			break
		}
		outcome := a.sliceProject(ctx, result.RunID, req.Root, dir)
		result.Projects = append(result.Projects, outcome)
		if outcome.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", dir, outcome.Err))
		}
	}
	result.Duration = time.Since(started)

	a.stateMu.Lock()
	last := result
	a.lastResult = &last
	a.stateMu.Unlock()

	done := 0
	for _, p := range result.Projects {
		if p.Status == slicestore.StatusDone {
			done++
		}
	}
	slog.Info("slicing pass complete",
		"run_id", result.RunID,
		"projects", len(result.Projects),
		"done", done,
		"duration", result.Duration.Round(time.Millisecond),
		"heap", humanize.Bytes(util.HeapAllocBytes()),
	)
	return result, merr.ErrorOrNil()
}

func (a *App) sliceProject(ctx context.Context, runID, root, dir string) ports.ProjectOutcome {
	outcome := ports.ProjectOutcome{ProjectDir: dir}
	run := slicestore.Run{
		RunID:         runID,
		ProjectKey:    projectKey(dir),
		SchemaVersion: slicestore.SchemaVersion,
		StartedAt:     time.Now().UTC(),
	}

	slice, err := a.slicer.Slice(ctx, dir)
	if err == nil {
		outcome.OutputPath, run.Payload, err = a.writeSlice(root, dir, slice)
		run.CompilerArgs = len(slice.CompilerArgs)
		run.Modules = len(slice.ModuleInfos)
		run.BuildModules = len(slice.BuildSymbols)
		run.Files = len(slice.FileStructures)
		run.IndexedFiles = len(slice.FileIndexes)
	}

	outcome.Err = err
	outcome.Status = statusOf(err)
	run.Status = outcome.Status
	run.ErrorCode = string(errors.CodeOf(err))
	run.OutputPath = outcome.OutputPath
	run.FinishedAt = time.Now().UTC()
	if !a.Config.DB.StorePayload {
		run.Payload = nil
	}
	observability.SlicesTotal.WithLabelValues(outcome.Status).Inc()

	switch {
	case errors.EndsSlice(err):
		slog.Warn("project not sliceable", "project", dir, "status", outcome.Status, "error", err)
	case err != nil:
		slog.Error("project slice failed", "project", dir, "status", outcome.Status, "error", err)
	}
	if a.store != nil {
		if err := a.store.SaveRun(run); err != nil {
			slog.Warn("failed to record slice run", "project", dir, "error", err)
		}
	}
	return outcome
}

func (a *App) writeSlice(root, dir string, slice *semantics.Slice) (string, []byte, error) {
	payload, err := slice.MarshalIndent()
	if err != nil {
		return "", nil, errors.Wrap(err, errors.CodeInternal, "encode slice")
	}
	outPath := filepath.Join(a.outputDir, OutputName(root, dir)+a.Config.Output.Suffix)
	if err := util.WriteFileWithDirs(outPath, payload, 0o644); err != nil {
		return "", nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write slice"), errors.CtxPath, outPath)
	}
	slog.Info("wrote semantics slice",
		"project", dir,
		"path", outPath,
		"size", humanize.Bytes(uint64(len(payload))),
		"modules", len(slice.ModuleInfos),
		"files", len(slice.FileIndexes),
	)
	return outPath, payload, nil
}

// OutputName names a project's slice file. Nested projects of a
// multi-project scan are named by their path below root, so two packages
// with the same base name do not collide.
func OutputName(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return util.ProjectSlug(dir)
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "-")
}

func projectKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return slicestore.StatusDone
	case errors.IsCode(err, errors.CodeNoManifest):
		return slicestore.StatusSkipped
	case errors.IsCode(err, errors.CodeNoTranscript):
		return slicestore.StatusAborted
	default:
		return slicestore.StatusFailed
	}
}

// LastResult returns the most recent pass, if any.
func (a *App) LastResult() (ports.SliceResult, bool) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	if a.lastResult == nil {
		return ports.SliceResult{}, false
	}
	return *a.lastResult, true
}

// LatestRun returns the most recent recorded run of a project.
func (a *App) LatestRun(projectDir string) (slicestore.Run, bool, error) {
	if a.store == nil {
		return slicestore.Run{}, false, errors.New(errors.CodeNotFound, "slice history is disabled")
	}
	return a.store.LatestRun(projectKey(projectDir))
}

// History returns the recorded runs of a project since the given time.
func (a *App) History(projectDir string, since time.Time) ([]slicestore.Run, error) {
	if a.store == nil {
		return nil, errors.New(errors.CodeNotFound, "slice history is disabled")
	}
	return a.store.LoadRuns(projectKey(projectDir), since)
}
