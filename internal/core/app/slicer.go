package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"swiftslice/internal/core/errors"
	"swiftslice/internal/core/ports"
	"swiftslice/internal/core/watcher"
	"swiftslice/internal/engine/compilerargs"
	"swiftslice/internal/engine/semantics"
	"swiftslice/internal/shared/observability"
	"swiftslice/internal/shared/util"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Stage is one step of a project's slicing state machine.
type Stage int

const (
	StageInit Stage = iota
	StageArgsResolved
	StageManifestParsed
	StageBuildMapsCollected
	StageModulesIntrospected
	StageFilesAnalyzed
	StageDone
	StageAborted
)

var stageNames = [...]string{
	StageInit:                "INIT",
	StageArgsResolved:        "ARGS_RESOLVED",
	StageManifestParsed:      "MANIFEST_PARSED",
	StageBuildMapsCollected:  "BUILD_MAPS_COLLECTED",
	StageModulesIntrospected: "MODULES_INTROSPECTED",
	StageFilesAnalyzed:       "FILES_ANALYZED",
	StageDone:                "DONE",
	StageAborted:             "ABORTED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

const (
	manifestPattern  = "Package*.swift"
	outputMapPattern = "**/debug/**/output-file-map.json"
	sourcePattern    = "**/*.swift"
	swiftVersionFile = ".swift-version"
	sdkFlag          = "-sdk"
)

// NoTranscriptGuidance is the advice attached to a failed argument detection.
func NoTranscriptGuidance(inContainer bool) string {
	if inContainer {
		return "Automatic swift build has failed. Check if this project is compatible with Swift 5/6 that is bundled with the swiftslice container image."
	}
	return "Automatic swift build has failed. Check if the appropriate version of swift is installed. Try using the swiftslice container image, which bundles the latest Swift 6 compiler."
}

type SlicerOptions struct {
	Workers  int
	BuildDir string
	// CompilerArgs, when set, replaces the clean and verbose build.
	CompilerArgs string
	SDKArgs      string
	ExtraArgs    string
	InContainer  bool
	// ModuleCacheSize bounds the dependency module-info cache. Zero disables it.
	ModuleCacheSize int
}

// Slicer builds the semantic slice of one Swift package. A Slicer is safe
// for concurrent use; each Slice call owns its result.
type Slicer struct {
	toolchain ports.Toolchain
	scanner   ports.FileScanner
	opts      SlicerOptions
	modules   *lru.Cache[string, *semantics.ModuleInfo]
}

func NewSlicer(toolchain ports.Toolchain, scanner ports.FileScanner, opts SlicerOptions) (*Slicer, error) {
	if toolchain == nil {
		return nil, errors.New(errors.CodeValidationError, "slicer requires a toolchain")
	}
	if scanner == nil {
		return nil, errors.New(errors.CodeValidationError, "slicer requires a file scanner")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if strings.TrimSpace(opts.BuildDir) == "" {
		opts.BuildDir = ".build"
	}

	s := &Slicer{toolchain: toolchain, scanner: scanner, opts: opts}
	if opts.ModuleCacheSize > 0 {
		cache, err := lru.New[string, *semantics.ModuleInfo](opts.ModuleCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create module cache: %w", err)
		}
		s.modules = cache
	}
	return s, nil
}

type sliceRun struct {
	dir     string
	stage   Stage
	entered time.Time
	span    trace.Span
	slice   *semantics.Slice
}

func (r *sliceRun) advance(next Stage, attrs ...any) {
	observability.StageDuration.WithLabelValues(r.stage.String()).Observe(time.Since(r.entered).Seconds())
	observability.StageTransitionsTotal.WithLabelValues(next.String()).Inc()
	r.span.AddEvent(next.String())

	logAttrs := append([]any{"project", r.dir, "from", r.stage.String(), "to", next.String()}, attrs...)
	switch next {
	case StageDone, StageAborted:
		slog.Info("slice stage", logAttrs...)
	default:
		slog.Debug("slice stage", logAttrs...)
	}
	r.stage = next
	r.entered = time.Now()
}

// Slice runs the full pipeline for the package rooted at projectDir. Only a
// missing manifest or an undetectable argument list fail the call; every
// other failure drops the affected unit and the slice continues.
func (s *Slicer) Slice(ctx context.Context, projectDir string) (*semantics.Slice, error) {
	ctx, span := observability.Tracer.Start(ctx, "slice", trace.WithAttributes(attribute.String("project", projectDir)))
	defer span.End()

	run := &sliceRun{
		dir:     projectDir,
		stage:   StageInit,
		entered: time.Now(),
		span:    span,
		slice:   semantics.NewSlice(projectDir),
	}

	result, err := s.slice(ctx, run)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *Slicer) slice(ctx context.Context, run *sliceRun) (*semantics.Slice, error) {
	manifests, err := s.scanner.Glob(run.dir, manifestPattern)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "scan for package manifests"), errors.CtxPath, run.dir)
	}
	if len(manifests) == 0 {
		return nil, errors.AddContext(errors.New(errors.CodeNoManifest, "no Package.swift found"), errors.CtxPath, run.dir)
	}

	args, err := s.resolveArgs(ctx, run.dir)
	if err != nil {
		run.advance(StageAborted, "error", err)
		return nil, err
	}
	run.slice.CompilerArgs = args
	run.advance(StageArgsResolved, "args", len(args))

	run.slice.PackageMetadata = s.collectManifest(ctx, run.dir)
	run.advance(StageManifestParsed, "parsed", run.slice.PackageMetadata != nil)

	if err := s.collectBuildSymbols(ctx, run); err != nil {
		return nil, err
	}
	run.advance(StageBuildMapsCollected, "modules", len(run.slice.BuildSymbols))

	if err := s.introspectModules(ctx, run); err != nil {
		return nil, err
	}
	run.advance(StageModulesIntrospected, "modules", len(run.slice.ModuleInfos))

	if err := s.analyzeFiles(ctx, run); err != nil {
		return nil, err
	}
	run.advance(StageFilesAnalyzed, "structures", len(run.slice.FileStructures), "indexes", len(run.slice.FileIndexes))

	run.advance(StageDone)
	return run.slice, nil
}

func (s *Slicer) resolveArgs(ctx context.Context, dir string) ([]string, error) {
	if override := compilerargs.SplitArgs(s.opts.CompilerArgs); len(override) > 0 {
		if sdk := strings.TrimSpace(s.opts.SDKArgs); sdk != "" && !slices.Contains(override, sdkFlag) {
			override = append(override, sdkFlag, sdk)
		}
		slog.Debug("using compiler argument override", "project", dir, "args", len(override))
		return override, nil
	}

	if err := s.toolchain.Clean(ctx, dir); err != nil {
		slog.Warn("swift package clean failed", "project", dir, "error", err)
	}
	transcript, buildErr := s.toolchain.VerboseBuild(ctx, dir)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if buildErr != nil {
		slog.Warn("verbose build failed, scanning its transcript anyway", "project", dir, "error", buildErr)
	}

	result := compilerargs.Extract(transcript, strings.Fields(s.opts.ExtraArgs))
	if result.Empty() {
		guidance := NoTranscriptGuidance(s.opts.InContainer)
		var err error
		if buildErr != nil {
			err = errors.Wrap(buildErr, errors.CodeNoTranscript, guidance)
		} else {
			err = errors.New(errors.CodeNoTranscript, guidance)
		}
		return nil, errors.AddContext(err, errors.CtxPath, dir)
	}

	if !result.Params.Has(sdkFlag) && !fileExists(filepath.Join(dir, swiftVersionFile)) {
		slog.Debug("TIP: Unable to detect the swift sdk needed to build this project. Try running the swift build command to check if this project builds successfully.", "project", dir)
		slog.Debug("Check whether the project requires xcodebuild to build. Such projects are currently unsupported.", "project", dir)
	}
	slog.Debug("detected swift compiler arguments", "project", dir, "args", strings.Join(result.CompilerArgs, " "))
	return result.CompilerArgs, nil
}

func (s *Slicer) collectManifest(ctx context.Context, dir string) *semantics.PackageMetadata {
	raw, err := s.toolchain.DumpPackage(ctx, dir)
	if err != nil {
		slog.Warn("swift package dump-package failed", "project", dir, "error", err)
		return nil
	}
	meta, ok, err := semantics.ParseManifest(raw)
	if err != nil {
		slog.Warn("unable to parse package manifest", "project", dir, "error", err)
		return nil
	}
	if !ok {
		slog.Warn("swift package dump-package returned no output", "project", dir)
		return nil
	}
	return meta
}

func (s *Slicer) collectBuildSymbols(ctx context.Context, run *sliceRun) error {
	buildRoot := filepath.Join(run.dir, s.opts.BuildDir)
	maps, err := s.scanner.Glob(buildRoot, outputMapPattern)
	if err != nil {
		slog.Warn("unable to scan build directory", "path", buildRoot, "error", err)
		return nil
	}

	results := make([]*semantics.ModuleSymbols, len(maps))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, mapPath := range maps {
		i, mapPath := i, mapPath
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			symbols, err := semantics.ParseOutputFileMap(mapPath)
			if err != nil {
				observability.UnitFailuresTotal.WithLabelValues("build_map").Inc()
				slog.Warn("skipping unreadable output file map", "path", mapPath, "error", err)
				return nil
			}
			results[i] = symbols
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, symbols := range results {
		if symbols == nil || semantics.IsTestModule(symbols.ModuleName) {
			continue
		}
		run.slice.BuildSymbols[symbols.ModuleName] = symbols.ModuleSymbols
	}
	return nil
}

// ModuleUnion lists the modules to introspect: the root module, every target
// reference and every module with a build map, minus test modules.
func ModuleUnion(meta *semantics.PackageMetadata, buildSymbols map[string][]string) []string {
	var declared []string
	if meta != nil {
		declared = append(declared, meta.RootModule)
		declared = append(declared, meta.TargetRefs()...)
	}
	all := util.UniqueSorted(declared, util.SortedStringKeys(buildSymbols))
	modules := all[:0]
	for _, name := range all {
		if !semantics.IsTestModule(name) {
			modules = append(modules, name)
		}
	}
	return modules
}

func (s *Slicer) introspectModules(ctx context.Context, run *sliceRun) error {
	modules := ModuleUnion(run.slice.PackageMetadata, run.slice.BuildSymbols)
	local := localModules(run.slice.PackageMetadata)

	results := make([]*semantics.ModuleInfo, len(modules))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, module := range modules {
		i, module := i, module
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, isLocal := local[module]
			cacheable := local != nil && !isLocal
			results[i] = s.moduleInfo(ctx, run.dir, module, run.slice.CompilerArgs, cacheable)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, info := range results {
		if info != nil {
			run.slice.ModuleInfos[modules[i]] = info
		}
	}
	return nil
}

// localModules returns the package's own targets, whose module info changes
// with every edit. nil means the manifest is unknown and nothing is cacheable.
func localModules(meta *semantics.PackageMetadata) map[string]struct{} {
	if meta == nil {
		return nil
	}
	local := map[string]struct{}{strings.TrimSpace(meta.RootModule): {}}
	for _, name := range meta.DeclaredTargets() {
		local[strings.TrimSpace(name)] = struct{}{}
	}
	return local
}

func moduleCacheKey(dir, module string, args []string) string {
	return dir + "\x00" + module + "\x00" + strings.Join(args, "\x1f")
}

func (s *Slicer) moduleInfo(ctx context.Context, dir, module string, args []string, cacheable bool) *semantics.ModuleInfo {
	key := moduleCacheKey(dir, module, args)
	if cacheable && s.modules != nil {
		if info, ok := s.modules.Get(key); ok {
			observability.ModuleCacheHitsTotal.Inc()
			return info
		}
	}

	raw, err := s.toolchain.ModuleInfo(ctx, dir, module, args)
	if err != nil {
		observability.UnitFailuresTotal.WithLabelValues("module").Inc()
		slog.Warn("unable to obtain the semantic context for the module", "module", module, "project", dir, "error", err)
		return nil
	}
	info, ok, err := semantics.ParseModuleInfo(raw)
	if err != nil || !ok {
		observability.UnitFailuresTotal.WithLabelValues("module").Inc()
		slog.Warn("unable to obtain the semantic context for the module", "module", module, "project", dir, "error", err)
		return nil
	}

	if cacheable && s.modules != nil {
		s.modules.Add(key, info)
	}
	return info
}

// ForgetProject drops every cached module of projectDir, e.g. after its
// manifest or resolved dependencies change.
func (s *Slicer) ForgetProject(projectDir string) int {
	if s.modules == nil {
		return 0
	}
	prefix := projectDir + "\x00"
	removed := 0
	for _, key := range s.modules.Keys() {
		if strings.HasPrefix(key, prefix) && s.modules.Remove(key) {
			removed++
		}
	}
	return removed
}

// IsSourceCandidate reports whether a scanned .swift file is analyzed.
// Test sources and manifests, versioned ones included, are not.
func IsSourceCandidate(projectDir, path string) bool {
	rel, err := filepath.Rel(projectDir, path)
	if err != nil {
		rel = path
	}
	if strings.Contains(filepath.ToSlash(rel), semantics.TestModuleSuffix) {
		return false
	}
	return !watcher.IsManifest(path)
}

type fileResult struct {
	structure *semantics.FileStructure
	index     *semantics.FileIndex
}

func (s *Slicer) analyzeFiles(ctx context.Context, run *sliceRun) error {
	scanned, err := s.scanner.Glob(run.dir, sourcePattern)
	if err != nil {
		slog.Warn("unable to scan swift sources", "project", run.dir, "error", err)
		return nil
	}
	files := make([]string, 0, len(scanned))
	for _, path := range scanned {
		if IsSourceCandidate(run.dir, path) {
			files = append(files, path)
		}
	}

	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.analyzeFile(ctx, path, run.slice.CompilerArgs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, res := range results {
		if res.structure != nil {
			run.slice.FileStructures[files[i]] = res.structure
		}
		if res.index != nil {
			run.slice.FileIndexes[files[i]] = res.index
		}
	}
	return nil
}

func (s *Slicer) analyzeFile(ctx context.Context, path string, args []string) fileResult {
	var res fileResult

	if raw, err := s.toolchain.Structure(ctx, path); err != nil {
		observability.UnitFailuresTotal.WithLabelValues("structure").Inc()
		slog.Warn("sourcekitten structure failed", "path", path, "error", err)
	} else if structure, ok, err := semantics.ParseStructure(raw); err != nil {
		observability.UnitFailuresTotal.WithLabelValues("structure").Inc()
		slog.Warn("unable to parse file structure", "path", path, "error", err)
	} else if ok {
		res.structure = structure
	}

	if raw, err := s.toolchain.Index(ctx, path, args); err != nil {
		observability.UnitFailuresTotal.WithLabelValues("index").Inc()
		slog.Warn("sourcekitten index failed", "path", path, "error", err)
	} else if index, ok, err := semantics.ParseIndex(raw); err != nil {
		observability.UnitFailuresTotal.WithLabelValues("index").Inc()
		slog.Warn("unable to parse file index", "path", path, "error", err)
	} else if ok {
		res.index = index
	}

	return res
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
