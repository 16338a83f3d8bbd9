package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"swiftslice/internal/core/app"
	"swiftslice/internal/core/config"
	"swiftslice/internal/core/ports"
	"swiftslice/internal/data/slicestore"
	"swiftslice/internal/engine/semantics"
	"swiftslice/internal/engine/toolchain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	semanticsFixtures = "../../engine/semantics/testdata"
	argsFixtures      = "../../engine/compilerargs/testdata"
)

func readFixture(t *testing.T, dir, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return data
}

func copyFixture(t *testing.T, src, dst string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, readFixture(t, filepath.Dir(src), filepath.Base(src)), 0o644))
}

// scriptedRunner answers toolchain invocations from recorded fixtures.
type scriptedRunner struct {
	t       *testing.T
	mu      sync.Mutex
	invoked []string
}

func (r *scriptedRunner) run(ctx context.Context, dir, name string, args []string, env []string) (toolchain.Output, error) {
	r.mu.Lock()
	r.invoked = append(r.invoked, name+" "+strings.Join(args, " "))
	r.mu.Unlock()

	switch {
	case name == "swift" && args[0] == "package" && args[1] == "clean":
		return toolchain.Output{}, nil
	case name == "swift" && args[0] == "build":
		return toolchain.Output{Stdout: readFixture(r.t, argsFixtures, "swift-build-output1.txt")}, nil
	case name == "swift" && args[1] == "dump-package":
		return toolchain.Output{Stdout: readFixture(r.t, semanticsFixtures, "swift-dump-package.json")}, nil
	case name == "sourcekitten" && args[0] == "module-info":
		return toolchain.Output{Stdout: readFixture(r.t, semanticsFixtures, "swift-module-info.json")}, nil
	case name == "sourcekitten" && args[0] == "structure":
		return toolchain.Output{Stdout: readFixture(r.t, semanticsFixtures, "swift-structure-array.json")}, nil
	case name == "sourcekitten" && args[0] == "index":
		return toolchain.Output{Stdout: readFixture(r.t, semanticsFixtures, "swift-index.json")}, nil
	}
	return toolchain.Output{}, fmt.Errorf("unexpected invocation %s %v", name, args)
}

func (r *scriptedRunner) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, inv := range r.invoked {
		if strings.HasPrefix(inv, prefix) {
			n++
		}
	}
	return n
}

func createHAKitProject(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"Package.swift":                            "// swift-tools-version:5.3\n",
		"Sources/HAKit/HAConnection.swift":         "public protocol HAConnection {}\n",
		"Sources/HAKit/Requests/HARequest.swift":   "public struct HARequest {}\n",
		"Tests/HAKitTests/HAConnectionTests.swift": "final class HAConnectionTests {}\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	debug := filepath.Join(dir, ".build", "arm64-apple-macosx", "debug")
	copyFixture(t, filepath.Join(semanticsFixtures, "HAKit.build", "output-file-map.json"), filepath.Join(debug, "HAKit.build", "output-file-map.json"))
	copyFixture(t, filepath.Join(semanticsFixtures, "output-file-map.json"), filepath.Join(debug, "Starscream.build", "output-file-map.json"))
}

func TestFullPipelineIntegration(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "HAKit")
	createHAKitProject(t, projectDir)

	cfg := config.DefaultConfig()
	cfg.DB.Enabled = true
	cfg.DB.Path = filepath.Join(t.TempDir(), "swiftslice.db")
	cfg.Slice.Workers = 2

	store, err := slicestore.Open(cfg.DB.Path, cfg.DB.BusyTimeout)
	require.NoError(t, err)
	defer store.Close()

	runner := &scriptedRunner{t: t}
	tc := toolchain.NewWithRunner(toolchain.Options{}, runner.run)
	outDir := t.TempDir()

	appInstance, err := app.NewWithDependencies(cfg, app.Dependencies{Toolchain: tc, Store: store, OutputDir: outDir})
	require.NoError(t, err)

	result, err := appInstance.Run(context.Background(), ports.SliceRequest{Root: projectDir})
	require.NoError(t, err)
	require.Len(t, result.Projects, 1)
	assert.Equal(t, slicestore.StatusDone, result.Projects[0].Status)

	data, err := os.ReadFile(filepath.Join(outDir, "HAKit.slices.json"))
	require.NoError(t, err)
	var slice semantics.Slice
	require.NoError(t, json.Unmarshal(data, &slice))

	assert.NotEmpty(t, slice.CompilerArgs)
	require.NotNil(t, slice.PackageMetadata)
	assert.Equal(t, "HAKit", slice.PackageMetadata.RootModule)
	assert.ElementsMatch(t, []string{"HAKit", "Starscream"}, mapKeys(slice.BuildSymbols))
	assert.ElementsMatch(t, []string{"HAKit", "HAKit_Mocks", "HAKit_PromiseKit", "Starscream"}, mapKeys(slice.ModuleInfos))

	sources := []string{
		filepath.Join(projectDir, "Sources", "HAKit", "HAConnection.swift"),
		filepath.Join(projectDir, "Sources", "HAKit", "Requests", "HARequest.swift"),
	}
	assert.ElementsMatch(t, sources, mapKeys(slice.FileStructures))
	assert.ElementsMatch(t, sources, mapKeys(slice.FileIndexes))
	assert.Equal(t, []string{
		"DispatchQueue",
		"Equatable",
		"HAResponseController",
		"HAResponseControllerDelegate?",
		"HAResponseControllerPhase",
		"Starscream.WebSocketEvent",
	}, slice.FileStructures[sources[0]].ReferredTypes)

	assert.Equal(t, 1, runner.count("swift build"))
	assert.Equal(t, 4, runner.count("sourcekitten module-info"))
	assert.Equal(t, 2, runner.count("sourcekitten index"))

	run, ok, err := store.LatestRun(projectDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.RunID, run.RunID)
	assert.Equal(t, slicestore.StatusDone, run.Status)
	assert.Equal(t, 4, run.Modules)
	assert.Equal(t, 2, run.IndexedFiles)
	assert.Empty(t, run.Payload)
}

func TestPipelineIntegration_OverrideSkipsBuild(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "HAKit")
	createHAKitProject(t, projectDir)

	t.Setenv(config.EnvCompilerArgs, "-target arm64-apple-macosx13.0")
	t.Setenv(config.EnvSDKArgs, "/SDKs/MacOSX.sdk")
	cfg := config.DefaultConfig()
	config.ApplyEnvOverrides(cfg)

	runner := &scriptedRunner{t: t}
	appInstance, err := app.NewWithDependencies(cfg, app.Dependencies{
		Toolchain: toolchain.NewWithRunner(toolchain.Options{}, runner.run),
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)

	_, err = appInstance.Run(context.Background(), ports.SliceRequest{Root: projectDir})
	require.NoError(t, err)

	assert.Zero(t, runner.count("swift build"))
	assert.Zero(t, runner.count("swift package clean"))
	assert.Equal(t, 2, runner.count("sourcekitten index --file"))
	assert.Positive(t, runner.count("sourcekitten module-info --module HAKit -- -target arm64-apple-macosx13.0 -sdk /SDKs/MacOSX.sdk"))
}

func mapKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
