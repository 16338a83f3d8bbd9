package ports

import (
	"context"
	"swiftslice/internal/data/slicestore"
	"time"
)

// Toolchain abstracts the Swift package manager and SourceKitten. Each method
// is one scoped subprocess call that returns raw output or a typed error.
type Toolchain interface {
	Clean(ctx context.Context, projectDir string) error
	VerboseBuild(ctx context.Context, projectDir string) (string, error)
	DumpPackage(ctx context.Context, projectDir string) ([]byte, error)
	ModuleInfo(ctx context.Context, projectDir, module string, compilerArgs []string) ([]byte, error)
	Structure(ctx context.Context, filePath string) ([]byte, error)
	Index(ctx context.Context, filePath string, compilerArgs []string) ([]byte, error)
}

// FileScanner finds files below root whose relative path matches pattern.
type FileScanner interface {
	Glob(root, pattern string) ([]string, error)
}

// SliceStore persists a summary of every slicing run.
type SliceStore interface {
	SaveRun(run slicestore.Run) error
	LoadRuns(projectKey string, since time.Time) ([]slicestore.Run, error)
	LatestRun(projectKey string) (slicestore.Run, bool, error)
}

// SliceRequest drives one multi-project slicing pass.
type SliceRequest struct {
	Root         string
	MultiProject bool
}

// ProjectOutcome summarizes one project of a pass.
type ProjectOutcome struct {
	ProjectDir string
	OutputPath string
	Status     string
	Err        error
}

// SliceResult summarizes a completed pass.
type SliceResult struct {
	RunID    string
	Projects []ProjectOutcome
	Duration time.Duration
}
