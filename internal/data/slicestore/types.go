package slicestore

import "time"

// SchemaVersion is the run row layout this package reads and writes.
const SchemaVersion = 1

// Run statuses.
const (
	StatusDone    = "done"
	StatusAborted = "aborted"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Run is one project's result within a slicing pass. Several runs share a
// RunID when a pass covers more than one project.
type Run struct {
	RunID         string
	ProjectKey    string
	SchemaVersion int
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string
	ErrorCode     string
	CompilerArgs  int
	Modules       int
	BuildModules  int
	Files         int
	IndexedFiles  int
	OutputPath    string
	Payload       []byte
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
