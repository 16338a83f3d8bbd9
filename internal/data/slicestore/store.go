// Package slicestore keeps a SQLite history of slicing runs.
package slicestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// Fixed width so timestamps sort lexically.
	timeLayout  = "2006-01-02T15:04:05.000000000Z07:00"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// NewRunID returns an identifier shared by every project of one pass.
func NewRunID() string {
	return uuid.NewString()
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("slice store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("slice store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create slice store directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	// busy_timeout + WAL keep watch-mode writes from failing on lock contention.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite slice store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite slice store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun upserts one project row of a run.
func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ProjectKey = strings.TrimSpace(run.ProjectKey)
	if run.ProjectKey == "" {
		return fmt.Errorf("run project key must not be empty")
	}
	if strings.TrimSpace(run.RunID) == "" {
		run.RunID = NewRunID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.SchemaVersion == 0 {
		run.SchemaVersion = SchemaVersion
	}
	if run.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported run schema version %d", run.SchemaVersion)
	}

	finished := ""
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(timeLayout)
	}

	query := `
INSERT INTO slice_runs (
  run_id, project_key, schema_version, started_at_utc, finished_at_utc, status, error_code,
  compiler_arg_count, module_count, build_module_count, file_count, indexed_file_count,
  output_path, payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, project_key) DO UPDATE SET
  schema_version=excluded.schema_version,
  started_at_utc=excluded.started_at_utc,
  finished_at_utc=excluded.finished_at_utc,
  status=excluded.status,
  error_code=excluded.error_code,
  compiler_arg_count=excluded.compiler_arg_count,
  module_count=excluded.module_count,
  build_module_count=excluded.build_module_count,
  file_count=excluded.file_count,
  indexed_file_count=excluded.indexed_file_count,
  output_path=excluded.output_path,
  payload=excluded.payload
`
	return s.withRetry("save run", func() error {
		_, err := s.db.Exec(
			query,
			run.RunID,
			run.ProjectKey,
			run.SchemaVersion,
			run.StartedAt.UTC().Format(timeLayout),
			finished,
			run.Status,
			run.ErrorCode,
			run.CompilerArgs,
			run.Modules,
			run.BuildModules,
			run.Files,
			run.IndexedFiles,
			run.OutputPath,
			run.Payload,
		)
		return err
	})
}

// LoadRuns returns a project's runs started at or after since, oldest first.
func (s *Store) LoadRuns(projectKey string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := `
SELECT
  run_id, project_key, schema_version, started_at_utc, finished_at_utc, status, error_code,
  compiler_arg_count, module_count, build_module_count, file_count, indexed_file_count,
  output_path, payload
FROM slice_runs
WHERE project_key = ?`
	args := []any{strings.TrimSpace(projectKey)}
	if !since.IsZero() {
		base += " AND started_at_utc >= ?"
		args = append(args, since.UTC().Format(timeLayout))
	}
	base += " ORDER BY started_at_utc ASC, run_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(base, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			startedRaw  string
			finishedRaw string
			run         Run
		)
		if err := rows.Scan(
			&run.RunID,
			&run.ProjectKey,
			&run.SchemaVersion,
			&startedRaw,
			&finishedRaw,
			&run.Status,
			&run.ErrorCode,
			&run.CompilerArgs,
			&run.Modules,
			&run.BuildModules,
			&run.Files,
			&run.IndexedFiles,
			&run.OutputPath,
			&run.Payload,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		started, err := time.Parse(timeLayout, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run start %q: %w", startedRaw, err)
		}
		run.StartedAt = started.UTC()

		if finishedRaw != "" {
			finished, err := time.Parse(timeLayout, finishedRaw)
			if err != nil {
				return nil, fmt.Errorf("parse run finish %q: %w", finishedRaw, err)
			}
			run.FinishedAt = finished.UTC()
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// LatestRun returns the most recent run of a project.
func (s *Store) LatestRun(projectKey string) (Run, bool, error) {
	runs, err := s.LoadRuns(projectKey, time.Time{})
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[len(runs)-1], true, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
