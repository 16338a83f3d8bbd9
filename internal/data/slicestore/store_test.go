package slicestore

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs", "swiftslice.db")
	store, err := Open(path, time.Second)
	require.NoError(t, err)
	require.Equal(t, path, store.Path())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SaveLoadAndUpsert(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	runID := NewRunID()
	first := Run{
		RunID:        runID,
		ProjectKey:   "/src/HAKit",
		StartedAt:    base,
		FinishedAt:   base.Add(90 * time.Second),
		Status:       StatusDone,
		CompilerArgs: 38,
		Modules:      3,
		BuildModules: 4,
		Files:        12,
		IndexedFiles: 11,
		OutputPath:   "out/HAKit.slices.json",
		Payload:      []byte(`{"projectDir":"/src/HAKit"}`),
	}
	require.NoError(t, store.SaveRun(first))

	// Same run id and project upserts.
	updated := first
	updated.Modules = 5
	require.NoError(t, store.SaveRun(updated))

	later := Run{
		ProjectKey: "/src/HAKit",
		StartedAt:  base.Add(2 * time.Hour),
		Status:     StatusAborted,
		ErrorCode:  "NO_TRANSCRIPT",
	}
	require.NoError(t, store.SaveRun(later))
	require.NoError(t, store.SaveRun(Run{ProjectKey: "/src/Other", StartedAt: base, Status: StatusDone}))

	all, err := store.LoadRuns("/src/HAKit", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, runID, all[0].RunID)
	assert.Equal(t, 5, all[0].Modules)
	assert.Equal(t, 90*time.Second, all[0].Duration())
	assert.Equal(t, first.Payload, all[0].Payload)
	assert.Equal(t, SchemaVersion, all[0].SchemaVersion)

	assert.NotEmpty(t, all[1].RunID)
	assert.Equal(t, StatusAborted, all[1].Status)
	assert.Equal(t, "NO_TRANSCRIPT", all[1].ErrorCode)
	assert.True(t, all[1].FinishedAt.IsZero())
	assert.Zero(t, all[1].Duration())

	recent, err := store.LoadRuns("/src/HAKit", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, StatusAborted, recent[0].Status)

	latest, ok, err := store.LatestRun("/src/HAKit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, all[1].RunID, latest.RunID)

	_, ok, err = store.LatestRun("/src/none")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RejectsInvalidRuns(t *testing.T) {
	store := openTestStore(t)

	assert.Error(t, store.SaveRun(Run{Status: StatusDone}))
	assert.Error(t, store.SaveRun(Run{ProjectKey: "p", SchemaVersion: SchemaVersion + 1}))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open("  ", 0)
	assert.Error(t, err)

	dir := t.TempDir()
	_, err = Open(dir, 0)
	assert.Error(t, err)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")
	store, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, EnsureSchema(db))
	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestEnsureSchema_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	store, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	require.NoError(t, err)

	assert.Error(t, EnsureSchema(db))
}

func TestIsCorruptError(t *testing.T) {
	assert.False(t, IsCorruptError(nil))
	assert.True(t, IsCorruptError(os.ErrInvalid))
	assert.False(t, IsCorruptError(sql.ErrConnDone))
}

func TestOpen_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swiftslice.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not an sqlite file, just plain text padding the header out"), 0o644))

	_, err := Open(path, time.Second)
	require.Error(t, err)
	assert.True(t, IsCorruptError(err))
}
