package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polish-dev/polish/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{
		Mode:               "auto",
		Root:               "/tmp/repo",
		FilesTotal:         4,
		FilesApplied:       2,
		FilesClean:         1,
		FilesSkipped:       1,
		SuggestionsApplied: 5,
		SuggestionsDropped: 1,
		Elapsed:            1500 * time.Millisecond,
	}
	err := s.CreateRun(ctx, run)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.StartedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "auto", got.Mode)
	assert.Equal(t, "/tmp/repo", got.Root)
	assert.Equal(t, 4, got.FilesTotal)
	assert.Equal(t, 2, got.FilesApplied)
	assert.Equal(t, 5, got.SuggestionsApplied)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 3 {
		run := &models.Run{Mode: "auto", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFileResultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{Mode: "interactive"}
	require.NoError(t, s.CreateRun(ctx, run))

	res := &models.FileResult{
		RunID:      run.ID,
		Path:       "/tmp/repo/a.py",
		Outcome:    models.OutcomeApplied,
		Total:      3,
		Applied:    2,
		Dropped:    1,
		BackupPath: "/backups/a.py.20260831T120000.000000000.bak",
		Elapsed:    80 * time.Millisecond,
	}
	require.NoError(t, s.CreateFileResult(ctx, res))
	assert.NotEmpty(t, res.ID)

	results, err := s.ListFileResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeApplied, results[0].Outcome)
	assert.Equal(t, 2, results[0].Applied)
	assert.Equal(t, res.BackupPath, results[0].BackupPath)
}

func TestListFileResults_ScopedToRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run1 := &models.Run{Mode: "auto"}
	run2 := &models.Run{Mode: "auto"}
	require.NoError(t, s.CreateRun(ctx, run1))
	require.NoError(t, s.CreateRun(ctx, run2))

	require.NoError(t, s.CreateFileResult(ctx, &models.FileResult{RunID: run1.ID, Path: "a.py", Outcome: models.OutcomeClean}))
	require.NoError(t, s.CreateFileResult(ctx, &models.FileResult{RunID: run2.ID, Path: "b.py", Outcome: models.OutcomeSkipped}))

	results, err := s.ListFileResults(ctx, run1.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.py", results[0].Path)
}
