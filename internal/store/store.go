package store

import (
	"context"

	"github.com/polish-dev/polish/internal/models"
)

// Store defines the run-history persistence interface for polish.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)

	// Per-file results
	CreateFileResult(ctx context.Context, res *models.FileResult) error
	ListFileResults(ctx context.Context, runID string) ([]*models.FileResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
