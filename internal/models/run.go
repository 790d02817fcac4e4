package models

import "time"

// Run is one persisted pipeline execution over a batch of files.
type Run struct {
	ID                 string
	Mode               string
	Root               string // repo root or cwd the run was started from
	FilesTotal         int
	FilesApplied       int
	FilesClean         int
	FilesSkipped       int
	FilesErrored       int
	SuggestionsApplied int
	SuggestionsDropped int
	Elapsed            time.Duration
	StartedAt          time.Time
}

// FileOutcome is the terminal result recorded for one file in a run.
type FileOutcome string

const (
	OutcomeApplied FileOutcome = "applied"
	OutcomeClean   FileOutcome = "clean"
	OutcomeSkipped FileOutcome = "skipped"
	OutcomeError   FileOutcome = "error"
	OutcomeAborted FileOutcome = "aborted"
)

// FileResult is the per-file record of a run: what happened, how many
// suggestions were involved, and where the backup went if one was made.
type FileResult struct {
	ID         string
	RunID      string
	Path       string
	Outcome    FileOutcome
	Total      int
	Applied    int
	Dropped    int
	BackupPath string
	Message    string
	Elapsed    time.Duration
	CreatedAt  time.Time
}
