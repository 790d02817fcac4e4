// Package pipeline sequences a run: snapshot candidate files, invoke
// analyzers, aggregate reports, drive the decision controller, and
// summarize.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/decision"
	"github.com/polish-dev/polish/internal/models"
	"github.com/polish-dev/polish/internal/output"
)

// ConfigError reports an invalid run configuration. It is fatal at run
// start, before any file is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config is the validated, explicitly-threaded run configuration.
// Preference and config-file merging happens at the CLI boundary; by
// the time a Coordinator sees a Config it is fully resolved.
type Config struct {
	Mode            decision.Mode
	DefaultAction   decision.Action
	PromptTimeout   time.Duration
	AnalyzerTimeout time.Duration
	MaxFileSize     int64
	Workers         int
	DryRun          bool
}

// Validate checks the configuration before any file is touched.
func (c *Config) Validate() error {
	switch c.Mode {
	case decision.ModeInteractive, decision.ModeAuto, decision.ModePreview, decision.ModeSkip:
	case decision.ModeAsk:
		return &ConfigError{Field: "mode", Reason: "ask must be resolved before the run starts"}
	default:
		return &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}

	switch c.DefaultAction {
	case decision.ActionApply, decision.ActionPreview, decision.ActionSkip:
	default:
		return &ConfigError{Field: "default_action", Reason: fmt.Sprintf("unknown action %q", c.DefaultAction)}
	}

	if c.PromptTimeout <= 0 {
		return &ConfigError{Field: "timeout", Reason: "must be positive"}
	}
	if c.AnalyzerTimeout <= 0 {
		return &ConfigError{Field: "analyzer_timeout", Reason: "must be positive"}
	}
	if c.MaxFileSize <= 0 {
		return &ConfigError{Field: "max_file_size", Reason: "must be positive"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "workers", Reason: "must be at least 1"}
	}
	return nil
}

// RunSummary aggregates the outcome of one run. Aggregation is
// commutative: per-file records carry all counts, so file processing
// order never affects the totals.
type RunSummary struct {
	Mode               string
	Files              []*models.FileResult
	FilesTotal         int
	FilesApplied       int
	FilesClean         int
	FilesSkipped       int
	FilesErrored       int
	SuggestionsApplied int
	SuggestionsDropped int
	Elapsed            time.Duration
}

// Run converts the summary into a persistable run record.
func (s *RunSummary) Run(root string) *models.Run {
	return &models.Run{
		Mode:               s.Mode,
		Root:               root,
		FilesTotal:         s.FilesTotal,
		FilesApplied:       s.FilesApplied,
		FilesClean:         s.FilesClean,
		FilesSkipped:       s.FilesSkipped,
		FilesErrored:       s.FilesErrored,
		SuggestionsApplied: s.SuggestionsApplied,
		SuggestionsDropped: s.SuggestionsDropped,
		Elapsed:            s.Elapsed,
	}
}

// Coordinator runs the enhancement pipeline over a batch of files.
type Coordinator struct {
	Config     Config
	Registry   *analyzer.Registry
	Invoker    analyzer.Invoker
	Controller *decision.Controller
	UI         *output.UI
}

// Run processes every file and returns the aggregated summary. A single
// file's analyzer failure or apply error is recorded in its result and
// never aborts the rest of the batch; only an invalid configuration
// fails the run as a whole. Files are processed concurrently up to
// Config.Workers, except in interactive mode where prompts must not
// interleave.
func (c *Coordinator) Run(ctx context.Context, files []string) (*RunSummary, error) {
	if err := c.Config.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &RunSummary{Mode: string(c.Config.Mode)}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := c.Config.Workers
	if c.Config.Mode == decision.ModeInteractive {
		workers = 1
	}

	results := make([]*models.FileResult, len(files))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			rec, quit := c.processFile(runCtx, file)
			if quit {
				// Operator quit the batch: unstarted files resolve as
				// skipped, in-flight analyzers are killed.
				cancel()
			}
			mu.Lock()
			results[i] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range results {
		summary.add(rec)
	}
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// processFile resolves one file end to end. The returned quit flag is
// set when the operator chose to abort the whole batch.
func (c *Coordinator) processFile(ctx context.Context, file string) (*models.FileResult, bool) {
	start := time.Now()
	rec := &models.FileResult{Path: file}

	finish := func() (*models.FileResult, bool) {
		rec.Elapsed = time.Since(start)
		return rec, false
	}

	if ctx.Err() != nil {
		rec.Outcome = models.OutcomeSkipped
		rec.Message = "run cancelled"
		return finish()
	}

	info, err := os.Stat(file)
	if err != nil {
		rec.Outcome = models.OutcomeError
		rec.Message = fmt.Sprintf("stat: %v", err)
		return finish()
	}

	// Pure size guard: oversized files never reach an analyzer.
	if info.Size() > c.Config.MaxFileSize {
		rec.Outcome = models.OutcomeSkipped
		rec.Message = fmt.Sprintf("too large (%d bytes > %d)", info.Size(), c.Config.MaxFileSize)
		c.UI.VerboseLog("%s: %s", file, rec.Message)
		return finish()
	}

	data, err := os.ReadFile(file)
	if err != nil {
		rec.Outcome = models.OutcomeError
		rec.Message = fmt.Sprintf("read: %v", err)
		return finish()
	}
	content := string(data)

	// Each analyzer is fully resolved before the next runs.
	var analyzerResults []*analyzer.Result
	for _, def := range c.Registry.Enabled() {
		res := c.Invoker.Invoke(ctx, def, file, c.Config.AnalyzerTimeout)
		c.UI.VerboseLog("%s: %s %s in %s", file, def.Name, res.Status, res.Elapsed.Round(time.Millisecond))
		analyzerResults = append(analyzerResults, res)
	}

	if ctx.Err() != nil {
		rec.Outcome = models.OutcomeSkipped
		rec.Message = "run cancelled"
		return finish()
	}

	report := decision.BuildReport(file, content, analyzerResults)
	rec.Total = len(report.Suggestions)

	switch report.Status {
	case decision.ReportClean:
		rec.Outcome = models.OutcomeClean
		c.UI.VerboseLog("%s: clean", file)
		return finish()
	case decision.ReportError:
		rec.Outcome = models.OutcomeError
		rec.Message = joinDiagnostics(analyzerResults)
		return finish()
	}

	out := c.Controller.Resolve(ctx, report)
	rec.Applied = out.Applied
	rec.Dropped = len(out.Dropped)
	rec.BackupPath = out.BackupPath
	rec.Message = out.Reason

	switch out.State {
	case decision.StateApplied:
		rec.Outcome = models.OutcomeApplied
	case decision.StateSkipped:
		rec.Outcome = models.OutcomeSkipped
	case decision.StateAborted:
		rec.Outcome = models.OutcomeAborted
		if out.Err != nil {
			rec.Message = out.Err.Error()
		}
		rec.Elapsed = time.Since(start)
		return rec, out.Quit
	case decision.StateError:
		rec.Outcome = models.OutcomeError
		rec.Message = out.Err.Error()
	}
	return finish()
}

func (s *RunSummary) add(rec *models.FileResult) {
	s.Files = append(s.Files, rec)
	s.FilesTotal++
	s.SuggestionsApplied += rec.Applied
	s.SuggestionsDropped += rec.Dropped

	switch rec.Outcome {
	case models.OutcomeApplied:
		s.FilesApplied++
	case models.OutcomeClean:
		s.FilesClean++
	case models.OutcomeSkipped, models.OutcomeAborted:
		s.FilesSkipped++
	case models.OutcomeError:
		s.FilesErrored++
	}
}

func joinDiagnostics(results []*analyzer.Result) string {
	var parts []string
	for _, res := range results {
		if res.Diagnostic != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", res.Analyzer, res.Diagnostic))
		}
	}
	if len(parts) == 0 {
		return "all analyzers failed"
	}
	return strings.Join(parts, "; ")
}
