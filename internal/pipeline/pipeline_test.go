package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/decision"
	"github.com/polish-dev/polish/internal/models"
	"github.com/polish-dev/polish/internal/output"
	"github.com/polish-dev/polish/internal/patch"
	"github.com/polish-dev/polish/internal/suggest"
)

// stubInvoker returns canned results keyed by file path, recording the
// order and concurrency of invocations.
type stubInvoker struct {
	mu       sync.Mutex
	results  map[string][]*analyzer.Result
	active   int
	peak     int
	invoked  []string
	delay time.Duration
}

func (s *stubInvoker) Invoke(ctx context.Context, def analyzer.Definition, path string, timeout time.Duration) *analyzer.Result {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.invoked = append(s.invoked, path)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	s.active--
	var res *analyzer.Result
	for _, r := range s.results[path] {
		if r.Analyzer == def.Name {
			res = r
		}
	}
	s.mu.Unlock()

	if res == nil {
		return &analyzer.Result{Analyzer: def.Name, Status: analyzer.StatusOK}
	}
	return res
}

func testUI() *output.UI {
	return &output.UI{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func suggestionFor(analyzerName, path string, start int, original, replacement string) *suggest.Suggestion {
	return &suggest.Suggestion{
		ID:              fmt.Sprintf("%s:%d:1", analyzerName, start),
		Analyzer:        analyzerName,
		Category:        suggest.CategoryFormatting,
		Lines:           suggest.LineRange{Start: start, End: start + 1},
		OriginalText:    original,
		ReplacementText: replacement,
		Severity:        suggest.SeverityInfo,
	}
}

func newCoordinator(t *testing.T, cfg Config, inv analyzer.Invoker, backupDir string) *Coordinator {
	t.Helper()
	reg, err := analyzer.NewRegistry([]analyzer.Definition{
		{Name: "formatter", Command: "formatter"},
	})
	require.NoError(t, err)

	ui := testUI()
	return &Coordinator{
		Config:   cfg,
		Registry: reg,
		Invoker:  inv,
		UI:       ui,
		Controller: &decision.Controller{
			Mode:          cfg.Mode,
			Timeout:       cfg.PromptTimeout,
			DefaultAction: cfg.DefaultAction,
			Committer:     &patch.Committer{BackupDir: backupDir},
			Priority:      reg.Priority,
			UI:            ui,
			DryRun:        cfg.DryRun,
		},
	}
}

func autoConfig() Config {
	return Config{
		Mode:            decision.ModeAuto,
		DefaultAction:   decision.ActionSkip,
		PromptTimeout:   5 * time.Second,
		AnalyzerTimeout: 5 * time.Second,
		MaxFileSize:     1 << 20,
		Workers:         1,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unresolved ask mode", func(c *Config) { c.Mode = decision.ModeAsk }, "mode"},
		{"unknown mode", func(c *Config) { c.Mode = "yolo" }, "mode"},
		{"quit as default action", func(c *Config) { c.DefaultAction = decision.ActionQuit }, "default_action"},
		{"zero prompt timeout", func(c *Config) { c.PromptTimeout = 0 }, "timeout"},
		{"zero analyzer timeout", func(c *Config) { c.AnalyzerTimeout = 0 }, "analyzer_timeout"},
		{"zero max file size", func(c *Config) { c.MaxFileSize = 0 }, "max_file_size"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := autoConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}

	cfg := autoConfig()
	assert.NoError(t, cfg.Validate())
}

func TestRunInvalidConfigTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello\n")

	cfg := autoConfig()
	cfg.Mode = "bogus"
	inv := &stubInvoker{}
	c := newCoordinator(t, cfg, inv, filepath.Join(dir, "backups"))

	_, err := c.Run(context.Background(), []string{path})
	require.Error(t, err)
	assert.Empty(t, inv.invoked)
}

func TestRunAppliesSuggestions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "def f(a,b):\n    return a\n")

	inv := &stubInvoker{results: map[string][]*analyzer.Result{
		path: {{
			Analyzer: "formatter",
			Status:   analyzer.StatusOK,
			Suggestions: []*suggest.Suggestion{
				suggestionFor("formatter", path, 0, "def f(a,b):", "def f(a, b):"),
			},
		}},
	}}
	c := newCoordinator(t, autoConfig(), inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesTotal)
	assert.Equal(t, 1, summary.FilesApplied)
	assert.Equal(t, 1, summary.SuggestionsApplied)
	require.Len(t, summary.Files, 1)
	rec := summary.Files[0]
	assert.Equal(t, models.OutcomeApplied, rec.Outcome)
	assert.NotEmpty(t, rec.BackupPath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "def f(a, b):\n    return a\n", string(data))
}

func TestRunCleanFileSkipsController(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "fine as is\n")

	inv := &stubInvoker{results: map[string][]*analyzer.Result{
		path: {{Analyzer: "formatter", Status: analyzer.StatusOK}},
	}}
	c := newCoordinator(t, autoConfig(), inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesClean)
	assert.Equal(t, models.OutcomeClean, summary.Files[0].Outcome)
}

func TestRunSizeGuardSkipsAnalyzers(t *testing.T) {
	dir := t.TempDir()
	big := writeFile(t, dir, "big.txt", "0123456789\n")
	small := writeFile(t, dir, "small.txt", "ok\n")

	cfg := autoConfig()
	cfg.MaxFileSize = 5
	inv := &stubInvoker{}
	c := newCoordinator(t, cfg, inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), []string{big, small})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 1, summary.FilesClean)
	assert.Equal(t, []string{small}, inv.invoked)

	for _, rec := range summary.Files {
		if rec.Path == big {
			assert.Equal(t, models.OutcomeSkipped, rec.Outcome)
			assert.Contains(t, rec.Message, "too large")
		}
	}
}

func TestRunIsolatesPerFileFailures(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "missing.txt")
	good := writeFile(t, dir, "good.py", "x=1\n")

	inv := &stubInvoker{results: map[string][]*analyzer.Result{
		good: {{
			Analyzer: "formatter",
			Status:   analyzer.StatusOK,
			Suggestions: []*suggest.Suggestion{
				suggestionFor("formatter", good, 0, "x=1", "x = 1"),
			},
		}},
	}}
	c := newCoordinator(t, autoConfig(), inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), []string{broken, good})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesTotal)
	assert.Equal(t, 1, summary.FilesErrored)
	assert.Equal(t, 1, summary.FilesApplied)

	data, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))
}

func TestRunAllAnalyzersFailedIsError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content\n")

	inv := &stubInvoker{results: map[string][]*analyzer.Result{
		path: {{Analyzer: "formatter", Status: analyzer.StatusError, Diagnostic: "exit status 2"}},
	}}
	c := newCoordinator(t, autoConfig(), inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesErrored)
	assert.Contains(t, summary.Files[0].Message, "formatter: exit status 2")
}

func TestRunPreviewNeverMutates(t *testing.T) {
	dir := t.TempDir()
	original := "def f(a,b):\n"
	path := writeFile(t, dir, "a.py", original)

	inv := &stubInvoker{results: map[string][]*analyzer.Result{
		path: {{
			Analyzer: "formatter",
			Status:   analyzer.StatusOK,
			Suggestions: []*suggest.Suggestion{
				suggestionFor("formatter", path, 0, "def f(a,b):", "def f(a, b):"),
			},
		}},
	}}
	cfg := autoConfig()
	cfg.Mode = decision.ModePreview
	c := newCoordinator(t, cfg, inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 0, summary.SuggestionsApplied)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestRunWorkerLimit(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 6; i++ {
		files = append(files, writeFile(t, dir, fmt.Sprintf("f%d.txt", i), "body\n"))
	}

	cfg := autoConfig()
	cfg.Workers = 2
	inv := &stubInvoker{delay: 30 * time.Millisecond}
	c := newCoordinator(t, cfg, inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.FilesTotal)
	assert.LessOrEqual(t, inv.peak, 2)
	assert.Greater(t, inv.peak, 1)
}

func TestRunCancellation(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 4; i++ {
		files = append(files, writeFile(t, dir, fmt.Sprintf("f%d.txt", i), "body\n"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := &stubInvoker{}
	c := newCoordinator(t, autoConfig(), inv, filepath.Join(dir, "backups"))

	summary, err := c.Run(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.FilesSkipped)
	assert.Empty(t, inv.invoked)
	for _, rec := range summary.Files {
		assert.Equal(t, "run cancelled", rec.Message)
	}
}

// quitPrompter quits on the first prompt it sees.
type quitPrompter struct{}

func (quitPrompter) FileDecision(context.Context, *decision.Report) (decision.Choice, error) {
	return decision.Choice{Action: decision.ActionQuit}, nil
}

func (quitPrompter) RunMode() (decision.Mode, bool, error) {
	return decision.ModeInteractive, false, nil
}

func TestRunQuitAbortsRemainingFiles(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 3; i++ {
		files = append(files, writeFile(t, dir, fmt.Sprintf("f%d.py", i), "x=1\n"))
	}

	results := make(map[string][]*analyzer.Result, len(files))
	for _, f := range files {
		results[f] = []*analyzer.Result{{
			Analyzer: "formatter",
			Status:   analyzer.StatusOK,
			Suggestions: []*suggest.Suggestion{
				suggestionFor("formatter", f, 0, "x=1", "x = 1"),
			},
		}}
	}

	cfg := autoConfig()
	cfg.Mode = decision.ModeInteractive
	inv := &stubInvoker{results: results}
	c := newCoordinator(t, cfg, inv, filepath.Join(dir, "backups"))
	c.Controller.Prompter = quitPrompter{}

	summary, err := c.Run(context.Background(), files)
	require.NoError(t, err)

	var aborted, skipped int
	for _, rec := range summary.Files {
		switch rec.Outcome {
		case models.OutcomeAborted:
			aborted++
		case models.OutcomeSkipped:
			skipped++
		}
	}
	assert.Equal(t, 1, aborted)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 0, summary.SuggestionsApplied)

	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.Equal(t, "x=1\n", string(data))
	}
}

func TestSummaryRunRecord(t *testing.T) {
	s := &RunSummary{
		Mode:               "auto",
		FilesTotal:         3,
		FilesApplied:       1,
		FilesClean:         1,
		FilesSkipped:       1,
		SuggestionsApplied: 2,
		Elapsed:            time.Second,
	}
	run := s.Run("/repo")
	assert.Equal(t, "auto", run.Mode)
	assert.Equal(t, "/repo", run.Root)
	assert.Equal(t, 3, run.FilesTotal)
	assert.Equal(t, 2, run.SuggestionsApplied)
	assert.Equal(t, time.Second, run.Elapsed)
}
