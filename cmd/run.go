package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/decision"
	"github.com/polish-dev/polish/internal/gitutil"
	"github.com/polish-dev/polish/internal/output"
	"github.com/polish-dev/polish/internal/patch"
	"github.com/polish-dev/polish/internal/pipeline"
)

var (
	runMode        string
	runTimeout     time.Duration
	runMaxFileSize int64
	runWorkers     int
)

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Run analyzers over files and apply their suggestions",
	Long: `Run the configured analyzers over the given files and apply the
suggestions they produce. Without arguments, the staged files of the
current git repository are processed.

Modes:
  interactive  prompt per file (default answer after --timeout)
  auto         apply everything without prompting
  preview      show what would change, modify nothing
  skip         run analyzers, apply nothing
  ask          ask for the mode once at startup

Mode precedence: --mode flag, then saved preference, then config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context(), args)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "Run mode: interactive, auto, preview, skip, ask")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Prompt timeout before the default action runs (default from config)")
	runCmd.Flags().Int64Var(&runMaxFileSize, "max-file-size", 0, "Skip files larger than this many bytes (default from config)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent files to process (default from config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if reg.Len() == 0 {
		ui.Info("No analyzers configured. Add them under 'analyzers:' in the config file.")
		return nil
	}

	files, err := resolveRunFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Info("Nothing to process (no staged files).")
		return nil
	}

	prompter := decision.NewCLIPrompter(ui)
	mode, err := resolveRunMode(prompter)
	if err != nil {
		return err
	}

	if mode == decision.ModeInteractive && !decision.CanPrompt() {
		ui.Warning("stdin is not a terminal, falling back to preview mode")
		mode = decision.ModePreview
	}

	cfg := pipeline.Config{
		Mode:            mode,
		DefaultAction:   decision.ActionSkip,
		PromptTimeout:   viper.GetDuration("timeout"),
		AnalyzerTimeout: viper.GetDuration("analyzer_timeout"),
		MaxFileSize:     viper.GetInt64("max_file_size"),
		Workers:         viper.GetInt("workers"),
		DryRun:          dryRun,
	}
	if action, err := decision.ParseAction(viper.GetString("default_action")); err == nil {
		cfg.DefaultAction = action
	} else {
		return &pipeline.ConfigError{Field: "default_action", Reason: err.Error()}
	}
	if runTimeout > 0 {
		cfg.PromptTimeout = runTimeout
	}
	if runMaxFileSize > 0 {
		cfg.MaxFileSize = runMaxFileSize
	}
	if runWorkers > 0 {
		cfg.Workers = runWorkers
	}

	coord := &pipeline.Coordinator{
		Config:   cfg,
		Registry: reg,
		Invoker:  analyzer.NewInvoker(),
		UI:       ui,
		Controller: &decision.Controller{
			Mode:          mode,
			Timeout:       cfg.PromptTimeout,
			DefaultAction: cfg.DefaultAction,
			Prompter:      prompter,
			Committer:     patch.NewCommitter(viper.GetString("backup_dir")),
			Priority:      reg.Priority,
			UI:            ui,
			DryRun:        dryRun,
		},
	}

	summary, err := coord.Run(ctx, files)
	if err != nil {
		return err
	}

	printRunSummary(summary)
	persistRun(ctx, summary)
	return nil
}

// resolveRunFiles expands the positional arguments, falling back to the
// staged files of the current repository. Failing to enumerate the
// candidates is fatal; there is nothing sensible to run over.
func resolveRunFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	gc := gitutil.NewClient()
	root, err := gc.RepoRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("no files given and not in a git repository: %w", err)
	}
	files, err := gc.StagedFiles(root)
	if err != nil {
		return nil, fmt.Errorf("list staged files: %w", err)
	}
	return files, nil
}

// resolveRunMode applies the mode precedence chain: flag, saved
// preference, config file. A resulting "ask" prompts once at startup
// and optionally persists the answer.
func resolveRunMode(prompter *decision.CLIPrompter) (decision.Mode, error) {
	raw := runMode
	if raw == "" {
		if saved, err := prefsStore().Get("mode"); err == nil && saved != "" {
			raw = saved
		}
	}
	if raw == "" {
		raw = viper.GetString("mode")
	}

	mode, err := decision.ParseMode(raw)
	if err != nil {
		return "", &pipeline.ConfigError{Field: "mode", Reason: err.Error()}
	}
	if mode != decision.ModeAsk {
		return mode, nil
	}

	if !decision.CanPrompt() {
		ui.Warning("mode is 'ask' but stdin is not a terminal, using preview")
		return decision.ModePreview, nil
	}

	chosen, remember, err := prompter.RunMode()
	if err != nil {
		return "", err
	}
	if remember {
		if err := prefsStore().Set("mode", string(chosen)); err != nil {
			ui.Warning("could not save mode preference: %v", err)
		}
	}
	return chosen, nil
}

func printRunSummary(summary *pipeline.RunSummary) {
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"File", "Outcome", "Suggestions", "Applied", "Note"})
	for _, rec := range summary.Files {
		_ = table.Append([]string{
			rec.Path,
			output.OutcomeColor(string(rec.Outcome)),
			fmt.Sprintf("%d", rec.Total),
			fmt.Sprintf("%d", rec.Applied),
			rec.Message,
		})
	}
	_ = table.Render()

	fmt.Fprintln(ui.Out)
	ui.Info("%d file(s): %d applied, %d clean, %d skipped, %d errored in %s",
		summary.FilesTotal, summary.FilesApplied, summary.FilesClean,
		summary.FilesSkipped, summary.FilesErrored,
		summary.Elapsed.Round(time.Millisecond))
	if summary.SuggestionsApplied > 0 || summary.SuggestionsDropped > 0 {
		ui.Info("%d suggestion(s) applied, %d dropped",
			summary.SuggestionsApplied, summary.SuggestionsDropped)
	}
}

// persistRun records the run in the history database, best-effort.
func persistRun(ctx context.Context, summary *pipeline.RunSummary) {
	if dryRun {
		return
	}
	s, err := getStore()
	if err != nil {
		ui.Warning("run history unavailable: %v", err)
		return
	}

	cwd, _ := os.Getwd()
	run := summary.Run(cwd)
	if err := s.CreateRun(ctx, run); err != nil {
		ui.Warning("could not record run: %v", err)
		return
	}
	for _, rec := range summary.Files {
		rec.RunID = run.ID
		if err := s.CreateFileResult(ctx, rec); err != nil {
			ui.Warning("could not record result for %s: %v", rec.Path, err)
		}
	}
	ui.VerboseLog("recorded run %s", run.ID)
}
