package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/polish-dev/polish/internal/models"
	"github.com/polish-dev/polish/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs and their per-file results",
	Long: `Show recent runs from the history database.

Without arguments, lists recent runs newest first. With a run ID,
shows the per-file results of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return historyShowRun(cmd, args[0])
		}
		return historyListRun(cmd)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func historyListRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	runs, err := s.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet.")
		return nil
	}

	table := ui.Table([]string{"ID", "When", "Mode", "Files", "Applied", "Errored", "Suggestions"})
	for _, r := range runs {
		_ = table.Append([]string{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			fmt.Sprintf("%d", r.FilesTotal),
			fmt.Sprintf("%d", r.FilesApplied),
			fmt.Sprintf("%d", r.FilesErrored),
			fmt.Sprintf("%d", r.SuggestionsApplied),
		})
	}
	_ = table.Render()
	return nil
}

func historyShowRun(cmd *cobra.Command, runID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	run, err := resolveRun(cmd, runID)
	if err != nil {
		return err
	}

	ui.Info("Run %s (%s, %s)", shortID(run.ID), run.Mode,
		run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	ui.Info("%d file(s): %d applied, %d clean, %d skipped, %d errored in %s",
		run.FilesTotal, run.FilesApplied, run.FilesClean,
		run.FilesSkipped, run.FilesErrored, run.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(ui.Out)

	files, err := s.ListFileResults(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Info("No file results recorded for this run.")
		return nil
	}

	table := ui.Table([]string{"File", "Outcome", "Suggestions", "Applied", "Note"})
	for _, f := range files {
		_ = table.Append([]string{
			f.Path,
			output.OutcomeColor(string(f.Outcome)),
			fmt.Sprintf("%d", f.Total),
			fmt.Sprintf("%d", f.Applied),
			f.Message,
		})
	}
	_ = table.Render()
	return nil
}

// resolveRun finds a run by full ID or unique prefix.
func resolveRun(cmd *cobra.Command, id string) (*models.Run, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	if r, err := s.GetRun(cmd.Context(), id); err == nil {
		return r, nil
	}

	runs, err := s.ListRuns(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var matches []*models.Run
	for _, r := range runs {
		if len(id) > 0 && len(r.ID) >= len(id) && r.ID[:len(id)] == id {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous run ID %s: matches %d runs", id, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
