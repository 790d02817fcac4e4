// Package decision resolves what happens to each file's suggestion set:
// apply, preview, skip, or abort, under a configured mode, a prompt
// timeout, and persisted preferences.
package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/output"
	"github.com/polish-dev/polish/internal/patch"
	"github.com/polish-dev/polish/internal/suggest"
)

// Mode is the run-wide decision policy.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeAuto        Mode = "auto"
	ModePreview     Mode = "preview"
	ModeSkip        Mode = "skip"
	// ModeAsk prompts once for the mode to use for the whole run. It is
	// resolved at run level before any file is processed; the
	// controller itself never sees it.
	ModeAsk Mode = "ask"
)

// ParseMode validates a mode string from flags, preferences, or config.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeInteractive, ModeAuto, ModePreview, ModeSkip, ModeAsk:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want interactive, auto, preview, skip, or ask)", s)
	}
}

// Action is an operator (or fallback) decision for one file.
type Action string

const (
	ActionApply   Action = "apply"
	ActionSelect  Action = "select"
	ActionPreview Action = "preview"
	ActionSkip    Action = "skip"
	ActionQuit    Action = "quit"
)

// ParseAction validates a default-action string. Quit and select make
// no sense as timeout fallbacks.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionApply, ActionPreview, ActionSkip:
		return a, nil
	default:
		return "", fmt.Errorf("invalid default action %q (want apply, preview, or skip)", s)
	}
}

// Choice is the operator's answer to a file prompt.
type Choice struct {
	Action Action
	// IDs selects a suggestion subset when Action is ActionSelect.
	IDs []string
}

// Prompter is the UI boundary the controller issues bounded-wait
// requests to. The controller enforces the timeout through ctx;
// implementations must return once ctx is done.
type Prompter interface {
	// FileDecision presents the report and returns the operator's choice.
	FileDecision(ctx context.Context, report *Report) (Choice, error)
	// RunMode asks once which mode to use for the whole run and whether
	// to remember the answer.
	RunMode() (Mode, bool, error)
}

// State is a terminal controller state for one file.
type State string

const (
	StateApplied State = "applied"
	StateSkipped State = "skipped"
	StateAborted State = "aborted"
	StateError   State = "error"
)

// Outcome records a terminal transition for one file.
type Outcome struct {
	File       string
	State      State
	Action     Action
	Applied    int
	Dropped    []patch.Dropped
	Total      int
	BackupPath string
	Reason     string
	Err        error
	Elapsed    time.Duration
	// Quit is set when the operator chose to abort the whole batch;
	// remaining files become skipped.
	Quit bool
}

// Controller drives the per-file decision state machine.
type Controller struct {
	Mode          Mode
	Timeout       time.Duration
	DefaultAction Action
	Prompter      Prompter
	Committer     *patch.Committer
	Priority      func(analyzer string) int
	UI            *output.UI
	DryRun        bool
}

// Resolve runs the state machine for one file report and returns the
// terminal outcome. It never blocks longer than Timeout on operator
// input; on expiry the configured default action runs instead.
func (c *Controller) Resolve(ctx context.Context, report *Report) Outcome {
	start := time.Now()
	out := c.resolve(ctx, report)
	out.File = report.File
	out.Total = len(report.Suggestions)
	out.Elapsed = time.Since(start)
	c.log(out)
	return out
}

func (c *Controller) resolve(ctx context.Context, report *Report) Outcome {
	switch c.Mode {
	case ModeAuto:
		return c.apply(report, report.Suggestions)
	case ModePreview:
		c.preview(report, report.Suggestions)
		return Outcome{State: StateSkipped, Action: ActionPreview, Reason: "preview only"}
	case ModeSkip:
		return Outcome{State: StateSkipped, Action: ActionSkip, Reason: "skipped by mode"}
	case ModeInteractive:
		return c.interactive(ctx, report)
	default:
		return Outcome{State: StateError, Err: fmt.Errorf("mode %q cannot be resolved per file", c.Mode)}
	}
}

// interactive loops Presenting until a terminal action is chosen.
// Preview is the one non-terminal choice: render, then present again.
func (c *Controller) interactive(ctx context.Context, report *Report) Outcome {
	for {
		choice, timedOut, err := c.promptBounded(ctx, report)
		switch {
		case err != nil:
			return Outcome{State: StateAborted, Reason: "run cancelled", Err: err}
		case timedOut:
			c.UI.Warning("%s: no answer within %s, falling back to %q", report.File, c.Timeout, c.DefaultAction)
			return c.fallback(report)
		}

		switch choice.Action {
		case ActionApply:
			return c.apply(report, report.Suggestions)
		case ActionSelect:
			return c.apply(report, filterByID(report.Suggestions, choice.IDs))
		case ActionPreview:
			c.preview(report, report.Suggestions)
		case ActionSkip:
			return Outcome{State: StateSkipped, Action: ActionSkip, Reason: "skipped by operator"}
		case ActionQuit:
			return Outcome{State: StateAborted, Action: ActionQuit, Reason: "operator quit batch", Quit: true}
		default:
			c.UI.Warning("unrecognized choice, try again")
		}
	}
}

// fallback executes the configured default action after a prompt timeout.
func (c *Controller) fallback(report *Report) Outcome {
	switch c.DefaultAction {
	case ActionApply:
		out := c.apply(report, report.Suggestions)
		out.Reason = "applied (timeout)"
		return out
	case ActionPreview:
		c.preview(report, report.Suggestions)
		return Outcome{State: StateSkipped, Action: ActionPreview, Reason: "skipped (timeout)"}
	default:
		return Outcome{State: StateSkipped, Action: ActionSkip, Reason: "skipped (timeout)"}
	}
}

// promptBounded issues the prompt as a bounded-wait request: the first
// of operator answer, timeout, or run cancellation wins. The prompter
// keeps its own reader alive across timeouts, so an answer typed after
// expiry is not lost; it answers the next prompt.
func (c *Controller) promptBounded(ctx context.Context, report *Report) (Choice, bool, error) {
	pctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	choice, err := c.Prompter.FileDecision(pctx, report)
	switch {
	case err == nil:
		return choice, false, nil
	case ctx.Err() != nil:
		return Choice{}, false, ctx.Err()
	default:
		// Timeout and a broken prompt (closed stdin) both resolve
		// through the default action rather than wedging the run.
		return Choice{}, true, nil
	}
}

func (c *Controller) apply(report *Report, selected []*suggest.Suggestion) Outcome {
	res := patch.Apply(report.Content, selected, c.Priority)

	if !res.Changed {
		return Outcome{
			State:   StateSkipped,
			Action:  ActionApply,
			Dropped: res.Dropped,
			Reason:  "no applicable changes",
		}
	}

	if c.DryRun {
		c.UI.DryRunMsg("Would rewrite %s (%d suggestion(s))", report.File, len(res.Applied))
		return Outcome{
			State:   StateSkipped,
			Action:  ActionApply,
			Dropped: res.Dropped,
			Reason:  "dry-run",
		}
	}

	ref, err := c.Committer.Commit(report.File, res.NewContent)
	if err != nil {
		out := Outcome{State: StateError, Action: ActionApply, Dropped: res.Dropped, Err: err}
		if ref != nil {
			out.BackupPath = ref.Path
		}
		return out
	}

	out := Outcome{
		State:   StateApplied,
		Action:  ActionApply,
		Applied: len(res.Applied),
		Dropped: res.Dropped,
	}
	if ref != nil {
		out.BackupPath = ref.Path
	}
	return out
}

func (c *Controller) preview(report *Report, selected []*suggest.Suggestion) {
	res := patch.Apply(report.Content, selected, c.Priority)
	if !res.Changed {
		c.UI.Info("%s: no applicable changes", report.File)
		return
	}
	fmt.Fprint(c.UI.Out, output.Diff(report.File, report.Content, res.NewContent))
	for _, d := range res.Dropped {
		c.UI.Warning("%s: would drop %s: %s", report.File, d.Suggestion.ID, d.Reason)
	}
}

// log records the terminal transition: file, action, applied vs total,
// elapsed decision time.
func (c *Controller) log(out Outcome) {
	switch out.State {
	case StateApplied:
		c.UI.Success("%s: applied %d/%d suggestion(s) in %s", out.File, out.Applied, out.Total, out.Elapsed.Round(time.Millisecond))
	case StateError:
		c.UI.Error("%s: %v", out.File, out.Err)
	default:
		reason := out.Reason
		if reason == "" {
			reason = string(out.State)
		}
		c.UI.VerboseLog("%s: %s (%d suggestion(s), %s)", out.File, reason, out.Total, out.Elapsed.Round(time.Millisecond))
	}
	for _, d := range out.Dropped {
		c.UI.VerboseLog("%s: dropped %s: %s", out.File, d.Suggestion.ID, d.Reason)
	}
}

func filterByID(suggestions []*suggest.Suggestion, ids []string) []*suggest.Suggestion {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var selected []*suggest.Suggestion
	for _, s := range suggestions {
		if want[s.ID] {
			selected = append(selected, s)
		}
	}
	return selected
}

// ReportStatus classifies a file report for the decision layer.
type ReportStatus string

const (
	ReportClean         ReportStatus = "clean"
	ReportNeedsDecision ReportStatus = "needsDecision"
	ReportError         ReportStatus = "error"
)

// Report aggregates all analyzer results for one candidate file plus
// the union of their suggestions. Built once per file per run and
// discarded at end of run.
type Report struct {
	File        string
	Content     string
	Results     []*analyzer.Result
	Suggestions []*suggest.Suggestion
	Status      ReportStatus
}

// BuildReport assembles a report from the per-analyzer results, keeping
// suggestions in analyzer priority order.
func BuildReport(file, content string, results []*analyzer.Result) *Report {
	r := &Report{File: file, Content: content, Results: results}

	allFailed := len(results) > 0
	for _, res := range results {
		r.Suggestions = append(r.Suggestions, res.Suggestions...)
		if res.Status == analyzer.StatusOK || res.Status == analyzer.StatusTimeout || res.Status == analyzer.StatusSkipped {
			allFailed = false
		}
	}

	switch {
	case allFailed:
		r.Status = ReportError
	case len(r.Suggestions) > 0:
		r.Status = ReportNeedsDecision
	default:
		r.Status = ReportClean
	}
	return r
}
