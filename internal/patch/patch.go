// Package patch turns an ordered set of suggestions into a single safe
// file rewrite with a mandatory backup before any mutation.
package patch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/polish-dev/polish/internal/suggest"
)

// Dropped records a suggestion excluded from an apply batch and why.
type Dropped struct {
	Suggestion *suggest.Suggestion
	Reason     string
}

// ApplyResult is the outcome of applying a suggestion batch in memory.
// Nothing is written to disk until Committer.Commit.
type ApplyResult struct {
	NewContent string
	Applied    []*suggest.Suggestion
	Dropped    []Dropped
	Changed    bool
}

// Apply splices the suggestions into content and returns the rewritten
// buffer. Suggestions are sorted by start line descending before
// splicing, so applying one never shifts the line numbers of the
// not-yet-applied rest (which all reference lower lines). Ties at the
// same start line are broken by the priority func (lower rank wins);
// overlapping survivors after sorting are dropped, first sorted wins.
// Each suggestion is re-validated against the evolving buffer right
// before its splice; stale ones are dropped and recorded, never fatal.
func Apply(content string, suggestions []*suggest.Suggestion, priority func(analyzer string) int) ApplyResult {
	if priority == nil {
		priority = func(string) int { return 0 }
	}

	batch := make([]*suggest.Suggestion, len(suggestions))
	copy(batch, suggestions)
	sort.SliceStable(batch, func(i, j int) bool {
		if batch[i].Lines.Start != batch[j].Lines.Start {
			return batch[i].Lines.Start > batch[j].Lines.Start
		}
		return priority(batch[i].Analyzer) < priority(batch[j].Analyzer)
	})

	res := ApplyResult{NewContent: content}
	var accepted []suggest.LineRange

	for _, s := range batch {
		if reason := overlapReason(accepted, res.Applied, s.Lines); reason != "" {
			res.Dropped = append(res.Dropped, Dropped{Suggestion: s, Reason: reason})
			continue
		}

		if err := suggest.Validate(s, res.NewContent); err != nil {
			var stale *suggest.StaleError
			reason := err.Error()
			if errors.As(err, &stale) {
				reason = stale.Reason
			}
			res.Dropped = append(res.Dropped, Dropped{Suggestion: s, Reason: reason})
			continue
		}

		res.NewContent = splice(res.NewContent, s)
		res.Applied = append(res.Applied, s)
		accepted = append(accepted, s.Lines)
	}

	res.Changed = res.NewContent != content
	return res
}

// overlapReason returns a drop reason if r overlaps an already-accepted
// range, naming the winning suggestion. accepted and applied are kept
// in lockstep by Apply.
func overlapReason(accepted []suggest.LineRange, applied []*suggest.Suggestion, r suggest.LineRange) string {
	for i, a := range accepted {
		if a.Overlaps(r) {
			return fmt.Sprintf("overlaps %s (lines %s)", applied[i].ID, a)
		}
	}
	return ""
}

// splice replaces the suggestion's line range in content. An empty
// replacement deletes the range; a multi-line replacement inserts.
func splice(content string, s *suggest.Suggestion) string {
	lines := suggest.SplitLines(content)

	var repl []string
	if s.ReplacementText != "" {
		repl = strings.Split(s.ReplacementText, "\n")
	}

	out := make([]string, 0, len(lines)-(s.Lines.End-s.Lines.Start)+len(repl))
	out = append(out, lines[:s.Lines.Start]...)
	out = append(out, repl...)
	out = append(out, lines[s.Lines.End:]...)

	joined := strings.Join(out, "\n")
	if strings.HasSuffix(content, "\n") && joined != "" {
		joined += "\n"
	}
	return joined
}
