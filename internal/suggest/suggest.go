// Package suggest defines the improvement suggestion model shared by the
// analyzer, patch, and decision layers.
package suggest

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies what kind of improvement a suggestion proposes.
type Category string

const (
	CategoryHeader        Category = "header"
	CategoryDocumentation Category = "documentation"
	CategoryFormatting    Category = "formatting"
	CategorySecurity      Category = "security"
	CategoryQuality       Category = "quality"
	CategoryTone          Category = "tone"
)

// ParseCategory validates a category string from analyzer output.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryHeader, CategoryDocumentation, CategoryFormatting,
		CategorySecurity, CategoryQuality, CategoryTone:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category: %q", s)
	}
}

// Severity indicates how strongly a suggestion should be surfaced.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultSeverity returns the severity implied by a category when the
// analyzer does not override it.
func DefaultSeverity(c Category) Severity {
	switch c {
	case CategorySecurity:
		return SeverityError
	case CategoryQuality:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// LineRange is a half-open [Start, End) span of zero-based line numbers
// in the content a suggestion was generated against.
type LineRange struct {
	Start int
	End   int
}

// Overlaps reports whether the two ranges share any line.
func (r LineRange) Overlaps(o LineRange) bool {
	return r.Start < o.End && o.Start < r.End
}

func (r LineRange) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

// Suggestion is one proposed text replacement for a file.
type Suggestion struct {
	ID              string
	Analyzer        string
	Category        Category
	Lines           LineRange
	OriginalText    string
	ReplacementText string
	Severity        Severity
	Rationale       string
}

// NewID builds a suggestion identifier from the analyzer name, the
// location, and a generation timestamp.
func NewID(analyzer string, start int) string {
	return fmt.Sprintf("%s:%d:%d", analyzer, start, time.Now().UnixNano())
}

// StaleError reports a suggestion whose referenced text no longer matches
// the current file content. Stale suggestions are dropped, never applied.
type StaleError struct {
	ID     string
	Reason string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale suggestion %s: %s", e.ID, e.Reason)
}

// Validate checks that the suggestion still applies to content: the line
// range must be in bounds and OriginalText must exactly match the
// referenced span. Consumers must call this before splicing.
func Validate(s *Suggestion, content string) error {
	lines := SplitLines(content)
	if s.Lines.Start < 0 || s.Lines.End <= s.Lines.Start {
		return &StaleError{ID: s.ID, Reason: fmt.Sprintf("invalid line range %s", s.Lines)}
	}
	if s.Lines.End > len(lines) {
		return &StaleError{ID: s.ID, Reason: fmt.Sprintf("line range %s exceeds %d lines", s.Lines, len(lines))}
	}
	span := strings.Join(lines[s.Lines.Start:s.Lines.End], "\n")
	if span != s.OriginalText {
		return &StaleError{ID: s.ID, Reason: fmt.Sprintf("text at %s no longer matches", s.Lines)}
	}
	return nil
}

// SplitLines splits file content into lines without the trailing empty
// element a final newline would otherwise produce. Empty content yields
// no lines.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
