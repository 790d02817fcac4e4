package suggest

import (
	"fmt"
	"strconv"
	"strings"
)

// Marker is the literal prefix an analyzer output line must carry to be
// treated as a suggestion. Everything else on stdout is ignored.
const Marker = "SUGGESTION"

// protocolFields is the fixed field count of a protocol line:
// SUGGESTION : category : startLine : description : originalText : replacementText
const protocolFields = 6

// ErrNotSuggestion marks lines that do not begin with the protocol marker.
var ErrNotSuggestion = fmt.Errorf("not a suggestion line")

// ParseLine parses one line of analyzer stdout. Lines without the marker
// return ErrNotSuggestion; marker lines that cannot be parsed return a
// descriptive error so callers can count them as malformed.
//
// The marker, category, start line, and description fields tolerate
// whitespace around the ':' delimiters. The two text fields do not:
// whitespace in code is significant, so originalText and
// replacementText are taken verbatim and analyzers must emit them flush
// against the delimiters.
func ParseLine(analyzer, line string) (*Suggestion, error) {
	if !strings.HasPrefix(line, Marker) {
		return nil, ErrNotSuggestion
	}

	parts := splitEscaped(line, protocolFields)
	if len(parts) < protocolFields {
		return nil, fmt.Errorf("expected %d fields, got %d", protocolFields, len(parts))
	}
	if strings.TrimSpace(parts[0]) != Marker {
		return nil, ErrNotSuggestion
	}

	category, err := ParseCategory(parts[1])
	if err != nil {
		return nil, err
	}

	start, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid start line %q", strings.TrimSpace(parts[2]))
	}
	if start < 0 {
		return nil, fmt.Errorf("negative start line %d", start)
	}

	return &Suggestion{
		ID:       NewID(analyzer, start),
		Analyzer: analyzer,
		Category: category,
		// The protocol carries a single start line; the span is one line
		// until the protocol grows explicit ranges.
		Lines:     LineRange{Start: start, End: start + 1},
		Rationale: Unescape(strings.TrimSpace(parts[3])),
		// Whitespace is significant in code; original and replacement
		// are taken verbatim after unescaping.
		OriginalText:    Unescape(parts[4]),
		ReplacementText: Unescape(parts[5]),
		Severity:        DefaultSeverity(category),
	}, nil
}

// ParseOutput parses full analyzer stdout, returning the suggestions in
// output order and the count of marker lines that failed to parse.
// A malformed line never fails the whole analyzer.
func ParseOutput(analyzer, output string) ([]*Suggestion, int) {
	var (
		suggestions []*Suggestion
		malformed   int
	)
	for line := range strings.SplitSeq(output, "\n") {
		s, err := ParseLine(analyzer, line)
		switch {
		case err == ErrNotSuggestion:
		case err != nil:
			malformed++
		default:
			suggestions = append(suggestions, s)
		}
	}
	return suggestions, malformed
}

// splitEscaped splits on ":" delimiters, honoring backslash escapes so
// field text may contain literal colons. The final field absorbs any
// remaining delimiters, letting replacement text stay unescaped in the
// common case.
func splitEscaped(s string, n int) []string {
	parts := make([]string, 0, n)
	var field strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			field.WriteByte(s[i])
			field.WriteByte(s[i+1])
			i++
		case s[i] == ':' && len(parts) < n-1:
			parts = append(parts, field.String())
			field.Reset()
		default:
			field.WriteByte(s[i])
		}
	}
	parts = append(parts, field.String())
	return parts
}

// Unescape expands the protocol's escape sequences so replacement text
// can span multiple lines while the wire format stays one line per
// suggestion.
func Unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case ':':
				b.WriteByte(':')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
