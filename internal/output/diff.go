package output

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is how many unchanged lines are kept around each change
// block when rendering a preview.
const contextLines = 2

// Diff renders a colored line diff between two versions of a file,
// headed by a name and +/- stats line. Returns "" when the contents are
// identical.
func Diff(filename, original, updated string) string {
	if original == updated {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(original, updated)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var sb strings.Builder
	added, removed := diffStats(diffs)
	fmt.Fprintf(&sb, "%s  %s %s\n", Cyan(filename), Green(fmt.Sprintf("+%d", added)), Red(fmt.Sprintf("-%d", removed)))

	for i, d := range diffs {
		lines := splitDiffLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range lines {
				sb.WriteString(Red("- " + line))
				sb.WriteByte('\n')
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range lines {
				sb.WriteString(Green("+ " + line))
				sb.WriteByte('\n')
			}
		case diffmatchpatch.DiffEqual:
			for _, line := range trimContext(lines, i == 0, i == len(diffs)-1) {
				sb.WriteString("  " + line)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// diffStats counts inserted and deleted lines across the diff.
func diffStats(diffs []diffmatchpatch.Diff) (added, removed int) {
	for _, d := range diffs {
		n := len(splitDiffLines(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

func splitDiffLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// trimContext collapses long unchanged runs, keeping contextLines on the
// side(s) adjacent to a change.
func trimContext(lines []string, first, last bool) []string {
	if len(lines) <= 2*contextLines+1 {
		return lines
	}
	var out []string
	if !first {
		out = append(out, lines[:contextLines]...)
	}
	out = append(out, "...")
	if !last {
		out = append(out, lines[len(lines)-contextLines:]...)
	}
	return out
}
