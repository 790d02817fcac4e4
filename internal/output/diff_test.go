package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_Identical(t *testing.T) {
	assert.Empty(t, Diff("a.py", "same\n", "same\n"))
}

func TestDiff_AddedLine(t *testing.T) {
	d := Diff("a.py", "def f():\n    pass\n", "def f():\n    \"\"\"doc\"\"\"\n    pass\n")
	require.NotEmpty(t, d)

	assert.Contains(t, d, "a.py")
	assert.Contains(t, d, "+1")
	assert.Contains(t, d, "-0")
	assert.Contains(t, d, `"""doc"""`)
}

func TestDiff_RemovedLine(t *testing.T) {
	d := Diff("a.py", "keep\ndrop\n", "keep\n")
	assert.Contains(t, d, "+0")
	assert.Contains(t, d, "-1")
	assert.Contains(t, d, "drop")
}

func TestDiff_ChangedLineShowsBothSides(t *testing.T) {
	d := Diff("a.py", "x = 1\n", "x = 2\n")
	assert.Contains(t, d, "x = 1")
	assert.Contains(t, d, "x = 2")
}

func TestDiff_LongEqualRunCollapsed(t *testing.T) {
	var sb strings.Builder
	for range 40 {
		sb.WriteString("unchanged\n")
	}
	original := "first\n" + sb.String() + "last\n"
	updated := "FIRST\n" + sb.String() + "LAST\n"

	d := Diff("big.txt", original, updated)
	assert.Contains(t, d, "...")
	assert.Less(t, len(strings.Split(d, "\n")), 20, "middle run should be collapsed")
}
