package gitutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repo in dir with a user config so commits work on CI.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	cmds := [][]string{
		{"git", "-C", dir, "init"},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

func TestParseNameOnly(t *testing.T) {
	out := "a.py\nsub/dir/b.go\n\n  \n"
	assert.Equal(t, []string{"a.py", "sub/dir/b.go"}, ParseNameOnly(out))
}

func TestParseNameOnly_Empty(t *testing.T) {
	assert.Nil(t, ParseNameOnly(""))
}

func TestJoinRepoPaths(t *testing.T) {
	abs := JoinRepoPaths("/repo", []string{"a.py", "sub/b.go"})
	assert.Equal(t, []string{"/repo/a.py", filepath.Join("/repo", "sub", "b.go")}, abs)
}

func TestRepoRoot(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	root, err := NewClient().RepoRoot(dir)
	require.NoError(t, err)

	// TempDir may be behind a symlink (macOS); compare resolved paths.
	wantRoot, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestRepoRoot_NotARepo(t *testing.T) {
	_, err := NewClient().RepoRoot(t.TempDir())
	assert.Error(t, err)
}

func TestStagedFiles(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	staged := filepath.Join(dir, "staged.py")
	unstaged := filepath.Join(dir, "unstaged.py")
	require.NoError(t, os.WriteFile(staged, []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(unstaged, []byte("y = 2\n"), 0644))
	require.NoError(t, exec.Command("git", "-C", dir, "add", "staged.py").Run())

	files, err := NewClient().StagedFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "staged.py", filepath.Base(files[0]))
}

func TestStagedFiles_NothingStaged(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)

	files, err := NewClient().StagedFiles(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}
