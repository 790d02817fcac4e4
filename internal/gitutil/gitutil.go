// Package gitutil discovers candidate files from the enclosing git
// repository.
package gitutil

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client defines the git operations the pipeline needs. All methods
// take a path parameter since polish can be pointed at any repo.
type Client interface {
	RepoRoot(path string) (string, error)
	StagedFiles(path string) ([]string, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

// StagedFiles returns absolute paths of files staged for commit.
// Deleted files are excluded since there is nothing left to analyze.
func (c *RealClient) StagedFiles(path string) ([]string, error) {
	root, err := c.RepoRoot(path)
	if err != nil {
		return nil, err
	}
	out, err := gitCmd(path, "diff", "--cached", "--name-only", "--diff-filter=ACM")
	if err != nil {
		return nil, err
	}
	return JoinRepoPaths(root, ParseNameOnly(out)), nil
}

// ParseNameOnly parses `git diff --name-only` output into relative paths.
func ParseNameOnly(output string) []string {
	var files []string
	for line := range strings.SplitSeq(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

// JoinRepoPaths resolves repo-relative paths against the repo root.
func JoinRepoPaths(root string, rel []string) []string {
	abs := make([]string, len(rel))
	for i, r := range rel {
		abs[i] = filepath.Join(root, r)
	}
	return abs
}
