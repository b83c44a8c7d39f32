// Package vcs reads branch and uncommitted-diff information for a file.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxDiffBytes bounds the diff attached to a snapshot.
const DefaultMaxDiffBytes = 250_000

const truncatedMarker = "\n... [truncated]"

// DiffResult holds what could be read. Either field may be nil.
type DiffResult struct {
	Branch *string
	Diff   *string
}

// DiffSource reports the branch and uncommitted diff for path inside root.
// Implementations never fail: anything unavailable is left nil.
type DiffSource interface {
	Diff(ctx context.Context, root, path string) DiffResult
}

// GitDiffSource implements DiffSource with the git CLI.
type GitDiffSource struct {
	// MaxBytes caps the diff size; zero means DefaultMaxDiffBytes.
	MaxBytes int
}

// NewGitDiffSource returns a GitDiffSource with default limits.
func NewGitDiffSource() *GitDiffSource {
	return &GitDiffSource{}
}

func gitCmd(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (g *GitDiffSource) Diff(ctx context.Context, root, path string) DiffResult {
	var res DiffResult
	if root == "" {
		root = filepath.Dir(path)
	}
	if out, err := gitCmd(ctx, root, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		if branch := strings.TrimSpace(out); branch != "" {
			res.Branch = &branch
		}
	}
	rel := path
	if r, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	out, err := gitCmd(ctx, root, "diff", "--no-color", "HEAD", "--", rel)
	if err != nil {
		// no commits yet: diff against the index instead
		out, err = gitCmd(ctx, root, "diff", "--no-color", "--", rel)
	}
	if err == nil && strings.TrimSpace(out) != "" {
		diff := truncate(out, g.maxBytes())
		res.Diff = &diff
	}
	return res
}

func (g *GitDiffSource) maxBytes() int {
	if g.MaxBytes > 0 {
		return g.MaxBytes
	}
	return DefaultMaxDiffBytes
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker
}
