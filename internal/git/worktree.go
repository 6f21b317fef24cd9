// Package git lists worktrees by shelling out to the git CLI.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"wtdash/internal/model"
)

// DefaultTimeout bounds every local git invocation.
const DefaultTimeout = 5 * time.Second

// Error carries the raw output of a failed git command.
type Error struct {
	Command string
	Dir     string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s in %s: %s", e.Command, e.Dir, e.Stderr)
	}
	return fmt.Sprintf("git %s in %s: %v", e.Command, e.Dir, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// runGit is swapped out in tests.
var runGit = func(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out: %w", ctx.Err())
		}
		return "", &Error{
			Command: args[0],
			Dir:     dir,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.String(), nil
}

// RepoRoot returns the top level of the repository containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RemoteURL returns the fetch URL of the named remote.
func RemoteURL(ctx context.Context, dir, remote string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	out, err := runGit(ctx, dir, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Lister enumerates the worktrees of one repository.
type Lister struct {
	Timeout time.Duration
}

// ListWorktrees runs git worktree list --porcelain in repoRoot. A failure
// (not a repository, missing path, git absent, timeout) yields no records
// and a *Error the caller can report as a warning.
func (l Lister) ListWorktrees(ctx context.Context, repoRoot string) ([]model.WorktreeRecord, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := runGit(ctx, repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktrees(out), nil
}

func parseWorktrees(raw string) []model.WorktreeRecord {
	var records []model.WorktreeRecord
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	for _, block := range strings.Split(strings.TrimSpace(raw), "\n\n") {
		if r, ok := parseBlock(strings.TrimSpace(block)); ok {
			records = append(records, r)
		}
	}
	return records
}

func parseBlock(block string) (model.WorktreeRecord, bool) {
	var path, branch string
	detached, bare := false, false

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			detached = true
		case line == "bare":
			bare = true
		}
	}

	if path == "" || bare {
		return model.WorktreeRecord{}, false
	}
	if detached || branch == "" {
		branch = "detached"
	}
	return model.WorktreeRecord{Path: path, Branch: branch}, true
}
