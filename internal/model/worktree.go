package model

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
)

// WorktreeRecord is one entry of `git worktree list --porcelain`.
type WorktreeRecord struct {
	Path   string
	Branch string // "detached" when HEAD is not on a branch
}

// Status is a manual tag the user attaches to a worktree. It is persisted
// by path and never derived from task state.
type Status string

const (
	StatusUnset        Status = ""
	StatusInProgress   Status = "in-progress"
	StatusReviewing    Status = "reviewing"
	StatusMerged       Status = "merged"
	StatusReadyToClose Status = "ready-to-close"
)

// Statuses lists the settable tags in display order.
var Statuses = []Status{StatusInProgress, StatusReviewing, StatusMerged, StatusReadyToClose}

// ParseStatus accepts one of the fixed tags, or "" / "none" / "unset" for no tag.
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusUnset, "none", "unset":
		return StatusUnset, nil
	case StatusInProgress, StatusReviewing, StatusMerged, StatusReadyToClose:
		return v, nil
	default:
		return StatusUnset, fmt.Errorf("unknown status %q (want one of in-progress, reviewing, merged, ready-to-close)", s)
	}
}

// Next cycles through the tags, ending on unset.
func (s Status) Next() Status {
	for i, v := range Statuses {
		if v == s {
			if i+1 < len(Statuses) {
				return Statuses[i+1]
			}
			return StatusUnset
		}
	}
	return Statuses[0]
}

// WorktreeInfo is one discovered worktree joined with its session and tasks.
type WorktreeInfo struct {
	Path           string `json:"path"`
	Branch         string `json:"branch"`
	RepoName       string `json:"repo_name"`
	RepoRoot       string `json:"repo_root"`
	IssueNumber    *uint  `json:"issue_number,omitempty"`
	IssueTitle     string `json:"issue_title,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SessionSummary string `json:"session_summary,omitempty"`
	Tasks          []Task `json:"tasks"`           // active, ascending numeric id
	CompletedTasks []Task `json:"completed_tasks"` // status == completed
	Status         Status `json:"status,omitempty"`
}

// Slug normalises the worktree's branch (or directory name when detached)
// into a filesystem/tmux-safe name.
func (w WorktreeInfo) Slug() string {
	name := w.Branch
	if name == "" || name == "detached" {
		name = ""
		if w.Path != "" {
			name = filepath.Base(w.Path)
		}
	}
	return BranchToSlug(name)
}

// SessionName is the tmux session name for the worktree. It carries the
// repository name and a short hash of the path, so the same branch checked
// out in two repositories never shares a session.
func (w WorktreeInfo) SessionName() string {
	name := w.Slug()
	if w.RepoName != "" {
		name = BranchToSlug(w.RepoName) + "-" + name
	}
	h := fnv.New32a()
	h.Write([]byte(w.Path))
	return fmt.Sprintf("%s-%06x", name, h.Sum32()&0xffffff)
}

// HasInProgress reports whether any active task is being worked on.
func (w WorktreeInfo) HasInProgress() bool {
	for _, t := range w.Tasks {
		if t.Status == TaskInProgress {
			return true
		}
	}
	return false
}

// HasTasks reports whether the worktree has any task, active or completed.
func (w WorktreeInfo) HasTasks() bool {
	return len(w.Tasks) > 0 || len(w.CompletedTasks) > 0
}

// CurrentTask returns the first in-progress task, if any.
func (w WorktreeInfo) CurrentTask() (Task, bool) {
	for _, t := range w.Tasks {
		if t.Status == TaskInProgress {
			return t, true
		}
	}
	return Task{}, false
}

// BranchToSlug normalises a branch name into a filesystem/tmux-safe slug.
func BranchToSlug(branch string) string {
	if branch == "" {
		return "unknown"
	}
	s := strings.ToLower(branch)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, ":", "-")
	return s
}
