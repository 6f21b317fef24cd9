package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"wtdash/internal/model"
	"wtdash/internal/scan"
)

func sampleSnapshot() scan.Snapshot {
	n := uint(42)
	return scan.Snapshot{Worktrees: []model.WorktreeInfo{
		{
			Path:      "/src/wt/login",
			Branch:    "feature/42-login",
			RepoName:  "app",
			SessionID: "abc",
			Tasks:     []model.Task{{ID: "3", Subject: "ui", Status: model.TaskInProgress}},
			CompletedTasks: []model.Task{
				{ID: "1", Subject: "schema", Status: model.TaskCompleted},
				{ID: "2", Subject: "handler", Status: model.TaskCompleted},
			},
			IssueNumber: &n,
			Status:      model.StatusReviewing,
		},
		{Path: "/src/wt/scratch", Branch: "scratch", RepoName: "app"},
	}}
}

func TestWriteJSONIncludesProgress(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, sampleSnapshot()); err != nil {
		t.Fatal(err)
	}

	var got []struct {
		Path        string `json:"path"`
		IssueNumber *uint  `json:"issue_number"`
		SessionID   string `json:"session_id"`
		Progress    struct {
			Completed int    `json:"completed"`
			Total     int    `json:"total"`
			Bucket    string `json:"bucket"`
		} `json:"progress"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Progress.Completed != 2 || got[0].Progress.Total != 3 || got[0].Progress.Bucket != "in-progress" {
		t.Errorf("progress = %+v", got[0].Progress)
	}
	if got[1].IssueNumber != nil || got[1].SessionID != "" || got[1].Progress.Bucket != "none" {
		t.Errorf("scratch = %+v", got[1])
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, sampleSnapshot().Worktrees)
	out := buf.String()

	for _, want := range []string{"WORKTREE", "feature-42-login", "#42", "2/3", "reviewing", "scratch"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("table has %d lines, want 3", lines)
	}
}
