package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

type gitLab struct {
	base string
}

func (g *gitLab) Kind() string { return "gitlab" }

// glabIssue mirrors the fields we care about from glab's JSON output.
type glabIssue struct {
	IID   int    `json:"iid"`
	Title string `json:"title"`
}

func (g *gitLab) IssueTitle(ctx context.Context, repoRoot string, number uint) (string, error) {
	out, err := runCLI(ctx, repoRoot,
		"glab", "issue", "view", strconv.FormatUint(uint64(number), 10),
		"-F", "json",
	)
	if err != nil {
		return "", err
	}

	var issue glabIssue
	if err := json.Unmarshal(out, &issue); err != nil {
		return "", fmt.Errorf("decode glab issue: %w", err)
	}
	return issue.Title, nil
}

func (g *gitLab) IssueURL(number uint) string {
	return fmt.Sprintf("%s/-/issues/%d", g.base, number)
}
