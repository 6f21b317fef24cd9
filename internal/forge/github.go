package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

type gitHub struct {
	base string
}

func (g *gitHub) Kind() string { return "github" }

// ghIssue mirrors the fields we care about from gh's JSON output.
type ghIssue struct {
	Title string `json:"title"`
}

func (g *gitHub) IssueTitle(ctx context.Context, repoRoot string, number uint) (string, error) {
	out, err := runCLI(ctx, repoRoot,
		"gh", "issue", "view", strconv.FormatUint(uint64(number), 10),
		"--json", "title",
	)
	if err != nil {
		return "", err
	}

	var issue ghIssue
	if err := json.Unmarshal(out, &issue); err != nil {
		return "", fmt.Errorf("decode gh issue: %w", err)
	}
	return issue.Title, nil
}

func (g *gitHub) IssueURL(number uint) string {
	return fmt.Sprintf("%s/issues/%d", g.base, number)
}
