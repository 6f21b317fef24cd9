// Package forge looks up issue metadata through the gh and glab CLIs.
package forge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"wtdash/internal/git"
)

// DefaultTimeout bounds every tracker CLI call; these hit the network.
const DefaultTimeout = 3 * time.Second

// Tracker abstracts GitHub and GitLab issue lookups.
type Tracker interface {
	Kind() string // "github" | "gitlab"
	IssueTitle(ctx context.Context, repoRoot string, number uint) (string, error)
	IssueURL(number uint) string
}

// runCLI is swapped out in tests.
var runCLI = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s", name, trimOutput(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// remoteURL is swapped out in tests.
var remoteURL = func(ctx context.Context, repoRoot string) (string, error) {
	return git.RemoteURL(ctx, repoRoot, "origin")
}

// Detect returns the Tracker for the repo at repoRoot, or nil if the
// remote is unrecognised or no remote exists.
func Detect(ctx context.Context, repoRoot string) Tracker {
	remote, err := remoteURL(ctx, repoRoot)
	if err != nil {
		return nil
	}
	base, host, ok := webBase(remote)
	if !ok {
		return nil
	}

	switch {
	case strings.Contains(host, "github"):
		return &gitHub{base: base}
	case strings.Contains(host, "gitlab"):
		return &gitLab{base: base}
	default:
		// Last resort: a self-hosted GitLab that glab is configured for.
		ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
		if _, err := runCLI(ctx, repoRoot, "glab", "repo", "view"); err == nil {
			return &gitLab{base: base}
		}
		return nil
	}
}

// webBase turns a clone URL into the project's https base URL.
//
//	git@github.com:owner/repo.git          -> https://github.com/owner/repo
//	ssh://git@gitlab.example.com/g/s/r.git -> https://gitlab.example.com/g/s/r
//	https://user@github.com/owner/repo     -> https://github.com/owner/repo
func webBase(remote string) (base, host string, ok bool) {
	r := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(remote), "/"), ".git")

	var path string
	switch {
	case strings.Contains(r, "://"):
		u, err := url.Parse(r)
		if err != nil {
			return "", "", false
		}
		host, path = u.Hostname(), u.Path
	case strings.Contains(r, ":"):
		// scp-like syntax: [user@]host:path
		hostPart, p, _ := strings.Cut(r, ":")
		if _, after, found := strings.Cut(hostPart, "@"); found {
			hostPart = after
		}
		host, path = hostPart, p
	default:
		return "", "", false
	}

	host = strings.ToLower(host)
	path = strings.Trim(path, "/")
	if host == "" || path == "" {
		return "", "", false
	}
	return "https://" + host + "/" + path, host, true
}

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}
