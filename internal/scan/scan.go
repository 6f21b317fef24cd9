// Package scan joins git worktrees with Claude sessions, tasks, status tags
// and issue titles into one sorted list.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"wtdash/internal/claude"
	"wtdash/internal/config"
	"wtdash/internal/issue"
	"wtdash/internal/model"
	"wtdash/internal/status"
)

// Lister lists the worktrees of one repository.
type Lister interface {
	ListWorktrees(ctx context.Context, repoRoot string) ([]model.WorktreeRecord, error)
}

// Titles resolves issue titles. Implementations bound their own latency.
type Titles interface {
	Title(ctx context.Context, repoRoot string, number uint) (string, bool)
}

// Warning is a non-fatal failure attached to one repository or worktree.
type Warning struct {
	Repo string
	Path string
	Err  error
}

func (w Warning) Error() string {
	switch {
	case w.Path != "":
		return fmt.Sprintf("%s: %v", w.Path, w.Err)
	case w.Repo != "":
		return fmt.Sprintf("%s: %v", w.Repo, w.Err)
	default:
		return w.Err.Error()
	}
}

func (w Warning) Unwrap() error { return w.Err }

// Snapshot is the result of one scan.
type Snapshot struct {
	Worktrees  []model.WorktreeInfo
	Warnings   []Warning
	Generation uint64
	ScannedAt  time.Time
}

// ByPath returns the worktree whose canonical path equals path's.
func (s Snapshot) ByPath(path string) (model.WorktreeInfo, bool) {
	want := claude.Canonicalize(path)
	for _, wt := range s.Worktrees {
		if wt.Path == path || claude.Canonicalize(wt.Path) == want {
			return wt, true
		}
	}
	return model.WorktreeInfo{}, false
}

// ByIssue returns every worktree whose branch names issue n.
func (s Snapshot) ByIssue(n uint) []model.WorktreeInfo {
	var out []model.WorktreeInfo
	for _, wt := range s.Worktrees {
		if wt.IssueNumber != nil && *wt.IssueNumber == n {
			out = append(out, wt)
		}
	}
	return out
}

// Aggregator runs scans. The zero value is not usable: Repos, Lister,
// Claude and Statuses are required.
type Aggregator struct {
	Repos      func() ([]config.Repo, error)
	Lister     Lister
	Claude     *claude.Store
	TieBreak   claude.TieBreak // nil means claude.FirstSeen
	Statuses   status.Store
	Titles     Titles // nil disables title lookups
	MaxWorkers int    // 0 means one worker per repository
	Log        *log.Logger

	now func() time.Time
}

func (a *Aggregator) logger() *log.Logger {
	if a.Log == nil {
		a.Log = log.NewWithOptions(io.Discard, log.Options{})
	}
	return a.Log
}

func (a *Aggregator) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// repoResult is what one worker produces for one repository.
type repoResult struct {
	worktrees []model.WorktreeInfo
	warnings  []Warning
}

// Scan builds a fresh snapshot. Per-repository and per-worktree failures
// become warnings; only an unreadable repository list is returned as an error.
func (a *Aggregator) Scan(ctx context.Context) (Snapshot, error) {
	start := a.clock()
	snap := Snapshot{ScannedAt: start}

	repos, err := a.Repos()
	if err != nil {
		if errors.Is(err, config.ErrNoRepos) {
			snap.Warnings = append(snap.Warnings, Warning{Err: err})
			return snap, nil
		}
		return Snapshot{}, fmt.Errorf("load repositories: %w", err)
	}

	stored, err := a.Statuses.Load()
	if err != nil {
		snap.Warnings = append(snap.Warnings, Warning{Err: fmt.Errorf("status tags: %w", err)})
	}
	statuses := canonicalTags(stored)

	index := a.Claude.Index()
	pick := a.TieBreak
	if pick == nil {
		pick = claude.FirstSeen
	}

	workers := a.workers(len(repos))
	results := make([]repoResult, len(repos))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, repo := range repos {
		wg.Add(1)
		go func(i int, repo config.Repo) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = a.scanRepo(ctx, repo, index, pick, statuses)
		}(i, repo)
	}
	wg.Wait()

	for _, err := range index.Warnings() {
		snap.Warnings = append(snap.Warnings, Warning{Err: err})
	}

	var all []model.WorktreeInfo
	for _, r := range results {
		all = append(all, r.worktrees...)
		snap.Warnings = append(snap.Warnings, r.warnings...)
	}
	all = dedup(all)

	if a.Titles != nil {
		a.resolveTitles(ctx, all, workers)
	}

	SortWorktrees(all)
	snap.Worktrees = all

	a.logger().Debug("scan complete",
		"repos", len(repos),
		"worktrees", len(all),
		"warnings", len(snap.Warnings),
		"took", a.clock().Sub(start))
	return snap, nil
}

func (a *Aggregator) workers(repos int) int {
	n := repos
	if a.MaxWorkers > 0 && a.MaxWorkers < n {
		n = a.MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (a *Aggregator) scanRepo(ctx context.Context, repo config.Repo, index *claude.Index, pick claude.TieBreak, statuses map[string]model.Status) repoResult {
	var res repoResult
	root := claude.Canonicalize(repo.Path)

	records, err := a.Lister.ListWorktrees(ctx, root)
	if err != nil {
		a.logger().Warn("list worktrees", "repo", root, "err", err)
		res.warnings = append(res.warnings, Warning{Repo: root, Err: err})
		return res
	}

	for _, rec := range records {
		wt := model.WorktreeInfo{
			Path:     rec.Path,
			Branch:   rec.Branch,
			RepoName: repo.DisplayName(),
			RepoRoot: root,
			Tasks:    []model.Task{},

			CompletedTasks: []model.Task{},
		}
		if n, ok := issue.Extract(rec.Branch); ok {
			wt.IssueNumber = &n
		}
		if st, ok := statuses[claude.Canonicalize(rec.Path)]; ok {
			wt.Status = st
		}

		if sess, ok := index.Match(rec.Path, pick); ok {
			wt.SessionID = sess.ID
			wt.SessionSummary = sess.Summary

			set, err := a.Claude.LoadTasks(sess)
			if err != nil {
				res.warnings = append(res.warnings, Warning{Repo: root, Path: rec.Path, Err: err})
			}
			if set.Skipped > 0 {
				res.warnings = append(res.warnings, Warning{
					Repo: root,
					Path: rec.Path,
					Err:  fmt.Errorf("skipped %d unreadable task files", set.Skipped),
				})
			}
			if set.Active != nil {
				wt.Tasks = set.Active
			}
			if set.Completed != nil {
				wt.CompletedTasks = set.Completed
			}
		}
		res.worktrees = append(res.worktrees, wt)
	}
	return res
}

// canonicalTags rekeys status tags by canonical path. When two spellings of
// one path are both tagged, the canonical spelling wins.
func canonicalTags(stored map[string]model.Status) map[string]model.Status {
	out := make(map[string]model.Status, len(stored))
	for p, st := range stored {
		key := claude.Canonicalize(p)
		if _, taken := out[key]; taken && p != key {
			continue
		}
		out[key] = st
	}
	return out
}

// resolveTitles fills IssueTitle in place with at most workers lookups in
// flight.
func (a *Aggregator) resolveTitles(ctx context.Context, wts []model.WorktreeInfo, workers int) {
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range wts {
		if wts[i].IssueNumber == nil {
			continue
		}
		wg.Add(1)
		go func(wt *model.WorktreeInfo) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if title, ok := a.Titles.Title(ctx, wt.RepoRoot, *wt.IssueNumber); ok {
				wt.IssueTitle = title
			}
		}(&wts[i])
	}
	wg.Wait()
}

// dedup collapses entries with the same canonical path. The last entry's
// data wins; it takes the position of the first occurrence.
func dedup(wts []model.WorktreeInfo) []model.WorktreeInfo {
	pos := make(map[string]int, len(wts))
	out := wts[:0:0]
	for _, wt := range wts {
		key := claude.Canonicalize(wt.Path)
		if i, ok := pos[key]; ok {
			out[i] = wt
			continue
		}
		pos[key] = len(out)
		out = append(out, wt)
	}
	return out
}

func rank(wt model.WorktreeInfo) int {
	switch {
	case wt.HasInProgress():
		return 0
	case wt.HasTasks():
		return 1
	default:
		return 2
	}
}

// SortWorktrees orders worktrees with an in-progress task first, then those
// with any task. Ties keep their scan order.
func SortWorktrees(wts []model.WorktreeInfo) {
	sort.SliceStable(wts, func(i, j int) bool {
		return rank(wts[i]) < rank(wts[j])
	})
}
