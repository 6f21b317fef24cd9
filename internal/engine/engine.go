// Package engine wires the scanner, refresh scheduler, status store and
// action dispatcher into the single surface the dashboard and CLI use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"wtdash/internal/action"
	"wtdash/internal/claude"
	"wtdash/internal/config"
	"wtdash/internal/forge"
	"wtdash/internal/git"
	"wtdash/internal/model"
	"wtdash/internal/refresh"
	"wtdash/internal/scan"
	"wtdash/internal/status"
	"wtdash/internal/watch"
)

// ErrUnknownWorktree is returned for a path that is not in the latest snapshot.
var ErrUnknownWorktree = errors.New("unknown worktree")

// Actions is the subset of action.Dispatcher the engine uses.
type Actions interface {
	Resume(ctx context.Context, wt model.WorktreeInfo) (action.Result, error)
	OpenTerminal(ctx context.Context, wt model.WorktreeInfo) (action.Result, error)
	OpenIssue(ctx context.Context, wt model.WorktreeInfo) (action.Result, error)
}

// Engine is safe for concurrent use.
type Engine struct {
	sched    *refresh.Scheduler
	statuses status.Store
	actions  Actions
	log      *log.Logger

	watchDirs []string

	mu      sync.Mutex
	watcher *watch.Watcher
	stop    context.CancelFunc
}

// New builds an Engine from cfg.
func New(cfg *config.Config, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	pick, err := claude.TieBreakByName(cfg.SessionTieBreak)
	if err != nil {
		return nil, err
	}

	store := claude.NewStore(cfg.ClaudeDir, logger)
	statuses := status.NewFileStore(cfg.StatusFile)
	titles := forge.NewTitleCache(cfg.TitleTTL, cfg.TrackerTimeout, logger)

	agg := &scan.Aggregator{
		Repos:      func() ([]config.Repo, error) { return config.LoadRepos(cfg.ReposFile) },
		Lister:     git.Lister{Timeout: cfg.GitTimeout},
		Claude:     store,
		TieBreak:   pick,
		Statuses:   statuses,
		MaxWorkers: cfg.MaxWorkers,
		Log:        logger.WithPrefix("scan"),
	}
	if cfg.FetchTitles {
		agg.Titles = titles
	}

	actions := action.New(action.Config{
		Launcher:        cfg.Launcher,
		TerminalCommand: cfg.TerminalCommand,
		AgentCommand:    cfg.AgentCommand,
	}, titles, logger)

	e := build(agg.Scan, statuses, actions, cfg.RefreshInterval, logger)
	if cfg.Watch {
		e.watchDirs = []string{store.TasksDir(), store.ProjectsDir()}
	}
	return e, nil
}

func build(fn refresh.ScanFunc, statuses status.Store, actions Actions, interval time.Duration, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{
		sched:    refresh.New(fn, interval, logger),
		statuses: statuses,
		actions:  actions,
		log:      logger,
	}
}

// Start runs the periodic refresh (and the file watcher, if enabled) until
// ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.stop = cancel
	if len(e.watchDirs) > 0 {
		w, err := watch.New(e.watchDirs, watch.DefaultDelay, func() { e.sched.Trigger(refresh.ReasonWatch) }, e.log)
		if err != nil {
			e.log.Warn("file watcher disabled", "err", err)
		} else {
			e.watcher = w
			go w.Run(ctx)
		}
	}
	e.mu.Unlock()

	go e.sched.Run(ctx)
}

// Close stops background work and waits for any running scan.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.stop != nil {
		e.stop()
	}
	if e.watcher != nil {
		e.watcher.Close()
	}
	e.mu.Unlock()
	e.sched.Close()
}

// Scheduler exposes update delivery and visibility to views.
func (e *Engine) Scheduler() *refresh.Scheduler {
	return e.sched
}

// ListWorktrees returns the latest snapshot, scanning once if none exists.
func (e *Engine) ListWorktrees(ctx context.Context) (scan.Snapshot, error) {
	if snap, ok := e.sched.Snapshot(); ok {
		return snap, nil
	}
	return e.sched.Refresh(ctx)
}

// Refresh forces a new scan and waits for it.
func (e *Engine) Refresh(ctx context.Context) (scan.Snapshot, error) {
	return e.sched.Refresh(ctx)
}

// SetStatus tags the worktree at path; model.StatusUnset clears the tag.
func (e *Engine) SetStatus(path string, st model.Status) error {
	v, err := model.ParseStatus(string(st))
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrInvalidStatus, err)
	}

	// Tags are keyed by canonical path; drop any tag stored under the
	// spelling the caller or git used.
	raw := path
	if snap, ok := e.sched.Snapshot(); ok {
		if wt, found := snap.ByPath(path); found {
			raw = wt.Path
		}
	}
	key := claude.Canonicalize(raw)
	if raw != key {
		if err := e.statuses.Set(raw, model.StatusUnset); err != nil {
			return err
		}
	}
	if err := e.statuses.Set(key, v); err != nil {
		return err
	}
	e.log.Info("status set", "path", key, "status", v)
	e.sched.Trigger(refresh.ReasonAction)
	return nil
}

// ByPath finds a worktree in the latest snapshot.
func (e *Engine) ByPath(ctx context.Context, path string) (model.WorktreeInfo, error) {
	snap, err := e.ListWorktrees(ctx)
	if err != nil {
		return model.WorktreeInfo{}, err
	}
	wt, ok := snap.ByPath(path)
	if !ok {
		return model.WorktreeInfo{}, fmt.Errorf("%w: %s", ErrUnknownWorktree, path)
	}
	return wt, nil
}

// ByIssue returns every worktree whose branch references issue n.
func (e *Engine) ByIssue(ctx context.Context, n uint) ([]model.WorktreeInfo, error) {
	snap, err := e.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ByIssue(n), nil
}

// Resume starts or reattaches the agent session for the worktree at path.
func (e *Engine) Resume(ctx context.Context, path string) (action.Result, error) {
	return e.dispatch(ctx, path, e.actions.Resume)
}

// OpenTerminal opens a shell at the worktree.
func (e *Engine) OpenTerminal(ctx context.Context, path string) (action.Result, error) {
	return e.dispatch(ctx, path, e.actions.OpenTerminal)
}

// OpenIssue opens the worktree's issue page.
func (e *Engine) OpenIssue(ctx context.Context, path string) (action.Result, error) {
	return e.dispatch(ctx, path, e.actions.OpenIssue)
}

func (e *Engine) dispatch(ctx context.Context, path string, fn func(context.Context, model.WorktreeInfo) (action.Result, error)) (action.Result, error) {
	wt, err := e.ByPath(ctx, path)
	if err != nil {
		return action.Result{}, err
	}
	res, err := fn(ctx, wt)
	if err != nil {
		e.log.Warn("action failed", "path", wt.Path, "err", err)
		return res, err
	}
	e.sched.Trigger(refresh.ReasonAction)
	return res, nil
}
