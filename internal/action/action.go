// Package action launches the external processes behind dashboard actions:
// resuming an agent session, opening a terminal and opening an issue page.
// Every action is fire-and-forget; success means the process started.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"wtdash/internal/forge"
	"wtdash/internal/model"
	"wtdash/internal/tmux"
)

var (
	// ErrNoIssue is returned by OpenIssue for a branch without an issue number.
	ErrNoIssue = errors.New("branch has no issue number")
	// ErrNoTracker is returned by OpenIssue when the origin remote is not a
	// recognised GitHub or GitLab project.
	ErrNoTracker = errors.New("no issue tracker for repository")
)

// Launchers.
const (
	LauncherTmux     = "tmux"
	LauncherTerminal = "terminal"
)

// PathPlaceholder is replaced by the worktree path in terminal commands.
const PathPlaceholder = "{path}"

// Config selects how sessions and terminals are launched.
type Config struct {
	Launcher        string
	TerminalCommand []string
	AgentCommand    []string
}

// Result describes a started action. Attach, when set, is an interactive
// command the view should hand the terminal to.
type Result struct {
	Message string
	Attach  *exec.Cmd
}

// TrackerSource resolves the issue tracker for a repository.
type TrackerSource interface {
	Tracker(ctx context.Context, repoRoot string) forge.Tracker
}

// Seams swapped out in tests.
var (
	spawn         = startDetached
	ensureSession = tmux.EnsureSession
	attachCmd     = tmux.AttachCmd
	goos          = runtime.GOOS
)

// startDetached starts argv in dir and reaps it in the background.
func startDetached(argv []string, dir string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// Dispatcher runs actions against worktrees.
type Dispatcher struct {
	cfg      Config
	trackers TrackerSource
	log      *log.Logger
}

// New returns a Dispatcher. trackers may be nil, which disables OpenIssue.
func New(cfg Config, trackers TrackerSource, logger *log.Logger) *Dispatcher {
	if cfg.Launcher == "" {
		cfg.Launcher = LauncherTmux
	}
	if len(cfg.AgentCommand) == 0 {
		cfg.AgentCommand = []string{"claude"}
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Dispatcher{cfg: cfg, trackers: trackers, log: logger.WithPrefix("action")}
}

// agentArgs is the agent command, resuming the worktree's session if any.
func (d *Dispatcher) agentArgs(wt model.WorktreeInfo) []string {
	args := append([]string(nil), d.cfg.AgentCommand...)
	if wt.SessionID != "" {
		args = append(args, "--resume", wt.SessionID)
	}
	return args
}

// terminalArgs expands the terminal template for path.
func (d *Dispatcher) terminalArgs(path string) []string {
	out := make([]string, len(d.cfg.TerminalCommand))
	for i, a := range d.cfg.TerminalCommand {
		out[i] = strings.ReplaceAll(a, PathPlaceholder, path)
	}
	return out
}

// Resume starts (or reattaches to) the agent session for wt.
func (d *Dispatcher) Resume(ctx context.Context, wt model.WorktreeInfo) (Result, error) {
	agent := d.agentArgs(wt)

	switch d.cfg.Launcher {
	case LauncherTmux:
		slug := wt.SessionName()
		if err := ensureSession(ctx, slug, wt.Path, agent); err != nil {
			return Result{}, fmt.Errorf("resume %s: %w", slug, err)
		}
		d.log.Info("session ready", "slug", slug, "session", wt.SessionID)
		return Result{Message: "attaching to " + slug, Attach: attachCmd(slug)}, nil
	case LauncherTerminal:
		if len(d.cfg.TerminalCommand) == 0 {
			return Result{}, errors.New("resume: terminal_command is not configured")
		}
		argv := append(d.terminalArgs(wt.Path), agent...)
		if err := spawn(argv, wt.Path); err != nil {
			return Result{}, fmt.Errorf("resume in %s: %w", argv[0], err)
		}
		d.log.Info("agent launched", "path", wt.Path, "session", wt.SessionID)
		return Result{Message: "launched " + strings.Join(agent, " ")}, nil
	default:
		return Result{}, fmt.Errorf("unknown launcher %q", d.cfg.Launcher)
	}
}

// OpenTerminal opens a shell at the worktree. With the tmux launcher this
// is a detached shell session the view can attach to.
func (d *Dispatcher) OpenTerminal(ctx context.Context, wt model.WorktreeInfo) (Result, error) {
	if d.cfg.Launcher == LauncherTmux {
		slug := wt.SessionName() + "-sh"
		if err := ensureSession(ctx, slug, wt.Path, nil); err != nil {
			return Result{}, fmt.Errorf("open terminal: %w", err)
		}
		return Result{Message: "shell session " + slug, Attach: attachCmd(slug)}, nil
	}

	if len(d.cfg.TerminalCommand) == 0 {
		return Result{}, errors.New("open terminal: terminal_command is not configured")
	}
	argv := d.terminalArgs(wt.Path)
	if err := spawn(argv, wt.Path); err != nil {
		return Result{}, fmt.Errorf("open terminal %s: %w", argv[0], err)
	}
	return Result{Message: "opened terminal at " + wt.Path}, nil
}

// OpenIssue opens the tracker page for the worktree's issue in a browser.
func (d *Dispatcher) OpenIssue(ctx context.Context, wt model.WorktreeInfo) (Result, error) {
	if wt.IssueNumber == nil {
		return Result{}, ErrNoIssue
	}
	if d.trackers == nil {
		return Result{}, ErrNoTracker
	}
	tracker := d.trackers.Tracker(ctx, wt.RepoRoot)
	if tracker == nil {
		return Result{}, ErrNoTracker
	}

	url := tracker.IssueURL(*wt.IssueNumber)
	if err := spawn(openerArgs(url), ""); err != nil {
		return Result{}, fmt.Errorf("open %s: %w", url, err)
	}
	return Result{Message: "opened " + url}, nil
}

// openerArgs is the platform's "open this URL" command.
func openerArgs(url string) []string {
	switch goos {
	case "darwin":
		return []string{"open", url}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}
	default:
		return []string{"xdg-open", url}
	}
}
