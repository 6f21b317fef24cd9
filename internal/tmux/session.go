// Package tmux manages the detached sessions wtdash resumes agents in. All
// sessions live on a private socket so they never collide with the user's
// own tmux server.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const socketName = "wtdash"

// run is swapped out in tests.
var run = func(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "tmux", append([]string{"-L", socketName}, args...)...).CombinedOutput()
}

// SessionExists reports whether a named session exists on the wtdash socket.
func SessionExists(ctx context.Context, slug string) bool {
	_, err := run(ctx, "has-session", "-t", "="+slug)
	return err == nil
}

// NeedsInput reports whether the named session is idle and awaiting input.
// It takes two pane snapshots 300 ms apart: a static pane means the agent has
// finished and is waiting; a changing pane means it is still working.
func NeedsInput(ctx context.Context, slug string) bool {
	snap := func() []byte {
		out, _ := run(ctx, "capture-pane", "-t", "="+slug, "-p", "-J")
		return out
	}
	a := snap()
	select {
	case <-ctx.Done():
		return false
	case <-time.After(300 * time.Millisecond):
	}
	b := snap()
	return bytes.Equal(a, b)
}

// configPath returns the wtdash tmux config path, writing defaults if absent.
// The config binds Ctrl+] as a no-prefix detach key so users can return to
// the dashboard without needing to know tmux shortcuts.
func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	p := filepath.Join(dir, "wtdash", "tmux.conf")
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	const conf = "# wtdash tmux config, rewritten on every session start\n" +
		"# Ctrl+] returns you to the dashboard without stopping the agent\n" +
		"bind-key -n C-] detach-client\n" +
		"# Mouse wheel / PageUp enters scroll mode so you can read long plans\n" +
		"set -g mouse on\n" +
		"bind-key -n PageUp copy-mode\n"
	if err := os.WriteFile(p, []byte(conf), 0644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return p, nil
}

// EnsureSession creates a detached session running command in dir if one
// does not already exist. An empty command starts the default shell.
// Idempotent: safe to call before every attach.
func EnsureSession(ctx context.Context, slug, dir string, command []string) error {
	if SessionExists(ctx, slug) {
		return nil
	}
	cfgPath, err := configPath()
	if err != nil {
		return err
	}
	args := []string{"-f", cfgPath, "new-session", "-d", "-s", slug, "-c", dir}
	args = append(args, command...)
	if out, err := run(ctx, args...); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("tmux new-session %s: %s", slug, msg)
	}
	return nil
}

// AttachCmd returns a command that attaches the terminal to a named session.
// Pass the result to tea.ExecProcess: the dashboard resumes when the user
// detaches (Ctrl+]) or when the agent exits.
func AttachCmd(slug string) *exec.Cmd {
	return exec.Command("tmux", "-L", socketName, "attach-session", "-t", "="+slug)
}
