package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval != 10*time.Second {
		t.Errorf("RefreshInterval = %v, want 10s", cfg.RefreshInterval)
	}
	if cfg.GitTimeout != 5*time.Second || cfg.TrackerTimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.GitTimeout, cfg.TrackerTimeout)
	}
	if cfg.SessionTieBreak != "first" {
		t.Errorf("SessionTieBreak = %q", cfg.SessionTieBreak)
	}
	if !cfg.FetchTitles {
		t.Error("FetchTitles should default to true")
	}
	if len(cfg.AgentCommand) != 1 || cfg.AgentCommand[0] != "claude" {
		t.Errorf("AgentCommand = %v", cfg.AgentCommand)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `refresh_interval: 30s
session_tiebreak: recent
launcher: terminal
terminal_command: [kitty, --directory, "{path}"]
claude_dir: ~/alt-claude
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WTDASH_MAX_WORKERS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.SessionTieBreak != "recent" || cfg.Launcher != "terminal" {
		t.Errorf("got tiebreak %q launcher %q", cfg.SessionTieBreak, cfg.Launcher)
	}
	if len(cfg.TerminalCommand) != 3 || cfg.TerminalCommand[0] != "kitty" {
		t.Errorf("TerminalCommand = %v", cfg.TerminalCommand)
	}
	if cfg.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3 from env", cfg.MaxWorkers)
	}
	home, _ := os.UserHomeDir()
	if cfg.ClaudeDir != filepath.Join(home, "alt-claude") {
		t.Errorf("ClaudeDir = %q", cfg.ClaudeDir)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"tiebreak": "session_tiebreak: newest\n",
		"launcher": "launcher: screen\n",
		"interval": "refresh_interval: 10ms\n",
		"syntax":   "refresh_interval: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
