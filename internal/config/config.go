// Package config loads wtdash settings and the repository list.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of wtdash settings.
type Config struct {
	ClaudeDir       string        `mapstructure:"claude_dir"`
	ReposFile       string        `mapstructure:"repos_file"`
	StatusFile      string        `mapstructure:"status_file"`
	LogFile         string        `mapstructure:"log_file"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	GitTimeout      time.Duration `mapstructure:"git_timeout"`
	TrackerTimeout  time.Duration `mapstructure:"tracker_timeout"`
	TitleTTL        time.Duration `mapstructure:"title_ttl"`
	SessionTieBreak string        `mapstructure:"session_tiebreak"`
	MaxWorkers      int           `mapstructure:"max_workers"`
	FetchTitles     bool          `mapstructure:"fetch_titles"`
	Watch           bool          `mapstructure:"watch"`
	Launcher        string        `mapstructure:"launcher"`
	TerminalCommand []string      `mapstructure:"terminal_command"`
	AgentCommand    []string      `mapstructure:"agent_command"`
}

// Dir is ~/.config/wtdash (or the platform equivalent).
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "wtdash")
}

// StateDir is where logs go: $XDG_STATE_HOME/wtdash or ~/.local/state/wtdash.
func StateDir() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return filepath.Join(d, "wtdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "wtdash")
}

// DefaultPath is the settings file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("claude_dir", filepath.Join(home, ".claude"))
	v.SetDefault("repos_file", filepath.Join(Dir(), "worktrees.yaml"))
	v.SetDefault("status_file", filepath.Join(Dir(), "worktree-status.json"))
	v.SetDefault("log_file", filepath.Join(StateDir(), "wtdash.log"))
	v.SetDefault("refresh_interval", 10*time.Second)
	v.SetDefault("git_timeout", 5*time.Second)
	v.SetDefault("tracker_timeout", 3*time.Second)
	v.SetDefault("title_ttl", 5*time.Minute)
	v.SetDefault("session_tiebreak", "first")
	v.SetDefault("max_workers", 0)
	v.SetDefault("fetch_titles", true)
	v.SetDefault("watch", false)
	v.SetDefault("launcher", "tmux")
	v.SetDefault("terminal_command", []string{"wezterm", "start", "--cwd", "{path}"})
	v.SetDefault("agent_command", []string{"claude"})
}

// Load reads the settings file at path (DefaultPath when empty) and applies
// WTDASH_* environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("wtdash")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ClaudeDir = expandHome(cfg.ClaudeDir)
	cfg.ReposFile = expandHome(cfg.ReposFile)
	cfg.StatusFile = expandHome(cfg.StatusFile)
	cfg.LogFile = expandHome(cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.SessionTieBreak {
	case "first", "recent":
	default:
		return fmt.Errorf("session_tiebreak: %q is not first or recent", c.SessionTieBreak)
	}
	switch c.Launcher {
	case "tmux", "terminal":
	default:
		return fmt.Errorf("launcher: %q is not tmux or terminal", c.Launcher)
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh_interval: %v is below 1s", c.RefreshInterval)
	}
	if c.Launcher == "terminal" && len(c.TerminalCommand) == 0 {
		return errors.New("terminal_command: required when launcher is terminal")
	}
	if len(c.AgentCommand) == 0 {
		return errors.New("agent_command: must not be empty")
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers: %d is negative", c.MaxWorkers)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
