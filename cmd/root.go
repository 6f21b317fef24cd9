package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"wtdash/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "wtdash",
	Short: "Dashboard for git worktrees and their Claude sessions",
	Long: `wtdash scans the git repositories listed in ~/.config/wtdash/worktrees.yaml,
matches every worktree with its Claude Code session, and shows task progress
in a live dashboard. Run without a subcommand to open the dashboard.`,
	SilenceUsage: true,
	RunE:         runDash,
}

var (
	configPath string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default ~/.config/wtdash/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return cfg, nil
}

// newLogger writes to w at warn level, or debug with --debug.
func newLogger(w io.Writer) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "wtdash",
	})
}

// fileLogger opens path for appending; the dashboard owns stdout and stderr.
func fileLogger(path string) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := newLogger(f)
	if !debug {
		logger.SetLevel(log.InfoLevel)
	}
	return logger, f, nil
}
