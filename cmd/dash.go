package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"wtdash/internal/engine"
	"wtdash/internal/tui"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open the live worktree dashboard (default)",
	RunE:  runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := fileLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	eng.Start(ctx)

	p := tea.NewProgram(tui.New(eng, eng.Scheduler()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
