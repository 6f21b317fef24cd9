package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"wtdash/internal/engine"
	"wtdash/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Tag worktrees with a manual status",
}

var statusSetCmd = &cobra.Command{
	Use:   "set <path> <status>",
	Short: "Tag a worktree: " + statusNames(),
	Args:  cobra.ExactArgs(2),
	RunE:  runStatusSet,
}

var statusClearCmd = &cobra.Command{
	Use:   "clear <path>",
	Short: "Remove a worktree's status tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(cmd, args[0], model.StatusUnset)
	},
}

func init() {
	statusCmd.AddCommand(statusSetCmd, statusClearCmd)
	rootCmd.AddCommand(statusCmd)
}

func statusNames() string {
	names := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func runStatusSet(cmd *cobra.Command, args []string) error {
	st, err := model.ParseStatus(args[1])
	if err != nil {
		return err
	}
	return setStatus(cmd, args[0], st)
}

func setStatus(cmd *cobra.Command, path string, st model.Status) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer eng.Close()

	wt, err := eng.ByPath(cmd.Context(), abs)
	if err != nil {
		return err
	}
	if err := eng.SetStatus(wt.Path, st); err != nil {
		return err
	}

	if st == model.StatusUnset {
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared status of %s\n", wt.Slug())
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", wt.Slug(), st)
	}
	return nil
}
