package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wtdash/internal/config"
	"wtdash/internal/git"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage the repositories wtdash scans",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print configured repositories",
	Args:  cobra.NoArgs,
	RunE:  runReposList,
}

var reposAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Add a repository (default: the current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReposAdd,
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Stop scanning a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposRemove,
}

var reposName string

func init() {
	reposAddCmd.Flags().StringVar(&reposName, "name", "", "Display name (default: directory name)")
	reposCmd.AddCommand(reposListCmd, reposAddCmd, reposRemoveCmd)
	rootCmd.AddCommand(reposCmd)
}

func runReposList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repos, err := config.LoadRepos(cfg.ReposFile)
	if errors.Is(err, config.ErrNoRepos) {
		fmt.Fprintf(cmd.OutOrStdout(), "No repositories configured. Add one with: wtdash repos add <path>\n")
		return nil
	}
	if err != nil {
		return err
	}
	for _, r := range repos {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", r.DisplayName(), r.Path)
	}
	return nil
}

func runReposAdd(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	root, err := git.RepoRoot(cmd.Context(), abs)
	if err != nil {
		return fmt.Errorf("%s is not a git repository: %w", abs, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	added, err := config.AddRepo(cfg.ReposFile, config.Repo{Path: root, Name: reposName})
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already configured\n", root)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", root)
	return nil
}

func runReposRemove(cmd *cobra.Command, args []string) error {
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	removed, err := config.RemoveRepo(cfg.ReposFile, abs)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(os.Stderr, "%s was not configured\n", abs)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", abs)
	return nil
}
