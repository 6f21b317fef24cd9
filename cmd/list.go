package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"wtdash/internal/engine"
	"wtdash/internal/model"
	"wtdash/internal/scan"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Scan once and print every worktree with its progress",
	RunE:  runList,
}

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(listCmd)
}

// listEntry is the JSON shape of one worktree.
type listEntry struct {
	model.WorktreeInfo
	Progress model.Progress `json:"progress"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg, newLogger(os.Stderr))
	if err != nil {
		return err
	}
	defer eng.Close()

	snap, err := eng.ListWorktrees(cmd.Context())
	if err != nil {
		return err
	}
	for _, w := range snap.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w.Error())
	}

	if listJSON {
		return writeJSON(cmd.OutOrStdout(), snap)
	}
	if len(snap.Worktrees) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No worktrees found.")
		return nil
	}
	writeTable(cmd.OutOrStdout(), snap.Worktrees)
	return nil
}

func writeJSON(w io.Writer, snap scan.Snapshot) error {
	entries := make([]listEntry, len(snap.Worktrees))
	for i, wt := range snap.Worktrees {
		entries[i] = listEntry{WorktreeInfo: wt, Progress: wt.Progress()}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

var (
	headStyle = lipgloss.NewStyle().Bold(true)
	cellDim   = lipgloss.NewStyle().Faint(true)
	cellOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	cellWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func writeTable(w io.Writer, wts []model.WorktreeInfo) {
	cols := []int{2, 32, 14, 8, 10, 16}
	cell := func(i int, s string, st lipgloss.Style) string {
		return st.Width(cols[i]).MaxWidth(cols[i]).Render(s)
	}

	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
		cell(0, "", headStyle),
		cell(1, "WORKTREE", headStyle),
		cell(2, "REPO", headStyle),
		cell(3, "ISSUE", headStyle),
		cell(4, "TASKS", headStyle),
		cell(5, "STATUS", headStyle),
		headStyle.Render("SESSION"),
	))

	for _, wt := range wts {
		p := wt.Progress()
		mark, tasks := " ", cellDim.Render("-")
		switch p.Bucket {
		case model.BucketInProgress:
			tasks = cellWarn.Render(fmt.Sprintf("%d/%d", p.Completed, p.Total))
		case model.BucketCompleted:
			tasks = cellOK.Render(fmt.Sprintf("%d/%d", p.Completed, p.Total))
		}
		if wt.HasInProgress() {
			mark = "▶"
		}
		issue := "-"
		if wt.IssueNumber != nil {
			issue = fmt.Sprintf("#%d", *wt.IssueNumber)
		}
		status := string(wt.Status)
		if status == "" {
			status = "-"
		}
		session := wt.SessionID
		if session == "" {
			session = "-"
		}

		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			cell(0, mark, lipgloss.NewStyle()),
			cell(1, wt.Slug(), lipgloss.NewStyle()),
			cell(2, wt.RepoName, cellDim),
			cell(3, issue, lipgloss.NewStyle()),
			cell(4, tasks, lipgloss.NewStyle()),
			cell(5, status, lipgloss.NewStyle()),
			cellDim.Render(session),
		))
	}
}
