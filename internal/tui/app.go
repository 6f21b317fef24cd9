package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wtdash/internal/action"
	"wtdash/internal/model"
	"wtdash/internal/refresh"
	"wtdash/internal/scan"
	"wtdash/internal/tmux"
)

// actionTimeout bounds starting an action; attaching is not included.
const actionTimeout = 10 * time.Second

// Backend is what the dashboard drives. *engine.Engine satisfies it.
type Backend interface {
	SetStatus(path string, st model.Status) error
	Resume(ctx context.Context, path string) (action.Result, error)
	OpenTerminal(ctx context.Context, path string) (action.Result, error)
	OpenIssue(ctx context.Context, path string) (action.Result, error)
}

// Scheduler delivers snapshots and accepts refresh triggers.
// *refresh.Scheduler satisfies it.
type Scheduler interface {
	Updates() <-chan scan.Snapshot
	Trigger(reason refresh.Reason)
	SetVisible(v bool)
	State() refresh.State
	LastErr() error
}

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateSetStatus
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().PaddingLeft(2)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// — keys ————————————————————————————————————————————————————————————————————

type keyMap struct {
	Nav      key.Binding
	Resume   key.Binding
	Terminal key.Binding
	Issue    key.Binding
	Status   key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Nav, k.Resume, k.Terminal, k.Issue, k.Status, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Nav:      key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "navigate")),
	Resume:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "resume")),
	Terminal: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "terminal")),
	Issue:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open issue")),
	Status:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// — messages ————————————————————————————————————————————————————————————————

type snapshotMsg struct {
	snap scan.Snapshot
}

type actionDoneMsg struct {
	res action.Result
	err error
}

type attachExitedMsg struct {
	err error
}

type statusSetMsg struct {
	path string
	st   model.Status
	err  error
}

type agentStateMsg struct {
	path       string
	running    bool
	needsInput bool
}

// — list item ———————————————————————————————————————————————————————————————

type agentState struct {
	running    bool
	needsInput bool
}

type worktreeItem struct {
	wt    model.WorktreeInfo
	agent agentState
}

func (i worktreeItem) Title() string {
	var indicator string
	switch {
	case i.agent.needsInput:
		indicator = warnStyle.Render("*")
	case i.agent.running:
		indicator = okStyle.Render("●")
	case i.wt.HasInProgress():
		indicator = "▶"
	default:
		indicator = " "
	}
	return indicator + " " + i.wt.Slug() + "  " + progressBar(i.wt.Progress(), 10)
}

func (i worktreeItem) Description() string {
	parts := []string{i.wt.RepoName}
	if i.wt.IssueNumber != nil {
		parts = append(parts, fmt.Sprintf("#%d", *i.wt.IssueNumber))
	}
	if i.wt.Status != model.StatusUnset {
		parts = append(parts, string(i.wt.Status))
	}
	return strings.Join(parts, " · ")
}

func (i worktreeItem) FilterValue() string { return i.wt.Slug() }

// progressBar renders e.g. "███░░░░░░░ 1/3".
func progressBar(p model.Progress, width int) string {
	if p.Bucket == model.BucketNone {
		return dimStyle.Render("no tasks")
	}
	filled := p.Percent * width / 100
	bar := strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("░", width-filled))
	if p.Bucket == model.BucketCompleted {
		bar = okStyle.Render(strings.Repeat("█", width))
	}
	return fmt.Sprintf("%s %d/%d", bar, p.Completed, p.Total)
}

// — model ———————————————————————————————————————————————————————————————————

type Model struct {
	backend Backend
	sched   Scheduler

	list      list.Model
	spinner   spinner.Model
	help      help.Model
	worktrees []model.WorktreeInfo
	warnings  []scan.Warning
	agents    map[string]agentState
	gen       uint64
	width     int
	height    int
	loading   bool

	refreshing bool
	lastErr    error
	message    string
	msgErr     bool

	state appState
}

func New(backend Backend, sched Scheduler) Model {
	delegate := list.NewDefaultDelegate()

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Worktrees"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	sp := spinner.New()
	sp.Spinner = spinner.Line

	return Model{
		backend: backend,
		sched:   sched,
		list:    l,
		spinner: sp,
		help:    help.New(),
		agents:  map[string]agentState{},
		loading: true,
	}
}

// — commands ————————————————————————————————————————————————————————————————

func waitForSnapshot(ch <-chan scan.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-ch}
	}
}

func runAction(fn func(context.Context, string) (action.Result, error), path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res, err := fn(ctx, path)
		return actionDoneMsg{res: res, err: err}
	}
}

func setStatusCmd(b Backend, path string, st model.Status) tea.Cmd {
	return func() tea.Msg {
		return statusSetMsg{path: path, st: st, err: b.SetStatus(path, st)}
	}
}

// checkAgentCmd checks whether a tmux session for wt is alive and idle.
func checkAgentCmd(wt model.WorktreeInfo) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		slug := wt.SessionName()
		msg := agentStateMsg{path: wt.Path}
		if tmux.SessionExists(ctx, slug) {
			msg.running = true
			msg.needsInput = tmux.NeedsInput(ctx, slug)
		}
		return msg
	}
}

// buildItems rebuilds the list items and selects the entry at path.
func (m *Model) buildItems(selected string) {
	items := make([]list.Item, len(m.worktrees))
	idx := 0
	for i, wt := range m.worktrees {
		items[i] = worktreeItem{wt: wt, agent: m.agents[wt.Path]}
		if wt.Path == selected {
			idx = i
		}
	}
	m.list.SetItems(items)
	m.list.Select(idx)
}

func (m *Model) flash(text string, isErr bool) {
	m.message = text
	m.msgErr = isErr
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.sched.Updates()), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		lw, lh := m.listDimensions()
		m.list.SetSize(lw, lh)
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		m.refreshing = m.sched.State() == refresh.Refreshing
		m.lastErr = m.sched.LastErr()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		next := waitForSnapshot(m.sched.Updates())
		if msg.snap.Generation < m.gen {
			return m, next
		}
		selected := m.selectedPath()
		m.loading = false
		m.gen = msg.snap.Generation
		m.worktrees = msg.snap.Worktrees
		m.warnings = msg.snap.Warnings
		m.buildItems(selected)
		cmds := []tea.Cmd{next}
		for _, wt := range m.worktrees {
			cmds = append(cmds, checkAgentCmd(wt))
		}
		return m, tea.Batch(cmds...)

	case agentStateMsg:
		m.agents[msg.path] = agentState{running: msg.running, needsInput: msg.needsInput}
		m.buildItems(m.selectedPath())
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.flash(msg.err.Error(), true)
			return m, nil
		}
		m.flash(msg.res.Message, false)
		if msg.res.Attach != nil {
			m.sched.SetVisible(false)
			return m, tea.ExecProcess(msg.res.Attach, func(err error) tea.Msg {
				return attachExitedMsg{err: err}
			})
		}
		return m, nil

	case attachExitedMsg:
		// Back from the agent: refresh and return to the overview.
		m.sched.SetVisible(true)
		m.sched.Trigger(refresh.ReasonUser)
		if msg.err != nil {
			m.flash(msg.err.Error(), true)
		} else {
			m.flash("", false)
		}
		return m, nil

	case statusSetMsg:
		if msg.err != nil {
			m.flash(msg.err.Error(), true)
			return m, nil
		}
		for i := range m.worktrees {
			if m.worktrees[i].Path == msg.path {
				m.worktrees[i].Status = msg.st
			}
		}
		m.buildItems(m.selectedPath())
		if msg.st == model.StatusUnset {
			m.flash("status cleared", false)
		} else {
			m.flash("status set to "+string(msg.st), false)
		}
		return m, nil
	}

	switch m.state {
	case stateSetStatus:
		return m.updateSetStatus(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			m.sched.Trigger(refresh.ReasonUser)
			m.refreshing = true
			return m, nil
		case key.Matches(msg, keys.Resume):
			if wt := m.selected(); wt != nil {
				return m, runAction(m.backend.Resume, wt.Path)
			}
			return m, nil
		case key.Matches(msg, keys.Terminal):
			if wt := m.selected(); wt != nil {
				return m, runAction(m.backend.OpenTerminal, wt.Path)
			}
			return m, nil
		case key.Matches(msg, keys.Issue):
			if wt := m.selected(); wt != nil {
				return m, runAction(m.backend.OpenIssue, wt.Path)
			}
			return m, nil
		case key.Matches(msg, keys.Status):
			if m.selected() != nil {
				m.state = stateSetStatus
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateSetStatus(msg tea.Msg) (tea.Model, tea.Cmd) {
	msgKey, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	wt := m.selected()
	if wt == nil {
		m.state = stateNormal
		return m, nil
	}

	switch k := msgKey.String(); k {
	case "esc", "q":
		m.state = stateNormal
		return m, nil
	case "s", "enter":
		m.state = stateNormal
		return m, setStatusCmd(m.backend, wt.Path, wt.Status.Next())
	case "0", "x":
		m.state = stateNormal
		return m, setStatusCmd(m.backend, wt.Path, model.StatusUnset)
	default:
		if len(k) == 1 && k[0] >= '1' && int(k[0]-'1') < len(model.Statuses) {
			m.state = stateNormal
			return m, setStatusCmd(m.backend, wt.Path, model.Statuses[k[0]-'1'])
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.loading {
		text := m.spinner.View() + " Loading worktrees…"
		if m.lastErr != nil {
			text = errStyle.Render(fmt.Sprintf("Error: %v", m.lastErr)) + "\n\nPress r to retry, q to quit."
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(text)
	}

	if m.state == stateSetStatus {
		return m.renderStatusModal()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), m.renderDetail())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m Model) listDimensions() (width, height int) {
	return m.width * 2 / 5, m.height - 3
}

func (m Model) renderDetail() string {
	lw, _ := m.listDimensions()
	dw := m.width - lw
	dh := m.height - 3

	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(dw - 1).
		Height(dh)

	// Width of inner text area: box width minus padding
	contentWidth := (dw - 1) - 3 - 2

	wt := m.selected()
	if wt == nil {
		return style.Render(dimStyle.Render("No worktrees found. Add a repository with: wtdash repos add <path>"))
	}

	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	var b strings.Builder
	b.WriteString(detailHeadStyle.Render(wt.Slug()) + "\n\n")
	b.WriteString(row("Repo     ", wt.RepoName))
	b.WriteString(row("Branch   ", wt.Branch))
	b.WriteString(row("Path     ", wt.Path))
	if wt.IssueNumber != nil {
		issue := fmt.Sprintf("#%d", *wt.IssueNumber)
		if wt.IssueTitle != "" {
			issue += " " + truncate(wt.IssueTitle, contentWidth-9-len(issue)-1)
		}
		b.WriteString(row("Issue    ", issue))
	}
	b.WriteString(row("Status   ", statusLabel(wt.Status)))
	b.WriteString(row("Agent    ", agentLabel(m.agents[wt.Path])))
	if wt.SessionID != "" {
		b.WriteString(row("Session  ", dimStyle.Render(wt.SessionID)))
		if wt.SessionSummary != "" {
			b.WriteString("         " + truncate(wt.SessionSummary, contentWidth-9) + "\n")
		}
	} else {
		b.WriteString(row("Session  ", dimStyle.Render("none")))
	}

	b.WriteString("\n" + dimStyle.Render(strings.Repeat("─", max(contentWidth, 0))) + "\n\n")
	b.WriteString(renderTasks(*wt, contentWidth))

	if m.agents[wt.Path].running {
		b.WriteString("\n" + dimStyle.Render("Ctrl+] → back to the dashboard without stopping the agent\n"))
	}
	return style.Render(b.String())
}

func renderTasks(wt model.WorktreeInfo, contentWidth int) string {
	if !wt.HasTasks() {
		return dimStyle.Render("No tasks") + "\n"
	}

	var b strings.Builder
	p := wt.Progress()
	b.WriteString(boldStyle.Render("Tasks") + "  " + progressBar(p, 20) + fmt.Sprintf(" %d%%", p.Percent) + "\n\n")

	for _, t := range wt.Tasks {
		var mark string
		if t.Status == model.TaskInProgress {
			mark = warnStyle.Render("▶")
		} else {
			mark = "○"
		}
		line := fmt.Sprintf("%s %s. %s", mark, t.ID, truncate(t.Label(), contentWidth-6))
		if len(t.BlockedBy) > 0 {
			line += dimStyle.Render("  blocked by " + strings.Join(t.BlockedBy, ", "))
		}
		b.WriteString(line + "\n")
	}
	for _, t := range wt.CompletedTasks {
		b.WriteString(dimStyle.Render(fmt.Sprintf("✓ %s. %s", t.ID, truncate(t.Subject, contentWidth-6))) + "\n")
	}
	return b.String()
}

func statusLabel(st model.Status) string {
	switch st {
	case model.StatusInProgress:
		return warnStyle.Render("in progress")
	case model.StatusReviewing:
		return warnStyle.Render("reviewing")
	case model.StatusMerged:
		return okStyle.Render("merged")
	case model.StatusReadyToClose:
		return okStyle.Render("ready to close")
	default:
		return dimStyle.Render("—")
	}
}

func agentLabel(a agentState) string {
	switch {
	case a.needsInput:
		return warnStyle.Render("needs input")
	case a.running:
		return okStyle.Render("● running")
	default:
		return dimStyle.Render("idle")
	}
}

func truncate(s string, width int) string {
	if width <= 1 || len([]rune(s)) <= width {
		return s
	}
	return string([]rune(s)[:width-1]) + "…"
}

func (m Model) renderFooter() string {
	var status string
	switch {
	case m.message != "" && m.msgErr:
		status = errStyle.Render(m.message)
	case m.message != "":
		status = okStyle.Render(m.message)
	case m.lastErr != nil:
		status = errStyle.Render("refresh failed: " + m.lastErr.Error())
	case len(m.warnings) > 0:
		status = warnStyle.Render(fmt.Sprintf("%d warnings: %s", len(m.warnings), m.warnings[0].Error()))
	}
	if m.refreshing {
		status = m.spinner.View() + " " + status
	}

	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(truncate(status, m.width-2)) + "\n" + helpStyle.Render(m.help.View(keys))
}

func (m Model) renderStatusModal() string {
	wt := m.selected()
	var b strings.Builder
	b.WriteString(boldStyle.Render("Set Status") + "\n\n")
	if wt != nil {
		b.WriteString(dimStyle.Render(wt.Slug()) + "\n\n")
	}
	for i, st := range model.Statuses {
		line := fmt.Sprintf("%d  %s", i+1, st)
		if wt != nil && wt.Status == st {
			line = okStyle.Render(line + "  ✓")
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("0  clear\n")
	b.WriteString("\n" + dimStyle.Render("s/Enter next · 1-4 pick · 0 clear · Esc cancel"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) selectedPath() string {
	if wt := m.selected(); wt != nil {
		return wt.Path
	}
	return ""
}

func (m Model) selected() *model.WorktreeInfo {
	if len(m.worktrees) == 0 {
		return nil
	}
	idx := m.list.Index()
	if idx < 0 || idx >= len(m.worktrees) {
		return nil
	}
	return &m.worktrees[idx]
}
