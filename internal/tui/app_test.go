package tui

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"wtdash/internal/action"
	"wtdash/internal/model"
	"wtdash/internal/refresh"
	"wtdash/internal/scan"
)

type fakeBackend struct {
	statuses map[string]model.Status
	resumed  []string
	result   action.Result
}

func (f *fakeBackend) SetStatus(path string, st model.Status) error {
	f.statuses[path] = st
	return nil
}

func (f *fakeBackend) Resume(_ context.Context, path string) (action.Result, error) {
	f.resumed = append(f.resumed, path)
	return f.result, nil
}

func (f *fakeBackend) OpenTerminal(context.Context, string) (action.Result, error) {
	return action.Result{}, nil
}

func (f *fakeBackend) OpenIssue(context.Context, string) (action.Result, error) {
	return action.Result{}, action.ErrNoIssue
}

type fakeScheduler struct {
	updates  chan scan.Snapshot
	visible  bool
	triggers []refresh.Reason
}

func (f *fakeScheduler) Updates() <-chan scan.Snapshot { return f.updates }
func (f *fakeScheduler) Trigger(r refresh.Reason) { f.triggers = append(f.triggers, r) }
func (f *fakeScheduler) SetVisible(v bool) { f.visible = v }
func (f *fakeScheduler) State() refresh.State { return refresh.Idle }
func (f *fakeScheduler) LastErr() error { return nil }

func newTestModel() (Model, *fakeBackend, *fakeScheduler) {
	b := &fakeBackend{statuses: map[string]model.Status{}}
	s := &fakeScheduler{updates: make(chan scan.Snapshot, 1), visible: true}
	m := New(b, s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), b, s
}

func snapshot(gen uint64, paths ...string) scan.Snapshot {
	var wts []model.WorktreeInfo
	for _, p := range paths {
		wts = append(wts, model.WorktreeInfo{Path: p, Branch: strings.TrimPrefix(p, "/wt/")})
	}
	return scan.Snapshot{Generation: gen, Worktrees: wts}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStaleSnapshotIgnored(t *testing.T) {
	m, _, _ := newTestModel()

	next, _ := m.Update(snapshotMsg{snap: snapshot(3, "/wt/new-a", "/wt/new-b")})
	next, _ = next.(Model).Update(snapshotMsg{snap: snapshot(2, "/wt/old")})
	got := next.(Model)

	if got.gen != 3 || len(got.worktrees) != 2 {
		t.Errorf("gen %d with %d worktrees, want gen 3 with 2", got.gen, len(got.worktrees))
	}
	if got.loading {
		t.Error("still loading after a snapshot")
	}
}

func TestStatusModalPicksStatus(t *testing.T) {
	m, b, _ := newTestModel()
	next, _ := m.Update(snapshotMsg{snap: snapshot(1, "/wt/a")})

	next, _ = next.(Model).Update(runes("s"))
	if next.(Model).state != stateSetStatus {
		t.Fatal("status modal not open")
	}
	next, cmd := next.(Model).Update(runes("2"))
	if next.(Model).state != stateNormal || cmd == nil {
		t.Fatal("status not chosen")
	}

	msg := cmd()
	if b.statuses["/wt/a"] != model.StatusReviewing {
		t.Errorf("backend got %q, want reviewing", b.statuses["/wt/a"])
	}
	next, _ = next.(Model).Update(msg)
	if got := next.(Model).worktrees[0].Status; got != model.StatusReviewing {
		t.Errorf("row status = %q", got)
	}
}

func TestAttachHidesView(t *testing.T) {
	m, b, s := newTestModel()
	b.result = action.Result{Message: "attaching", Attach: exec.Command("true")}
	next, _ := m.Update(snapshotMsg{snap: snapshot(1, "/wt/a")})

	next, cmd := next.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	next, cmd = next.(Model).Update(cmd())
	if len(b.resumed) != 1 || b.resumed[0] != "/wt/a" {
		t.Errorf("resumed = %v", b.resumed)
	}
	if s.visible || cmd == nil {
		t.Error("view should be hidden while attached")
	}

	next.(Model).Update(attachExitedMsg{})
	if !s.visible || len(s.triggers) != 1 || s.triggers[0] != refresh.ReasonUser {
		t.Errorf("after detach: visible %v triggers %v", s.visible, s.triggers)
	}
}

func TestActionErrorShown(t *testing.T) {
	m, _, _ := newTestModel()
	next, _ := m.Update(snapshotMsg{snap: snapshot(1, "/wt/a")})
	next, cmd := next.(Model).Update(runes("o"))
	next, _ = next.(Model).Update(cmd())

	got := next.(Model)
	if !got.msgErr || !strings.Contains(got.message, "no issue") {
		t.Errorf("message = %q (err %v)", got.message, got.msgErr)
	}
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		p    model.Progress
		want string
	}{
		{model.Progress{Bucket: model.BucketNone}, "no tasks"},
		{model.Progress{Completed: 2, Total: 3, Percent: 66, Bucket: model.BucketInProgress}, "2/3"},
		{model.Progress{Completed: 4, Total: 4, Percent: 100, Bucket: model.BucketCompleted}, "4/4"},
	}
	for _, c := range cases {
		if got := progressBar(c.p, 10); !strings.Contains(got, c.want) {
			t.Errorf("progressBar(%+v) = %q, want it to contain %q", c.p, got, c.want)
		}
	}
}

func TestStatusModalViewReplacesList(t *testing.T) {
	m, _, _ := newTestModel()
	next, _ := m.Update(snapshotMsg{snap: snapshot(1, "/wt/a")})
	if strings.Contains(next.(Model).View(), "Set Status") {
		t.Fatal("modal rendered before it was opened")
	}

	next, _ = next.(Model).Update(runes("s"))
	view := next.(Model).View()
	if !strings.Contains(view, "Set Status") || !strings.Contains(view, "0  clear") {
		t.Errorf("modal missing from view:\n%s", view)
	}
	if strings.Contains(view, strings.Repeat("─", 120)) {
		t.Error("list footer rendered behind the modal")
	}
}
