package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wtdash/internal/action"
	"wtdash/internal/claude"
	"wtdash/internal/model"
	"wtdash/internal/scan"
	"wtdash/internal/status"
)

type fakeActions struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeActions) record(name string, wt model.WorktreeInfo) (action.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+wt.Path)
	return action.Result{Message: name}, f.err
}

func (f *fakeActions) Resume(_ context.Context, wt model.WorktreeInfo) (action.Result, error) {
	return f.record("resume", wt)
}

func (f *fakeActions) OpenTerminal(_ context.Context, wt model.WorktreeInfo) (action.Result, error) {
	return f.record("terminal", wt)
}

func (f *fakeActions) OpenIssue(_ context.Context, wt model.WorktreeInfo) (action.Result, error) {
	return f.record("issue", wt)
}

type scanner struct {
	calls    int32
	statuses status.Store
}

func (s *scanner) scan(ctx context.Context) (scan.Snapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	tags, _ := s.statuses.Load()
	n := uint(42)
	wts := []model.WorktreeInfo{
		{Path: "/src/wt/login", Branch: "feature/42-login", IssueNumber: &n, Status: tags["/src/wt/login"]},
		{Path: "/src/wt/scratch", Branch: "scratch", Status: tags["/src/wt/scratch"]},
	}
	return scan.Snapshot{Worktrees: wts}, nil
}

func newTestEngine(t *testing.T) (*Engine, *scanner, *fakeActions) {
	t.Helper()
	statuses := status.NewMemStore()
	sc := &scanner{statuses: statuses}
	acts := &fakeActions{}
	e := build(sc.scan, statuses, acts, 0, nil)
	t.Cleanup(e.Close)
	return e, sc, acts
}

func TestListWorktreesScansOnce(t *testing.T) {
	e, sc, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.ListWorktrees(ctx)
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	second, err := e.ListWorktrees(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&sc.calls) != 1 {
		t.Errorf("scans = %d, want 1", sc.calls)
	}
	if first.Generation != second.Generation || len(second.Worktrees) != 2 {
		t.Errorf("snapshots differ: %d vs %d", first.Generation, second.Generation)
	}

	third, err := e.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third.Generation <= first.Generation {
		t.Errorf("Refresh generation %d not after %d", third.Generation, first.Generation)
	}
}

func TestSetStatusPersistsAndRefreshes(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.ListWorktrees(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.SetStatus("/src/wt/login", model.StatusReviewing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	snap, err := e.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	wt, _ := snap.ByPath("/src/wt/login")
	if wt.Status != model.StatusReviewing {
		t.Errorf("Status = %q after refresh", wt.Status)
	}

	if err := e.SetStatus("/src/wt/login", model.StatusUnset); err != nil {
		t.Fatal(err)
	}
	snap, _ = e.Refresh(ctx)
	if wt, _ := snap.ByPath("/src/wt/login"); wt.Status != model.StatusUnset {
		t.Errorf("Status = %q after clear", wt.Status)
	}
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	e, _, _ := newTestEngine(t)
	err := e.SetStatus("/src/wt/login", model.Status("shipped"))
	if !errors.Is(err, status.ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestActionsResolveByPath(t *testing.T) {
	e, _, acts := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Resume(ctx, "/src/wt/login"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := e.OpenTerminal(ctx, "/src/wt/scratch"); err != nil {
		t.Fatalf("OpenTerminal: %v", err)
	}
	if _, err := e.OpenIssue(ctx, "/src/wt/nowhere"); !errors.Is(err, ErrUnknownWorktree) {
		t.Errorf("unknown path: err = %v", err)
	}

	want := []string{"resume /src/wt/login", "terminal /src/wt/scratch"}
	if len(acts.calls) != len(want) {
		t.Fatalf("calls = %v", acts.calls)
	}
	for i := range want {
		if acts.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, acts.calls[i], want[i])
		}
	}
}

func TestActionFailureReturned(t *testing.T) {
	e, _, acts := newTestEngine(t)
	acts.err = action.ErrNoIssue
	if _, err := e.OpenIssue(context.Background(), "/src/wt/scratch"); !errors.Is(err, action.ErrNoIssue) {
		t.Errorf("err = %v", err)
	}
}

func TestByIssue(t *testing.T) {
	e, _, _ := newTestEngine(t)
	got, err := e.ByIssue(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Branch != "feature/42-login" {
		t.Errorf("ByIssue(42) = %+v", got)
	}
}

func TestStartDeliversUpdates(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	select {
	case snap := <-e.Scheduler().Updates():
		if len(snap.Worktrees) != 2 {
			t.Errorf("update has %d worktrees", len(snap.Worktrees))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update after Start")
	}
}

func TestSetStatusBeforeFirstScanUsesCanonicalPath(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	e, _, _ := newTestEngine(t)
	if err := e.SetStatus(link, model.StatusMerged); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	tags, _ := e.statuses.Load()
	if got := tags[claude.Canonicalize(real)]; got != model.StatusMerged {
		t.Errorf("tags = %v, want %s=merged", tags, claude.Canonicalize(real))
	}
	if _, ok := tags[link]; ok {
		t.Errorf("tag stored under symlink path: %v", tags)
	}
}
