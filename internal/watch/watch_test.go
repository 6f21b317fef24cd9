package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dirs ...string) chan struct{} {
	t.Helper()
	fired := make(chan struct{}, 16)
	w, err := New(dirs, 50*time.Millisecond, func() { fired <- struct{}{} }, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return fired
}

func expectFire(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger not called")
	}
}

func expectQuiet(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("unexpected extra trigger")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBurstCollapsesToOneTrigger(t *testing.T) {
	dir := t.TempDir()
	fired := startWatcher(t, dir)

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "task-"+string(rune('a'+i))+".json")
		if err := os.WriteFile(name, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	expectFire(t, fired)
	expectQuiet(t, fired)
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	fired := startWatcher(t, dir)

	sub := filepath.Join(dir, "session-1")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	expectFire(t, fired)

	if err := os.WriteFile(filepath.Join(sub, "1.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	expectFire(t, fired)
}

func TestMissingDirectoryIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "nope"), dir}, 0, func() {}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if got := w.Watched(); len(got) != 1 {
		t.Errorf("watched = %v, want only the existing dir", got)
	}
}
