package status

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"wtdash/internal/model"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "worktree-status.json")
	s := NewFileStore(path)

	got, err := s.Load()
	if err != nil || len(got) != 0 {
		t.Fatalf("Load on missing file = %v, %v", got, err)
	}

	if err := s.Set("/wt/a", model.StatusReviewing); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("/wt/b", model.StatusMerged); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("/wt/b", model.StatusUnset); err != nil {
		t.Fatalf("clear: %v", err)
	}

	got, err = NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["/wt/a"] != model.StatusReviewing {
		t.Errorf("statuses = %v", got)
	}
}

func TestFileStoreRejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	s := NewFileStore(filepath.Join(t.TempDir(), "s.json"))

	err := s.Set("/wt", model.Status("shipped"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Set(shipped) error = %v, want ErrInvalidStatus", err)
	}
	if _, statErr := os.Stat(s.Path()); !os.IsNotExist(statErr) {
		t.Error("invalid status should not create the file")
	}
}

func TestFileStoreReadsExistingFileAndDropsUnknown(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "s.json")
	body := `{"statuses": {"/a": "ready-to-close", "/b": "weird", "/c": ""}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["/a"] != model.StatusReadyToClose {
		t.Errorf("statuses = %v", got)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "s.json")
	if err := os.WriteFile(path, []byte("{{{"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)

	if got, err := s.Load(); err == nil || len(got) != 0 {
		t.Errorf("corrupt Load = %v, %v; want empty map and error", got, err)
	}
	if err := s.Set("/x", model.StatusInProgress); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if got, err := s.Load(); err != nil || got["/x"] != model.StatusInProgress {
		t.Errorf("after rewrite = %v, %v", got, err)
	}
}

func TestFileStoreConcurrentWriters(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "s.json")
	a, b := NewFileStore(path), NewFileStore(path)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := a.Set(filepath.Join("/a", string(rune('a'+i))), model.StatusReviewing); err != nil {
				t.Error(err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if err := b.Set(filepath.Join("/b", string(rune('a'+i))), model.StatusMerged); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	got, err := a.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("lost updates: have %d tags, want 20", len(got))
	}
}

func TestMemStore(t *testing.T) {
	t.Parallel()
	m := NewMemStore()
	if err := m.Set("/p", model.StatusMerged); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("/q", "bogus"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v", err)
	}
	got, _ := m.Load()
	got["/mutated"] = model.StatusMerged
	again, _ := m.Load()
	if len(again) != 1 {
		t.Errorf("Load must return a copy, got %v", again)
	}
}
