package claude

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// IndexFileName is the per-project session index written by Claude Code.
const IndexFileName = "sessions-index.json"

// Session is one entry of a project's session index.
type Session struct {
	ID          string
	ProjectPath string
	GitBranch   string
	Summary     string
	Modified    time.Time
	IndexDir    string // project directory holding the index and transcripts

	canonical string
}

// indexFile mirrors the fields we use from sessions-index.json.
type indexFile struct {
	Entries []struct {
		SessionID   string `json:"sessionId"`
		ProjectPath string `json:"projectPath"`
		GitBranch   string `json:"gitBranch"`
		Summary     string `json:"summary"`
		Modified    string `json:"modified"`
	} `json:"entries"`
}

// Index is a lazily loaded snapshot of every session index under a Store.
// One Index is meant to live for a single refresh cycle.
type Index struct {
	store *Store

	once     sync.Once
	sessions []Session
	warnings []error
}

// Index returns a new lazily loaded session index.
func (s *Store) Index() *Index {
	return &Index{store: s}
}

// Sessions loads the index on first use and returns entries in scan order:
// project directories by name, entries in file order.
func (ix *Index) Sessions() []Session {
	ix.once.Do(ix.load)
	return ix.sessions
}

// Warnings reports index files that could not be read or decoded.
func (ix *Index) Warnings() []error {
	ix.once.Do(ix.load)
	return ix.warnings
}

func (ix *Index) load() {
	dir := ix.store.ProjectsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			ix.warn(fmt.Errorf("read projects dir: %w", err))
		}
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		projectDir := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(filepath.Join(projectDir, IndexFileName))
		if err != nil {
			if !os.IsNotExist(err) {
				ix.warn(fmt.Errorf("read %s index: %w", e.Name(), err))
			}
			continue
		}

		var idx indexFile
		if err := json.Unmarshal(data, &idx); err != nil {
			ix.warn(fmt.Errorf("parse %s index: %w", e.Name(), err))
			continue
		}

		for _, ent := range idx.Entries {
			if ent.SessionID == "" || ent.ProjectPath == "" {
				continue
			}
			modified, _ := time.Parse(time.RFC3339Nano, ent.Modified)
			ix.sessions = append(ix.sessions, Session{
				ID:          ent.SessionID,
				ProjectPath: ent.ProjectPath,
				GitBranch:   ent.GitBranch,
				Summary:     ent.Summary,
				Modified:    modified,
				IndexDir:    projectDir,
				canonical:   Canonicalize(ent.ProjectPath),
			})
		}
	}
	ix.store.log.Debug("loaded session index", "sessions", len(ix.sessions), "warnings", len(ix.warnings))
}

func (ix *Index) warn(err error) {
	ix.store.log.Warn("session index", "err", err)
	ix.warnings = append(ix.warnings, err)
}

// TieBreak picks one session when several point at the same path.
// candidates is never empty and is in scan order.
type TieBreak func(candidates []Session) Session

// FirstSeen keeps the first candidate in scan order.
func FirstSeen(candidates []Session) Session { return candidates[0] }

// MostRecent keeps the most recently modified candidate; ties and unknown
// timestamps fall back to scan order.
func MostRecent(candidates []Session) Session {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Modified.After(best.Modified) {
			best = c
		}
	}
	return best
}

// TieBreakByName maps the config values "first" and "recent".
func TieBreakByName(name string) (TieBreak, error) {
	switch name {
	case "", "first":
		return FirstSeen, nil
	case "recent":
		return MostRecent, nil
	default:
		return nil, fmt.Errorf("unknown session tie-break %q (want first or recent)", name)
	}
}

// Match returns the session whose canonical project path equals the
// canonical worktree path.
func (ix *Index) Match(worktreePath string, pick TieBreak) (Session, bool) {
	return Match(worktreePath, ix.Sessions(), pick)
}

// Match finds the session for worktreePath among sessions.
func Match(worktreePath string, sessions []Session, pick TieBreak) (Session, bool) {
	if pick == nil {
		pick = FirstSeen
	}
	want := Canonicalize(worktreePath)
	if want == "" {
		return Session{}, false
	}

	var candidates []Session
	for _, s := range sessions {
		got := s.canonical
		if got == "" {
			got = Canonicalize(s.ProjectPath)
		}
		if got == want {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return Session{}, false
	}
	return pick(candidates), true
}
