// Package claude reads Claude Code's on-disk session index and task records.
//
// Layout under the data root (default ~/.claude):
//
//	projects/<encoded-dir>/sessions-index.json   session id -> project path
//	projects/<encoded-dir>/<session-id>.jsonl    session transcript
//	tasks/<session-id>/<task-id>.json            one file per task
//
// Everything here is read-only and tolerant: missing or malformed files
// produce empty results, never errors that abort a scan.
package claude

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Store locates Claude Code data under Root.
type Store struct {
	Root string
	log  *log.Logger
}

// NewStore returns a Store rooted at root, or DefaultRoot when root is empty.
func NewStore(root string, logger *log.Logger) *Store {
	if root == "" {
		root = DefaultRoot()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Store{Root: root, log: logger.WithPrefix("claude")}
}

// DefaultRoot is ~/.claude.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// ProjectsDir holds one directory per project with its session index.
func (s *Store) ProjectsDir() string { return filepath.Join(s.Root, "projects") }

// TasksDir holds one directory of task files per session.
func (s *Store) TasksDir() string { return filepath.Join(s.Root, "tasks") }

// Canonicalize resolves p to an absolute, symlink-free path. Paths that no
// longer exist are returned absolute and cleaned.
func Canonicalize(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
