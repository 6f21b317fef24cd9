package claude

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type indexEntry struct {
	SessionID   string `json:"sessionId"`
	ProjectPath string `json:"projectPath"`
	GitBranch   string `json:"gitBranch,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Modified    string `json:"modified,omitempty"`
}

func writeIndex(t *testing.T, root, project string, entries ...indexEntry) string {
	t.Helper()
	dir := filepath.Join(root, "projects", project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(map[string]any{"version": 1, "entries": entries})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFileName), data, 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeTask(t *testing.T, root, session, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "tasks", session)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}
