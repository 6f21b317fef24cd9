package claude

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wtdash/internal/model"
)

// TaskSet is the loaded task list of one session.
type TaskSet struct {
	Active    []model.Task // status != completed, ascending numeric id
	Completed []model.Task
	Skipped   int  // task files that could not be read or decoded
	FromLog   bool // completed tasks were recovered from the transcript
}

// taskFile mirrors ~/.claude/tasks/<session>/<id>.json. Older todo files
// used content / active_form, so both spellings are accepted.
type taskFile struct {
	ID             flexID   `json:"id"`
	Subject        string   `json:"subject"`
	Content        string   `json:"content"`
	Status         string   `json:"status"`
	ActiveForm     string   `json:"activeForm"`
	ActiveFormOld  string   `json:"active_form"`
	BlockedBy      []flexID `json:"blockedBy"`
	BlockedBySnake []flexID `json:"blocked_by"`
}

// flexID accepts ids written either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

func (tf taskFile) toTask(fallbackID string) model.Task {
	t := model.Task{
		ID:         string(tf.ID),
		Subject:    tf.Subject,
		Status:     normaliseStatus(tf.Status),
		ActiveForm: tf.ActiveForm,
		BlockedBy:  []string{},
	}
	if t.ID == "" {
		t.ID = fallbackID
	}
	if t.Subject == "" {
		t.Subject = tf.Content
	}
	if t.ActiveForm == "" {
		t.ActiveForm = tf.ActiveFormOld
	}
	deps := tf.BlockedBy
	if len(deps) == 0 {
		deps = tf.BlockedBySnake
	}
	for _, d := range deps {
		if d != "" {
			t.BlockedBy = append(t.BlockedBy, string(d))
		}
	}
	return t
}

func normaliseStatus(s string) model.TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "done":
		return model.TaskCompleted
	case "in_progress", "in-progress":
		return model.TaskInProgress
	default:
		return model.TaskPending
	}
}

// validSessionID rejects ids that would escape the tasks directory.
func validSessionID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// LoadTasks reads the task files of sess. A missing task directory is not
// an error. If the directory exists but holds no readable tasks, completed
// tasks are recovered from the session transcript when one exists.
func (s *Store) LoadTasks(sess Session) (TaskSet, error) {
	var set TaskSet
	if !validSessionID(sess.ID) {
		return set, nil
	}

	dir := filepath.Join(s.TasksDir(), sess.ID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return set, fmt.Errorf("read tasks for session %s: %w", sess.ID, err)
	}

	var all []model.Task
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			// Removed between ReadDir and ReadFile, or unreadable.
			set.Skipped++
			s.log.Debug("skip task file", "session", sess.ID, "file", e.Name(), "err", err)
			continue
		}
		var tf taskFile
		if err := json.Unmarshal(data, &tf); err != nil {
			set.Skipped++
			s.log.Warn("malformed task file", "session", sess.ID, "file", e.Name(), "err", err)
			continue
		}
		all = append(all, tf.toTask(strings.TrimSuffix(e.Name(), ".json")))
	}

	if len(all) == 0 && sess.IndexDir != "" {
		completed, err := replayTranscript(filepath.Join(sess.IndexDir, sess.ID+".jsonl"))
		if err != nil && !os.IsNotExist(err) {
			s.log.Warn("replay transcript", "session", sess.ID, "err", err)
		}
		if len(completed) > 0 {
			set.Completed = completed
			set.FromLog = true
		}
		return set, nil
	}

	for _, t := range all {
		if t.Status == model.TaskCompleted {
			set.Completed = append(set.Completed, t)
		} else {
			set.Active = append(set.Active, t)
		}
	}
	SortTasks(set.Active)
	SortTasks(set.Completed)
	return set, nil
}

// SortTasks orders tasks by numeric id; non-numeric ids sort as 0 and keep
// their relative order, then by id text for determinism across ReadDir orders.
func SortTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].NumericID(), tasks[j].NumericID()
		if a != b {
			return a < b
		}
		return tasks[i].ID < tasks[j].ID
	})
}
