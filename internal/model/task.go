package model

import "strconv"

// TaskStatus is the lifecycle state of a session task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Task is a single tracked unit of work inside an assistant session.
// BlockedBy ids are not checked against the session's task set.
type Task struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	Status     TaskStatus `json:"status"`
	ActiveForm string     `json:"active_form,omitempty"`
	BlockedBy  []string   `json:"blocked_by"`
}

// NumericID parses the id for ordering; non-numeric ids order as 0.
func (t Task) NumericID() uint64 {
	n, err := strconv.ParseUint(t.ID, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Label is the text shown for the task: the active form while in progress.
func (t Task) Label() string {
	if t.Status == TaskInProgress && t.ActiveForm != "" {
		return t.ActiveForm
	}
	return t.Subject
}
