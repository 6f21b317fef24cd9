package model

// Bucket is the coarse progress class used for grouping and sorting.
type Bucket string

const (
	BucketNone       Bucket = "none"
	BucketInProgress Bucket = "in-progress"
	BucketCompleted  Bucket = "completed"
)

// Progress summarises a worktree's tasks.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	Bucket    Bucket `json:"bucket"`
}

// Progress counts completed tasks against all tasks, active and completed.
func (w WorktreeInfo) Progress() Progress {
	done := len(w.CompletedTasks)
	switch {
	case len(w.Tasks) == 0 && done > 0:
		return Progress{Completed: done, Total: done, Percent: 100, Bucket: BucketCompleted}
	case len(w.Tasks) == 0:
		return Progress{Bucket: BucketNone}
	}

	// Active lists never hold completed tasks once loaded, but callers may
	// build WorktreeInfo by hand.
	for _, t := range w.Tasks {
		if t.Status == TaskCompleted {
			done++
		}
	}
	total := len(w.Tasks) + len(w.CompletedTasks)
	if done == total {
		return Progress{Completed: done, Total: total, Percent: 100, Bucket: BucketCompleted}
	}
	return Progress{Completed: done, Total: total, Percent: done * 100 / total, Bucket: BucketInProgress}
}
