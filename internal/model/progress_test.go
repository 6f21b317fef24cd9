package model

import "testing"

func tasks(statuses ...TaskStatus) []Task {
	out := make([]Task, len(statuses))
	for i, s := range statuses {
		out[i] = Task{ID: string(rune('1' + i)), Subject: "t", Status: s}
	}
	return out
}

func TestProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info WorktreeInfo
		want Progress
	}{
		{
			name: "no tasks",
			info: WorktreeInfo{},
			want: Progress{Bucket: BucketNone},
		},
		{
			name: "only completed history",
			info: WorktreeInfo{CompletedTasks: tasks(TaskCompleted, TaskCompleted)},
			want: Progress{Completed: 2, Total: 2, Percent: 100, Bucket: BucketCompleted},
		},
		{
			name: "two of three",
			info: WorktreeInfo{
				Tasks:          tasks(TaskInProgress),
				CompletedTasks: tasks(TaskCompleted, TaskCompleted),
			},
			want: Progress{Completed: 2, Total: 3, Percent: 66, Bucket: BucketInProgress},
		},
		{
			name: "nothing done yet",
			info: WorktreeInfo{Tasks: tasks(TaskPending, TaskPending)},
			want: Progress{Completed: 0, Total: 2, Percent: 0, Bucket: BucketInProgress},
		},
		{
			name: "completed tasks left in active list",
			info: WorktreeInfo{Tasks: tasks(TaskCompleted, TaskCompleted)},
			want: Progress{Completed: 2, Total: 2, Percent: 100, Bucket: BucketCompleted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.Progress()
			if got != tt.want {
				t.Errorf("Progress() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProgressMonotonicOnCompletion(t *testing.T) {
	t.Parallel()

	before := WorktreeInfo{
		Tasks:          []Task{{ID: "2", Status: TaskInProgress}, {ID: "3", Status: TaskPending}},
		CompletedTasks: []Task{{ID: "1", Status: TaskCompleted}},
	}
	after := WorktreeInfo{
		Tasks:          []Task{{ID: "3", Status: TaskPending}},
		CompletedTasks: []Task{{ID: "1", Status: TaskCompleted}, {ID: "2", Status: TaskCompleted}},
	}

	pb, pa := before.Progress(), after.Progress()
	if pa.Completed <= pb.Completed {
		t.Errorf("completed did not increase: %d -> %d", pb.Completed, pa.Completed)
	}
	if pa.Total < pb.Total {
		t.Errorf("total decreased: %d -> %d", pb.Total, pa.Total)
	}
}
