package claude

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"wtdash/internal/model"
)

// Transcript lines can embed whole file contents.
const maxTranscriptLine = 16 << 20

var (
	taskIDPattern   = regexp.MustCompile(`"taskId"\s*:\s*"(\d+)"`)
	subjectPattern  = regexp.MustCompile(`"subject"\s*:\s*"([^"]+)"`)
	statusPattern   = regexp.MustCompile(`"status"\s*:\s*"([^"]+)"`)
	resultIDPattern = regexp.MustCompile(`"id"\s*:\s*"(\d+)"`)
)

// replayTranscript rebuilds task state from TaskCreate / TaskUpdate tool
// calls in a session transcript and returns the completed ones. A created
// task has no id until its tool_result arrives, so it is held under a
// placeholder key until then.
func replayTranscript(path string) ([]model.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tasks := map[string]*model.Task{}
	var order []string
	var placeholders []string

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)
	for sc.Scan() {
		line := sc.Text()
		creates := strings.Contains(line, "TaskCreate")
		updates := strings.Contains(line, "TaskUpdate")

		if creates || updates {
			id := submatch(taskIDPattern, line)
			switch {
			case creates:
				subject := submatch(subjectPattern, line)
				if subject == "" {
					break
				}
				key := id
				if key == "" {
					key = fmt.Sprintf("new_%d", len(order))
					placeholders = append(placeholders, key)
				}
				if _, ok := tasks[key]; !ok {
					order = append(order, key)
				}
				tasks[key] = &model.Task{ID: key, Subject: subject, Status: model.TaskPending, BlockedBy: []string{}}
			case updates:
				status := submatch(statusPattern, line)
				if t, ok := tasks[id]; ok && id != "" && status != "" {
					t.Status = normaliseStatus(status)
				}
			}
		}

		if strings.Contains(line, "tool_result") && len(placeholders) > 0 {
			if id := submatch(resultIDPattern, line); id != "" {
				key := placeholders[len(placeholders)-1]
				placeholders = placeholders[:len(placeholders)-1]
				if t, ok := tasks[key]; ok {
					delete(tasks, key)
					t.ID = id
					tasks[id] = t
					for i := range order {
						if order[i] == key {
							order[i] = id
						}
					}
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	var completed []model.Task
	seen := map[string]bool{}
	for _, key := range order {
		t, ok := tasks[key]
		if !ok || seen[key] || t.Status != model.TaskCompleted {
			continue
		}
		seen[key] = true
		completed = append(completed, *t)
	}
	SortTasks(completed)
	return completed, nil
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
