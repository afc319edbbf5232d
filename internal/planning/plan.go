package planning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TaskID identifies a task within a plan. It unmarshals from either a JSON
// string or a JSON number so planners may emit {"id": 1}.
type TaskID string

// UnmarshalJSON accepts "t-1" or 1.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id must be a string or number: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

// TaskIDFromInt formats a numeric task identifier.
func TaskIDFromInt(n int) TaskID {
	return TaskID(strconv.Itoa(n))
}

// Task is one step of a plan.
type Task struct {
	ID          TaskID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Output      string `json:"output"`
}

// Plan is a synthesized task plan. Sessions store and return deep copies, so
// a Plan held by a caller can never alter an installed one.
type Plan struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Tasks   []Task   `json:"tasks"`
	Outputs []string `json:"outputs"`
	Notes   []string `json:"notes"`
}

// Validate checks the plan shape and returns a *ValidationError naming the
// first offending field.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return validationErr("title", "plan title must not be empty")
	}
	if len(p.Tasks) == 0 {
		return validationErr("tasks", "plan must contain at least one task")
	}
	seen := make(map[TaskID]int, len(p.Tasks))
	for i, t := range p.Tasks {
		checks := []struct {
			field string
			value string
		}{
			{"id", string(t.ID)},
			{"name", t.Name},
			{"description", t.Description},
			{"action", t.Action},
			{"output", t.Output},
		}
		for _, c := range checks {
			if strings.TrimSpace(c.value) == "" {
				return validationErr(fmt.Sprintf("tasks[%d].%s", i, c.field), "task %s must not be empty", c.field)
			}
		}
		if prev, dup := seen[t.ID]; dup {
			return validationErr(fmt.Sprintf("tasks[%d].id", i), "task id %q already used by tasks[%d]", t.ID, prev)
		}
		seen[t.ID] = i
	}
	return nil
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	out := Plan{Title: p.Title, Summary: p.Summary}
	if p.Tasks != nil {
		out.Tasks = append([]Task(nil), p.Tasks...)
	}
	if p.Outputs != nil {
		out.Outputs = append([]string(nil), p.Outputs...)
	}
	if p.Notes != nil {
		out.Notes = append([]string(nil), p.Notes...)
	}
	return out
}

// TaskNames returns the task names in plan order.
func (p Plan) TaskNames() []string {
	names := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		names[i] = t.Name
	}
	return names
}
