// parser.go parses Claude's plan output into a planning.Plan.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/berth-dev/compass/internal/claude"
	"github.com/berth-dev/compass/internal/planning"
)

// ParseOutput accepts either the markdown plan format or a JSON plan object
// and returns a validated plan.
func ParseOutput(output string) (*planning.Plan, error) {
	cleaned := claude.CleanJSON(output)
	if strings.HasPrefix(cleaned, "{") {
		var p planning.Plan
		if err := json.Unmarshal([]byte(cleaned), &p); err == nil && len(p.Tasks) > 0 {
			if err := p.Validate(); err != nil {
				return nil, err
			}
			return &p, nil
		}
	}
	return ParsePlan(output)
}

// ParsePlan parses Claude's structured markdown plan into a Plan.
// It takes the title from the first "# " heading, the summary from the lines
// before the first task, each task from a "### <id>: <name>" heading with its
// description, action and output fields, and the "## Outputs" and "## Notes"
// bullet lists. The result is validated before it is returned.
func ParsePlan(output string) (*planning.Plan, error) {
	p := &planning.Plan{}
	lines := strings.Split(output, "\n")

	var summary []string
	var current *planning.Task
	section := "summary"

	flush := func() {
		if current != nil {
			p.Tasks = append(p.Tasks, *current)
			current = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case isTaskHeading(trimmed):
			flush()
			id, name := parseTaskHeading(strings.TrimSpace(strings.TrimPrefix(trimmed, "###")))
			current = &planning.Task{ID: planning.TaskID(id), Name: name}
			section = "task"
			continue

		case strings.HasPrefix(trimmed, "## "):
			flush()
			switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))) {
			case "outputs", "output", "deliverables":
				section = "outputs"
				if p.Outputs == nil {
					p.Outputs = []string{}
				}
			case "notes", "note":
				section = "notes"
				if p.Notes == nil {
					p.Notes = []string{}
				}
			default:
				section = "ignore"
			}
			continue

		case p.Title == "" && section == "summary" && strings.HasPrefix(trimmed, "# "):
			p.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			continue
		}

		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}

		switch section {
		case "summary":
			if p.Title != "" {
				summary = append(summary, trimmed)
			}
		case "task":
			parseTaskField(current, trimmed)
		case "outputs":
			if item, ok := bullet(trimmed); ok {
				p.Outputs = append(p.Outputs, item)
			}
		case "notes":
			if item, ok := bullet(trimmed); ok {
				p.Notes = append(p.Notes, item)
			}
		}
	}
	flush()

	p.Summary = strings.Join(summary, "\n")

	if len(p.Tasks) == 0 {
		return nil, fmt.Errorf("no tasks found in plan output")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// isTaskHeading returns true for "### <id>: <name>" lines.
func isTaskHeading(line string) bool {
	if !strings.HasPrefix(line, "###") || strings.HasPrefix(line, "####") {
		return false
	}
	return strings.Contains(line, ":")
}

// parseTaskHeading extracts the task ID and name from a heading like "t-1: Outline".
func parseTaskHeading(heading string) (string, string) {
	parts := strings.SplitN(heading, ":", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(heading), strings.TrimSpace(heading)
}

// parseTaskField parses a single field line within a task definition.
// Unrecognised lines extend the previous field so wrapped text survives.
func parseTaskField(task *planning.Task, line string) {
	if val, ok := extractField(line, "description"); ok {
		task.Description = val
		return
	}
	if val, ok := extractField(line, "action"); ok {
		task.Action = val
		return
	}
	if val, ok := extractField(line, "output"); ok {
		task.Output = val
		return
	}

	switch {
	case task.Output != "":
		task.Output += " " + line
	case task.Action != "":
		task.Action += " " + line
	case task.Description != "":
		task.Description += " " + line
	}
}

// extractField checks if the line matches "- fieldName: value" and returns the value.
func extractField(line, fieldName string) (string, bool) {
	prefix := fmt.Sprintf("- %s:", fieldName)
	if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
		return strings.TrimSpace(line[len(prefix):]), true
	}

	// Also handle without leading dash (just "fieldName:")
	prefix2 := fmt.Sprintf("%s:", fieldName)
	if len(line) >= len(prefix2) && strings.EqualFold(line[:len(prefix2)], prefix2) {
		return strings.TrimSpace(line[len(prefix2):]), true
	}

	return "", false
}

// bullet strips a "- " or "* " list marker.
func bullet(line string) (string, bool) {
	for _, marker := range []string{"- ", "* "} {
		if strings.HasPrefix(line, marker) {
			item := strings.TrimSpace(strings.TrimPrefix(line, marker))
			return item, item != ""
		}
	}
	return "", false
}
