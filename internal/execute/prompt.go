// prompt.go builds the per-task executor prompt.
package execute

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/prompts"
)

var taskTmpl = template.Must(template.New("task").Parse(prompts.ExecutorTaskTemplate))

// taskPromptData feeds the executor task template.
type taskPromptData struct {
	PlanTitle     string
	PlanSummary   string
	Task          planning.Task
	Position      int
	Total         int
	Completed     []string
	PreviousError string
}

// BuildTaskPrompt renders the prompt for the task at index. completed lists
// the names of tasks already done; previousError is set on retries.
func BuildTaskPrompt(p planning.Plan, index int, completed []string, previousError string) (string, error) {
	var sb strings.Builder
	err := taskTmpl.Execute(&sb, taskPromptData{
		PlanTitle:     p.Title,
		PlanSummary:   p.Summary,
		Task:          p.Tasks[index],
		Position:      index + 1,
		Total:         len(p.Tasks),
		Completed:     completed,
		PreviousError: previousError,
	})
	if err != nil {
		return "", fmt.Errorf("rendering task prompt: %w", err)
	}
	return sb.String(), nil
}
