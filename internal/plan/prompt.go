// prompt.go builds the planning prompt.
package plan

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/prompts"
)

var planTmpl = template.Must(template.New("plan").Parse(prompts.PlannerTemplate))

// BuildPlanPrompt renders the request, the interview answers and any
// modification feedback into the prompt the planner sees.
func BuildPlanPrompt(req controller.PlanRequest) (string, error) {
	if req.ProjectType == "" {
		req.ProjectType = "general"
	}
	var sb strings.Builder
	if err := planTmpl.Execute(&sb, req); err != nil {
		return "", fmt.Errorf("rendering plan prompt: %w", err)
	}
	return sb.String(), nil
}
