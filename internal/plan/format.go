package plan

import (
	"fmt"
	"strings"

	"github.com/berth-dev/compass/internal/planning"
)

// FormatPlan renders p in the same markdown shape ParsePlan reads.
func FormatPlan(p planning.Plan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n", p.Title)
	if p.Summary != "" {
		fmt.Fprintf(&sb, "\n%s\n", p.Summary)
	}

	for _, t := range p.Tasks {
		fmt.Fprintf(&sb, "\n### %s: %s\n", t.ID, t.Name)
		fmt.Fprintf(&sb, "- description: %s\n", t.Description)
		fmt.Fprintf(&sb, "- action: %s\n", t.Action)
		fmt.Fprintf(&sb, "- output: %s\n", t.Output)
	}

	if len(p.Outputs) > 0 {
		sb.WriteString("\n## Outputs\n")
		for _, o := range p.Outputs {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}
	if len(p.Notes) > 0 {
		sb.WriteString("\n## Notes\n")
		for _, n := range p.Notes {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
	}

	return sb.String()
}
