// prompt.go builds the analyzer prompt.
package understand

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/berth-dev/compass/prompts"
)

var analyzerTmpl = template.Must(template.New("analyzer").Parse(prompts.AnalyzerRequestTemplate))

// BuildAnalyzerPrompt renders the request section Claude sees when deciding
// which questions to ask.
func BuildAnalyzerPrompt(prompt, projectType string, maxQuestions int) (string, error) {
	if projectType == "" {
		projectType = "general"
	}
	var sb strings.Builder
	err := analyzerTmpl.Execute(&sb, struct {
		Prompt       string
		ProjectType  string
		MaxQuestions int
	}{prompt, projectType, maxQuestions})
	if err != nil {
		return "", fmt.Errorf("rendering analyzer prompt: %w", err)
	}
	return sb.String(), nil
}
