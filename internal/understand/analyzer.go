// Package understand implements the clarification phase: asking Claude which
// questions a request needs and walking the user through them.
// This file asks Claude for the clarifying questions.
package understand

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/berth-dev/compass/internal/claude"
	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/prompts"
)

// AnalyzeResponse is the JSON schema Claude returns. Done means the request
// is clear enough to plan without questions.
type AnalyzeResponse struct {
	Done      bool                      `json:"done"`
	Questions []controller.QuestionSpec `json:"questions,omitempty"`
}

// Analyzer asks Claude for clarifying questions.
type Analyzer struct {
	spawn        claude.SpawnFunc
	opts         claude.Options
	maxQuestions int
}

// NewAnalyzer creates an Analyzer from the project config. A nil spawn uses
// the Claude CLI.
func NewAnalyzer(cfg *config.Config, projectRoot string, spawn claude.SpawnFunc) *Analyzer {
	if spawn == nil {
		spawn = claude.Spawn
	}
	opts := claude.OptionsFromConfig(cfg, projectRoot)
	// Analysis only reads the prompt; it never needs tools.
	opts.AllowedTools = ""
	opts.SystemPrompt = prompts.AnalyzerSystemPrompt
	return &Analyzer{spawn: spawn, opts: opts, maxQuestions: cfg.Interview.MaxQuestions}
}

// Analyze implements controller.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, prompt, projectType string) ([]controller.QuestionSpec, error) {
	if a.maxQuestions == 0 {
		return nil, nil
	}

	request, err := BuildAnalyzerPrompt(prompt, projectType, a.maxQuestions)
	if err != nil {
		return nil, err
	}

	out, err := a.spawn(ctx, a.opts, request)
	if err != nil {
		return nil, fmt.Errorf("understand: %w", err)
	}

	return ParseResponse(out.Result, a.maxQuestions)
}

// ParseResponse decodes Claude's answer into question specs. Blank keys are
// filled from the question's position, duplicate keys are dropped and at most
// max questions are kept.
func ParseResponse(output string, max int) ([]controller.QuestionSpec, error) {
	cleaned := claude.CleanJSON(output)

	var resp AnalyzeResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("understand: parsing response: %w\nRaw output:\n%s", err, output)
	}
	if resp.Done {
		return nil, nil
	}
	if len(resp.Questions) == 0 {
		return nil, fmt.Errorf("understand: claude returned done=false but no questions")
	}

	seen := make(map[string]bool)
	var out []controller.QuestionSpec
	for i, q := range resp.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		q.Key = strings.TrimSpace(q.Key)
		if q.Key == "" {
			q.Key = "q" + strconv.Itoa(i+1)
		}
		if seen[q.Key] {
			continue
		}
		seen[q.Key] = true
		out = append(out, q)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}
