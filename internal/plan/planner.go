// Package plan implements the planning phase: spawning Claude to turn a
// clarified request into a task plan.
// This file manages the planning Claude invocation.
package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/berth-dev/compass/internal/claude"
	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/prompts"
)

// Planner asks Claude for a plan and keeps every draft in the session's run
// directory.
type Planner struct {
	spawn       claude.SpawnFunc
	opts        claude.Options
	projectRoot string
}

// NewPlanner creates a Planner from the project config. A nil spawn uses the
// Claude CLI.
func NewPlanner(cfg *config.Config, projectRoot string, spawn claude.SpawnFunc) *Planner {
	if spawn == nil {
		spawn = claude.Spawn
	}
	opts := claude.OptionsFromConfig(cfg, projectRoot)
	// Planning may read the project but must not change it.
	opts.AllowedTools = "Read,Grep,Glob"
	opts.SystemPrompt = prompts.PlannerSystemPrompt
	return &Planner{spawn: spawn, opts: opts, projectRoot: projectRoot}
}

// Plan implements controller.Planner.
func (p *Planner) Plan(ctx context.Context, req controller.PlanRequest) (*planning.Plan, error) {
	prompt, err := BuildPlanPrompt(req)
	if err != nil {
		return nil, err
	}

	out, err := p.spawn(ctx, p.opts, prompt)
	if err != nil {
		return nil, fmt.Errorf("spawning Claude for planning: %w", err)
	}

	parsed, err := ParseOutput(out.Result)
	if err != nil {
		return nil, fmt.Errorf("parsing plan output: %w\n\nClaude's raw response:\n%s", err, out.Result)
	}

	if req.SessionID != "" {
		if err := writePlan(config.RunDir(p.projectRoot, req.SessionID), FormatPlan(*parsed)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to persist plan: %v\n", err)
		}
	}

	return parsed, nil
}

// writePlan stores the draft as plan.md and as the next plan-N.md so earlier
// rounds stay available after modifications.
func writePlan(runDir, content string) error {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	version := 1
	for {
		if _, err := os.Stat(filepath.Join(runDir, "plan-"+strconv.Itoa(version)+".md")); os.IsNotExist(err) {
			break
		}
		version++
	}

	for _, name := range []string{"plan-" + strconv.Itoa(version) + ".md", "plan.md"} {
		if err := os.WriteFile(filepath.Join(runDir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
