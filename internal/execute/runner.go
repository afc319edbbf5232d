// runner.go runs plan tasks in order with retries and checkpointing.
package execute

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/berth-dev/compass/internal/claude"
	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/controller"
	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/prompts"
)

// Runner executes plans by spawning one Claude invocation per task.
type Runner struct {
	spawn       claude.SpawnFunc
	opts        claude.Options
	projectRoot string
	maxRetries  int
	logger      *log.Logger
}

// NewRunner creates a Runner from the project config. A nil spawn uses the
// Claude CLI; logger may be nil.
func NewRunner(cfg *config.Config, projectRoot string, logger *log.Logger, spawn claude.SpawnFunc) *Runner {
	if spawn == nil {
		spawn = claude.Spawn
	}
	opts := claude.OptionsFromConfig(cfg, projectRoot)
	opts.SystemPrompt = prompts.ExecutorSystemPrompt
	return &Runner{
		spawn:       spawn,
		opts:        opts,
		projectRoot: projectRoot,
		maxRetries:  cfg.Execution.MaxRetries,
		logger:      logger,
	}
}

// UseMCPConfig makes every task's Claude process load the given MCP config,
// typically one pointing at the compass bridge for the session.
func (r *Runner) UseMCPConfig(path string) {
	r.opts.MCPConfigPath = path
}

// Execute implements controller.Executor. Progress is reported before and
// after each task as (task name, finished*100/total). Tasks recorded in the
// session's checkpoint are skipped.
func (r *Runner) Execute(ctx context.Context, sessionID string, p planning.Plan, progress controller.ProgressFunc) error {
	if len(p.Tasks) == 0 {
		return fmt.Errorf("execute: plan has no tasks")
	}

	runDir := config.RunDir(r.projectRoot, sessionID)
	digest := planDigest(p)

	cp, err := LoadCheckpoint(runDir)
	if err != nil {
		return err
	}
	if cp == nil || cp.PlanDigest != digest {
		cp = &Checkpoint{SessionID: sessionID, PlanDigest: digest, CompletedTasks: []string{}, RetryCount: map[string]int{}}
	}

	total := len(p.Tasks)
	var completed []string
	for _, t := range p.Tasks {
		if cp.IsCompleted(string(t.ID)) {
			completed = append(completed, t.Name)
		}
	}

	for i, task := range p.Tasks {
		id := string(task.ID)
		if cp.IsCompleted(id) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := report(progress, task.Name, len(completed)*100/total); err != nil {
			return err
		}

		cp.CurrentTaskID = id
		if err := SaveCheckpoint(runDir, cp); err != nil {
			return err
		}

		result, err := r.runTask(ctx, p, i, completed, cp)
		if err != nil {
			cp.LastError = err.Error()
			_ = SaveCheckpoint(runDir, cp)
			return fmt.Errorf("task %s (%s): %w", id, task.Name, err)
		}

		if err := writeTaskResult(runDir, id, result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to persist result for %s: %v\n", id, err)
		}

		completed = append(completed, task.Name)
		cp.CompletedTasks = append(cp.CompletedTasks, id)
		cp.CurrentTaskID = ""
		cp.LastError = ""
		if err := SaveCheckpoint(runDir, cp); err != nil {
			return err
		}

		if err := report(progress, task.Name, len(completed)*100/total); err != nil {
			return err
		}
	}

	return ClearCheckpoint(runDir)
}

// runTask spawns Claude for one task, retrying up to maxRetries times and
// feeding the previous failure into each retry.
func (r *Runner) runTask(ctx context.Context, p planning.Plan, index int, completed []string, cp *Checkpoint) (string, error) {
	task := p.Tasks[index]
	var lastErr error

	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		prev := ""
		if lastErr != nil {
			prev = lastErr.Error()
		}
		prompt, err := BuildTaskPrompt(p, index, completed, prev)
		if err != nil {
			return "", err
		}

		out, err := r.spawn(ctx, r.opts, prompt)
		if err == nil {
			return out.Result, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		cp.RetryCount[string(task.ID)]++
		r.logRetry(cp.SessionID, task, attempt, err)
	}

	return "", fmt.Errorf("failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *Runner) logRetry(sessionID string, task planning.Task, attempt int, err error) {
	if r.logger == nil {
		return
	}
	_ = r.logger.Append(log.LogEvent{
		Event:     log.EventTaskRetry,
		SessionID: sessionID,
		TaskName:  task.Name,
		Attempt:   attempt,
		Reason:    err.Error(),
	})
}

func report(progress controller.ProgressFunc, taskName string, percent int) error {
	if progress == nil {
		return nil
	}
	return progress(taskName, percent)
}

// planDigest identifies a plan so a checkpoint from a different plan is
// never reused.
func planDigest(p planning.Plan) string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func writeTaskResult(runDir, taskID, result string) error {
	dir := filepath.Join(runDir, "tasks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := strings.ReplaceAll(taskID, string(filepath.Separator), "_") + ".md"
	return os.WriteFile(filepath.Join(dir, name), []byte(result+"\n"), 0644)
}
