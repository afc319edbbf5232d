// Package claude runs the Claude CLI as a subprocess.
// spawner.go manages spawning and lifecycle of Claude CLI processes.
package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/berth-dev/compass/internal/config"
)

// Options controls a single Claude invocation.
type Options struct {
	Model         string
	AllowedTools  string // empty disables tool use
	SystemPrompt  string
	WorkDir       string
	MCPConfigPath string
	Timeout       time.Duration
}

// SpawnFunc runs Claude with prompt. Tests substitute their own.
type SpawnFunc func(ctx context.Context, opts Options, prompt string) (*Output, error)

// OptionsFromConfig builds invocation options from the project config.
func OptionsFromConfig(cfg *config.Config, projectRoot string) Options {
	return Options{
		Model:        cfg.Model,
		AllowedTools: cfg.Execution.AllowedTools,
		WorkDir:      projectRoot,
		Timeout:      time.Duration(cfg.Execution.TimeoutPerTask) * time.Second,
	}
}

// Spawn invokes the Claude CLI with the given prompt, waits for completion,
// and returns the parsed output. opts.Timeout is enforced as a hard timeout.
func Spawn(ctx context.Context, opts Options, prompt string) (*Output, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "claude", BuildArgs(opts, prompt)...)
	cmd.Dir = opts.WorkDir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("claude timed out after %s: %w", timeout, ctx.Err())
		}
		return nil, fmt.Errorf("claude exited with error: %w\nstderr: %s", err, stderr.String())
	}

	output, err := ParseOutput(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing claude output: %w\nraw stdout: %s", err, stdout.String())
	}
	if output.IsError {
		return output, fmt.Errorf("claude reported an error: %s", output.Result)
	}

	return output, nil
}

// BuildArgs constructs the CLI argument slice for a Claude invocation.
func BuildArgs(opts Options, prompt string) []string {
	model := opts.Model
	if model == "" {
		model = "opus"
	}

	args := []string{
		"-p", prompt,
		"--output-format", "json",
		"--model", model,
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.SystemPrompt)
	}
	if opts.AllowedTools != "" {
		args = append(args, "--allowedTools", opts.AllowedTools, "--dangerously-skip-permissions")
	}
	if opts.MCPConfigPath != "" {
		args = append(args, "--mcp-config", opts.MCPConfigPath)
	}

	return args
}
