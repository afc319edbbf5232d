// Package execute carries out confirmed plans task by task.
package execute

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Checkpoint records which tasks of a session's plan have finished so an
// interrupted run can resume.
type Checkpoint struct {
	SessionID      string         `json:"session_id"`
	PlanDigest     string         `json:"plan_digest"`
	CurrentTaskID  string         `json:"current_task_id,omitempty"`
	CompletedTasks []string       `json:"completed_tasks"`
	RetryCount     map[string]int `json:"retry_count"`
	LastError      string         `json:"last_error,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// IsCompleted reports whether the task with id already finished.
func (cp *Checkpoint) IsCompleted(id string) bool {
	return slices.Contains(cp.CompletedTasks, id)
}

// SaveCheckpoint writes the current state to disk.
func SaveCheckpoint(runDir string, cp *Checkpoint) error {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	cp.Timestamp = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	path := filepath.Join(runDir, "checkpoint.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the checkpoint from disk.
// Returns nil, nil if no checkpoint exists (not an error).
func LoadCheckpoint(runDir string) (*Checkpoint, error) {
	path := filepath.Join(runDir, "checkpoint.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	if cp.RetryCount == nil {
		cp.RetryCount = map[string]int{}
	}
	return &cp, nil
}

// ClearCheckpoint removes the checkpoint file.
func ClearCheckpoint(runDir string) error {
	path := filepath.Join(runDir, "checkpoint.json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
