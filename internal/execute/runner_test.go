package execute

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/berth-dev/compass/internal/claude"
	"github.com/berth-dev/compass/internal/config"
	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/testutil"
)

type progressEvent struct {
	task    string
	percent int
}

// scriptedSpawn fails the first failures[taskName] calls for a task.
type scriptedSpawn struct {
	mu       sync.Mutex
	failures map[string]int
	prompts  []string
}

func (s *scriptedSpawn) spawn(_ context.Context, _ claude.Options, prompt string) (*claude.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	for name, n := range s.failures {
		if strings.Contains(prompt, "): "+name+"\n") && n > 0 {
			s.failures[name] = n - 1
			return nil, errors.New("claude exited with error: exit status 1")
		}
	}
	return &claude.Output{Result: "done"}, nil
}

func newRunner(t *testing.T, retries int, spawn claude.SpawnFunc) (*Runner, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Execution.MaxRetries = retries
	logger, err := log.NewLogger(root)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	return NewRunner(cfg, root, logger, spawn), root
}

func TestRunnerReportsProgress(t *testing.T) {
	s := &scriptedSpawn{}
	r, root := newRunner(t, 0, s.spawn)

	var events []progressEvent
	err := r.Execute(context.Background(), "s1", testutil.SamplePlan(), func(name string, pct int) error {
		events = append(events, progressEvent{name, pct})
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []progressEvent{{"Outline", 0}, {"Outline", 50}, {"Slides", 50}, {"Slides", 100}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("progress = %v, want %v", events, want)
	}
	if len(s.prompts) != 2 {
		t.Errorf("spawned %d times, want 2", len(s.prompts))
	}
	if !strings.Contains(s.prompts[1], "Already done") || !strings.Contains(s.prompts[1], "- Outline") {
		t.Errorf("second prompt should list completed tasks:\n%s", s.prompts[1])
	}

	runDir := config.RunDir(root, "s1")
	if _, err := os.Stat(filepath.Join(runDir, "checkpoint.json")); !os.IsNotExist(err) {
		t.Error("checkpoint should be cleared after a full run")
	}
	if _, err := os.Stat(filepath.Join(runDir, "tasks", "t-2.md")); err != nil {
		t.Errorf("task result missing: %v", err)
	}
}

func TestRunnerRetriesThenSucceeds(t *testing.T) {
	s := &scriptedSpawn{failures: map[string]int{"Slides": 2}}
	r, root := newRunner(t, 2, s.spawn)

	if err := r.Execute(context.Background(), "s1", testutil.SamplePlan(), nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(s.prompts) != 4 {
		t.Errorf("spawned %d times, want 4", len(s.prompts))
	}
	if !strings.Contains(s.prompts[3], "Previous attempt failed") {
		t.Errorf("retry prompt should carry the failure:\n%s", s.prompts[3])
	}

	logger, _ := log.NewLogger(root)
	events, _ := logger.ForSession("s1")
	retries := 0
	for _, e := range events {
		if e.Event == log.EventTaskRetry {
			retries++
		}
	}
	if retries != 2 {
		t.Errorf("logged %d retries, want 2", retries)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	s := &scriptedSpawn{failures: map[string]int{"Slides": 10}}
	r, root := newRunner(t, 1, s.spawn)
	p := testutil.SamplePlan()

	err := r.Execute(context.Background(), "s1", p, nil)
	if err == nil {
		t.Fatal("expected failure")
	}

	cp, err := LoadCheckpoint(config.RunDir(root, "s1"))
	if err != nil || cp == nil {
		t.Fatalf("LoadCheckpoint = %v, %v", cp, err)
	}
	if !cp.IsCompleted("t-1") || cp.IsCompleted("t-2") || cp.LastError == "" {
		t.Errorf("checkpoint = %+v", cp)
	}

	// Second run: the outline is not redone.
	s.failures["Slides"] = 0
	s.prompts = nil
	var events []progressEvent
	err = r.Execute(context.Background(), "s1", p, func(name string, pct int) error {
		events = append(events, progressEvent{name, pct})
		return nil
	})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if len(s.prompts) != 1 || strings.Contains(s.prompts[0], "): Outline\n") {
		t.Errorf("resume spawned %d prompts", len(s.prompts))
	}
	want := []progressEvent{{"Slides", 50}, {"Slides", 100}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("progress = %v, want %v", events, want)
	}
}

func TestRunnerIgnoresCheckpointForDifferentPlan(t *testing.T) {
	s := &scriptedSpawn{}
	r, root := newRunner(t, 0, s.spawn)
	runDir := config.RunDir(root, "s1")
	if err := SaveCheckpoint(runDir, &Checkpoint{SessionID: "s1", PlanDigest: "stale", CompletedTasks: []string{"t-1"}}); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if err := r.Execute(context.Background(), "s1", testutil.SamplePlan(), nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(s.prompts) != 2 {
		t.Errorf("spawned %d times, want 2", len(s.prompts))
	}
}

func TestRunnerStopsOnProgressError(t *testing.T) {
	s := &scriptedSpawn{}
	r, _ := newRunner(t, 0, s.spawn)
	stop := errors.New("stop")
	err := r.Execute(context.Background(), "s1", testutil.SamplePlan(), func(string, int) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("Execute = %v, want stop", err)
	}
	if len(s.prompts) != 0 {
		t.Errorf("spawned %d times after progress error", len(s.prompts))
	}
}

func TestRunnerHonoursCancellation(t *testing.T) {
	s := &scriptedSpawn{}
	r, _ := newRunner(t, 0, s.spawn)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Execute(ctx, "s1", testutil.SamplePlan(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute = %v, want context.Canceled", err)
	}
}
