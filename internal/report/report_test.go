package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/testutil"
)

func completedSnapshot() planning.Snapshot {
	answer := "Executives"
	p := testutil.SamplePlan()
	return planning.Snapshot{
		ID:          "s-1",
		State:       planning.StateCompleted,
		Prompt:      "Build a quarterly review deck",
		ProjectType: "slides",
		Interview: planning.InterviewSnapshot{
			Questions: []planning.Question{
				{Key: "audience", Text: "Who?", Required: true, Answered: true, Answer: &answer},
				{Key: "tone", Text: "Tone?", Answered: true},
			},
			CurrentIndex: 2,
		},
		Plan:      &p,
		Execution: &planning.ExecutionState{TaskName: "Slides", Percent: 100},
	}
}

func TestBuild(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []log.LogEvent{
		{Time: start, Event: log.EventSessionCreated, SessionID: "s-1"},
		{Time: start.Add(time.Minute), Event: log.EventModificationRequested, SessionID: "s-1"},
		{Time: start.Add(2 * time.Minute), Event: log.EventTaskRetry, SessionID: "s-1"},
		{Time: start.Add(3 * time.Minute), Event: log.EventTaskRetry, SessionID: "other"},
		{Time: start.Add(5 * time.Minute), Event: log.EventSessionCompleted, SessionID: "s-1"},
		{Time: start.Add(9 * time.Minute), Event: log.EventSessionCreated, SessionID: "other"},
	}

	r := Build(completedSnapshot(), events)

	if r.Answered != 1 || r.Skipped != 1 {
		t.Errorf("Answered/Skipped = %d/%d, want 1/1", r.Answered, r.Skipped)
	}
	if len(r.Tasks) != 2 || r.Tasks[0] != "t-1: Outline" {
		t.Errorf("Tasks = %v", r.Tasks)
	}
	if r.Modifications != 1 {
		t.Errorf("Modifications = %d, want 1", r.Modifications)
	}
	if r.Retries != 1 {
		t.Errorf("Retries = %d, want 1 (other sessions ignored)", r.Retries)
	}
	if r.Duration != 5*time.Minute {
		t.Errorf("Duration = %v, want 5m", r.Duration)
	}
	if r.Percent != 100 || r.LastProgress != "Slides" {
		t.Errorf("progress = %d%% %q", r.Percent, r.LastProgress)
	}
}

func TestComputeDurationWithoutCompletion(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []log.LogEvent{
		{Time: start, Event: log.EventSessionCreated},
		{Time: start.Add(90 * time.Second), Event: log.EventTaskProgress},
	}
	if got := computeDuration(events); got != 90*time.Second {
		t.Errorf("computeDuration = %v, want 1m30s", got)
	}
	if got := computeDuration(nil); got != 0 {
		t.Errorf("computeDuration(nil) = %v, want 0", got)
	}
}

func TestGenerateWritesReport(t *testing.T) {
	root := t.TempDir()
	logger, err := log.NewLogger(root)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := logger.Append(log.LogEvent{Event: log.EventSessionCreated, SessionID: "s-1"}); err != nil {
		t.Fatal(err)
	}

	runDir := filepath.Join(root, ".compass", "runs", "s-1")
	if _, err := Generate(completedSnapshot(), logger, runDir); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "report.md"))
	if err != nil {
		t.Fatalf("report.md not written: %v", err)
	}
	got := string(data)
	for _, want := range []string{"# Quarterly review deck", "- State: completed", "1 answered, 1 skipped", "- t-2: Slides", "- Progress: 100% (Slides)"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "< 1s"},
		{42 * time.Second, "42s"},
		{5*time.Minute + 32*time.Second, "5m 32s"},
		{time.Hour + 12*time.Minute + 5*time.Second, "1h 12m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
