// Package report builds the summary written when a session finishes.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/planning"
)

// Report holds the aggregated statistics for one session.
type Report struct {
	SessionID     string
	Title         string
	Prompt        string
	ProjectType   string
	State         planning.State
	Answered      int
	Skipped       int
	Tasks         []string
	Outputs       []string
	Modifications int
	Retries       int
	Failures      int
	LastProgress  string
	Percent       int
	Duration      time.Duration
}

// Build aggregates a session snapshot and its log events into a Report.
// Events for other sessions are ignored.
func Build(snap planning.Snapshot, events []log.LogEvent) *Report {
	r := &Report{
		SessionID:   snap.ID,
		Prompt:      snap.Prompt,
		ProjectType: snap.ProjectType,
		State:       snap.State,
	}

	for _, q := range snap.Interview.Questions {
		switch {
		case q.Skipped():
			r.Skipped++
		case q.Answered:
			r.Answered++
		}
	}

	if snap.Plan != nil {
		r.Title = snap.Plan.Title
		for _, t := range snap.Plan.Tasks {
			r.Tasks = append(r.Tasks, fmt.Sprintf("%s: %s", t.ID, t.Name))
		}
		r.Outputs = append(r.Outputs, snap.Plan.Outputs...)
	}
	if snap.Execution != nil {
		r.LastProgress = snap.Execution.TaskName
		r.Percent = snap.Execution.Percent
	}

	var own []log.LogEvent
	for _, e := range events {
		if e.SessionID != snap.ID {
			continue
		}
		own = append(own, e)
		switch e.Event {
		case log.EventModificationRequested:
			r.Modifications++
		case log.EventTaskRetry:
			r.Retries++
		case log.EventSessionFailed:
			r.Failures++
		}
	}
	r.Duration = computeDuration(own)
	return r
}

// Generate builds the report for snap from the project log and writes it to
// {runDir}/report.md.
func Generate(snap planning.Snapshot, logger *log.Logger, runDir string) (*Report, error) {
	var events []log.LogEvent
	if logger != nil {
		var err error
		events, err = logger.ForSession(snap.ID)
		if err != nil {
			return nil, fmt.Errorf("reading log: %w", err)
		}
	}

	r := Build(snap, events)
	if err := WriteReport(runDir, r); err != nil {
		return r, fmt.Errorf("writing report: %w", err)
	}
	return r, nil
}

// FormatReport renders the report as markdown.
func FormatReport(r *Report) string {
	var b strings.Builder

	title := r.Title
	if title == "" {
		title = "Session " + r.SessionID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	fmt.Fprintf(&b, "- Session: %s\n", r.SessionID)
	fmt.Fprintf(&b, "- State: %s\n", r.State)
	fmt.Fprintf(&b, "- Request: %s\n", r.Prompt)
	if r.ProjectType != "" {
		fmt.Fprintf(&b, "- Project type: %s\n", r.ProjectType)
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", formatDuration(r.Duration))
	}
	b.WriteString("\n")

	if r.Answered+r.Skipped > 0 {
		fmt.Fprintf(&b, "## Interview\n\n%d answered, %d skipped\n\n", r.Answered, r.Skipped)
	}

	if len(r.Tasks) > 0 {
		b.WriteString("## Tasks\n\n")
		for _, t := range r.Tasks {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}

	if len(r.Outputs) > 0 {
		b.WriteString("## Outputs\n\n")
		for _, o := range r.Outputs {
			fmt.Fprintf(&b, "- %s\n", o)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Execution\n\n")
	if r.LastProgress != "" {
		fmt.Fprintf(&b, "- Progress: %d%% (%s)\n", r.Percent, r.LastProgress)
	}
	fmt.Fprintf(&b, "- Plan revisions: %d\n", r.Modifications)
	fmt.Fprintf(&b, "- Task retries: %d\n", r.Retries)
	if r.Failures > 0 {
		fmt.Fprintf(&b, "- Failed runs: %d\n", r.Failures)
	}

	return b.String()
}

// WriteReport writes the formatted report to {runDir}/report.md.
// Creates the run directory if it does not exist.
func WriteReport(runDir string, report *Report) error {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	path := filepath.Join(runDir, "report.md")
	if err := os.WriteFile(path, []byte(FormatReport(report)), 0644); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	return nil
}

// computeDuration spans from session_created to session_completed, or to
// the last event when the session has not completed.
func computeDuration(events []log.LogEvent) time.Duration {
	var start, end time.Time

	for _, e := range events {
		if e.Event == log.EventSessionCreated && start.IsZero() {
			start = e.Time
		}
		if !e.Time.IsZero() {
			end = e.Time
		}
		if e.Event == log.EventSessionCompleted {
			end = e.Time
			break
		}
	}

	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// formatDuration produces a human-readable duration string such as "5m 32s"
// or "1h 12m 5s". Sub-second durations are shown as "< 1s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
