// Package testutil provides test helper utilities for compass tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/berth-dev/compass/internal/planning"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// SamplePlan returns a valid two-task plan.
func SamplePlan() planning.Plan {
	return planning.Plan{
		Title:   "Quarterly review deck",
		Summary: "A short deck covering the quarter's results.",
		Tasks: []planning.Task{
			{ID: "t-1", Name: "Outline", Description: "Draft the section outline", Action: "Write outline.md", Output: "outline.md"},
			{ID: "t-2", Name: "Slides", Description: "Lay out the slides", Action: "Produce deck.pptx from the outline", Output: "deck.pptx"},
		},
		Outputs: []string{"deck.pptx"},
		Notes:   []string{"Keep it under ten slides."},
	}
}

// SampleQuestions returns one required and one optional interview question.
func SampleQuestions() []planning.Question {
	return []planning.Question{
		{Text: "Who is the audience?", Key: "audience", Required: true},
		{Text: "Any preferred tone?", Key: "tone"},
	}
}

// InterviewingSession returns a session with the sample questions added.
func InterviewingSession(t *testing.T) *planning.Session {
	t.Helper()
	s, err := planning.New("Prepare the quarterly review deck", "document")
	if err != nil {
		t.Fatalf("planning.New: %v", err)
	}
	for _, q := range SampleQuestions() {
		if err := s.AddQuestion(q.Text, q.Key, q.Required); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	return s
}

// ConfirmingSession returns a session holding SamplePlan awaiting confirmation.
func ConfirmingSession(t *testing.T) *planning.Session {
	t.Helper()
	s := InterviewingSession(t)
	if err := s.AnswerQuestion(0, "the leadership team"); err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if err := s.SkipQuestion(1); err != nil {
		t.Fatalf("SkipQuestion: %v", err)
	}
	if err := s.CompleteInterview(); err != nil {
		t.Fatalf("CompleteInterview: %v", err)
	}
	if err := s.SetPlan(SamplePlan()); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	return s
}
