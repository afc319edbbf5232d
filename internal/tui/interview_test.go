package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/berth-dev/compass/internal/planning"
)

type recordingResponder struct {
	answers map[int]string
	skips   []int
	err     error
}

func (r *recordingResponder) Answer(index int, value string) error {
	if r.err != nil {
		return r.err
	}
	if r.answers == nil {
		r.answers = map[int]string{}
	}
	r.answers[index] = value
	return nil
}

func (r *recordingResponder) Skip(index int) error {
	if r.err != nil {
		return r.err
	}
	r.skips = append(r.skips, index)
	return nil
}

func questions() []planning.Question {
	return []planning.Question{
		{Text: "Who is the audience?", Key: "audience", Required: true},
		{Text: "Any preferred tone?", Key: "tone"},
	}
}

func typeText(m tea.Model, s string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m tea.Model, t tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: t})
}

func TestInterviewModelAnswersAndSkips(t *testing.T) {
	r := &recordingResponder{}
	var m tea.Model = NewInterviewModel(questions(), r)

	if !strings.Contains(m.View(), "Who is the audience?") {
		t.Fatalf("first view = %q", m.View())
	}

	// Tab on a required question is refused.
	m, _ = press(m, tea.KeyTab)
	if len(r.skips) != 0 {
		t.Fatal("required question was skipped")
	}
	if !strings.Contains(m.View(), "cannot be skipped") {
		t.Errorf("missing refusal message: %q", m.View())
	}

	// Enter with no text is refused too.
	m, _ = press(m, tea.KeyEnter)
	if len(r.answers) != 0 {
		t.Fatal("blank answer was submitted")
	}

	m = typeText(m, "leadership")
	m, _ = press(m, tea.KeyEnter)
	if r.answers[0] != "leadership" {
		t.Fatalf("answers = %v", r.answers)
	}
	if !strings.Contains(m.View(), "Any preferred tone?") {
		t.Fatalf("second view = %q", m.View())
	}

	m, cmd := press(m, tea.KeyTab)
	if len(r.skips) != 1 || r.skips[0] != 1 {
		t.Fatalf("skips = %v", r.skips)
	}
	im := m.(InterviewModel)
	if !im.Done() || im.Aborted() {
		t.Errorf("done = %v, aborted = %v", im.Done(), im.Aborted())
	}
	if cmd == nil {
		t.Error("expected quit command after the last question")
	}
}

func TestInterviewModelStartsAtFirstOpenQuestion(t *testing.T) {
	qs := questions()
	answered := "leadership"
	qs[0].Answered = true
	qs[0].Answer = &answered

	m := NewInterviewModel(qs, &recordingResponder{})
	if !strings.Contains(m.View(), "Any preferred tone?") {
		t.Errorf("view = %q", m.View())
	}
	if qs[1].Answered {
		t.Error("model must not alter the caller's questions")
	}
}

func TestInterviewModelAbort(t *testing.T) {
	var m tea.Model = NewInterviewModel(questions(), &recordingResponder{})
	m, _ = press(m, tea.KeyEsc)
	if !m.(InterviewModel).Aborted() {
		t.Error("esc should abort")
	}
}

func TestInterviewModelResponderError(t *testing.T) {
	boom := errors.New("boom")
	var m tea.Model = NewInterviewModel(questions(), &recordingResponder{err: boom})
	m = typeText(m, "x")
	m, _ = press(m, tea.KeyEnter)
	if !errors.Is(m.(InterviewModel).Err(), boom) {
		t.Errorf("Err() = %v", m.(InterviewModel).Err())
	}
}

func TestInterviewModelNothingToAsk(t *testing.T) {
	m := NewInterviewModel(nil, &recordingResponder{})
	if !m.Done() || m.View() != "" {
		t.Errorf("done = %v, view = %q", m.Done(), m.View())
	}
}

func TestRenderMarkdown(t *testing.T) {
	out, err := renderMarkdown("# Quarterly review deck\n\n- Outline\n", 80, glamour.WithStandardStyle("notty"))
	if err != nil {
		t.Fatalf("renderMarkdown: %v", err)
	}
	if !strings.Contains(out, "Quarterly review deck") || !strings.Contains(out, "Outline") {
		t.Errorf("rendered = %q", out)
	}
}

func TestStateBadge(t *testing.T) {
	if StateBadge("completed") != BadgeDone || StateBadge("cancelled") != BadgeCancelled {
		t.Error("terminal badges mismatch")
	}
	if StateBadge("interviewing") != BadgePending {
		t.Error("interviewing should be pending")
	}
}
