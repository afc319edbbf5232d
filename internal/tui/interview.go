package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/understand"
)

// maxInterviewWidth is the maximum width for the interview box.
const maxInterviewWidth = 90

// InterviewModel walks the unanswered questions in order. Enter submits the
// typed answer, tab skips an optional question, esc or ctrl+c aborts.
type InterviewModel struct {
	questions []planning.Question
	current   int
	input     textinput.Model
	responder understand.Responder
	message   string
	width     int
	aborted   bool
	done      bool
	err       error
}

// NewInterviewModel creates an InterviewModel positioned on the first
// unanswered question.
func NewInterviewModel(questions []planning.Question, r understand.Responder) InterviewModel {
	ti := textinput.New()
	ti.Placeholder = "Type your answer here..."
	ti.CharLimit = 500
	ti.Width = maxInterviewWidth - 12
	ti.Focus()

	m := InterviewModel{
		questions: append([]planning.Question(nil), questions...),
		current:   -1,
		input:     ti,
		responder: r,
		width:     maxInterviewWidth + 4,
	}
	m.advance()
	return m
}

// Init returns the initial command for the interview view.
func (m InterviewModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return textinput.Blink
}

// Update handles key presses and window resizes.
func (m InterviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyCtrlC, KeyEsc:
			m.aborted = true
			return m, tea.Quit

		case KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				if m.questions[m.current].Required {
					m.message = "This question needs an answer."
				} else {
					m.message = "Type an answer or press tab to skip."
				}
				return m, nil
			}
			if err := m.responder.Answer(m.current, value); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.questions[m.current].Answered = true
			m.questions[m.current].Answer = &value
			return m.next()

		case KeyTab:
			if m.questions[m.current].Required {
				m.message = "Required questions cannot be skipped."
				return m, nil
			}
			if err := m.responder.Skip(m.current); err != nil {
				m.err = err
				return m, tea.Quit
			}
			m.questions[m.current].Answered = true
			return m.next()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m InterviewModel) next() (tea.Model, tea.Cmd) {
	m.message = ""
	m.input.Reset()
	m.advance()
	if m.done {
		return m, tea.Quit
	}
	return m, nil
}

// advance moves to the next unanswered question after current.
func (m *InterviewModel) advance() {
	for i := m.current + 1; i < len(m.questions); i++ {
		if !m.questions[i].Answered {
			m.current = i
			return
		}
	}
	m.done = true
}

// View renders the current question.
func (m InterviewModel) View() string {
	if m.done || m.aborted || m.err != nil {
		return ""
	}
	q := m.questions[m.current]

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Understanding your requirements"))
	b.WriteString(DimStyle.Render(fmt.Sprintf("  %d/%d", m.current+1, len(m.questions))))
	b.WriteString("\n\n")
	b.WriteString(QuestionStyle.Render(q.Text))
	if q.Required {
		b.WriteString(WarningStyle.Render(" *"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.message != "" {
		b.WriteString(ErrorStyle.Render(m.message))
		b.WriteString("\n")
	}

	hint := "Enter to answer · Esc to stop"
	if !q.Required {
		hint = "Enter to answer · Tab to skip · Esc to stop"
	}
	b.WriteString(DimStyle.Render(hint))

	boxWidth := maxInterviewWidth
	if m.width-4 < boxWidth {
		boxWidth = m.width - 4
	}
	return BoxStyle.Width(boxWidth).Render(b.String())
}

// Aborted reports whether the user left before answering everything.
func (m InterviewModel) Aborted() bool { return m.aborted }

// Done reports whether every question has been answered or skipped.
func (m InterviewModel) Done() bool { return m.done }

// Err returns the responder error that stopped the interview, if any.
func (m InterviewModel) Err() error { return m.err }

// ErrInterviewAborted is returned by RunInterview when the user quits early.
var ErrInterviewAborted = errors.New("interview aborted")

// RunInterview asks the questions with the Bubble Tea view on a terminal and
// falls back to line prompts on in/out otherwise.
func RunInterview(in io.Reader, out io.Writer, questions []planning.Question, r understand.Responder) error {
	if !IsInteractive() {
		return understand.RunLineInterview(in, out, questions, r)
	}

	final, err := Run(NewInterviewModel(questions, r))
	if err != nil {
		return fmt.Errorf("running interview: %w", err)
	}
	m := final.(InterviewModel)
	if m.Err() != nil {
		return m.Err()
	}
	if m.Aborted() {
		return ErrInterviewAborted
	}
	return nil
}
