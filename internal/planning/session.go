package planning

import (
	"strings"
	"time"
)

// Session is the aggregate root of one planning attempt. It is a plain
// mutable value with no internal locking; callers that share a Session
// across goroutines must serialize access themselves.
type Session struct {
	id          string
	prompt      string
	projectType string
	state       State
	createdAt   time.Time
	interview   interview
	plan        *Plan
	execution   *ExecutionState
}

// New creates a session in the analyzing state.
func New(prompt, projectType string) (*Session, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, validationErr("prompt", "prompt must not be empty")
	}
	return &Session{
		prompt:      prompt,
		projectType: projectType,
		state:       StateAnalyzing,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ID returns the host-assigned identifier, or "" if none was set.
func (s *Session) ID() string { return s.id }

// SetID assigns the host identifier.
func (s *Session) SetID(id string) { s.id = id }

func (s *Session) Prompt() string       { return s.prompt }
func (s *Session) ProjectType() string  { return s.projectType }
func (s *Session) State() State         { return s.state }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) IsTerminal() bool     { return s.state.IsTerminal() }

// Questions returns a copy of the interview questions in insertion order.
func (s *Session) Questions() []Question {
	return s.interview.snapshot()
}

// Question returns a copy of the question at index.
func (s *Session) Question(index int) (Question, error) {
	if err := s.interview.checkIndex(index); err != nil {
		return Question{}, err
	}
	return s.interview.questions[index].clone(), nil
}

// QuestionIndex returns the index of the question with key, or -1.
func (s *Session) QuestionIndex(key string) int {
	return s.interview.indexOf(key)
}

// CurrentQuestionIndex is the lowest index not yet answered or skipped, or
// TotalQuestions when none remain.
func (s *Session) CurrentQuestionIndex() int { return s.interview.cursor }

// TotalQuestions returns the number of questions asked so far.
func (s *Session) TotalQuestions() int { return s.interview.len() }

// CurrentQuestion returns the question under the cursor; ok is false when
// every question has been handled.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.interview.cursor >= s.interview.len() {
		return Question{}, false
	}
	return s.interview.questions[s.interview.cursor].clone(), true
}

// Answers returns the answered, non-skipped questions in order.
func (s *Session) Answers() []AnswerPair {
	return s.interview.answers()
}

// Plan returns a copy of the installed plan.
func (s *Session) Plan() (Plan, bool) {
	if s.plan == nil {
		return Plan{}, false
	}
	return s.plan.Clone(), true
}

// Execution returns the latest progress report.
func (s *Session) Execution() (ExecutionState, bool) {
	if s.execution == nil {
		return ExecutionState{}, false
	}
	return *s.execution, true
}

// SetState applies a transition through the same guards the named
// operations use. It exists for hosts that drive the graph generically.
func (s *Session) SetState(next State) error {
	if err := s.guard("set state", next); err != nil {
		return err
	}
	if s.state == StateConfirming && (next == StatePlanning || next == StateCancelled) {
		s.plan = nil
	}
	s.state = next
	return nil
}

// guard checks the transition graph and the preconditions each edge needs.
func (s *Session) guard(op string, next State) error {
	if !next.Valid() {
		return &StateTransitionError{Op: op, From: s.state, To: next, Reason: "unknown state"}
	}
	if !CanTransition(s.state, next) {
		return &StateTransitionError{Op: op, From: s.state, To: next}
	}
	switch {
	case next == StateInterviewing && s.interview.len() == 0:
		return &StateTransitionError{Op: op, From: s.state, To: next, Reason: "no questions have been added"}
	case s.state == StateInterviewing && next == StatePlanning:
		if pending := s.interview.pendingRequired(); len(pending) > 0 {
			return &StateTransitionError{
				Op: op, From: s.state, To: next,
				Reason: "required questions unanswered: " + strings.Join(pending, ", "),
			}
		}
		if s.interview.cursor != s.interview.len() {
			return &StateTransitionError{
				Op: op, From: s.state, To: next,
				Reason: "questions neither answered nor skipped: " + strings.Join(s.interview.pending(), ", "),
			}
		}
	case next == StateConfirming && s.plan == nil:
		return &StateTransitionError{Op: op, From: s.state, To: next, Reason: "no plan installed"}
	}
	return nil
}

// requireState fails unless the session is in one of the allowed states.
func (s *Session) requireState(op string, to State, allowed ...State) error {
	for _, a := range allowed {
		if s.state == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return &StateTransitionError{Op: op, From: s.state, To: to, Reason: "only valid in " + strings.Join(names, " or ")}
}

// AddQuestion appends a clarifying question. The first question moves the
// session from analyzing to interviewing.
func (s *Session) AddQuestion(text, key string, required bool) error {
	if err := s.requireState("add question", "", StateAnalyzing, StateInterviewing); err != nil {
		return err
	}
	if err := s.interview.add(text, key, required); err != nil {
		return err
	}
	if s.state == StateAnalyzing {
		s.state = StateInterviewing
	}
	return nil
}

// SkipInterview declares that the prompt needs no clarification.
func (s *Session) SkipInterview() error {
	if err := s.requireState("skip interview", StatePlanning, StateAnalyzing); err != nil {
		return err
	}
	if err := s.guard("skip interview", StatePlanning); err != nil {
		return err
	}
	s.state = StatePlanning
	return nil
}

// AnswerQuestion records value for the question at index. Answering again
// overwrites the previous value.
func (s *Session) AnswerQuestion(index int, value string) error {
	if err := s.requireState("answer question", "", StateInterviewing); err != nil {
		return err
	}
	return s.interview.answer(index, value)
}

// SkipQuestion marks an optional question as handled without an answer.
// Required questions cannot be skipped.
func (s *Session) SkipQuestion(index int) error {
	if err := s.requireState("skip question", "", StateInterviewing); err != nil {
		return err
	}
	return s.interview.skip(index)
}

// CompleteInterview ends the interview and moves to planning. Every
// question must be answered or skipped first.
func (s *Session) CompleteInterview() error {
	if err := s.requireState("complete interview", StatePlanning, StateInterviewing); err != nil {
		return err
	}
	if err := s.guard("complete interview", StatePlanning); err != nil {
		return err
	}
	s.state = StatePlanning
	return nil
}

// SetPlan validates p, installs a copy of it and moves to confirming.
func (s *Session) SetPlan(p Plan) error {
	if err := s.requireState("set plan", StateConfirming, StatePlanning); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	installed := p.Clone()
	s.plan = &installed
	s.state = StateConfirming
	return nil
}

// ConfirmPlan accepts the installed plan and starts execution.
func (s *Session) ConfirmPlan() error {
	if err := s.requireState("confirm plan", StateExecuting, StateConfirming); err != nil {
		return err
	}
	s.state = StateExecuting
	return nil
}

// ModifyPlan discards the installed plan and returns to planning. Interview
// answers are kept for the next planning round.
func (s *Session) ModifyPlan() error {
	if err := s.requireState("modify plan", StatePlanning, StateConfirming); err != nil {
		return err
	}
	s.plan = nil
	s.state = StatePlanning
	return nil
}

// CancelPlan discards the installed plan and ends the session.
func (s *Session) CancelPlan() error {
	if err := s.requireState("cancel plan", StateCancelled, StateConfirming); err != nil {
		return err
	}
	s.plan = nil
	s.state = StateCancelled
	return nil
}

// SetExecutionProgress overwrites the execution state. percent is clamped to
// [0, 100]; a lower value after a higher one is accepted.
func (s *Session) SetExecutionProgress(taskName string, percent int) error {
	if err := s.requireState("set execution progress", "", StateExecuting); err != nil {
		return err
	}
	if strings.TrimSpace(taskName) == "" {
		return validationErr("task_name", "task name must not be empty")
	}
	s.execution = &ExecutionState{TaskName: taskName, Percent: ClampPercent(percent)}
	return nil
}

// Complete declares the plan fully executed.
func (s *Session) Complete() error {
	if err := s.requireState("complete", StateCompleted, StateExecuting); err != nil {
		return err
	}
	s.state = StateCompleted
	return nil
}
