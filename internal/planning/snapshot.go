package planning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the persisted form of a session. Restoring it yields a session
// whose subsequent operations behave exactly like the original's.
type Snapshot struct {
	ID          string            `json:"id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	State       State             `json:"state"`
	Prompt      string            `json:"prompt"`
	ProjectType string            `json:"project_type"`
	Interview   InterviewSnapshot `json:"interview"`
	Plan        *Plan             `json:"plan"`
	Execution   *ExecutionState   `json:"execution"`
}

// InterviewSnapshot carries the questions and the cursor. The cursor is
// redundant and checked against the questions on restore.
type InterviewSnapshot struct {
	Questions    []Question `json:"questions"`
	CurrentIndex int        `json:"current_index"`
}

// Snapshot captures the session's observable state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		CreatedAt:   s.createdAt,
		State:       s.state,
		Prompt:      s.prompt,
		ProjectType: s.projectType,
		Interview: InterviewSnapshot{
			Questions:    s.interview.snapshot(),
			CurrentIndex: s.interview.cursor,
		},
	}
	if s.plan != nil {
		p := s.plan.Clone()
		snap.Plan = &p
	}
	if s.execution != nil {
		e := *s.execution
		snap.Execution = &e
	}
	return snap
}

// Restore rebuilds a session from a snapshot, rejecting snapshots no
// sequence of operations could have produced.
func Restore(snap Snapshot) (*Session, error) {
	if !snap.State.Valid() {
		return nil, validationErr("state", "unknown state %q", snap.State)
	}
	if strings.TrimSpace(snap.Prompt) == "" {
		return nil, validationErr("prompt", "prompt must not be empty")
	}

	var iv interview
	for i, q := range snap.Interview.Questions {
		if err := iv.add(q.Text, q.Key, q.Required); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Field = fmt.Sprintf("interview.questions[%d].%s", i, ve.Field)
			}
			return nil, err
		}
		if q.Answered {
			if q.Answer == nil && q.Required {
				return nil, validationErr(fmt.Sprintf("interview.questions[%d]", i), "required question %q recorded as skipped", q.Key)
			}
			iv.questions[i].Answered = true
			if q.Answer != nil {
				v := *q.Answer
				iv.questions[i].Answer = &v
			}
		} else if q.Answer != nil {
			return nil, validationErr(fmt.Sprintf("interview.questions[%d]", i), "unanswered question %q carries an answer", q.Key)
		}
	}
	iv.sync()
	if iv.cursor != snap.Interview.CurrentIndex {
		return nil, validationErr("interview.current_index", "cursor %d does not match first unanswered question %d",
			snap.Interview.CurrentIndex, iv.cursor)
	}

	if err := checkStateShape(snap, &iv); err != nil {
		return nil, err
	}

	s := &Session{
		id:          snap.ID,
		prompt:      snap.Prompt,
		projectType: snap.ProjectType,
		state:       snap.State,
		createdAt:   snap.CreatedAt,
		interview:   iv,
	}
	if snap.Plan != nil {
		p := snap.Plan.Clone()
		s.plan = &p
	}
	if snap.Execution != nil {
		e := ExecutionState{TaskName: snap.Execution.TaskName, Percent: ClampPercent(snap.Execution.Percent)}
		s.execution = &e
	}
	return s, nil
}

// checkStateShape verifies that the interview, plan and execution parts are
// consistent with the snapshot's state.
func checkStateShape(snap Snapshot, iv *interview) error {
	switch snap.State {
	case StateAnalyzing:
		if iv.len() > 0 {
			return validationErr("state", "analyzing session cannot hold questions")
		}
	case StateInterviewing:
		if iv.len() == 0 {
			return validationErr("state", "interviewing session has no questions")
		}
	case StatePlanning, StateConfirming, StateExecuting, StateCancelled, StateCompleted:
		if iv.cursor != iv.len() {
			return validationErr("state", "%s session has unanswered questions", snap.State)
		}
	}

	wantPlan := snap.State == StateConfirming || snap.State == StateExecuting || snap.State == StateCompleted
	switch {
	case snap.Plan != nil && !wantPlan:
		return validationErr("plan", "%s session cannot hold a plan", snap.State)
	case snap.Plan == nil && wantPlan:
		return validationErr("plan", "%s session requires a plan", snap.State)
	case snap.Plan != nil:
		if err := snap.Plan.Validate(); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				ve.Field = "plan." + ve.Field
			}
			return err
		}
	}

	if snap.Execution != nil && snap.State != StateExecuting && snap.State != StateCompleted {
		return validationErr("execution", "%s session cannot hold execution progress", snap.State)
	}
	return nil
}

// MarshalSnapshot encodes a session snapshot as JSON.
func MarshalSnapshot(s *Session) ([]byte, error) {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes JSON produced by MarshalSnapshot and restores it.
func UnmarshalSnapshot(data []byte) (*Session, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return Restore(snap)
}
