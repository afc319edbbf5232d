package server

import (
	"time"

	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/session"
)

// --- Request types ---

// CreateRequest starts a new session.
type CreateRequest struct {
	Prompt        string `json:"prompt"`
	ProjectType   string `json:"project_type"`
	SkipInterview bool   `json:"skip_interview"`
}

// SessionRequest addresses an existing session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// ListRequest asks for the most recently updated sessions.
type ListRequest struct {
	Limit int `json:"limit"`
}

// AnswerRequest answers a question. The question is chosen by Key when set,
// otherwise by Index. A nil Index with no Key means the current question.
type AnswerRequest struct {
	SessionID string `json:"session_id"`
	Index     *int   `json:"index,omitempty"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value"`
}

// SkipRequest skips an optional question, addressed like AnswerRequest.
type SkipRequest struct {
	SessionID string `json:"session_id"`
	Index     *int   `json:"index,omitempty"`
	Key       string `json:"key,omitempty"`
}

// SetPlanRequest installs a plan produced outside the server.
type SetPlanRequest struct {
	SessionID string        `json:"session_id"`
	Plan      planning.Plan `json:"plan"`
}

// ModifyRequest sends a confirming session back to planning.
type ModifyRequest struct {
	SessionID string `json:"session_id"`
	Feedback  string `json:"feedback"`
}

// ProgressRequest reports execution progress.
type ProgressRequest struct {
	SessionID string `json:"session_id"`
	TaskName  string `json:"task_name"`
	Percent   int    `json:"percent"`
}

// --- Response types ---

// SessionResponse wraps a session snapshot.
type SessionResponse struct {
	Session planning.Snapshot `json:"session"`
}

// SessionSummary is one row of a ListResponse.
type SessionSummary struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	ProjectType string    `json:"project_type"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListResponse lists stored sessions.
type ListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// ExecuteResponse acknowledges a started execution.
type ExecuteResponse struct {
	Started bool              `json:"started"`
	Session planning.Snapshot `json:"session"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toSummaries(in []session.Summary) []SessionSummary {
	out := make([]SessionSummary, 0, len(in))
	for _, s := range in {
		out = append(out, SessionSummary{
			ID:          s.ID,
			Prompt:      s.Prompt,
			ProjectType: s.ProjectType,
			State:       s.State,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return out
}
