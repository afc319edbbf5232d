// Package controller drives planning sessions on behalf of the CLI, the HTTP
// server and the MCP bridge. It owns the session cache, persists every
// mutation and records it in the event log.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/session"
)

// ErrSessionNotFound is returned for IDs that are neither cached nor stored.
var ErrSessionNotFound = fmt.Errorf("session %w", planning.ErrNotFound)

// ErrNoCollaborator is returned when an operation needs an analyzer,
// planner or executor that was not configured.
var ErrNoCollaborator = errors.New("collaborator not configured")

// QuestionSpec is a clarifying question proposed by an Analyzer.
type QuestionSpec struct {
	Key      string `json:"key"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

// PlanRequest carries everything a Planner needs to draft a plan.
type PlanRequest struct {
	SessionID   string
	Prompt      string
	ProjectType string
	Answers     []planning.AnswerPair
	// Feedback is the user's modification request from the previous round.
	Feedback string
}

// ProgressFunc receives overall progress while a plan executes.
type ProgressFunc func(taskName string, percent int) error

// Analyzer proposes clarifying questions for a request.
type Analyzer interface {
	Analyze(ctx context.Context, prompt, projectType string) ([]QuestionSpec, error)
}

// Planner turns a clarified request into a plan.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*planning.Plan, error)
}

// Executor carries out a confirmed plan.
type Executor interface {
	Execute(ctx context.Context, sessionID string, plan planning.Plan, progress ProgressFunc) error
}

// Options configures a Controller. Store and Logger may be nil for a purely
// in-memory controller.
type Options struct {
	Store    *session.Store
	Logger   *log.Logger
	Analyzer Analyzer
	Planner  Planner
	Executor Executor
}

// StartOptions tunes session creation.
type StartOptions struct {
	SkipInterview bool
}

// Controller coordinates planning sessions.
type Controller struct {
	store    *session.Store
	logger   *log.Logger
	analyzer Analyzer
	planner  Planner
	executor Executor

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry serializes access to one session. Its lock is never held while a
// collaborator runs.
type entry struct {
	mu       sync.Mutex
	sess     *planning.Session
	feedback string
}

// New creates a Controller.
func New(opts Options) *Controller {
	return &Controller{
		store:    opts.Store,
		logger:   opts.Logger,
		analyzer: opts.Analyzer,
		planner:  opts.Planner,
		executor: opts.Executor,
		sessions: make(map[string]*entry),
	}
}

// Start creates a session for prompt, runs the analyzer and returns the
// session in interviewing, or in planning when no questions are needed.
// Nothing is stored when analysis fails.
func (c *Controller) Start(ctx context.Context, prompt, projectType string, opts StartOptions) (planning.Snapshot, error) {
	sess, err := planning.New(prompt, projectType)
	if err != nil {
		return planning.Snapshot{}, err
	}
	sess.SetID(session.NewID())

	var specs []QuestionSpec
	if !opts.SkipInterview && c.analyzer != nil {
		specs, err = c.analyzer.Analyze(ctx, prompt, projectType)
		if err != nil {
			return planning.Snapshot{}, fmt.Errorf("analyzing request: %w", err)
		}
	}

	for _, q := range specs {
		if err := sess.AddQuestion(q.Text, q.Key, q.Required); err != nil {
			return planning.Snapshot{}, fmt.Errorf("adding question %q: %w", q.Key, err)
		}
	}
	if len(specs) == 0 {
		if err := sess.SkipInterview(); err != nil {
			return planning.Snapshot{}, err
		}
	}

	if err := c.persist(sess); err != nil {
		return planning.Snapshot{}, err
	}

	c.mu.Lock()
	c.sessions[sess.ID()] = &entry{sess: sess}
	c.mu.Unlock()

	c.record(log.LogEvent{
		Event:       log.EventSessionCreated,
		SessionID:   sess.ID(),
		State:       string(sess.State()),
		Prompt:      prompt,
		ProjectType: projectType,
	})
	if len(specs) == 0 {
		c.record(log.LogEvent{Event: log.EventInterviewSkipped, SessionID: sess.ID(), State: string(sess.State())})
	} else {
		c.record(log.LogEvent{
			Event:     log.EventQuestionsAdded,
			SessionID: sess.ID(),
			State:     string(sess.State()),
			Data:      map[string]any{"count": len(specs)},
		})
	}

	return sess.Snapshot(), nil
}

// Get returns the current snapshot of a session.
func (c *Controller) Get(id string) (planning.Snapshot, error) {
	e, err := c.lookup(id)
	if err != nil {
		return planning.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Snapshot(), nil
}

// List returns summaries of the most recently updated stored sessions. An
// in-memory controller lists its cached sessions instead, newest first by
// creation time; it does not track updates, so UpdatedAt there is only the
// creation time.
func (c *Controller) List(limit int) ([]session.Summary, error) {
	if c.store != nil {
		return c.store.ListSessions(limit)
	}

	c.mu.Lock()
	entries := make([]*entry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	out := []session.Summary{}
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, session.Summary{
			ID:          e.sess.ID(),
			Prompt:      e.sess.Prompt(),
			ProjectType: e.sess.ProjectType(),
			State:       string(e.sess.State()),
			CreatedAt:   e.sess.CreatedAt(),
			UpdatedAt:   e.sess.CreatedAt(),
		})
		e.mu.Unlock()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Answer records an answer for the question at index.
func (c *Controller) Answer(id string, index int, value string) (planning.Snapshot, error) {
	var q planning.Question
	snap, err := c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.AnswerQuestion(index, value); err != nil {
			return log.LogEvent{}, err
		}
		q, _ = e.sess.Question(index)
		return log.LogEvent{Event: log.EventAnswerRecorded, Question: q.Key, Index: index}, nil
	})
	if err != nil {
		return snap, err
	}
	if c.store != nil {
		if err := c.store.RecordAnswer(id, index, q.Key, q.Value(), false); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Skip passes over the optional question at index.
func (c *Controller) Skip(id string, index int) (planning.Snapshot, error) {
	var key string
	snap, err := c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.SkipQuestion(index); err != nil {
			return log.LogEvent{}, err
		}
		q, _ := e.sess.Question(index)
		key = q.Key
		return log.LogEvent{Event: log.EventQuestionSkipped, Question: q.Key, Index: index}, nil
	})
	if err != nil {
		return snap, err
	}
	if c.store != nil {
		if err := c.store.RecordAnswer(id, index, key, "", true); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// CompleteInterview ends the interview and moves the session to planning.
// Optional questions still open are skipped first through Skip, so each
// one is logged and recorded in the answer history. Nothing is skipped
// while a required question is unanswered.
func (c *Controller) CompleteInterview(id string) (planning.Snapshot, error) {
	snap, err := c.Get(id)
	if err != nil {
		return snap, err
	}
	if snap.State == planning.StateInterviewing && !requiredPending(snap.Interview.Questions) {
		for i, q := range snap.Interview.Questions {
			if q.Answered {
				continue
			}
			if _, err := c.Skip(id, i); err != nil {
				return snap, err
			}
		}
	}

	return c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.CompleteInterview(); err != nil {
			return log.LogEvent{}, err
		}
		return log.LogEvent{Event: log.EventInterviewComplete, Data: map[string]any{"answers": len(e.sess.Answers())}}, nil
	})
}

func requiredPending(questions []planning.Question) bool {
	for _, q := range questions {
		if q.Required && !q.Answered {
			return true
		}
	}
	return false
}

// GeneratePlan asks the planner for a plan and installs it. The session must
// be in planning both before and after the planner runs.
func (c *Controller) GeneratePlan(ctx context.Context, id string) (planning.Snapshot, error) {
	if c.planner == nil {
		return planning.Snapshot{}, fmt.Errorf("generate plan: planner %w", ErrNoCollaborator)
	}

	e, err := c.lookup(id)
	if err != nil {
		return planning.Snapshot{}, err
	}

	e.mu.Lock()
	if e.sess.State() != planning.StatePlanning {
		state := e.sess.State()
		e.mu.Unlock()
		return planning.Snapshot{}, &planning.StateTransitionError{
			Op: "generate plan", From: state, To: planning.StateConfirming, Reason: "only valid in planning",
		}
	}
	req := PlanRequest{
		SessionID:   id,
		Prompt:      e.sess.Prompt(),
		ProjectType: e.sess.ProjectType(),
		Answers:     e.sess.Answers(),
		Feedback:    e.feedback,
	}
	e.mu.Unlock()

	start := time.Now()
	plan, err := c.planner.Plan(ctx, req)
	if err != nil {
		c.record(log.LogEvent{Event: log.EventSessionFailed, SessionID: id, State: string(planning.StatePlanning), Error: err.Error()})
		return planning.Snapshot{}, fmt.Errorf("generating plan: %w", err)
	}
	if plan == nil {
		return planning.Snapshot{}, errors.New("generating plan: planner returned no plan")
	}

	return c.installPlan(id, *plan, time.Since(start))
}

// InstallPlan installs an externally produced plan.
func (c *Controller) InstallPlan(id string, plan planning.Plan) (planning.Snapshot, error) {
	return c.installPlan(id, plan, 0)
}

func (c *Controller) installPlan(id string, plan planning.Plan, took time.Duration) (planning.Snapshot, error) {
	snap, err := c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.SetPlan(plan); err != nil {
			return log.LogEvent{}, err
		}
		e.feedback = ""
		return log.LogEvent{
			Event:      log.EventPlanReady,
			Title:      plan.Title,
			Tasks:      len(plan.Tasks),
			DurationMs: took.Milliseconds(),
		}, nil
	})
	if err != nil {
		return snap, err
	}
	if c.store != nil {
		if err := c.store.SaveFeedback(id, ""); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Confirm accepts the plan and starts execution.
func (c *Controller) Confirm(id string) (planning.Snapshot, error) {
	return c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.ConfirmPlan(); err != nil {
			return log.LogEvent{}, err
		}
		return log.LogEvent{Event: log.EventPlanConfirmed}, nil
	})
}

// Modify discards the plan and returns to planning. feedback is handed to
// the planner on the next GeneratePlan.
func (c *Controller) Modify(id, feedback string) (planning.Snapshot, error) {
	feedback = strings.TrimSpace(feedback)
	snap, err := c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.ModifyPlan(); err != nil {
			return log.LogEvent{}, err
		}
		e.feedback = feedback
		return log.LogEvent{Event: log.EventModificationRequested, Reason: feedback}, nil
	})
	if err != nil {
		return snap, err
	}
	if c.store != nil {
		if err := c.store.SaveFeedback(id, feedback); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Cancel abandons the plan. The session becomes terminal.
func (c *Controller) Cancel(id string) (planning.Snapshot, error) {
	return c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.CancelPlan(); err != nil {
			return log.LogEvent{}, err
		}
		return log.LogEvent{Event: log.EventPlanCancelled}, nil
	})
}

// ReportProgress records execution progress. percent is clamped to [0, 100].
func (c *Controller) ReportProgress(id, taskName string, percent int) (planning.Snapshot, error) {
	snap, err := c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.SetExecutionProgress(taskName, percent); err != nil {
			return log.LogEvent{}, err
		}
		ex, _ := e.sess.Execution()
		return log.LogEvent{Event: log.EventTaskProgress, TaskName: ex.TaskName, Percent: ex.Percent}, nil
	})
	if err != nil {
		return snap, err
	}
	if c.store != nil && snap.Execution != nil {
		if err := c.store.RecordProgress(id, snap.Execution.TaskName, snap.Execution.Percent); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// Finish marks an executing session completed.
func (c *Controller) Finish(id string) (planning.Snapshot, error) {
	return c.mutate(id, func(e *entry) (log.LogEvent, error) {
		if err := e.sess.Complete(); err != nil {
			return log.LogEvent{}, err
		}
		return log.LogEvent{Event: log.EventSessionCompleted}, nil
	})
}

// Execute runs the confirmed plan through the executor, recording progress
// as it goes, and completes the session on success. On failure the session
// stays in executing so the run can be resumed.
func (c *Controller) Execute(ctx context.Context, id string, onProgress ProgressFunc) (planning.Snapshot, error) {
	if c.executor == nil {
		return planning.Snapshot{}, fmt.Errorf("execute: executor %w", ErrNoCollaborator)
	}

	snap, err := c.Get(id)
	if err != nil {
		return snap, err
	}
	if snap.State != planning.StateExecuting || snap.Plan == nil {
		return snap, &planning.StateTransitionError{
			Op: "execute", From: snap.State, To: planning.StateCompleted, Reason: "only valid in executing",
		}
	}

	start := time.Now()
	progress := func(taskName string, percent int) error {
		if _, err := c.ReportProgress(id, taskName, percent); err != nil {
			return err
		}
		if onProgress != nil {
			return onProgress(taskName, percent)
		}
		return nil
	}

	if err := c.executor.Execute(ctx, id, *snap.Plan, progress); err != nil {
		c.record(log.LogEvent{
			Event:      log.EventSessionFailed,
			SessionID:  id,
			State:      string(planning.StateExecuting),
			Error:      err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		})
		return snap, fmt.Errorf("executing plan: %w", err)
	}

	return c.Finish(id)
}

// Forget drops a session from the in-memory cache. Stored copies remain.
func (c *Controller) Forget(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// mutate applies fn under the session lock, persists the result and logs the
// returned event. A failed save rolls the in-memory session back.
func (c *Controller) mutate(id string, fn func(*entry) (log.LogEvent, error)) (planning.Snapshot, error) {
	e, err := c.lookup(id)
	if err != nil {
		return planning.Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.sess.Snapshot()
	beforeFeedback := e.feedback

	event, err := fn(e)
	if err != nil {
		return e.sess.Snapshot(), err
	}

	if err := c.persist(e.sess); err != nil {
		if restored, rerr := planning.Restore(before); rerr == nil {
			e.sess = restored
		}
		e.feedback = beforeFeedback
		return e.sess.Snapshot(), err
	}

	event.SessionID = id
	event.State = string(e.sess.State())
	c.record(event)

	return e.sess.Snapshot(), nil
}

// lookup returns the cached entry for id, restoring it from the store on
// first use.
func (c *Controller) lookup(id string) (*entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.sessions[id]; ok {
		return e, nil
	}
	if c.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess, err := c.store.LoadSnapshot(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	feedback, err := c.store.LoadFeedback(id)
	if err != nil {
		return nil, err
	}

	e := &entry{sess: sess, feedback: feedback}
	c.sessions[id] = e
	return e, nil
}

func (c *Controller) persist(sess *planning.Session) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveSnapshot(sess); err != nil {
		return fmt.Errorf("persisting session %s: %w", sess.ID(), err)
	}
	return nil
}

func (c *Controller) record(event log.LogEvent) {
	if c.logger == nil {
		return
	}
	_ = c.logger.Append(event)
}
