package controller

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/berth-dev/compass/internal/log"
	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/session"
	"github.com/berth-dev/compass/internal/testutil"
)

type fakeAnalyzer struct {
	questions []QuestionSpec
	err       error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, _ string) ([]QuestionSpec, error) {
	return f.questions, f.err
}

type fakePlanner struct {
	mu       sync.Mutex
	requests []PlanRequest
	err      error
}

func (f *fakePlanner) Plan(_ context.Context, req PlanRequest) (*planning.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	p := testutil.SamplePlan()
	return &p, nil
}

type fakeExecutor struct {
	err error
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, plan planning.Plan, progress ProgressFunc) error {
	for i, task := range plan.Tasks {
		if err := progress(task.Name, (i+1)*100/len(plan.Tasks)); err != nil {
			return err
		}
		if f.err != nil {
			return f.err
		}
	}
	return nil
}

func defaultQuestions() []QuestionSpec {
	return []QuestionSpec{
		{Key: "audience", Text: "Who is the audience?", Required: true},
		{Key: "tone", Text: "Any preferred tone?"},
	}
}

func newTestController(t *testing.T, opts Options) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := session.NewStore(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	logger, err := log.NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	opts.Store = store
	opts.Logger = logger
	if opts.Analyzer == nil {
		opts.Analyzer = &fakeAnalyzer{questions: defaultQuestions()}
	}
	if opts.Planner == nil {
		opts.Planner = &fakePlanner{}
	}
	if opts.Executor == nil {
		opts.Executor = &fakeExecutor{}
	}
	return New(opts), dir
}

func TestFullWorkflow(t *testing.T) {
	planner := &fakePlanner{}
	c, dir := newTestController(t, Options{Planner: planner})
	ctx := context.Background()

	snap, err := c.Start(ctx, "Prepare the quarterly review deck", "document", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.State != planning.StateInterviewing || len(snap.Interview.Questions) != 2 {
		t.Fatalf("Start = %+v, want interviewing with 2 questions", snap)
	}
	id := snap.ID

	if _, err := c.Answer(id, 0, "leadership"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if _, err := c.Skip(id, 1); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if _, err := c.CompleteInterview(id); err != nil {
		t.Fatalf("CompleteInterview failed: %v", err)
	}

	snap, err = c.GeneratePlan(ctx, id)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if snap.State != planning.StateConfirming || snap.Plan == nil {
		t.Fatalf("GeneratePlan = %+v, want confirming with a plan", snap)
	}
	// Skipped questions are left out of the planner's answers.
	if len(planner.requests) != 1 || len(planner.requests[0].Answers) != 1 || planner.requests[0].Answers[0].Key != "audience" {
		t.Errorf("planner requests = %+v", planner.requests)
	}

	// Modify carries feedback into the next planning round.
	if _, err := c.Modify(id, "  fewer slides "); err != nil {
		t.Fatalf("Modify failed: %v", err)
	}
	if _, err := c.GeneratePlan(ctx, id); err != nil {
		t.Fatalf("GeneratePlan (2) failed: %v", err)
	}
	if got := planner.requests[1].Feedback; got != "fewer slides" {
		t.Errorf("Feedback = %q, want %q", got, "fewer slides")
	}

	if _, err := c.Confirm(id); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	var seen []int
	snap, err = c.Execute(ctx, id, func(_ string, pct int) error {
		seen = append(seen, pct)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if snap.State != planning.StateCompleted {
		t.Errorf("State = %s, want completed", snap.State)
	}
	if len(seen) != 2 || seen[1] != 100 {
		t.Errorf("progress = %v", seen)
	}

	logger, _ := log.NewLogger(dir)
	events, err := logger.ForSession(id)
	if err != nil {
		t.Fatalf("ForSession failed: %v", err)
	}
	var names []string
	for _, e := range events {
		names = append(names, e.Event)
	}
	want := []string{
		log.EventSessionCreated, log.EventQuestionsAdded,
		log.EventAnswerRecorded, log.EventQuestionSkipped, log.EventInterviewComplete,
		log.EventPlanReady, log.EventModificationRequested, log.EventPlanReady,
		log.EventPlanConfirmed, log.EventTaskProgress, log.EventTaskProgress,
		log.EventSessionCompleted,
	}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestStartWithoutQuestionsSkipsInterview(t *testing.T) {
	c, _ := newTestController(t, Options{Analyzer: &fakeAnalyzer{}})
	snap, err := c.Start(context.Background(), "Rename a file", "general", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.State != planning.StatePlanning {
		t.Errorf("State = %s, want planning", snap.State)
	}

	c2, _ := newTestController(t, Options{})
	snap, err = c2.Start(context.Background(), "Rename a file", "general", StartOptions{SkipInterview: true})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.State != planning.StatePlanning || len(snap.Interview.Questions) != 0 {
		t.Errorf("skip-interview start = %+v", snap)
	}
}

func TestStartErrors(t *testing.T) {
	c, _ := newTestController(t, Options{Analyzer: &fakeAnalyzer{err: errors.New("claude unavailable")}})
	if _, err := c.Start(context.Background(), "x", "general", StartOptions{}); err == nil {
		t.Error("expected analyzer error")
	}
	list, _ := c.List(10)
	if len(list) != 0 {
		t.Errorf("failed start stored a session: %+v", list)
	}

	c, _ = newTestController(t, Options{})
	_, err := c.Start(context.Background(), "   ", "general", StartOptions{})
	if !errors.Is(err, planning.ErrValidation) {
		t.Errorf("blank prompt: got %v, want validation error", err)
	}

	dup := []QuestionSpec{{Key: "a", Text: "A?"}, {Key: "a", Text: "Again?"}}
	c, _ = newTestController(t, Options{Analyzer: &fakeAnalyzer{questions: dup}})
	_, err = c.Start(context.Background(), "x", "general", StartOptions{})
	if !errors.Is(err, planning.ErrValidation) {
		t.Errorf("duplicate keys: got %v, want validation error", err)
	}
}

func TestCompleteInterviewSkipsOpenOptionalQuestions(t *testing.T) {
	c, _ := newTestController(t, Options{})
	snap, err := c.Start(context.Background(), "Prepare a deck", "document", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	id := snap.ID

	if _, err := c.Answer(id, 0, "leadership"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	snap, err = c.CompleteInterview(id)
	if err != nil {
		t.Fatalf("CompleteInterview failed: %v", err)
	}
	if snap.State != planning.StatePlanning {
		t.Fatalf("State = %s, want planning", snap.State)
	}
	if !snap.Interview.Questions[1].Skipped() {
		t.Error("tone should be recorded as skipped")
	}

	events, err := c.logger.ForSession(id)
	if err != nil {
		t.Fatalf("ForSession failed: %v", err)
	}
	var skipped int
	for _, e := range events {
		if e.Event == log.EventQuestionSkipped {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("question_skipped events = %d, want 1", skipped)
	}

	answers, err := c.store.GetAnswers(id)
	if err != nil {
		t.Fatalf("GetAnswers failed: %v", err)
	}
	var found bool
	for _, a := range answers {
		if a.Key == "tone" && a.Skipped {
			found = true
		}
	}
	if !found {
		t.Errorf("answer history has no skipped tone row: %+v", answers)
	}
}

func TestListNewestFirstWithoutStore(t *testing.T) {
	c := New(Options{Analyzer: &fakeAnalyzer{}})
	var ids []string
	for i := 0; i < 3; i++ {
		snap, err := c.Start(context.Background(), "Rename a file", "general", StartOptions{})
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		ids = append(ids, snap.ID)
	}

	for i := 0; i < 5; i++ {
		list, err := c.List(0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != len(ids) {
			t.Fatalf("List = %d sessions, want %d", len(list), len(ids))
		}
		for j := 1; j < len(list); j++ {
			prev, cur := list[j-1], list[j]
			if prev.CreatedAt.Before(cur.CreatedAt) {
				t.Fatalf("List not newest first: %s before %s", prev.ID, cur.ID)
			}
			if prev.CreatedAt.Equal(cur.CreatedAt) && prev.ID > cur.ID {
				t.Fatalf("List ties not ordered by ID: %s before %s", prev.ID, cur.ID)
			}
		}
	}

	list, _ := c.List(2)
	if len(list) != 2 {
		t.Errorf("List(2) = %d sessions, want 2", len(list))
	}
}

func TestErrorsLeaveSessionUnchanged(t *testing.T) {
	c, _ := newTestController(t, Options{})
	snap, err := c.Start(context.Background(), "Prepare a deck", "document", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	id := snap.ID

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"skip required", func() error { _, err := c.Skip(id, 0); return err }, planning.ErrValidation},
		{"answer out of range", func() error { _, err := c.Answer(id, 5, "x"); return err }, planning.ErrNotFound},
		{"complete with required pending", func() error { _, err := c.CompleteInterview(id); return err }, planning.ErrStateTransition},
		{"confirm without plan", func() error { _, err := c.Confirm(id); return err }, planning.ErrStateTransition},
		{"plan while interviewing", func() error { _, err := c.GeneratePlan(context.Background(), id); return err }, planning.ErrStateTransition},
		{"progress while interviewing", func() error { _, err := c.ReportProgress(id, "x", 5); return err }, planning.ErrStateTransition},
		{"unknown session", func() error { _, err := c.Confirm("missing"); return err }, planning.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			after, err := c.Get(id)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if after.State != planning.StateInterviewing || after.Interview.CurrentIndex != 0 {
				t.Errorf("session changed after failed op: %+v", after)
			}
		})
	}
}

func TestPlannerFailureKeepsPlanning(t *testing.T) {
	c, _ := newTestController(t, Options{Planner: &fakePlanner{err: errors.New("timeout")}})
	snap, err := c.Start(context.Background(), "Prepare a deck", "document", StartOptions{SkipInterview: true})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := c.GeneratePlan(context.Background(), snap.ID); err == nil {
		t.Fatal("expected planner error")
	}
	after, _ := c.Get(snap.ID)
	if after.State != planning.StatePlanning {
		t.Errorf("State = %s, want planning", after.State)
	}
}

func TestExecuteFailureStaysExecuting(t *testing.T) {
	c, _ := newTestController(t, Options{Executor: &fakeExecutor{err: errors.New("task failed")}})
	ctx := context.Background()
	snap, _ := c.Start(ctx, "Prepare a deck", "document", StartOptions{SkipInterview: true})
	if _, err := c.GeneratePlan(ctx, snap.ID); err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := c.Confirm(snap.ID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if _, err := c.Execute(ctx, snap.ID, nil); err == nil {
		t.Fatal("expected executor error")
	}
	after, _ := c.Get(snap.ID)
	if after.State != planning.StateExecuting || after.Execution == nil {
		t.Errorf("after failure: %+v", after)
	}
}

func TestReportProgressClamps(t *testing.T) {
	c, _ := newTestController(t, Options{})
	ctx := context.Background()
	snap, _ := c.Start(ctx, "Prepare a deck", "document", StartOptions{SkipInterview: true})
	_, _ = c.GeneratePlan(ctx, snap.ID)
	_, _ = c.Confirm(snap.ID)

	for _, tc := range []struct{ in, want int }{{-5, 0}, {40, 40}, {250, 100}} {
		got, err := c.ReportProgress(snap.ID, "Slides", tc.in)
		if err != nil {
			t.Fatalf("ReportProgress(%d) failed: %v", tc.in, err)
		}
		if got.Execution.Percent != tc.want {
			t.Errorf("ReportProgress(%d) = %d, want %d", tc.in, got.Execution.Percent, tc.want)
		}
	}
	if _, err := c.ReportProgress(snap.ID, " ", 10); !errors.Is(err, planning.ErrValidation) {
		t.Errorf("blank task name: got %v, want validation error", err)
	}
}

func TestSessionsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sessions.db")
	open := func() (*Controller, *session.Store) {
		store, err := session.NewStore(dbPath)
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		return New(Options{
			Store:    store,
			Analyzer: &fakeAnalyzer{questions: defaultQuestions()},
			Planner:  &fakePlanner{},
		}), store
	}

	c1, s1 := open()
	snap, err := c1.Start(context.Background(), "Prepare a deck", "document", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := c1.Answer(snap.ID, 0, "board"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if _, err := c1.CompleteInterview(snap.ID); err != nil {
		t.Fatalf("CompleteInterview failed: %v", err)
	}
	if _, err := c1.GeneratePlan(context.Background(), snap.ID); err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if _, err := c1.Modify(snap.ID, "add a summary slide"); err != nil {
		t.Fatalf("Modify failed: %v", err)
	}
	_ = s1.Close()

	c2, s2 := open()
	defer s2.Close()
	restored, err := c2.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get after restart failed: %v", err)
	}
	if restored.State != planning.StatePlanning {
		t.Errorf("State = %s, want planning", restored.State)
	}
	answers := restored.Interview.Questions
	if len(answers) != 2 || answers[0].Value() != "board" || !answers[1].Skipped() {
		t.Errorf("questions = %+v", answers)
	}

	planner := c2.planner.(*fakePlanner)
	if _, err := c2.GeneratePlan(context.Background(), snap.ID); err != nil {
		t.Fatalf("GeneratePlan after restart failed: %v", err)
	}
	if planner.requests[0].Feedback != "add a summary slide" {
		t.Errorf("Feedback after restart = %q", planner.requests[0].Feedback)
	}
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	many := make([]QuestionSpec, 20)
	for i := range many {
		many[i] = QuestionSpec{Key: string(rune('a' + i)), Text: "Question?"}
	}
	c := New(Options{Analyzer: &fakeAnalyzer{questions: many}})
	snap, err := c.Start(context.Background(), "Prepare a deck", "document", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := range many {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = c.Answer(snap.ID, i, "yes")
			} else {
				_, _ = c.Skip(snap.ID, i)
			}
		}(i)
	}
	wg.Wait()

	after, _ := c.Get(snap.ID)
	if after.Interview.CurrentIndex != len(many) {
		t.Errorf("CurrentIndex = %d, want %d", after.Interview.CurrentIndex, len(many))
	}
	if _, err := c.CompleteInterview(snap.ID); err != nil {
		t.Errorf("CompleteInterview failed: %v", err)
	}
}

func TestMissingCollaborators(t *testing.T) {
	c := New(Options{})
	snap, err := c.Start(context.Background(), "Prepare a deck", "document", StartOptions{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.State != planning.StatePlanning {
		t.Errorf("no analyzer: State = %s, want planning", snap.State)
	}
	if _, err := c.GeneratePlan(context.Background(), snap.ID); !errors.Is(err, ErrNoCollaborator) {
		t.Errorf("GeneratePlan = %v, want ErrNoCollaborator", err)
	}
	if _, err := c.InstallPlan(snap.ID, testutil.SamplePlan()); err != nil {
		t.Fatalf("InstallPlan failed: %v", err)
	}
	if _, err := c.Confirm(snap.ID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if _, err := c.Execute(context.Background(), snap.ID, nil); !errors.Is(err, ErrNoCollaborator) {
		t.Errorf("Execute = %v, want ErrNoCollaborator", err)
	}
	if _, err := c.Finish(snap.ID); err != nil {
		t.Errorf("Finish failed: %v", err)
	}
}
