package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/berth-dev/compass/internal/planning"
	"github.com/berth-dev/compass/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := newTestStore(t)

	sess := testutil.ConfirmingSession(t)
	sess.SetID(NewID())
	if err := store.SaveSnapshot(sess); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := store.LoadSnapshot(sess.ID())
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadSnapshot returned nil for a stored session")
	}
	if loaded.ID() != sess.ID() {
		t.Errorf("ID = %q, want %q", loaded.ID(), sess.ID())
	}
	if loaded.State() != planning.StateConfirming {
		t.Errorf("State = %s, want confirming", loaded.State())
	}
	plan, ok := loaded.Plan()
	if !ok || plan.Title != testutil.SamplePlan().Title {
		t.Errorf("Plan = %+v, %v", plan, ok)
	}

	// Upsert keeps one row and tracks the new state.
	if err := loaded.ConfirmPlan(); err != nil {
		t.Fatalf("ConfirmPlan failed: %v", err)
	}
	if err := store.SaveSnapshot(loaded); err != nil {
		t.Fatalf("SaveSnapshot (update) failed: %v", err)
	}
	list, err := store.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(list) != 1 || list[0].State != string(planning.StateExecuting) {
		t.Errorf("ListSessions = %+v, want one executing session", list)
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.LoadSnapshot("nope")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if sess != nil {
		t.Errorf("LoadSnapshot = %v, want nil", sess)
	}
}

func TestSaveSnapshotRequiresID(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSnapshot(testutil.InterviewingSession(t)); err == nil {
		t.Error("expected error for session without id")
	}
}

func TestAnswerAndProgressHistory(t *testing.T) {
	store := newTestStore(t)
	sess := testutil.InterviewingSession(t)
	sess.SetID(NewID())
	if err := store.SaveSnapshot(sess); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if err := store.RecordAnswer(sess.ID(), 0, "audience", "engineers", false); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if err := store.RecordAnswer(sess.ID(), 1, "tone", "", true); err != nil {
		t.Fatalf("RecordAnswer (skip) failed: %v", err)
	}
	answers, err := store.GetAnswers(sess.ID())
	if err != nil {
		t.Fatalf("GetAnswers failed: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	if answers[0].Key != "audience" || answers[0].Value != "engineers" || answers[0].Skipped {
		t.Errorf("answers[0] = %+v", answers[0])
	}
	if !answers[1].Skipped || answers[1].Index != 1 {
		t.Errorf("answers[1] = %+v", answers[1])
	}

	for _, pct := range []int{0, 50, 100} {
		if err := store.RecordProgress(sess.ID(), "Slides", pct); err != nil {
			t.Fatalf("RecordProgress failed: %v", err)
		}
	}
	reports, err := store.GetProgress(sess.ID())
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if len(reports) != 3 || reports[2].Percent != 100 {
		t.Errorf("GetProgress = %+v", reports)
	}

	if err := store.DeleteSession(sess.ID()); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	answers, _ = store.GetAnswers(sess.ID())
	if len(answers) != 0 {
		t.Errorf("answers survived delete: %+v", answers)
	}
}

func TestPruneOlderThan(t *testing.T) {
	store := newTestStore(t)

	active := testutil.InterviewingSession(t)
	active.SetID("active")
	done := testutil.ConfirmingSession(t)
	if err := done.CancelPlan(); err != nil {
		t.Fatalf("CancelPlan failed: %v", err)
	}
	done.SetID("done")

	for _, s := range []*planning.Session{active, done} {
		if err := store.SaveSnapshot(s); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	future := time.Now().Add(time.Hour)

	removed, err := store.PruneOlderThan(future, true)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "done" {
		t.Errorf("terminal-only prune removed %v, want [done]", removed)
	}

	removed, err = store.PruneOlderThan(time.Now().Add(-time.Hour), false)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("prune with past cutoff removed %v", removed)
	}

	removed, err = store.PruneOlderThan(future, false)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "active" {
		t.Errorf("full prune removed %v, want [active]", removed)
	}
}

func TestFeedback(t *testing.T) {
	store := newTestStore(t)
	sess := testutil.ConfirmingSession(t)
	sess.SetID("fb")
	if err := store.SaveSnapshot(sess); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if got, _ := store.LoadFeedback("fb"); got != "" {
		t.Errorf("initial feedback = %q, want empty", got)
	}
	if err := store.SaveFeedback("fb", "fewer slides"); err != nil {
		t.Fatalf("SaveFeedback failed: %v", err)
	}
	// Snapshot upserts must not clobber feedback.
	if err := store.SaveSnapshot(sess); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if got, _ := store.LoadFeedback("fb"); got != "fewer slides" {
		t.Errorf("feedback = %q, want %q", got, "fewer slides")
	}
	if err := store.SaveFeedback("missing", "x"); err == nil {
		t.Error("expected error for unknown session")
	}
}
