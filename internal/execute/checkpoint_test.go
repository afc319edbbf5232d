package execute

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cp := &Checkpoint{
		SessionID:      "sess-1",
		PlanDigest:     "abc",
		CurrentTaskID:  "t-3",
		CompletedTasks: []string{"t-1", "t-2"},
		RetryCount:     map[string]int{"t-3": 2},
		LastError:      "some error",
	}

	if err := SaveCheckpoint(tmpDir, cp); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := LoadCheckpoint(tmpDir)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadCheckpoint returned nil")
	}

	if loaded.SessionID != cp.SessionID {
		t.Errorf("SessionID = %q, want %q", loaded.SessionID, cp.SessionID)
	}
	if loaded.CurrentTaskID != cp.CurrentTaskID {
		t.Errorf("CurrentTaskID = %q, want %q", loaded.CurrentTaskID, cp.CurrentTaskID)
	}
	if !loaded.IsCompleted("t-2") || loaded.IsCompleted("t-3") {
		t.Errorf("CompletedTasks = %v", loaded.CompletedTasks)
	}
	if loaded.RetryCount["t-3"] != 2 {
		t.Errorf("RetryCount[t-3] = %d, want 2", loaded.RetryCount["t-3"])
	}
	if loaded.LastError != cp.LastError {
		t.Errorf("LastError = %q, want %q", loaded.LastError, cp.LastError)
	}
	if loaded.Timestamp.IsZero() {
		t.Error("Timestamp should be set after SaveCheckpoint")
	}
}

func TestLoadCheckpoint_NotExists(t *testing.T) {
	cp, err := LoadCheckpoint(t.TempDir())
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil checkpoint, got %+v", cp)
	}
}

func TestLoadCheckpoint_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "checkpoint.json"), []byte("{nope"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCheckpoint(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestClearCheckpoint(t *testing.T) {
	tmpDir := t.TempDir()
	if err := SaveCheckpoint(tmpDir, &Checkpoint{SessionID: "x"}); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if err := ClearCheckpoint(tmpDir); err != nil {
		t.Fatalf("ClearCheckpoint failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "checkpoint.json")); !os.IsNotExist(err) {
		t.Error("checkpoint file should be removed")
	}
	// Clearing twice is fine.
	if err := ClearCheckpoint(tmpDir); err != nil {
		t.Errorf("second ClearCheckpoint failed: %v", err)
	}
}
