// Package log provides structured event logging.
// This file appends JSON events to log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventSessionCreated        = "session_created"
	EventQuestionsAdded        = "questions_added"
	EventInterviewSkipped      = "interview_skipped"
	EventAnswerRecorded        = "answer_recorded"
	EventQuestionSkipped       = "question_skipped"
	EventInterviewComplete     = "interview_complete"
	EventPlanReady             = "plan_ready"
	EventPlanConfirmed         = "plan_confirmed"
	EventModificationRequested = "modification_requested"
	EventPlanCancelled         = "plan_cancelled"
	EventTaskProgress          = "task_progress"
	EventTaskRetry             = "task_retry"
	EventSessionCompleted      = "session_completed"
	EventSessionFailed         = "session_failed"
)

// LogEvent represents a single structured event written to the log.
type LogEvent struct {
	Time        time.Time      `json:"time"`
	Event       string         `json:"event"`
	SessionID   string         `json:"session,omitempty"`
	State       string         `json:"state,omitempty"`
	Prompt      string         `json:"prompt,omitempty"`
	ProjectType string         `json:"project_type,omitempty"`
	Question    string         `json:"question,omitempty"`
	Index       int            `json:"index,omitempty"`
	Title       string         `json:"title,omitempty"`
	Tasks       int            `json:"tasks,omitempty"`
	TaskName    string         `json:"task_name,omitempty"`
	Percent     int            `json:"percent,omitempty"`
	Attempt     int            `json:"attempt,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"duration_ms,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to .compass/log.jsonl inside dir.
// Creates the .compass/ directory if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string) (*Logger, error) {
	compassDir := filepath.Join(dir, ".compass")
	if err := os.MkdirAll(compassDir, 0755); err != nil {
		return nil, fmt.Errorf("create .compass directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(compassDir, "log.jsonl"),
	}, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// Thread-safe via mutex.
func (l *Logger) Append(event LogEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	events, _, err := readFrom(f, 0)
	return events, err
}

// ForSession returns the events recorded for one session, oldest first.
func (l *Logger) ForSession(sessionID string) ([]LogEvent, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	out := []LogEvent{}
	for _, e := range all {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// readFrom parses JSONL events from the current position of f. offset is
// the number of bytes already consumed; the returned offset points past the
// last complete line so a follower can resume there.
func readFrom(f *os.File, offset int64) ([]LogEvent, int64, error) {
	var events []LogEvent
	reader := bufio.NewReader(f)
	lineNum := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			offset += int64(len(line))
			lineNum++
			body := line[:len(line)-1]
			if len(body) == 0 {
				continue
			}
			var event LogEvent
			if jerr := json.Unmarshal(body, &event); jerr != nil {
				return nil, offset, fmt.Errorf("parse log line %d: %w", lineNum, jerr)
			}
			events = append(events, event)
		}
		if err != nil {
			// A trailing partial line is left for the next read.
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
	}
	if events == nil {
		events = []LogEvent{}
	}
	return events, offset, nil
}
