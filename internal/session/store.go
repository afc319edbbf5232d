package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/berth-dev/compass/internal/planning"
)

// Store provides SQLite-backed persistence for sessions.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps SQLite writes serialized.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		project_type TEXT NOT NULL,
		state TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		question_key TEXT NOT NULL,
		answer TEXT NOT NULL,
		skipped INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		task_name TEXT NOT NULL,
		percent INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	_, err := db.Exec(schema)
	return err
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.New().String()
}

// SaveSnapshot inserts or replaces the stored snapshot for the session.
// The session must already carry an ID.
func (s *Store) SaveSnapshot(sess *planning.Session) error {
	if sess.ID() == "" {
		return errors.New("save snapshot: session has no id")
	}

	data, err := planning.MarshalSnapshot(sess)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, prompt, project_type, state, snapshot, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   snapshot = excluded.snapshot,
		   updated_at = excluded.updated_at`,
		sess.ID(), sess.Prompt(), sess.ProjectType(), string(sess.State()), string(data),
		sess.CreatedAt(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// LoadSnapshot restores the session with the given ID.
// Returns nil, nil when no such session is stored.
func (s *Store) LoadSnapshot(id string) (*planning.Session, error) {
	var data string
	err := s.db.QueryRow(`SELECT snapshot FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	sess, err := planning.UnmarshalSnapshot([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	sess.SetID(id)
	return sess, nil
}

// SaveFeedback stores the modification feedback the next plan should
// address. An empty string clears it.
func (s *Store) SaveFeedback(id, feedback string) error {
	res, err := s.db.Exec(`UPDATE sessions SET feedback = ? WHERE id = ?`, feedback, id)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update feedback: no session %s", id)
	}
	return nil
}

// LoadFeedback returns the pending modification feedback for a session.
func (s *Store) LoadFeedback(id string) (string, error) {
	var feedback string
	err := s.db.QueryRow(`SELECT feedback FROM sessions WHERE id = ?`, id).Scan(&feedback)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query feedback: %w", err)
	}
	return feedback, nil
}

// ListSessions returns summaries of the most recently updated sessions.
func (s *Store) ListSessions(limit int) ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT id, prompt, project_type, state, created_at, updated_at
		 FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Prompt, &sum.ProjectType, &sum.State, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return summaries, nil
}

// DeleteSession removes a session and its history. Deleting an unknown
// session is not an error.
func (s *Store) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// StaleSessions returns the IDs of sessions not updated since cutoff. With
// terminalOnly set, sessions still in progress are left out.
func (s *Store) StaleSessions(cutoff time.Time, terminalOnly bool) ([]string, error) {
	rows, err := s.db.Query(`SELECT id, state FROM sessions WHERE updated_at < ? ORDER BY updated_at`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("query stale sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan stale session: %w", err)
		}
		if terminalOnly && !planning.State(state).IsTerminal() {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return ids, nil
}

// PruneOlderThan deletes the sessions StaleSessions reports and returns
// their IDs.
func (s *Store) PruneOlderThan(cutoff time.Time, terminalOnly bool) ([]string, error) {
	ids, err := s.StaleSessions(cutoff, terminalOnly)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := s.DeleteSession(id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// RecordAnswer appends an answer or skip to the session's interview history.
func (s *Store) RecordAnswer(sessionID string, index int, key, value string, skipped bool) error {
	_, err := s.db.Exec(
		`INSERT INTO answers (session_id, question_index, question_key, answer, skipped, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, index, key, value, skipped, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	return nil
}

// GetAnswers retrieves the interview history for a session in record order.
func (s *Store) GetAnswers(sessionID string) ([]Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, question_index, question_key, answer, skipped, timestamp
		 FROM answers
		 WHERE session_id = ?
		 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	answers := []Answer{}
	for rows.Next() {
		var ans Answer
		if err := rows.Scan(&ans.ID, &ans.SessionID, &ans.Index, &ans.Key, &ans.Value, &ans.Skipped, &ans.Timestamp); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, ans)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return answers, nil
}

// RecordProgress appends an execution progress report.
func (s *Store) RecordProgress(sessionID, taskName string, percent int) error {
	_, err := s.db.Exec(
		`INSERT INTO progress (session_id, task_name, percent, timestamp)
		 VALUES (?, ?, ?, ?)`,
		sessionID, taskName, percent, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}

	return nil
}

// GetProgress retrieves all progress reports for a session.
func (s *Store) GetProgress(sessionID string) ([]Progress, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, task_name, percent, timestamp
		 FROM progress
		 WHERE session_id = ?
		 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	reports := []Progress{}
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.ID, &p.SessionID, &p.TaskName, &p.Percent, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		reports = append(reports, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return reports, nil
}
