// Package session provides SQLite-backed persistence for planning sessions.
package session

import "time"

// Summary provides a high-level view of a stored session for listing.
type Summary struct {
	ID          string
	Prompt      string
	ProjectType string
	State       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Answer is one entry in a session's interview history. Skipped entries
// carry an empty Value.
type Answer struct {
	ID        int
	SessionID string
	Index     int
	Key       string
	Value     string
	Skipped   bool
	Timestamp time.Time
}

// Progress is one execution progress report.
type Progress struct {
	ID        int
	SessionID string
	TaskName  string
	Percent   int
	Timestamp time.Time
}
