// Package conversation maintains the transcript assembled from job
// results and stream events.
//
// store.go - SQLite persistence for sessions, messages and jobs
//
// This file contains:
// - Store: history database with sessions, messages and jobs tables
// - JobUpdate: partial job updates applied with a dynamic SET clause
//
// The store is the durable side of the transcript: the reconciler holds
// the live view, the store holds what survives a restart.

package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrSessionNotFound is returned when a session ID has no row
	ErrSessionNotFound = errors.New("session not found")

	// ErrJobNotFound is returned when a job ID has no row
	ErrJobNotFound = errors.New("job not found")
)

// Store persists conversation history in SQLite
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the history database at path
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return store, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the schema if it doesn't exist
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		result TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		ended_at DATETIME,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_session ON jobs(session_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session row
func (s *Store) CreateSession(session *Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, state, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.State, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns one session by ID
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, state, created_at, updated_at, ended_at FROM sessions WHERE id = ?`, id,
	)

	var session Session
	var endedAt sql.NullTime
	err := row.Scan(&session.ID, &session.State, &session.CreatedAt, &session.UpdatedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}

// UpdateSessionState sets the state and bumps updated_at; ended marks
// the session as finished
func (s *Store) UpdateSessionState(id, state string, ended bool) error {
	now := time.Now()

	var result sql.Result
	var err error
	if ended {
		result, err = s.db.Exec(
			`UPDATE sessions SET state = ?, updated_at = ?, ended_at = ? WHERE id = ?`,
			state, now, now, id,
		)
	} else {
		result, err = s.db.Exec(
			`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`,
			state, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update session state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check session update: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListSessions returns the most recently updated sessions
func (s *Store) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, state, created_at, updated_at, ended_at FROM sessions ORDER BY updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var session Session
		var endedAt sql.NullTime
		if err := rows.Scan(&session.ID, &session.State, &session.CreatedAt, &session.UpdatedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if endedAt.Valid {
			session.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// SaveMessage upserts one transcript row. Repeated saves of the same
// message ID keep their original position in the transcript.
func (s *Store) SaveMessage(sessionID string, msg *Message) error {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode message metadata: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO messages (id, session_id, role, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`,
		msg.ID, sessionID, string(msg.Role), msg.Content, string(metadata), msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListMessages returns a session's transcript in insertion order
func (s *Store) ListMessages(sessionID string) ([]*Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, metadata, created_at FROM messages WHERE session_id = ? ORDER BY rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var role, metadata string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &metadata, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = Role(role)
		if err := json.Unmarshal([]byte(metadata), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode message metadata: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// CreateJob inserts a new job row
func (s *Store) CreateJob(rec *JobRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO jobs (id, session_id, mode, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Mode, rec.Status, rec.Progress, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}
	return nil
}

// JobUpdate is a partial update; nil fields are left untouched
type JobUpdate struct {
	Status   *string
	Progress *int
	Result   *string
	Ended    bool
}

// UpdateJob applies a partial update to one job row
func (s *Store) UpdateJob(id string, update JobUpdate) error {
	clauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	if update.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Progress != nil {
		clauses = append(clauses, "progress = ?")
		args = append(args, *update.Progress)
	}
	if update.Result != nil {
		clauses = append(clauses, "result = ?")
		args = append(args, *update.Result)
	}
	if update.Ended {
		clauses = append(clauses, "ended_at = ?")
		args = append(args, time.Now())
	}
	args = append(args, id)

	result, err := s.db.Exec(
		"UPDATE jobs SET "+strings.Join(clauses, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check job update: %w", err)
	}
	if rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetJob returns one job by ID
func (s *Store) GetJob(id string) (*JobRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, mode, status, progress, result, created_at, updated_at, ended_at
		 FROM jobs WHERE id = ?`, id,
	)
	rec, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	return rec, err
}

// ListJobs returns a session's jobs, newest first
func (s *Store) ListJobs(sessionID string, limit int) ([]*JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, mode, status, progress, result, created_at, updated_at, ended_at
		 FROM jobs WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var records []*JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SearchHit is one message matched by a transcript search
type SearchHit struct {
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Role      Role      `json:"role"`
	Snippet   string    `json:"snippet"`
	Timestamp time.Time `json:"timestamp"`
}

const snippetLen = 160

// SearchMessages finds messages whose content contains the query,
// newest first. Plain substring match, case-insensitive for ASCII.
func (s *Store) SearchMessages(query string, limit int) ([]*SearchHit, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(
		`SELECT session_id, id, role, content, created_at
		 FROM messages WHERE content LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var hits []*SearchHit
	for rows.Next() {
		var hit SearchHit
		var role, content string
		if err := rows.Scan(&hit.SessionID, &hit.MessageID, &role, &content, &hit.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hit.Role = Role(role)
		hit.Snippet = snippet(content, query)
		hits = append(hits, &hit)
	}
	return hits, rows.Err()
}

// escapeLike escapes LIKE metacharacters in a user query
func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}

// snippet returns a window of content around the first match
func snippet(content, query string) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		idx = 0
	}
	start := idx - snippetLen/4
	if start < 0 {
		start = 0
	}
	end := start + snippetLen
	if end > len(content) {
		end = len(content)
	}
	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}

// PruneBefore deletes ended sessions older than cutoff together with
// their messages and jobs. Sessions that never ended are kept
// regardless of age. Returns the number of sessions removed.
func (s *Store) PruneBefore(cutoff time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	const cond = `session_id IN (SELECT id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?)`
	if _, err := tx.Exec(`DELETE FROM messages WHERE `+cond, cutoff); err != nil {
		return 0, fmt.Errorf("failed to prune messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM jobs WHERE `+cond, cutoff); err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return int(removed), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var rec JobRecord
	var result sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Mode, &rec.Status, &rec.Progress,
		&result, &rec.CreatedAt, &rec.UpdatedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	if result.Valid {
		rec.Result = result.String
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}
