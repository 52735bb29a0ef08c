package schedule

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidCron      = errors.New("invalid cron expression")
)

// Store handles schedule persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store with SQLite backend
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "schedules.db")
	// Enable WAL mode and busy timeout for better concurrent access
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cron_expr TEXT NOT NULL,
		prompt TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		overlap_behavior TEXT NOT NULL DEFAULT 'skip',
		session_behavior TEXT NOT NULL DEFAULT 'resume',
		session_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_run_at DATETIME,
		next_run_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_enabled ON schedules(enabled);
	CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(next_run_at);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		session_id TEXT,
		job_id TEXT,
		executed_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		output TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_executions_schedule ON executions(schedule_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Create creates a new schedule
func (s *Store) Create(schedule *Schedule) error {
	// Validate cron expression before inserting
	if err := ValidateCron(schedule.CronExpr); err != nil {
		return err
	}

	if schedule.ID == "" {
		schedule.ID = "sched_" + uuid.New().String()[:8]
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	// Calculate next run time if not set
	if schedule.NextRunAt == nil && schedule.Enabled {
		nextRun, err := NextRun(schedule.CronExpr, now)
		if err == nil {
			schedule.NextRunAt = &nextRun
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO schedules (id, name, cron_expr, prompt, enabled, overlap_behavior, session_behavior,
		                       session_id, created_at, updated_at, last_run_at, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID, schedule.Name, schedule.CronExpr, schedule.Prompt,
		schedule.Enabled, schedule.OverlapBehavior, schedule.SessionBehavior,
		schedule.SessionID, schedule.CreatedAt, schedule.UpdatedAt, schedule.LastRunAt, schedule.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	return nil
}

// Get retrieves a schedule by ID
func (s *Store) Get(id string) (*Schedule, error) {
	row := s.db.QueryRow(`
		SELECT id, name, cron_expr, prompt, enabled, overlap_behavior, session_behavior,
		       session_id, created_at, updated_at, last_run_at, next_run_at
		FROM schedules WHERE id = ?`, id,
	)
	schedule, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, ErrScheduleNotFound
	}
	return schedule, err
}

// List returns schedules matching the filter, newest first
func (s *Store) List(filter *ListFilter) ([]*Schedule, error) {
	query := `
		SELECT id, name, cron_expr, prompt, enabled, overlap_behavior, session_behavior,
		       session_id, created_at, updated_at, last_run_at, next_run_at
		FROM schedules`
	var args []interface{}

	if filter != nil && filter.Enabled != nil {
		query += " WHERE enabled = ?"
		if *filter.Enabled {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

// Update applies partial updates to a schedule
func (s *Store) Update(id string, update *ScheduleUpdate) error {
	// Validate cron expression if being updated
	if update.CronExpr != nil {
		if err := ValidateCron(*update.CronExpr); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Build dynamic update query
	var setClauses []string
	var args []interface{}
	var cronChanged bool

	if update.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *update.Name)
	}
	if update.CronExpr != nil {
		setClauses = append(setClauses, "cron_expr = ?")
		args = append(args, *update.CronExpr)
		cronChanged = true
	}
	if update.Prompt != nil {
		setClauses = append(setClauses, "prompt = ?")
		args = append(args, *update.Prompt)
	}
	if update.Enabled != nil {
		setClauses = append(setClauses, "enabled = ?")
		if *update.Enabled {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	if update.OverlapBehavior != nil {
		setClauses = append(setClauses, "overlap_behavior = ?")
		args = append(args, *update.OverlapBehavior)
	}
	if update.SessionBehavior != nil {
		setClauses = append(setClauses, "session_behavior = ?")
		args = append(args, *update.SessionBehavior)
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now())
	args = append(args, id)

	query := "UPDATE schedules SET " + setClauses[0]
	for i := 1; i < len(setClauses); i++ {
		query += ", " + setClauses[i]
	}
	query += " WHERE id = ?"

	result, err := tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrScheduleNotFound
	}

	// Recalculate next_run_at if cron expression changed
	if cronChanged {
		nextRun, err := NextRun(*update.CronExpr, time.Now())
		if err == nil {
			_, err = tx.Exec("UPDATE schedules SET next_run_at = ? WHERE id = ?", nextRun, id)
			if err != nil {
				return fmt.Errorf("failed to update next_run_at: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes a schedule and its executions (CASCADE)
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrScheduleNotFound
	}

	return nil
}

// ListDue returns enabled schedules where next_run_at <= now
func (s *Store) ListDue(now time.Time) ([]*Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, cron_expr, prompt, enabled, overlap_behavior, session_behavior,
		       session_id, created_at, updated_at, last_run_at, next_run_at
		FROM schedules
		WHERE enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at ASC`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

// UpdateRunTimes updates last_run_at and next_run_at for a schedule
func (s *Store) UpdateRunTimes(id string, lastRun, nextRun time.Time) error {
	result, err := s.db.Exec(`
		UPDATE schedules SET last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		lastRun, nextRun, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run times: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrScheduleNotFound
	}

	return nil
}

// UpdateSessionID pins the session used by resume-behavior schedules
func (s *Store) UpdateSessionID(id, sessionID string) error {
	result, err := s.db.Exec(
		`UPDATE schedules SET session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule session: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrScheduleNotFound
	}

	return nil
}

// RecordExecution appends one run to the execution history
func (s *Store) RecordExecution(exec *Execution) error {
	if exec.ID == "" {
		exec.ID = "exec_" + uuid.New().String()[:8]
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO executions (id, schedule_id, session_id, job_id, executed_at, status, output, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.ScheduleID, exec.SessionID, exec.JobID,
		exec.ExecutedAt, exec.Status, exec.Output, exec.Error, exec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// ListExecutions returns a schedule's run history, newest first
func (s *Store) ListExecutions(scheduleID string, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, schedule_id, session_id, job_id, executed_at, status, output, error, duration_ms
		FROM executions WHERE schedule_id = ?
		ORDER BY executed_at DESC LIMIT ?`,
		scheduleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var executions []*Execution
	for rows.Next() {
		var exec Execution
		var sessionID, jobID, output, execErr sql.NullString

		if err := rows.Scan(&exec.ID, &exec.ScheduleID, &sessionID, &jobID,
			&exec.ExecutedAt, &exec.Status, &output, &execErr, &exec.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec.SessionID = sessionID.String
		exec.JobID = jobID.String
		exec.Output = output.String
		exec.Error = execErr.String
		executions = append(executions, &exec)
	}

	return executions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*Schedule, error) {
	var schedule Schedule
	var sessionID sql.NullString
	var lastRunAt, nextRunAt sql.NullTime
	var enabled int

	err := row.Scan(
		&schedule.ID, &schedule.Name, &schedule.CronExpr, &schedule.Prompt,
		&enabled, &schedule.OverlapBehavior, &schedule.SessionBehavior,
		&sessionID, &schedule.CreatedAt, &schedule.UpdatedAt, &lastRunAt, &nextRunAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	schedule.Enabled = enabled != 0
	schedule.SessionID = sessionID.String
	if lastRunAt.Valid {
		schedule.LastRunAt = &lastRunAt.Time
	}
	if nextRunAt.Valid {
		schedule.NextRunAt = &nextRunAt.Time
	}
	return &schedule, nil
}
