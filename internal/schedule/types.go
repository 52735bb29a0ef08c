package schedule

import (
	"time"
)

// OverlapBehavior defines what to do if a previous run is still active
type OverlapBehavior string

const (
	OverlapSkip     OverlapBehavior = "skip"     // Don't start if previous still running
	OverlapQueue    OverlapBehavior = "queue"    // Run once more after the current run finishes
	OverlapParallel OverlapBehavior = "parallel" // Allow concurrent execution
)

// SessionBehavior defines how each run picks its session
type SessionBehavior string

const (
	SessionResume SessionBehavior = "resume" // Reuse the pinned session while it lives (default)
	SessionNew    SessionBehavior = "new"    // Always create a fresh session
)

// Schedule is a recurring prompt submitted on a cron schedule
type Schedule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	CronExpr        string          `json:"cron_expr"` // Standard 5-field cron expression
	Prompt          string          `json:"prompt"`    // Message submitted each run
	Enabled         bool            `json:"enabled"`   // Can be paused/resumed
	OverlapBehavior OverlapBehavior `json:"overlap_behavior"`
	SessionBehavior SessionBehavior `json:"session_behavior"`
	SessionID       string          `json:"session_id,omitempty"` // Pinned session for resume behavior
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastRunAt       *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time      `json:"next_run_at,omitempty"`
}

// ExecutionStatus represents the outcome of a schedule execution
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// Execution records a single run of a schedule
type Execution struct {
	ID         string          `json:"id"`
	ScheduleID string          `json:"schedule_id"`
	SessionID  string          `json:"session_id,omitempty"`
	JobID      string          `json:"job_id,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
	Status     ExecutionStatus `json:"status"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// ScheduleUpdate contains optional fields for updating a schedule
type ScheduleUpdate struct {
	Name            *string          `json:"name,omitempty"`
	CronExpr        *string          `json:"cron_expr,omitempty"`
	Prompt          *string          `json:"prompt,omitempty"`
	Enabled         *bool            `json:"enabled,omitempty"`
	OverlapBehavior *OverlapBehavior `json:"overlap_behavior,omitempty"`
	SessionBehavior *SessionBehavior `json:"session_behavior,omitempty"`
}

// ListFilter contains optional filters for listing schedules
type ListFilter struct {
	Enabled *bool // Filter by enabled status
}

// IsValidOverlapBehavior checks if the overlap behavior is valid
func IsValidOverlapBehavior(b OverlapBehavior) bool {
	return b == OverlapSkip || b == OverlapQueue || b == OverlapParallel
}

// IsValidSessionBehavior checks if the session behavior is valid
func IsValidSessionBehavior(b SessionBehavior) bool {
	return b == SessionResume || b == SessionNew
}
