package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/metrics"
)

// Output stored per execution is capped so history rows stay small
const executionOutputLimit = 4096

// ExecutionResult reports what a single schedule run produced
type ExecutionResult struct {
	SessionID string
	JobID     string
	Output    string
}

// ExecutionFunc is called by the runner to execute one schedule. The
// executor resolves the session per the schedule's session behavior
// and reports which session it used.
type ExecutionFunc func(ctx context.Context, schedule *Schedule) (*ExecutionResult, error)

// Runner drives due schedules from a minute tick
type Runner struct {
	store       *Store
	executeFunc ExecutionFunc
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	// Track running executions per schedule for overlap handling
	running   map[string]int  // schedule ID -> count of running executions
	queued    map[string]bool // schedule ID -> one pending re-run
	runningMu sync.Mutex
}

// NewRunner creates a new schedule runner
func NewRunner(store *Store, executeFunc ExecutionFunc) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:       store,
		executeFunc: executeFunc,
		ctx:         ctx,
		cancel:      cancel,
		running:     make(map[string]int),
		queued:      make(map[string]bool),
	}
}

// Start begins the scheduler loop
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	logger.Info("Schedule runner started")
}

// Stop gracefully stops the runner and waits for in-flight executions
func (r *Runner) Stop() {
	logger.Info("Stopping schedule runner...")
	r.cancel()
	r.wg.Wait()
	logger.Info("Schedule runner stopped")
}

// loop runs every minute to check for due schedules
func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	// Run immediately on start
	r.checkDueSchedules()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.checkDueSchedules()
		}
	}
}

// checkDueSchedules finds and executes due schedules
func (r *Runner) checkDueSchedules() {
	now := time.Now()
	schedules, err := r.store.ListDue(now)
	if err != nil {
		logger.Error("Failed to list due schedules: %v", err)
		return
	}

	for _, schedule := range schedules {
		r.executeSchedule(schedule)
	}
}

// executeSchedule starts a single schedule respecting overlap behavior
func (r *Runner) executeSchedule(schedule *Schedule) {
	r.runningMu.Lock()
	runningCount := r.running[schedule.ID]

	if runningCount > 0 {
		switch schedule.OverlapBehavior {
		case OverlapParallel:
			// Concurrent runs allowed, fall through
		case OverlapQueue:
			// Collapse any number of due ticks into one pending re-run
			r.queued[schedule.ID] = true
			r.runningMu.Unlock()
			logger.Info("Queued schedule %s (%s): previous execution still running", schedule.ID, schedule.Name)
			return
		default: // OverlapSkip and anything unrecognized
			r.runningMu.Unlock()
			logger.Info("Skipping schedule %s (%s): previous execution still running", schedule.ID, schedule.Name)
			r.recordSkipped(schedule, "previous execution still running")
			return
		}
	}

	r.running[schedule.ID]++
	r.runningMu.Unlock()

	// Execute in goroutine to not block the ticker
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.runSchedule(schedule)

		r.runningMu.Lock()
		r.running[schedule.ID]--
		if r.running[schedule.ID] == 0 {
			delete(r.running, schedule.ID)
		}
		rerun := r.queued[schedule.ID]
		delete(r.queued, schedule.ID)
		r.runningMu.Unlock()

		if rerun {
			// Re-read so the queued run sees the latest prompt and session
			fresh, err := r.store.Get(schedule.ID)
			if err != nil {
				logger.Error("Failed to reload queued schedule %s: %v", schedule.ID, err)
				return
			}
			if fresh.Enabled {
				r.executeSchedule(fresh)
			}
		}
	}()
}

// runSchedule performs one execution and records the outcome
func (r *Runner) runSchedule(schedule *Schedule) {
	now := time.Now()
	logger.Info("Executing schedule %s (%s)", schedule.ID, schedule.Name)

	result, err := r.executeFunc(r.ctx, schedule)

	exec := &Execution{
		ScheduleID: schedule.ID,
		ExecutedAt: now,
		DurationMs: time.Since(now).Milliseconds(),
	}
	if result != nil {
		exec.SessionID = result.SessionID
		exec.JobID = result.JobID
		exec.Output = truncateOutput(result.Output)
	}
	if err != nil {
		exec.Status = ExecutionFailed
		exec.Error = err.Error()
		metrics.RecordScheduleRun("failed")
		logger.Error("Schedule %s execution failed: %v", schedule.ID, err)
	} else {
		exec.Status = ExecutionSuccess
		metrics.RecordScheduleRun("success")
	}

	if recErr := r.store.RecordExecution(exec); recErr != nil {
		logger.Error("Failed to record execution for schedule %s: %v", schedule.ID, recErr)
	}

	// Pin the session for resume behavior so the next run continues it
	if schedule.SessionBehavior == SessionResume && result != nil &&
		result.SessionID != "" && result.SessionID != schedule.SessionID {
		if pinErr := r.store.UpdateSessionID(schedule.ID, result.SessionID); pinErr != nil {
			logger.Error("Failed to pin session for schedule %s: %v", schedule.ID, pinErr)
		}
	}

	// Calculate next run time
	nextRun, err := NextRun(schedule.CronExpr, now)
	if err != nil {
		logger.Error("Failed to calculate next run for schedule %s: %v", schedule.ID, err)
		return
	}

	if err := r.store.UpdateRunTimes(schedule.ID, now, nextRun); err != nil {
		logger.Error("Failed to update run times for schedule %s: %v", schedule.ID, err)
	}

	logger.Info("Schedule %s completed, next run at %s", schedule.ID, nextRun.Format(time.RFC3339))
}

// IsRunning returns the number of running executions for a schedule
func (r *Runner) IsRunning(scheduleID string) int {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()
	return r.running[scheduleID]
}

// TriggerNow manually runs a schedule immediately, bypassing the cron
// timetable. Run times are not advanced; only scheduled runs move them.
func (r *Runner) TriggerNow(schedule *Schedule) (*Execution, error) {
	logger.Info("Manually triggering schedule %s (%s)", schedule.ID, schedule.Name)

	now := time.Now()
	result, err := r.executeFunc(r.ctx, schedule)

	exec := &Execution{
		ScheduleID: schedule.ID,
		ExecutedAt: now,
		DurationMs: time.Since(now).Milliseconds(),
	}
	if result != nil {
		exec.SessionID = result.SessionID
		exec.JobID = result.JobID
		exec.Output = truncateOutput(result.Output)
	}
	if err != nil {
		exec.Status = ExecutionFailed
		exec.Error = err.Error()
		metrics.RecordScheduleRun("failed")
	} else {
		exec.Status = ExecutionSuccess
		metrics.RecordScheduleRun("success")
	}

	if recErr := r.store.RecordExecution(exec); recErr != nil {
		logger.Error("Failed to record execution for schedule %s: %v", schedule.ID, recErr)
	}

	if schedule.SessionBehavior == SessionResume && result != nil &&
		result.SessionID != "" && result.SessionID != schedule.SessionID {
		if pinErr := r.store.UpdateSessionID(schedule.ID, result.SessionID); pinErr != nil {
			logger.Error("Failed to pin session for schedule %s: %v", schedule.ID, pinErr)
		}
	}

	return exec, err
}

// recordSkipped records a skipped execution
func (r *Runner) recordSkipped(schedule *Schedule, reason string) {
	metrics.RecordScheduleRun("skipped")
	exec := &Execution{
		ScheduleID: schedule.ID,
		ExecutedAt: time.Now(),
		Status:     ExecutionSkipped,
		Error:      reason,
	}
	if err := r.store.RecordExecution(exec); err != nil {
		logger.Error("Failed to record skipped execution for schedule %s: %v", schedule.ID, err)
	}
}

func truncateOutput(s string) string {
	if len(s) <= executionOutputLimit {
		return s
	}
	return s[:executionOutputLimit] + "..."
}
