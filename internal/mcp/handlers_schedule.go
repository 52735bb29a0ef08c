package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/schedule"
	"github.com/HyphaGroup/gevulot/internal/validation"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ScheduleParams is the unified params struct for the schedule tool
type ScheduleParams struct {
	Action string `json:"action" description:"Required: create, list, get, update, delete, trigger, or history"`

	// For create/update; for list, enabled filters by status
	Name            string                    `json:"name,omitempty" description:"Human-readable schedule name"`
	CronExpr        string                    `json:"cron_expr,omitempty" description:"Standard 5-field cron expression"`
	Prompt          string                    `json:"prompt,omitempty" description:"Message submitted on every run"`
	Enabled         *bool                     `json:"enabled,omitempty" description:"Enabled flag; on list, filters by status"`
	OverlapBehavior *schedule.OverlapBehavior `json:"overlap_behavior,omitempty" description:"skip, queue, or parallel (default skip)"`
	SessionBehavior *schedule.SessionBehavior `json:"session_behavior,omitempty" description:"resume or new (default resume)"`

	// For get, update, delete, trigger, history
	ScheduleID string `json:"schedule_id,omitempty" description:"Schedule identifier"`

	// For history
	Limit int `json:"limit,omitempty" description:"Cap on execution rows returned (default 50)"`
}

var scheduleActions = []string{"create", "list", "get", "update", "delete", "trigger", "history"}

// handleSchedule is the unified handler for the schedule tool
func (s *Server) handleSchedule(ctx context.Context, request *mcp_sdk.CallToolRequest, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.Action == "" {
		return nil, nil, missingActionError("schedule", scheduleActions)
	}

	if s.schedules == nil {
		return nil, nil, fmt.Errorf("schedules are disabled")
	}

	switch params.Action {
	case "create":
		return s.scheduleCreate(ctx, params)
	case "list":
		return s.scheduleList(ctx, params)
	case "get":
		return s.scheduleGet(ctx, params)
	case "update":
		return s.scheduleUpdate(ctx, params)
	case "delete":
		return s.scheduleDelete(ctx, params)
	case "trigger":
		return s.scheduleTrigger(ctx, params)
	case "history":
		return s.scheduleHistory(ctx, params)
	default:
		return nil, nil, actionError("schedule", params.Action, scheduleActions)
	}
}

func (s *Server) scheduleCreate(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.Name == "" {
		return nil, nil, fmt.Errorf("name is required")
	}
	if params.CronExpr == "" {
		return nil, nil, fmt.Errorf("cron_expr is required")
	}
	if params.Prompt == "" {
		return nil, nil, fmt.Errorf("prompt is required")
	}

	sched := &schedule.Schedule{
		Name:            params.Name,
		CronExpr:        params.CronExpr,
		Prompt:          params.Prompt,
		Enabled:         true,
		OverlapBehavior: schedule.OverlapSkip,
		SessionBehavior: schedule.SessionResume,
	}

	if params.Enabled != nil {
		sched.Enabled = *params.Enabled
	}
	if params.OverlapBehavior != nil {
		if !schedule.IsValidOverlapBehavior(*params.OverlapBehavior) {
			return nil, nil, fmt.Errorf("invalid overlap_behavior: %s", *params.OverlapBehavior)
		}
		sched.OverlapBehavior = *params.OverlapBehavior
	}
	if params.SessionBehavior != nil {
		if !schedule.IsValidSessionBehavior(*params.SessionBehavior) {
			return nil, nil, fmt.Errorf("invalid session_behavior: %s", *params.SessionBehavior)
		}
		sched.SessionBehavior = *params.SessionBehavior
	}

	if err := s.schedules.Create(sched); err != nil {
		audit.LogFailure(ctx, audit.OpScheduleCreate, "", "", err)
		return nil, nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	audit.Log(&audit.Event{Operation: audit.OpScheduleCreate, Caller: audit.CallerFrom(ctx), ScheduleID: sched.ID, Success: true})

	result := "✅ Schedule created successfully!\n\n"
	result += fmt.Sprintf("ID:       %s\n", sched.ID)
	result += fmt.Sprintf("Name:     %s\n", sched.Name)
	result += fmt.Sprintf("Cron:     %s\n", sched.CronExpr)
	result += fmt.Sprintf("Overlap:  %s\n", sched.OverlapBehavior)
	result += fmt.Sprintf("Session:  %s\n", sched.SessionBehavior)
	result += fmt.Sprintf("Enabled:  %v\n", sched.Enabled)
	if sched.NextRunAt != nil {
		result += fmt.Sprintf("Next Run: %s\n", sched.NextRunAt.Format("2006-01-02 15:04:05"))
	}

	return NewTextResult(result), sched, nil
}

func (s *Server) scheduleList(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	filter := &schedule.ListFilter{Enabled: params.Enabled}

	schedules, err := s.schedules.List(filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	if len(schedules) == 0 {
		return NewTextResult("No schedules found."), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Found %d schedule(s):\n\n", len(schedules)))
	for _, sched := range schedules {
		status := "enabled"
		if !sched.Enabled {
			status = "disabled"
		}
		output.WriteString(fmt.Sprintf("• %s (%s)\n", sched.Name, sched.ID))
		output.WriteString(fmt.Sprintf("  Cron:     %s\n", sched.CronExpr))
		output.WriteString(fmt.Sprintf("  Status:   %s\n", status))
		if sched.NextRunAt != nil {
			output.WriteString(fmt.Sprintf("  Next Run: %s\n", sched.NextRunAt.Format("2006-01-02 15:04")))
		}
		output.WriteString("\n")
	}

	return NewTextResult(output.String()), schedules, nil
}

func (s *Server) scheduleGet(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if err := requireScheduleID(params.ScheduleID); err != nil {
		return nil, nil, err
	}

	sched, err := s.schedules.Get(params.ScheduleID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	status := "enabled"
	if !sched.Enabled {
		status = "disabled"
	}

	result := fmt.Sprintf("Schedule: %s\n\n", sched.Name)
	result += fmt.Sprintf("ID:       %s\n", sched.ID)
	result += fmt.Sprintf("Cron:     %s\n", sched.CronExpr)
	result += fmt.Sprintf("Status:   %s\n", status)
	if n := s.runner.IsRunning(sched.ID); n > 0 {
		result += fmt.Sprintf("Running:  %d execution(s) in flight\n", n)
	}
	result += fmt.Sprintf("Overlap:  %s\n", sched.OverlapBehavior)
	result += fmt.Sprintf("Session:  %s\n", sched.SessionBehavior)
	if sched.SessionID != "" {
		result += fmt.Sprintf("Pinned:   %s\n", sched.SessionID)
	}
	result += fmt.Sprintf("Created:  %s\n", sched.CreatedAt.Format("2006-01-02 15:04"))
	if sched.LastRunAt != nil {
		result += fmt.Sprintf("Last Run: %s\n", sched.LastRunAt.Format("2006-01-02 15:04"))
	}
	if sched.NextRunAt != nil {
		result += fmt.Sprintf("Next Run: %s\n", sched.NextRunAt.Format("2006-01-02 15:04"))
	}
	if sched.Enabled {
		if runs, perr := schedule.NextRuns(sched.CronExpr, time.Now(), 3); perr == nil && len(runs) > 0 {
			result += "\nUpcoming runs:\n"
			for _, t := range runs {
				result += fmt.Sprintf("  %s\n", t.Format("2006-01-02 15:04"))
			}
		}
	}
	result += fmt.Sprintf("\nPrompt:\n%s\n", sched.Prompt)

	return NewTextResult(result), sched, nil
}

func (s *Server) scheduleUpdate(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if err := requireScheduleID(params.ScheduleID); err != nil {
		return nil, nil, err
	}

	// Convert string fields to pointers for the partial update
	var name, cronExpr, prompt *string
	if params.Name != "" {
		name = &params.Name
	}
	if params.CronExpr != "" {
		cronExpr = &params.CronExpr
	}
	if params.Prompt != "" {
		prompt = &params.Prompt
	}

	if params.OverlapBehavior != nil && !schedule.IsValidOverlapBehavior(*params.OverlapBehavior) {
		return nil, nil, fmt.Errorf("invalid overlap_behavior: %s", *params.OverlapBehavior)
	}
	if params.SessionBehavior != nil && !schedule.IsValidSessionBehavior(*params.SessionBehavior) {
		return nil, nil, fmt.Errorf("invalid session_behavior: %s", *params.SessionBehavior)
	}

	update := &schedule.ScheduleUpdate{
		Name:            name,
		CronExpr:        cronExpr,
		Prompt:          prompt,
		Enabled:         params.Enabled,
		OverlapBehavior: params.OverlapBehavior,
		SessionBehavior: params.SessionBehavior,
	}

	if err := s.schedules.Update(params.ScheduleID, update); err != nil {
		audit.LogFailure(ctx, audit.OpScheduleUpdate, "", "", err)
		return nil, nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	audit.Log(&audit.Event{Operation: audit.OpScheduleUpdate, Caller: audit.CallerFrom(ctx), ScheduleID: params.ScheduleID, Success: true})

	return NewTextResult(fmt.Sprintf("✅ Schedule %s updated successfully.", params.ScheduleID)), nil, nil
}

func (s *Server) scheduleDelete(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if err := requireScheduleID(params.ScheduleID); err != nil {
		return nil, nil, err
	}

	if err := s.schedules.Delete(params.ScheduleID); err != nil {
		audit.LogFailure(ctx, audit.OpScheduleDelete, "", "", err)
		return nil, nil, fmt.Errorf("failed to delete schedule: %w", err)
	}
	audit.Log(&audit.Event{Operation: audit.OpScheduleDelete, Caller: audit.CallerFrom(ctx), ScheduleID: params.ScheduleID, Success: true})

	return NewTextResult(fmt.Sprintf("✅ Schedule %s deleted successfully.", params.ScheduleID)), nil, nil
}

func (s *Server) scheduleTrigger(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if err := requireScheduleID(params.ScheduleID); err != nil {
		return nil, nil, err
	}

	sched, err := s.schedules.Get(params.ScheduleID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	if s.runner == nil {
		return nil, nil, fmt.Errorf("schedule runner not initialized")
	}

	exec, runErr := s.runner.TriggerNow(sched)
	audit.Log(&audit.Event{
		Operation:  audit.OpScheduleTrigger,
		Caller:     audit.CallerFrom(ctx),
		ScheduleID: sched.ID,
		SessionID:  exec.SessionID,
		JobID:      exec.JobID,
		Success:    runErr == nil,
		Error:      errString(runErr),
	})
	if runErr != nil {
		return nil, nil, fmt.Errorf("schedule run failed: %w", runErr)
	}

	result := fmt.Sprintf("✅ Schedule %s triggered successfully!\n\n", sched.Name)
	result += fmt.Sprintf("Execution: %s\n", exec.ID)
	result += fmt.Sprintf("Session:   %s\n", exec.SessionID)
	if exec.JobID != "" {
		result += fmt.Sprintf("Job:       %s\n", exec.JobID)
	}
	result += fmt.Sprintf("Duration:  %dms\n", exec.DurationMs)
	if exec.Output != "" {
		result += fmt.Sprintf("\n%s\n", exec.Output)
	}

	return NewTextResult(result), exec, nil
}

func (s *Server) scheduleHistory(ctx context.Context, params ScheduleParams) (*mcp_sdk.CallToolResult, any, error) {
	if err := requireScheduleID(params.ScheduleID); err != nil {
		return nil, nil, err
	}

	execs, err := s.schedules.ListExecutions(params.ScheduleID, params.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list executions: %w", err)
	}

	if len(execs) == 0 {
		return NewTextResult(fmt.Sprintf("No executions recorded for %s.", params.ScheduleID)), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Last %d execution(s) of %s:\n\n", len(execs), params.ScheduleID))
	for _, exec := range execs {
		output.WriteString(fmt.Sprintf("• %s %s (%dms)\n", exec.ExecutedAt.Format("2006-01-02 15:04:05"), exec.Status, exec.DurationMs))
		if exec.SessionID != "" {
			output.WriteString(fmt.Sprintf("  Session: %s\n", exec.SessionID))
		}
		if exec.JobID != "" {
			output.WriteString(fmt.Sprintf("  Job:     %s\n", exec.JobID))
		}
		if exec.Error != "" {
			output.WriteString(fmt.Sprintf("  Error:   %s\n", exec.Error))
		}
		if exec.Output != "" {
			output.WriteString(fmt.Sprintf("  Output:  %s\n", previewOutput(exec.Output)))
		}
		output.WriteString("\n")
	}

	return NewTextResult(output.String()), execs, nil
}

// requireScheduleID checks presence and shape of a schedule ID
func requireScheduleID(id string) error {
	if id == "" {
		return fmt.Errorf("schedule_id is required")
	}
	return validation.ValidateScheduleID(id)
}

// previewOutput keeps history listings readable; full output stays in
// the execution record returned as structured data
func previewOutput(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
