package testing

import (
	"fmt"
	"strings"
	"time"

	"github.com/HyphaGroup/gevulot/test/pkg/client"
)

// TestCase represents a single test scenario
type TestCase struct {
	Name        string
	Description string
	Tags        []string
	Setup       func(*TestContext) error
	Execute     func(*TestContext) error
	Teardown    func(*TestContext) error
	Timeout     time.Duration
}

// TestContext provides state and utilities for test execution
type TestContext struct {
	Client        *client.MCPClient
	Assertions    *Assertions
	SessionID     string
	CreatedSess   []string // Sessions to destroy during cleanup
	CreatedScheds []string // Schedules to delete during cleanup
	Logs          []string
	Failed        bool
}

// NewTestContext creates a new test context with the given MCP client
func NewTestContext(mcpClient *client.MCPClient) *TestContext {
	ctx := &TestContext{
		Client:        mcpClient,
		CreatedSess:   []string{},
		CreatedScheds: []string{},
		Logs:          []string{},
		Failed:        false,
	}
	ctx.Assertions = NewAssertions(ctx)
	return ctx
}

// Log adds a log message to the test context
func (tc *TestContext) Log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	tc.Logs = append(tc.Logs, msg)
}

// MarkFailed marks the test as failed
func (tc *TestContext) MarkFailed() {
	tc.Failed = true
}

// Cleanup destroys sessions and deletes schedules created by the test
func (tc *TestContext) Cleanup() error {
	tc.Log("Starting cleanup...")

	for _, sessID := range tc.CreatedSess {
		tc.Log("Destroying session: %s", sessID)
		// Retry: the session may still be finishing a request
		for i := 0; i < 3; i++ {
			result, err := tc.Client.InvokeTool("session", map[string]interface{}{
				"action":     "destroy",
				"session_id": sessID,
			})
			if err == nil && result != nil && !result.IsError {
				break
			}
			if i == 2 {
				tc.Log("Warning: failed to destroy session %s", sessID)
			}
			time.Sleep(time.Second)
		}
	}

	for _, schedID := range tc.CreatedScheds {
		tc.Log("Deleting schedule: %s", schedID)
		result, err := tc.Client.InvokeTool("schedule", map[string]interface{}{
			"action":      "delete",
			"schedule_id": schedID,
		})
		if err != nil || (result != nil && result.IsError) {
			tc.Log("Warning: failed to delete schedule %s", schedID)
		}
	}

	tc.Log("Cleanup complete")
	return nil
}

// Chat submits a prompt through the chat tool and waits for the answer.
// A new session is created and tracked for cleanup; the session ID is
// returned.
func (tc *TestContext) Chat(prompt string) (string, error) {
	return tc.ChatInSession("", prompt)
}

// ChatInSession submits a prompt to an existing session, or starts a
// fresh one when sessionID is empty
func (tc *TestContext) ChatInSession(sessionID, prompt string) (string, error) {
	tc.Log("Sending chat: %q", prompt)
	params := map[string]interface{}{
		"message": prompt,
	}
	if sessionID != "" {
		params["session_id"] = sessionID
	}

	result, err := tc.Client.InvokeTool("chat", params)
	if err != nil {
		return "", fmt.Errorf("failed to invoke chat: %w", err)
	}
	if result.IsError {
		return "", fmt.Errorf("chat returned error: %s", result.GetToolContent())
	}

	content := result.GetToolContent()
	sessID := ExtractSessionID(content)
	if sessID == "" {
		return "", fmt.Errorf("failed to extract session ID from response: %s", content)
	}

	if sessionID == "" {
		// Fresh session, track it for cleanup
		tc.CreatedSess = append(tc.CreatedSess, sessID)
	}
	tc.SessionID = sessID
	tc.Log("Chat answered in session: %s", sessID)

	return sessID, nil
}

// CreateSchedule creates a schedule and tracks it for cleanup.
// Returns the schedule ID on success.
func (tc *TestContext) CreateSchedule(name, cronExpr, prompt string, enabled bool) (string, error) {
	tc.Log("Creating schedule: %s", name)
	result, err := tc.Client.InvokeTool("schedule", map[string]interface{}{
		"action":    "create",
		"name":      name,
		"cron_expr": cronExpr,
		"prompt":    prompt,
		"enabled":   enabled,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create schedule: %w", err)
	}
	if result.IsError {
		return "", fmt.Errorf("create schedule returned error: %s", result.GetToolContent())
	}

	content := result.GetToolContent()
	schedID := ExtractScheduleID(content)
	if schedID == "" {
		return "", fmt.Errorf("failed to extract schedule ID from response: %s", content)
	}

	tc.CreatedScheds = append(tc.CreatedScheds, schedID)
	tc.Log("Schedule created: %s (ID: %s)", name, schedID)
	return schedID, nil
}

// ExtractSessionID parses a session ID from response text.
// Chat responses open with "Session:  sess_XXXX" or "Session:  sess_XXXX (new)".
func ExtractSessionID(content string) string {
	return extractToken(content, "sess_")
}

// ExtractScheduleID parses a schedule ID from response text.
// Create responses include an "ID:       sched_XXXX" line.
func ExtractScheduleID(content string) string {
	return extractToken(content, "sched_")
}

// ExtractJobID parses the job ID from a chat response.
// The response includes a "Job:      JOB_ID" line when a job was submitted.
func ExtractJobID(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "Job:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			return fields[1]
		}
	}
	return ""
}

// extractToken returns the first whitespace-separated token with the
// given prefix
func extractToken(content, prefix string) string {
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, prefix) {
			return field
		}
	}
	return ""
}

// TestResult represents the outcome of a test execution
type TestResult struct {
	TestName   string
	Passed     bool
	Duration   time.Duration
	Error      error
	Logs       []string
	Assertions int
	FailedAt   string // Which phase failed: "setup", "execute", "teardown"
}

// Run executes the test case and returns the result
func (t *TestCase) Run(mcpClient *client.MCPClient) *TestResult {
	start := time.Now()
	ctx := NewTestContext(mcpClient)
	result := &TestResult{
		TestName:   t.Name,
		Passed:     true,
		Assertions: 0,
	}

	// Ensure cleanup always runs
	defer func() {
		if err := ctx.Cleanup(); err != nil {
			ctx.Log("Cleanup error: %v", err)
		}
		result.Logs = ctx.Logs
		result.Duration = time.Since(start)
		result.Assertions = ctx.Assertions.Count
	}()

	// Apply timeout if specified
	if t.Timeout > 0 {
		done := make(chan bool, 1)
		go func() {
			if err := t.runPhases(ctx, result); err != nil {
				result.Passed = false
				result.Error = err
			}
			done <- true
		}()

		select {
		case <-done:
			// Test completed
		case <-time.After(t.Timeout):
			result.Passed = false
			result.Error = fmt.Errorf("test timeout after %v", t.Timeout)
			result.FailedAt = "timeout"
		}
	} else {
		if err := t.runPhases(ctx, result); err != nil {
			result.Passed = false
			result.Error = err
		}
	}

	return result
}

// runPhases executes setup, execute, and teardown phases
func (t *TestCase) runPhases(ctx *TestContext, result *TestResult) error {
	if t.Setup != nil {
		ctx.Log("Running setup...")
		if err := t.Setup(ctx); err != nil {
			result.FailedAt = "setup"
			return fmt.Errorf("setup failed: %w", err)
		}
	}

	ctx.Log("Running test...")
	if err := t.Execute(ctx); err != nil {
		result.FailedAt = "execute"
		return fmt.Errorf("test failed: %w", err)
	}

	if ctx.Failed {
		result.FailedAt = "execute"
		return fmt.Errorf("test assertions failed")
	}

	if t.Teardown != nil {
		ctx.Log("Running teardown...")
		if err := t.Teardown(ctx); err != nil {
			result.FailedAt = "teardown"
			return fmt.Errorf("teardown failed: %w", err)
		}
	}

	return nil
}
