package suites

import (
	"fmt"
	"time"

	testpkg "github.com/HyphaGroup/gevulot/test/pkg/testing"
)

// GetScheduleTests returns scheduled prompt tests. Schedules are
// created disabled so the runner never fires them mid-test.
func GetScheduleTests() []*testpkg.TestCase {
	return []*testpkg.TestCase{
		{
			Name:        "test_schedule_create_and_list",
			Description: "Create a schedule and find it in the listing",
			Tags:        []string{"schedule", "crud"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				name := fmt.Sprintf("daily-check-%d", time.Now().UnixNano())
				schedID, err := ctx.CreateSchedule(name, "0 9 * * *", "Run the daily health check", false)
				ctx.Assertions.AssertNoError(err, "Should create schedule")
				if err != nil {
					return err
				}
				// Schedule is auto-tracked for cleanup by CreateSchedule

				listResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{"action": "list"})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule list")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(listResult.IsError, "schedule list should succeed")
				listContent := listResult.GetToolContent()
				ctx.Log("schedule list: %s", listContent)
				ctx.Assertions.AssertContains(listContent, name, "Listing should include the created schedule")
				ctx.Assertions.AssertContains(listContent, schedID, "Listing should include the schedule ID")

				return nil
			},
		},

		{
			Name:        "test_schedule_update_toggle",
			Description: "Enable and disable a schedule through update",
			Tags:        []string{"schedule", "crud"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				name := fmt.Sprintf("toggle-%d", time.Now().UnixNano())
				// Jan 1 at midnight, so enabling it cannot fire during the test
				schedID, err := ctx.CreateSchedule(name, "0 0 1 1 *", "toggle target", false)
				ctx.Assertions.AssertNoError(err, "Should create schedule")
				if err != nil {
					return err
				}

				updateResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "update",
					"schedule_id": schedID,
					"enabled":     true,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule update")
				if err != nil {
					return err
				}
				ctx.Assertions.AssertFalse(updateResult.IsError, "schedule update should succeed")
				ctx.Assertions.AssertContains(updateResult.GetToolContent(), "updated successfully", "Should confirm update")

				getResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "get",
					"schedule_id": schedID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule get")
				if err != nil {
					return err
				}

				getContent := getResult.GetToolContent()
				ctx.Log("after enable: %s", getContent)
				ctx.Assertions.AssertContains(getContent, "Status:   enabled", "Should show enabled status")
				ctx.Assertions.AssertContains(getContent, "Next Run:", "Enabled schedule should have a next run")

				// Back off again
				_, err = ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "update",
					"schedule_id": schedID,
					"enabled":     false,
				})
				ctx.Assertions.AssertNoError(err, "Should disable again")

				return nil
			},
		},

		{
			Name:        "test_schedule_delete",
			Description: "Delete a schedule and verify it is gone",
			Tags:        []string{"schedule", "crud"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				name := fmt.Sprintf("to-delete-%d", time.Now().UnixNano())
				schedID, err := ctx.CreateSchedule(name, "0 0 * * *", "delete me", false)
				ctx.Assertions.AssertNoError(err, "Should create schedule")
				if err != nil {
					return err
				}

				deleteResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "delete",
					"schedule_id": schedID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule delete")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(deleteResult.IsError, "schedule delete should succeed")
				ctx.Assertions.AssertContains(deleteResult.GetToolContent(), "deleted successfully", "Should confirm deletion")

				getResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "get",
					"schedule_id": schedID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule get")
				if err != nil {
					return err
				}
				ctx.Assertions.AssertTrue(getResult.IsError, "schedule get should fail for deleted schedule")

				// Deleted by hand; drop it from cleanup
				ctx.CreatedScheds = nil

				return nil
			},
		},

		{
			Name:        "test_schedule_invalid_cron",
			Description: "Creating a schedule with a bad cron expression should fail",
			Tags:        []string{"schedule", "crud"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":    "create",
					"name":      "bad-cron",
					"cron_expr": "whenever",
					"prompt":    "never runs",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule create without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for invalid cron")
				content := result.GetToolContent()
				ctx.Log("create error: %s", content)
				ctx.Assertions.AssertContains(content, "invalid cron", "Error should flag the expression")

				return nil
			},
		},

		{
			Name:        "test_schedule_history_empty",
			Description: "A fresh schedule has no executions recorded",
			Tags:        []string{"schedule", "crud"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				name := fmt.Sprintf("no-runs-%d", time.Now().UnixNano())
				schedID, err := ctx.CreateSchedule(name, "0 0 1 1 *", "never ran", false)
				ctx.Assertions.AssertNoError(err, "Should create schedule")
				if err != nil {
					return err
				}

				result, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "history",
					"schedule_id": schedID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule history")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "schedule history should succeed")
				ctx.Assertions.AssertContains(result.GetToolContent(), "No executions recorded", "Should report an empty history")

				return nil
			},
		},

		{
			Name:        "test_schedule_trigger_manual",
			Description: "Trigger a disabled schedule and find the execution in history",
			Tags:        []string{"schedule", "trigger", "orchestrator"},
			Timeout:     10 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				name := fmt.Sprintf("manual-%d", time.Now().UnixNano())
				schedID, err := ctx.CreateSchedule(name, "0 0 1 1 *", "Reply with the single word: triggered", false)
				ctx.Assertions.AssertNoError(err, "Should create schedule")
				if err != nil {
					return err
				}

				triggerResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "trigger",
					"schedule_id": schedID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule trigger")
				if err != nil {
					return err
				}

				triggerContent := triggerResult.GetToolContent()
				ctx.Log("trigger result: %s", triggerContent)
				ctx.Assertions.AssertFalse(triggerResult.IsError, "schedule trigger should succeed")
				ctx.Assertions.AssertContains(triggerContent, "triggered successfully", "Should confirm the trigger")
				ctx.Assertions.AssertContains(triggerContent, "Execution:", "Should name the execution")

				// The run used a session; track it for cleanup
				if sessID := testpkg.ExtractSessionID(triggerContent); sessID != "" {
					ctx.CreatedSess = append(ctx.CreatedSess, sessID)
				}

				historyResult, err := ctx.Client.InvokeTool("schedule", map[string]interface{}{
					"action":      "history",
					"schedule_id": schedID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke schedule history")
				if err != nil {
					return err
				}

				historyContent := historyResult.GetToolContent()
				ctx.Log("history result: %s", historyContent)
				ctx.Assertions.AssertContains(historyContent, "execution(s)", "History should record the run")

				return nil
			},
		},
	}
}
