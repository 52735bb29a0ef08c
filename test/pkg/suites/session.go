package suites

import (
	"time"

	testpkg "github.com/HyphaGroup/gevulot/test/pkg/testing"
)

// GetSessionTests returns session lifecycle tests
func GetSessionTests() []*testpkg.TestCase {
	return []*testpkg.TestCase{
		{
			Name:        "test_session_lifecycle",
			Description: "Create a session via chat, inspect it, destroy it",
			Tags:        []string{"session", "orchestrator"},
			Timeout:     5 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				sessID, err := ctx.Chat("Reply with the single word: ready")
				ctx.Assertions.AssertNoError(err, "Chat should create a session")
				if err != nil {
					return err
				}

				// Inspect
				getResult, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action":     "get",
					"session_id": sessID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session get")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(getResult.IsError, "session get should succeed")
				getContent := getResult.GetToolContent()
				ctx.Log("session get: %s", getContent)
				ctx.Assertions.AssertContains(getContent, sessID, "Details should include the session ID")
				ctx.Assertions.AssertContains(getContent, "State:", "Details should include the state")

				// Destroy
				destroyResult, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action":     "destroy",
					"session_id": sessID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session destroy")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(destroyResult.IsError, "session destroy should succeed")
				ctx.Assertions.AssertContains(destroyResult.GetToolContent(), "destroyed", "Should confirm destruction")

				// Gone from the live registry
				goneResult, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action":     "get",
					"session_id": sessID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session get again")
				if err != nil {
					return err
				}
				ctx.Assertions.AssertTrue(goneResult.IsError, "session get should fail after destroy")
				ctx.Assertions.AssertContains(goneResult.GetToolContent(), "not found", "Error should say not found")

				// Already destroyed by hand; drop it from cleanup
				ctx.CreatedSess = nil

				return nil
			},
		},

		{
			Name:        "test_session_events_poll",
			Description: "Buffered events are readable after a chat completes",
			Tags:        []string{"session", "orchestrator"},
			Timeout:     5 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				sessID, err := ctx.Chat("Reply with the single word: events")
				ctx.Assertions.AssertNoError(err, "Chat should create a session")
				if err != nil {
					return err
				}

				result, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action":      "events",
					"session_id":  sessID,
					"since_index": -1,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session events")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "session events should succeed")
				ctx.Log("session events: %s", result.GetToolContent())

				return nil
			},
		},

		{
			Name:        "test_session_get_requires_id",
			Description: "session get without session_id should fail",
			Tags:        []string{"session"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action": "get",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session get without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for missing session_id")
				ctx.Assertions.AssertContains(result.GetToolContent(), "session_id is required", "Error should name the parameter")

				return nil
			},
		},

		{
			Name:        "test_session_destroy_unknown",
			Description: "Destroying a session that does not exist should fail",
			Tags:        []string{"session"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action":     "destroy",
					"session_id": "sess_ffffffff",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session destroy without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for unknown session")
				ctx.Assertions.AssertContains(result.GetToolContent(), "not found", "Error should say not found")

				return nil
			},
		},

		{
			Name:        "test_session_pause_blocks_chat",
			Description: "A paused session rejects new messages until destroyed",
			Tags:        []string{"session", "orchestrator"},
			Timeout:     5 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				sessID, err := ctx.Chat("Reply with the single word: pausing")
				ctx.Assertions.AssertNoError(err, "Chat should create a session")
				if err != nil {
					return err
				}

				pauseResult, err := ctx.Client.InvokeTool("session", map[string]interface{}{
					"action":     "pause",
					"session_id": sessID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke session pause")
				if err != nil {
					return err
				}
				ctx.Assertions.AssertFalse(pauseResult.IsError, "session pause should succeed")
				ctx.Assertions.AssertContains(pauseResult.GetToolContent(), "paused", "Should confirm pause")

				// New messages must bounce
				chatResult, err := ctx.Client.InvokeTool("chat", map[string]interface{}{
					"message":    "are you there?",
					"session_id": sessID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke chat without transport error")
				if err != nil {
					return err
				}
				ctx.Assertions.AssertTrue(chatResult.IsError, "Chat into a paused session should fail")
				ctx.Log("paused chat error: %s", chatResult.GetToolContent())

				return nil
			},
		},
	}
}
