package suites

import (
	"fmt"
	"time"

	testpkg "github.com/HyphaGroup/gevulot/test/pkg/testing"
)

// GetChatTests returns chat round-trip tests. Most of these need a live
// orchestrator behind the server; run with --exclude-tags orchestrator
// when there is none.
func GetChatTests() []*testpkg.TestCase {
	return []*testpkg.TestCase{
		{
			Name:        "test_chat_round_trip",
			Description: "Submit a prompt and get the final answer in one call",
			Tags:        []string{"chat", "orchestrator"},
			Timeout:     5 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("chat", map[string]interface{}{
					"message": "Reply with the single word: pong",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke chat")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "Chat should succeed")
				content := result.GetToolContent()
				ctx.Log("chat result: %s", content)

				ctx.Assertions.AssertContains(content, "Session:", "Response should name the session")
				ctx.Assertions.AssertContains(content, "(new)", "First chat should mark the session as new")

				sessID := testpkg.ExtractSessionID(content)
				ctx.Assertions.AssertNotEmpty(sessID, "Should extract session ID")
				if sessID != "" {
					ctx.CreatedSess = append(ctx.CreatedSess, sessID)
				}

				return nil
			},
		},

		{
			Name:        "test_chat_session_continuity",
			Description: "A second chat with session_id continues the same session",
			Tags:        []string{"chat", "orchestrator"},
			Timeout:     10 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				first, err := ctx.Chat("Remember the code word 'heliotrope'. Reply with: ok")
				ctx.Assertions.AssertNoError(err, "First chat should succeed")
				if err != nil {
					return err
				}

				second, err := ctx.ChatInSession(first, "Reply with only the code word I gave you")
				ctx.Assertions.AssertNoError(err, "Second chat should succeed")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertEqual(first, second, "Both chats should use the same session")

				return nil
			},
		},

		{
			Name:        "test_chat_stream_mode",
			Description: "Stream mode returns the same final answer shape",
			Tags:        []string{"chat", "orchestrator", "stream"},
			Timeout:     5 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("chat", map[string]interface{}{
					"message": "Reply with the single word: pong",
					"mode":    "stream",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke chat in stream mode")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "Stream chat should succeed")
				content := result.GetToolContent()
				ctx.Log("stream chat result: %s", content)
				ctx.Assertions.AssertContains(content, "Session:", "Response should name the session")

				sessID := testpkg.ExtractSessionID(content)
				if sessID != "" {
					ctx.CreatedSess = append(ctx.CreatedSess, sessID)
				}

				return nil
			},
		},

		{
			Name:        "test_chat_unknown_session",
			Description: "Chat into a session that does not exist should fail",
			Tags:        []string{"chat"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("chat", map[string]interface{}{
					"message":    "hello",
					"session_id": "sess_00000000",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke chat without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for unknown session")
				content := result.GetToolContent()
				ctx.Log("chat error: %s", content)
				ctx.Assertions.AssertContains(content, "not found", "Error should say the session was not found")

				return nil
			},
		},

		{
			Name:        "test_chat_invalid_mode",
			Description: "Chat with an unsupported mode should fail fast",
			Tags:        []string{"chat"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("chat", map[string]interface{}{
					"message": fmt.Sprintf("mode check %d", time.Now().UnixNano()),
					"mode":    "telepathy",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke chat without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for invalid mode")
				content := result.GetToolContent()
				ctx.Log("chat error: %s", content)
				ctx.Assertions.AssertContains(content, "mode", "Error should mention the mode parameter")

				return nil
			},
		},
	}
}
