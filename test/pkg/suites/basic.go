package suites

import (
	"time"

	testpkg "github.com/HyphaGroup/gevulot/test/pkg/testing"
)

// GetBasicTests returns basic smoke tests
func GetBasicTests() []*testpkg.TestCase {
	return []*testpkg.TestCase{
		{
			Name:        "test_connection",
			Description: "Verify MCP server connection and tool listing",
			Tags:        []string{"basic", "smoke"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				tools, err := ctx.Client.ListTools()
				ctx.Assertions.AssertNoError(err, "Should list tools without error")

				if err != nil {
					return err
				}

				ctx.Assertions.AssertGreaterThan(len(tools), 0, "Should have at least 1 tool")

				// Every tool of the bridge should be registered
				expected := map[string]bool{
					"chat":     false,
					"job":      false,
					"session":  false,
					"history":  false,
					"schedule": false,
				}
				for _, tool := range tools {
					if _, ok := expected[tool.Name]; ok {
						expected[tool.Name] = true
					}
				}
				for name, found := range expected {
					ctx.Assertions.AssertTrue(found, "Should have "+name+" tool")
				}

				return nil
			},
		},

		{
			Name:        "test_session_list",
			Description: "Test listing live sessions",
			Tags:        []string{"basic", "session"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("session", map[string]interface{}{"action": "list"})
				ctx.Assertions.AssertNoError(err, "Should invoke session list without error")

				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "Should not return error result")

				content := result.GetToolContent()
				ctx.Log("session list result: %s", content)
				// Either sessions exist or the empty marker is printed
				ctx.Assertions.AssertTrue(
					len(content) > 0,
					"Result should not be empty")

				return nil
			},
		},

		{
			Name:        "test_chat_requires_message",
			Description: "Chat without a message should fail with a clear error",
			Tags:        []string{"basic", "chat"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("chat", map[string]interface{}{})
				ctx.Assertions.AssertNoError(err, "Should invoke chat without transport error")

				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for missing message")
				content := result.GetToolContent()
				ctx.Log("chat error: %s", content)
				ctx.Assertions.AssertContains(content, "message is required", "Error should name the missing parameter")

				return nil
			},
		},

		{
			Name:        "test_job_unknown_action",
			Description: "Job tool should reject unknown actions and list valid ones",
			Tags:        []string{"basic", "job"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("job", map[string]interface{}{
					"action": "frobnicate",
					"job_id": "job-00000000",
				})
				ctx.Assertions.AssertNoError(err, "Should invoke job without transport error")

				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for unknown action")
				content := result.GetToolContent()
				ctx.Log("job error: %s", content)
				ctx.Assertions.AssertContains(content, "unknown action", "Error should flag the action")
				ctx.Assertions.AssertContains(content, "status", "Error should list valid actions")

				return nil
			},
		},
	}
}
