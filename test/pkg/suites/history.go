package suites

import (
	"fmt"
	"time"

	testpkg "github.com/HyphaGroup/gevulot/test/pkg/testing"
)

// GetHistoryTests returns conversation history tests
func GetHistoryTests() []*testpkg.TestCase {
	return []*testpkg.TestCase{
		{
			Name:        "test_history_sessions",
			Description: "List persisted sessions",
			Tags:        []string{"history"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("history", map[string]interface{}{"action": "sessions"})
				ctx.Assertions.AssertNoError(err, "Should invoke history sessions")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "history sessions should succeed")
				content := result.GetToolContent()
				ctx.Log("history sessions: %s", content)
				ctx.Assertions.AssertNotEmpty(content, "Result should not be empty")

				return nil
			},
		},

		{
			Name:        "test_history_transcript_and_search",
			Description: "A chat shows up in the transcript and is searchable",
			Tags:        []string{"history", "orchestrator"},
			Timeout:     5 * time.Minute,
			Execute: func(ctx *testpkg.TestContext) error {
				marker := fmt.Sprintf("marker-%d", time.Now().UnixNano())
				sessID, err := ctx.Chat(fmt.Sprintf("Reply with the single word: %s", marker))
				ctx.Assertions.AssertNoError(err, "Chat should succeed")
				if err != nil {
					return err
				}

				// Transcript includes the user message
				msgResult, err := ctx.Client.InvokeTool("history", map[string]interface{}{
					"action":     "messages",
					"session_id": sessID,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke history messages")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(msgResult.IsError, "history messages should succeed")
				msgContent := msgResult.GetToolContent()
				ctx.Log("transcript: %s", msgContent)
				ctx.Assertions.AssertContains(msgContent, "Transcript of", "Should print the transcript header")
				ctx.Assertions.AssertContains(msgContent, marker, "Transcript should contain the prompt")

				// The marker is unique, so search lands on this session
				searchResult, err := ctx.Client.InvokeTool("history", map[string]interface{}{
					"action": "search",
					"query":  marker,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke history search")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(searchResult.IsError, "history search should succeed")
				searchContent := searchResult.GetToolContent()
				ctx.Log("search: %s", searchContent)
				ctx.Assertions.AssertContains(searchContent, sessID, "Search should find the session")

				return nil
			},
		},

		{
			Name:        "test_history_messages_requires_id",
			Description: "history messages without session_id should fail",
			Tags:        []string{"history"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("history", map[string]interface{}{"action": "messages"})
				ctx.Assertions.AssertNoError(err, "Should invoke history messages without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for missing session_id")
				ctx.Assertions.AssertContains(result.GetToolContent(), "session_id is required", "Error should name the parameter")

				return nil
			},
		},

		{
			Name:        "test_history_search_requires_query",
			Description: "history search without a query should fail",
			Tags:        []string{"history"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("history", map[string]interface{}{"action": "search"})
				ctx.Assertions.AssertNoError(err, "Should invoke history search without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for missing query")
				ctx.Assertions.AssertContains(result.GetToolContent(), "query is required", "Error should name the parameter")

				return nil
			},
		},

		{
			Name:        "test_history_prune_requires_days",
			Description: "history prune without older_than_days should fail",
			Tags:        []string{"history"},
			Timeout:     10 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				result, err := ctx.Client.InvokeTool("history", map[string]interface{}{"action": "prune"})
				ctx.Assertions.AssertNoError(err, "Should invoke history prune without transport error")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertTrue(result.IsError, "Should return error for missing retention window")
				ctx.Assertions.AssertContains(result.GetToolContent(), "older_than_days", "Error should name the parameter")

				return nil
			},
		},

		{
			Name:        "test_history_prune_far_cutoff",
			Description: "Pruning with a huge retention window removes nothing",
			Tags:        []string{"history"},
			Timeout:     30 * time.Second,
			Execute: func(ctx *testpkg.TestContext) error {
				// 100 years back; nothing in a test database is that old
				result, err := ctx.Client.InvokeTool("history", map[string]interface{}{
					"action":          "prune",
					"older_than_days": 36500,
				})
				ctx.Assertions.AssertNoError(err, "Should invoke history prune")
				if err != nil {
					return err
				}

				ctx.Assertions.AssertFalse(result.IsError, "history prune should succeed")
				content := result.GetToolContent()
				ctx.Log("prune: %s", content)
				ctx.Assertions.AssertContains(content, "Pruned 0 session(s)", "Nothing should be pruned")

				return nil
			},
		},
	}
}
