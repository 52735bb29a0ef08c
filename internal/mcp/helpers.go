package mcp

import (
	"fmt"
	"strings"

	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewTextResult creates a successful text result
func NewTextResult(text string) *mcp_sdk.CallToolResult {
	return &mcp_sdk.CallToolResult{
		Content: []mcp_sdk.Content{
			&mcp_sdk.TextContent{Text: text},
		},
	}
}

// NewErrorResult creates an error result
func NewErrorResult(text string) *mcp_sdk.CallToolResult {
	return &mcp_sdk.CallToolResult{
		Content: []mcp_sdk.Content{
			&mcp_sdk.TextContent{Text: text},
		},
		IsError: true,
	}
}

// missingActionError reports an absent action field on a unified tool
func missingActionError(tool string, actions []string) error {
	return fmt.Errorf("action is required for %s tool (one of: %s)", tool, strings.Join(actions, ", "))
}

// actionError reports an unrecognized action on a unified tool
func actionError(tool, action string, actions []string) error {
	return fmt.Errorf("unknown action %q for %s tool (one of: %s)", action, tool, strings.Join(actions, ", "))
}
