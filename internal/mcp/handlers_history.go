package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/validation"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// HistoryParams is the unified params struct for the history tool
type HistoryParams struct {
	Action string `json:"action" description:"Required: sessions, messages, search, or prune"`

	// For messages
	SessionID string `json:"session_id,omitempty" description:"Session whose transcript to read"`

	// For search
	Query string `json:"query,omitempty" description:"Substring to find in message content"`

	// For sessions and search
	Limit int `json:"limit,omitempty" description:"Cap on rows returned (default 50)"`

	// For prune
	OlderThanDays int `json:"older_than_days,omitempty" description:"Delete ended sessions older than this many days"`
}

var historyActions = []string{"sessions", "messages", "search", "prune"}

// handleHistory is the unified handler for the history tool
func (s *Server) handleHistory(ctx context.Context, request *mcp_sdk.CallToolRequest, params HistoryParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.Action == "" {
		return nil, nil, missingActionError("history", historyActions)
	}

	if s.history == nil {
		return nil, nil, fmt.Errorf("history persistence is disabled")
	}

	switch params.Action {
	case "sessions":
		return s.historySessions(ctx, params)
	case "messages":
		return s.historyMessages(ctx, params)
	case "search":
		return s.historySearch(ctx, params)
	case "prune":
		return s.historyPrune(ctx, params)
	default:
		return nil, nil, actionError("history", params.Action, historyActions)
	}
}

func (s *Server) historySessions(ctx context.Context, params HistoryParams) (*mcp_sdk.CallToolResult, any, error) {
	sessions, err := s.history.ListSessions(params.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		return NewTextResult("No sessions in history."), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Found %d session(s):\n\n", len(sessions)))
	for _, sess := range sessions {
		output.WriteString(fmt.Sprintf("• %s (%s)\n", sess.ID, sess.State))
		output.WriteString(fmt.Sprintf("  Created: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05")))
		output.WriteString(fmt.Sprintf("  Updated: %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05")))
		if sess.EndedAt != nil {
			output.WriteString(fmt.Sprintf("  Ended:   %s\n", sess.EndedAt.Format("2006-01-02 15:04:05")))
		}
		output.WriteString("\n")
	}

	return NewTextResult(output.String()), sessions, nil
}

func (s *Server) historyMessages(ctx context.Context, params HistoryParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.SessionID == "" {
		return nil, nil, fmt.Errorf("session_id is required")
	}
	if err := validation.ValidateSessionID(params.SessionID); err != nil {
		return nil, nil, err
	}

	messages, err := s.history.ListMessages(params.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}

	if len(messages) == 0 {
		return NewTextResult(fmt.Sprintf("No messages for session %s.", params.SessionID)), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Transcript of %s (%d message(s)):\n\n", params.SessionID, len(messages)))
	for _, msg := range messages {
		output.WriteString(fmt.Sprintf("[%s] %s: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"), msg.Role, msg.Content))
		if msg.Metadata.Error != "" {
			output.WriteString(fmt.Sprintf("  (error: %s)\n", msg.Metadata.Error))
		}
	}

	return NewTextResult(output.String()), messages, nil
}

func (s *Server) historySearch(ctx context.Context, params HistoryParams) (*mcp_sdk.CallToolResult, any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, nil, fmt.Errorf("query is required")
	}

	hits, err := s.history.SearchMessages(params.Query, params.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search messages: %w", err)
	}

	if len(hits) == 0 {
		return NewTextResult(fmt.Sprintf("No messages matching %q.", params.Query)), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Found %d match(es) for %q:\n\n", len(hits), params.Query))
	for _, hit := range hits {
		output.WriteString(fmt.Sprintf("• %s / %s (%s)\n", hit.SessionID, hit.MessageID, hit.Role))
		output.WriteString(fmt.Sprintf("  %s\n", hit.Snippet))
		output.WriteString(fmt.Sprintf("  %s\n", hit.Timestamp.Format("2006-01-02 15:04:05")))
		output.WriteString("\n")
	}

	return NewTextResult(output.String()), hits, nil
}

func (s *Server) historyPrune(ctx context.Context, params HistoryParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.OlderThanDays <= 0 {
		return nil, nil, fmt.Errorf("older_than_days is required and must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -params.OlderThanDays)
	removed, err := s.history.PruneBefore(cutoff)
	if err != nil {
		audit.LogFailure(ctx, audit.OpHistoryPrune, "", "", err)
		return nil, nil, fmt.Errorf("failed to prune history: %w", err)
	}
	audit.Log(&audit.Event{
		Operation: audit.OpHistoryPrune,
		Caller:    audit.CallerFrom(ctx),
		Success:   true,
		Details:   map[string]interface{}{"removed": removed, "older_than_days": params.OlderThanDays},
	})

	return NewTextResult(fmt.Sprintf("✅ Pruned %d session(s) older than %d day(s)", removed, params.OlderThanDays)), nil, nil
}
