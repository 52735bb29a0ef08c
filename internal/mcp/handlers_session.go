package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/session"
	"github.com/HyphaGroup/gevulot/internal/validation"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// SessionParams is the unified params struct for the session tool
type SessionParams struct {
	Action string `json:"action" description:"Required: list, get, events, interrupt, pause, or destroy"`

	// For get, events, interrupt, pause, destroy
	SessionID string `json:"session_id,omitempty" description:"Session identifier"`

	// For events
	SinceIndex *int `json:"since_index,omitempty" description:"Return events after this index; omit or -1 for all buffered"`
	MaxEvents  int  `json:"max_events,omitempty" description:"Cap on the number of events returned"`
}

var sessionActions = []string{"list", "get", "events", "interrupt", "pause", "destroy"}

// handleSession is the unified handler for the session tool
func (s *Server) handleSession(ctx context.Context, request *mcp_sdk.CallToolRequest, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.Action == "" {
		return nil, nil, missingActionError("session", sessionActions)
	}

	switch params.Action {
	case "list":
		return s.sessionList(ctx, params)
	case "get":
		return s.sessionGet(ctx, params)
	case "events":
		return s.sessionEvents(ctx, params)
	case "interrupt":
		return s.sessionInterrupt(ctx, params)
	case "pause":
		return s.sessionPause(ctx, params)
	case "destroy":
		return s.sessionDestroy(ctx, params)
	default:
		return nil, nil, actionError("session", params.Action, sessionActions)
	}
}

func (s *Server) sessionList(ctx context.Context, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	infos := s.manager.List()

	if len(infos) == 0 {
		return NewTextResult("No active sessions."), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Found %d session(s):\n\n", len(infos)))
	for _, info := range infos {
		busy := "idle"
		if info.Busy {
			busy = "busy"
		}
		output.WriteString(fmt.Sprintf("• %s (%s, %s)\n", info.ID, info.State, busy))
		output.WriteString(fmt.Sprintf("  Messages:      %d\n", info.Messages))
		output.WriteString(fmt.Sprintf("  Created:       %s\n", info.CreatedAt.Format("2006-01-02 15:04:05")))
		output.WriteString(fmt.Sprintf("  Last Activity: %s\n", info.LastActivity.Format("2006-01-02 15:04:05")))
		output.WriteString("\n")
	}

	return NewTextResult(output.String()), infos, nil
}

func (s *Server) sessionGet(ctx context.Context, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	sess, err := s.liveSession(params.SessionID)
	if err != nil {
		return nil, nil, err
	}

	info := sess.Snapshot()

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Session:       %s\n", info.ID))
	output.WriteString(fmt.Sprintf("State:         %s\n", info.State))
	output.WriteString(fmt.Sprintf("Busy:          %v\n", info.Busy))
	output.WriteString(fmt.Sprintf("Messages:      %d\n", info.Messages))
	output.WriteString(fmt.Sprintf("Last Event:    %d\n", info.LastEventIndex))
	if info.EventsDropped > 0 {
		output.WriteString(fmt.Sprintf("Dropped:       %d event(s) lost to buffer overflow\n", info.EventsDropped))
	}
	output.WriteString(fmt.Sprintf("Created:       %s\n", info.CreatedAt.Format("2006-01-02 15:04:05")))
	output.WriteString(fmt.Sprintf("Last Activity: %s\n", info.LastActivity.Format("2006-01-02 15:04:05")))

	return NewTextResult(output.String()), info, nil
}

func (s *Server) sessionEvents(ctx context.Context, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	sess, err := s.liveSession(params.SessionID)
	if err != nil {
		return nil, nil, err
	}

	since := -1
	if params.SinceIndex != nil {
		since = *params.SinceIndex
	}

	events, err := sess.Events(since)
	if err != nil {
		return nil, nil, err
	}

	// Cap from the front so the caller can page forward with since_index
	truncated := false
	if params.MaxEvents > 0 && len(events) > params.MaxEvents {
		events = events[:params.MaxEvents]
		truncated = true
	}

	if len(events) == 0 {
		return NewTextResult(fmt.Sprintf("No events after index %d.", since)), nil, nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("%d event(s) for %s:\n\n", len(events), params.SessionID))
	for _, ev := range events {
		output.WriteString(fmt.Sprintf("[%d] %s", ev.Index, ev.Event.Type))
		if ev.Event.Stage != "" {
			output.WriteString(fmt.Sprintf(" stage=%s", ev.Event.Stage))
		}
		if ev.Event.Text != "" {
			output.WriteString(fmt.Sprintf(" %q", ev.Event.Text))
		}
		if ev.Event.Job != nil {
			output.WriteString(fmt.Sprintf(" job=%s status=%s progress=%d%%", ev.Event.Job.ID, ev.Event.Job.Status, ev.Event.Job.Progress))
		}
		output.WriteString("\n")
	}
	lastIndex := events[len(events)-1].Index
	output.WriteString(fmt.Sprintf("\nLast index: %d", lastIndex))
	if truncated {
		output.WriteString(fmt.Sprintf(" (more buffered; continue with since_index=%d)", lastIndex))
	}
	output.WriteString("\n")

	return NewTextResult(output.String()), events, nil
}

func (s *Server) sessionInterrupt(ctx context.Context, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	sess, err := s.liveSession(params.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := sess.CancelRequest(ctx); err != nil {
		if errors.Is(err, session.ErrNoActiveRequest) {
			return NewTextResult(fmt.Sprintf("Session %s has no request in flight.", params.SessionID)), nil, nil
		}
		return nil, nil, err
	}

	return NewTextResult(fmt.Sprintf("✅ Interrupted the in-flight request on %s", params.SessionID)), nil, nil
}

func (s *Server) sessionPause(ctx context.Context, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	sess, err := s.liveSession(params.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := sess.Pause(); err != nil {
		return nil, nil, err
	}

	return NewTextResult(fmt.Sprintf("✅ Session %s paused", params.SessionID)), nil, nil
}

func (s *Server) sessionDestroy(ctx context.Context, params SessionParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.SessionID == "" {
		return nil, nil, fmt.Errorf("session_id is required")
	}
	if err := validation.ValidateSessionID(params.SessionID); err != nil {
		return nil, nil, err
	}

	if err := s.manager.Destroy(params.SessionID); err != nil {
		audit.LogFailure(ctx, audit.OpSessionDestroy, params.SessionID, "", err)
		return nil, nil, err
	}
	audit.LogSuccess(ctx, audit.OpSessionDestroy, params.SessionID, "")

	return NewTextResult(fmt.Sprintf("✅ Session %s destroyed", params.SessionID)), nil, nil
}

// liveSession validates the ID and returns the live session
func (s *Server) liveSession(sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if err := validation.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	sess, ok := s.manager.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return sess, nil
}
