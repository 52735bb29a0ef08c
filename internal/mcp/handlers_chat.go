package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/session"
	"github.com/HyphaGroup/gevulot/internal/validation"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Default wait for a chat answer before handing the caller back a job
// reference to poll themselves
const defaultChatTimeout = 5 * time.Minute

// ChatParams defines parameters for the chat tool
type ChatParams struct {
	Message        string `json:"message" description:"Message to send to the agent"`
	SessionID      string `json:"session_id,omitempty" description:"Session to continue; omit to start a fresh one"`
	Mode           string `json:"mode,omitempty" description:"Delivery mode: poll (default) or stream"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" description:"Seconds to wait for the final answer (default 300)"`
}

// ChatResponse is the structured payload returned by the chat tool
type ChatResponse struct {
	SessionID  string `json:"session_id"`
	JobID      string `json:"job_id,omitempty"`
	Mode       string `json:"mode"`
	Answer     string `json:"answer"`
	NewSession bool   `json:"new_session,omitempty"`
}

// handleChat submits a message and waits for the final answer
func (s *Server) handleChat(ctx context.Context, request *mcp_sdk.CallToolRequest, params ChatParams) (*mcp_sdk.CallToolResult, any, error) {
	if strings.TrimSpace(params.Message) == "" {
		return nil, nil, fmt.Errorf("message is required")
	}

	mode := session.ModePoll
	switch params.Mode {
	case "", "poll":
	case "stream":
		mode = session.ModeStream
	default:
		return nil, nil, fmt.Errorf("invalid mode %q (use poll or stream)", params.Mode)
	}

	sess, created, err := s.chatSession(params.SessionID)
	if err != nil {
		return nil, nil, err
	}

	timeout := defaultChatTimeout
	if params.TimeoutSeconds > 0 {
		timeout = time.Duration(params.TimeoutSeconds) * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := sess.Ask(waitCtx, params.Message, mode)
	if err != nil {
		audit.LogFailure(ctx, audit.OpJobSubmit, sess.ID, "", err)
		return nil, nil, err
	}
	audit.LogSuccess(ctx, audit.OpJobSubmit, sess.ID, req.JobID)

	// Request ID arrives through the HTTP middleware; add the IDs this
	// call minted so the structured log line carries all three
	ctx = context.WithValue(ctx, logger.ContextKeySessionID, sess.ID)
	ctx = context.WithValue(ctx, logger.ContextKeyJobID, req.JobID)
	logger.InfoContext(ctx, "chat submitted", "mode", string(mode))

	answer, err := req.Wait(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil {
			// The request keeps running; the caller can come back for it
			logger.WarnContext(ctx, "chat wait timed out", "timeout", timeout.String())
			if req.JobID != "" {
				return nil, nil, fmt.Errorf("timed out waiting for the answer after %s; job %s is still running, check it with the job tool", timeout, req.JobID)
			}
			return nil, nil, fmt.Errorf("timed out waiting for the answer after %s; session %s is still working, interrupt it with the session tool if the answer no longer matters", timeout, sess.ID)
		}
		logger.ErrorContext(ctx, "chat failed", "error", err)
		return nil, nil, err
	}
	logger.InfoContext(ctx, "chat answered", "chars", len(answer))

	var output strings.Builder
	if created {
		output.WriteString(fmt.Sprintf("Session:  %s (new)\n", sess.ID))
	} else {
		output.WriteString(fmt.Sprintf("Session:  %s\n", sess.ID))
	}
	if req.JobID != "" {
		output.WriteString(fmt.Sprintf("Job:      %s\n", req.JobID))
	}
	output.WriteString("\n")
	output.WriteString(answer)

	resp := &ChatResponse{
		SessionID:  sess.ID,
		JobID:      req.JobID,
		Mode:       string(mode),
		Answer:     answer,
		NewSession: created,
	}
	return NewTextResult(output.String()), resp, nil
}

// chatSession resolves or creates the session a chat submits to
func (s *Server) chatSession(sessionID string) (*session.Session, bool, error) {
	if sessionID != "" {
		if err := validation.ValidateSessionID(sessionID); err != nil {
			return nil, false, err
		}
		sess, ok := s.manager.Get(sessionID)
		if !ok {
			return nil, false, fmt.Errorf("session %s not found", sessionID)
		}
		return sess, false, nil
	}

	sess, err := s.manager.Create()
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}
