package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/HyphaGroup/gevulot/internal/testutil"
)

func TestHandleChat_PollMode(t *testing.T) {
	ts := newTestServer(t, testutil.WithResultText("The answer is 42."))

	result, data, err := ts.handleChat(context.Background(), nil, ChatParams{
		Message: "what is six times seven?",
	})
	if err != nil {
		t.Fatalf("handleChat() error = %v", err)
	}

	resp, ok := data.(*ChatResponse)
	if !ok {
		t.Fatalf("data = %T, want *ChatResponse", data)
	}
	if resp.Answer != "The answer is 42." {
		t.Errorf("Answer = %q, want %q", resp.Answer, "The answer is 42.")
	}
	if resp.Mode != "poll" {
		t.Errorf("Mode = %q, want %q", resp.Mode, "poll")
	}
	if !resp.NewSession {
		t.Error("NewSession should be true for a fresh chat")
	}
	if resp.JobID == "" {
		t.Error("JobID should be set in poll mode")
	}

	text := resultText(t, result)
	if !strings.Contains(text, "(new)") {
		t.Errorf("output = %q, want new-session marker", text)
	}
	if !strings.Contains(text, "The answer is 42.") {
		t.Errorf("output = %q, want the answer", text)
	}
	if !strings.Contains(text, "Job:") {
		t.Errorf("output = %q, want a job line", text)
	}

	submits := ts.fake.Submits()
	if len(submits) != 1 {
		t.Fatalf("got %d submits, want 1", len(submits))
	}
	if submits[0].Message != "what is six times seven?" {
		t.Errorf("submitted message = %q, want the prompt", submits[0].Message)
	}
	if submits[0].SessionID != resp.SessionID {
		t.Errorf("submitted session = %q, want %q", submits[0].SessionID, resp.SessionID)
	}
}

func TestHandleChat_StreamMode(t *testing.T) {
	ts := newTestServer(t, testutil.WithResultText("streamed reply"))

	result, data, err := ts.handleChat(context.Background(), nil, ChatParams{
		Message: "stream this",
		Mode:    "stream",
	})
	if err != nil {
		t.Fatalf("handleChat() error = %v", err)
	}

	resp := data.(*ChatResponse)
	if resp.Answer != "streamed reply" {
		t.Errorf("Answer = %q, want %q", resp.Answer, "streamed reply")
	}
	if resp.Mode != "stream" {
		t.Errorf("Mode = %q, want %q", resp.Mode, "stream")
	}
	if resp.JobID != "" {
		t.Errorf("JobID = %q, stream mode has no job", resp.JobID)
	}

	text := resultText(t, result)
	if strings.Contains(text, "Job:") {
		t.Errorf("output = %q, stream mode should not print a job line", text)
	}

	submits := ts.fake.Submits()
	if len(submits) != 1 || !submits[0].Stream {
		t.Fatalf("submits = %+v, want one stream submit", submits)
	}
}

func TestHandleChat_StreamStages(t *testing.T) {
	ts := newTestServer(t, testutil.WithStreamFrames(
		`{"type":"chunk","data":{"updates":{"researcher":{"status":"running"}}}}`,
		`{"type":"chunk","data":{"messages":["gathered "]}}`,
		`{"type":"chunk","data":{"updates":{"writer":{"status":"running"}}}}`,
		`{"type":"chunk","data":{"messages":["and written"]}}`,
		`{"type":"completion","data":{"final_response":"gathered and written"}}`,
	))

	_, data, err := ts.handleChat(context.Background(), nil, ChatParams{
		Message: "research then write",
		Mode:    "stream",
	})
	if err != nil {
		t.Fatalf("handleChat() error = %v", err)
	}
	resp := data.(*ChatResponse)
	if resp.Answer != "gathered and written" {
		t.Errorf("Answer = %q, want the assembled chunks", resp.Answer)
	}

	// The pipeline stages the orchestrator reported are visible as events
	result, _, err := ts.handleSession(context.Background(), nil, SessionParams{
		Action:    "events",
		SessionID: resp.SessionID,
	})
	if err != nil {
		t.Fatalf("handleSession(events) error = %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"stage=researcher", "stage=writer"} {
		if !strings.Contains(text, want) {
			t.Errorf("events output = %q, want %s", text, want)
		}
	}
}

func TestHandleChat_SessionReuse(t *testing.T) {
	ts := newTestServer(t)

	_, data, err := ts.handleChat(context.Background(), nil, ChatParams{Message: "first"})
	if err != nil {
		t.Fatalf("first handleChat() error = %v", err)
	}
	first := data.(*ChatResponse)

	result, data, err := ts.handleChat(context.Background(), nil, ChatParams{
		Message:   "second",
		SessionID: first.SessionID,
	})
	if err != nil {
		t.Fatalf("second handleChat() error = %v", err)
	}
	second := data.(*ChatResponse)

	if second.SessionID != first.SessionID {
		t.Errorf("SessionID = %q, want reuse of %q", second.SessionID, first.SessionID)
	}
	if second.NewSession {
		t.Error("NewSession should be false when continuing a session")
	}
	if text := resultText(t, result); strings.Contains(text, "(new)") {
		t.Errorf("output = %q, continued session should not be marked new", text)
	}
	if ts.manager.Count() != 1 {
		t.Errorf("manager.Count() = %d, want 1", ts.manager.Count())
	}

	submits := ts.fake.Submits()
	if len(submits) != 2 {
		t.Fatalf("got %d submits, want 2", len(submits))
	}
	if submits[1].SessionID != first.SessionID {
		t.Errorf("second submit session = %q, want %q", submits[1].SessionID, first.SessionID)
	}
}

func TestHandleChat_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		params  ChatParams
		wantErr string
	}{
		{"empty message", ChatParams{}, "message is required"},
		{"blank message", ChatParams{Message: "   "}, "message is required"},
		{"bad mode", ChatParams{Message: "hi", Mode: "carrier-pigeon"}, `invalid mode "carrier-pigeon"`},
		{"malformed session", ChatParams{Message: "hi", SessionID: "not-a-session"}, "invalid session ID format"},
		{"unknown session", ChatParams{Message: "hi", SessionID: "sess_0badc0de"}, "session sess_0badc0de not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ts.handleChat(context.Background(), nil, tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("handleChat() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if len(ts.fake.Submits()) != 0 {
		t.Errorf("got %d submits, invalid params must not reach the orchestrator", len(ts.fake.Submits()))
	}
}

func TestHandleChat_SubmitFailure(t *testing.T) {
	ts := newTestServer(t, testutil.WithSubmitFailure(503))

	_, _, err := ts.handleChat(context.Background(), nil, ChatParams{Message: "hi"})
	if err == nil {
		t.Fatal("handleChat() should fail when the orchestrator rejects the submit")
	}
	if !strings.Contains(err.Error(), "submit failed") {
		t.Errorf("error = %v, want submit failure", err)
	}
}

func TestHandleChat_Timeout(t *testing.T) {
	t.Run("poll names the job", func(t *testing.T) {
		ts := newTestServer(t, testutil.WithStatusSequence("processing"))

		_, _, err := ts.handleChat(context.Background(), nil, ChatParams{
			Message:        "slow question",
			TimeoutSeconds: 1,
		})
		if err == nil {
			t.Fatal("handleChat() should time out against a never-finishing job")
		}
		if !strings.Contains(err.Error(), "timed out waiting for the answer") {
			t.Errorf("error = %v, want timeout message", err)
		}
		if !strings.Contains(err.Error(), "still running") {
			t.Errorf("error = %v, want a pointer to the running job", err)
		}
	})

	t.Run("stream names the session", func(t *testing.T) {
		ts := newTestServer(t, testutil.WithFrameDelay(600*time.Millisecond))

		_, _, err := ts.handleChat(context.Background(), nil, ChatParams{
			Message:        "slow stream",
			Mode:           "stream",
			TimeoutSeconds: 1,
		})
		if err == nil {
			t.Fatal("handleChat() should time out against a stalling stream")
		}
		if !strings.Contains(err.Error(), "still working") {
			t.Errorf("error = %v, want a pointer to the working session", err)
		}
	})
}
