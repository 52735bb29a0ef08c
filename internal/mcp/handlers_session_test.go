package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/HyphaGroup/gevulot/internal/session"
	"github.com/HyphaGroup/gevulot/internal/testutil"
)

func TestHandleSession_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		params  SessionParams
		wantErr string
	}{
		{"missing action", SessionParams{}, "action is required for session tool"},
		{"unknown action", SessionParams{Action: "hibernate"}, `unknown action "hibernate" for session tool`},
		{"get without id", SessionParams{Action: "get"}, "session_id is required"},
		{"get malformed id", SessionParams{Action: "get", SessionID: "nope"}, "invalid session ID format"},
		{"get unknown id", SessionParams{Action: "get", SessionID: "sess_0badc0de"}, "session sess_0badc0de not found"},
		{"destroy without id", SessionParams{Action: "destroy"}, "session_id is required"},
		{"events without id", SessionParams{Action: "events"}, "session_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ts.handleSession(context.Background(), nil, tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("handleSession() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandleSession_ListEmpty(t *testing.T) {
	ts := newTestServer(t)

	result, _, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "list"})
	if err != nil {
		t.Fatalf("handleSession(list) error = %v", err)
	}
	if text := resultText(t, result); text != "No active sessions." {
		t.Errorf("output = %q, want no-sessions message", text)
	}
}

func TestHandleSession_ListAndGet(t *testing.T) {
	ts := newTestServer(t)

	_, data, err := ts.handleChat(context.Background(), nil, ChatParams{Message: "hello"})
	if err != nil {
		t.Fatalf("handleChat() error = %v", err)
	}
	sessID := data.(*ChatResponse).SessionID

	result, listData, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "list"})
	if err != nil {
		t.Fatalf("handleSession(list) error = %v", err)
	}
	infos, ok := listData.([]session.Info)
	if !ok {
		t.Fatalf("data = %T, want []session.Info", listData)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d sessions, want 1", len(infos))
	}
	if infos[0].ID != sessID {
		t.Errorf("infos[0].ID = %q, want %q", infos[0].ID, sessID)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Found 1 session(s):") {
		t.Errorf("output = %q, want the session count", text)
	}
	if !strings.Contains(text, sessID) {
		t.Errorf("output = %q, want the session ID", text)
	}

	result, getData, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "get", SessionID: sessID})
	if err != nil {
		t.Fatalf("handleSession(get) error = %v", err)
	}
	info, ok := getData.(session.Info)
	if !ok {
		t.Fatalf("data = %T, want session.Info", getData)
	}
	if info.State != session.StateActive {
		t.Errorf("State = %q, want %q", info.State, session.StateActive)
	}
	if info.Busy {
		t.Error("Busy should be false after the chat settled")
	}
	if info.Messages != 2 {
		t.Errorf("Messages = %d, want user and assistant turns", info.Messages)
	}
	text = resultText(t, result)
	if !strings.Contains(text, "State:         active") {
		t.Errorf("output = %q, want the active state", text)
	}
}

func TestHandleSession_Events(t *testing.T) {
	ts := newTestServer(t)

	_, data, err := ts.handleChat(context.Background(), nil, ChatParams{Message: "hello"})
	if err != nil {
		t.Fatalf("handleChat() error = %v", err)
	}
	sessID := data.(*ChatResponse).SessionID

	result, eventsData, err := ts.handleSession(context.Background(), nil, SessionParams{
		Action:    "events",
		SessionID: sessID,
	})
	if err != nil {
		t.Fatalf("handleSession(events) error = %v", err)
	}
	events, ok := eventsData.([]*session.BufferedEvent)
	if !ok {
		t.Fatalf("data = %T, want []*session.BufferedEvent", eventsData)
	}
	if len(events) < 2 {
		t.Fatalf("got %d events, want job progress plus completion", len(events))
	}
	last := events[len(events)-1]
	if last.Event.Type != "completion" {
		t.Errorf("last event Type = %q, want completion", last.Event.Type)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "job_status") {
		t.Errorf("output = %q, want a job_status event", text)
	}
	if !strings.Contains(text, "Last index:") {
		t.Errorf("output = %q, want the last index footer", text)
	}

	t.Run("pages forward", func(t *testing.T) {
		since := events[len(events)-1].Index
		result, _, err := ts.handleSession(context.Background(), nil, SessionParams{
			Action:     "events",
			SessionID:  sessID,
			SinceIndex: &since,
		})
		if err != nil {
			t.Fatalf("handleSession(events) error = %v", err)
		}
		if text := resultText(t, result); !strings.Contains(text, "No events after index") {
			t.Errorf("output = %q, want empty page past the end", text)
		}
	})

	t.Run("caps from the front", func(t *testing.T) {
		result, capped, err := ts.handleSession(context.Background(), nil, SessionParams{
			Action:    "events",
			SessionID: sessID,
			MaxEvents: 1,
		})
		if err != nil {
			t.Fatalf("handleSession(events) error = %v", err)
		}
		got := capped.([]*session.BufferedEvent)
		if len(got) != 1 {
			t.Fatalf("got %d events, want 1", len(got))
		}
		if got[0].Index != events[0].Index {
			t.Errorf("capped[0].Index = %d, want oldest event %d", got[0].Index, events[0].Index)
		}
		if text := resultText(t, result); !strings.Contains(text, "more buffered; continue with since_index=") {
			t.Errorf("output = %q, want the continuation hint", text)
		}
	})
}

func TestHandleSession_Interrupt(t *testing.T) {
	// The status sequence never reaches a terminal state, so the request
	// stays in flight until the interrupt lands
	ts := newTestServer(t, testutil.WithStatusSequence("pending", "running"))

	sess, err := ts.manager.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, _, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "interrupt", SessionID: sess.ID})
	if err != nil {
		t.Fatalf("handleSession(interrupt) error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "no request in flight") {
		t.Errorf("output = %q, want the idle notice", text)
	}

	req, err := sess.Ask(context.Background(), "take your time", session.ModePoll)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	result, _, err = ts.handleSession(context.Background(), nil, SessionParams{Action: "interrupt", SessionID: sess.ID})
	if err != nil {
		t.Fatalf("handleSession(interrupt) error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "✅ Interrupted the in-flight request") {
		t.Errorf("output = %q, want interrupt confirmation", text)
	}

	<-req.Done()
	if _, err := req.Outcome(); err == nil {
		t.Error("Outcome() should carry the abort")
	}
	if cancelled := ts.fake.Cancelled(); len(cancelled) != 1 || cancelled[0] != req.JobID {
		t.Errorf("Cancelled() = %v, want [%s]", cancelled, req.JobID)
	}
}

func TestHandleSession_Pause(t *testing.T) {
	ts := newTestServer(t)

	sess, err := ts.manager.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, _, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "pause", SessionID: sess.ID})
	if err != nil {
		t.Fatalf("handleSession(pause) error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "✅ Session "+sess.ID+" paused") {
		t.Errorf("output = %q, want pause confirmation", text)
	}
	if sess.State() != session.StatePaused {
		t.Errorf("State() = %q, want %q", sess.State(), session.StatePaused)
	}

	// New work is refused while the transcript stays readable
	_, _, err = ts.handleChat(context.Background(), nil, ChatParams{Message: "hi", SessionID: sess.ID})
	if err == nil || !strings.Contains(err.Error(), "session is paused") {
		t.Errorf("handleChat() error = %v, want paused refusal", err)
	}
	if _, _, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "get", SessionID: sess.ID}); err != nil {
		t.Errorf("handleSession(get) error = %v, paused sessions stay readable", err)
	}
}

func TestHandleSession_Destroy(t *testing.T) {
	ts := newTestServer(t)

	sess, err := ts.manager.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, _, err := ts.handleSession(context.Background(), nil, SessionParams{Action: "destroy", SessionID: sess.ID})
	if err != nil {
		t.Fatalf("handleSession(destroy) error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "✅ Session "+sess.ID+" destroyed") {
		t.Errorf("output = %q, want destroy confirmation", text)
	}
	if _, ok := ts.manager.Get(sess.ID); ok {
		t.Error("session should be gone from the manager")
	}

	_, _, err = ts.handleSession(context.Background(), nil, SessionParams{Action: "destroy", SessionID: sess.ID})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("second destroy error = %v, want not found", err)
	}
}
