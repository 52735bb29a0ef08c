package conversation

import (
	"errors"
	"testing"
)

func TestReconcilerAppendAccumulates(t *testing.T) {
	r := NewReconciler(nil)

	for _, frag := range []string{"Hel", "lo", " world"} {
		if err := r.AppendDelta("msg_1", RoleAssistant, frag); err != nil {
			t.Fatalf("AppendDelta(%q) error = %v", frag, err)
		}
	}

	msg, ok := r.Get("msg_1")
	if !ok {
		t.Fatal("Get() returned no message")
	}
	if msg.Content != "Hello world" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello world")
	}
	if !msg.Metadata.Streaming {
		t.Error("Streaming = false, want true before finalize")
	}
}

func TestReconcilerUpsertPrefixRule(t *testing.T) {
	r := NewReconciler(nil)

	if err := r.Upsert("msg_1", RoleAssistant, "Hel", Patch{}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := r.Upsert("msg_1", RoleAssistant, "Hello", Patch{}); err != nil {
		t.Fatalf("Upsert() extend error = %v", err)
	}

	// "Hello" is not a prefix of "Help": the rewrite must be rejected.
	if err := r.Upsert("msg_1", RoleAssistant, "Help", Patch{}); !errors.Is(err, ErrContentConflict) {
		t.Errorf("Upsert() rewrite error = %v, want ErrContentConflict", err)
	}

	// Same content again is a legal no-op.
	if err := r.Upsert("msg_1", RoleAssistant, "Hello", Patch{}); err != nil {
		t.Errorf("Upsert() idempotent error = %v", err)
	}

	// Empty content updates metadata only.
	if err := r.Upsert("msg_1", RoleAssistant, "", StagePatch("planner")); err != nil {
		t.Errorf("Upsert() metadata-only error = %v", err)
	}
	msg, _ := r.Get("msg_1")
	if msg.Content != "Hello" || msg.Metadata.Stage != "planner" {
		t.Errorf("message = %q/%q, want Hello/planner", msg.Content, msg.Metadata.Stage)
	}
}

func TestReconcilerFinalizeOnce(t *testing.T) {
	r := NewReconciler(nil)

	if err := r.AppendDelta("msg_1", RoleAssistant, "Hello"); err != nil {
		t.Fatalf("AppendDelta() error = %v", err)
	}
	if err := r.Finalize("msg_1", RoleAssistant, "Hello world", Patch{}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	msg, _ := r.Get("msg_1")
	if msg.Content != "Hello world" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello world")
	}
	if msg.Metadata.Streaming {
		t.Error("Streaming = true after finalize, want false")
	}
	if !r.Finalized("msg_1") {
		t.Error("Finalized() = false, want true")
	}

	tests := []struct {
		name string
		op   func() error
	}{
		{"second finalize", func() error { return r.Finalize("msg_1", RoleAssistant, "other", Patch{}) }},
		{"upsert after finalize", func() error { return r.Upsert("msg_1", RoleAssistant, "Hello world!", Patch{}) }},
		{"append after finalize", func() error { return r.AppendDelta("msg_1", RoleAssistant, "!") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, ErrFinalized) {
				t.Errorf("error = %v, want ErrFinalized", err)
			}
		})
	}

	msg, _ = r.Get("msg_1")
	if msg.Content != "Hello world" {
		t.Errorf("Content mutated to %q after finalize", msg.Content)
	}
}

func TestReconcilerFinalizeCreates(t *testing.T) {
	// The poll path never streams intermediate content; finalize must
	// create the message outright.
	r := NewReconciler(nil)

	if err := r.Finalize("msg_1", RoleAssistant, "Hello world", Patch{}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	msg, ok := r.Get("msg_1")
	if !ok {
		t.Fatal("Get() returned no message")
	}
	if msg.Content != "Hello world" || msg.Metadata.Streaming {
		t.Errorf("message = %q/streaming=%v, want Hello world/false", msg.Content, msg.Metadata.Streaming)
	}
}

func TestReconcilerFinalizeKeepsAccumulated(t *testing.T) {
	r := NewReconciler(nil)

	if err := r.AppendDelta("msg_1", RoleAssistant, "Partial answer"); err != nil {
		t.Fatalf("AppendDelta() error = %v", err)
	}
	if err := r.Finalize("msg_1", RoleAssistant, "", Patch{}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	msg, _ := r.Get("msg_1")
	if msg.Content != "Partial answer" {
		t.Errorf("Content = %q, want accumulated %q", msg.Content, "Partial answer")
	}
}

func TestReconcilerObserver(t *testing.T) {
	var seen []Message
	r := NewReconciler(func(msg Message) {
		seen = append(seen, msg)
	})

	r.AppendDelta("msg_1", RoleAssistant, "Hel")
	r.AppendDelta("msg_1", RoleAssistant, "lo")
	r.Finalize("msg_1", RoleAssistant, "", Patch{AddTools: []string{"search"}})

	if len(seen) != 3 {
		t.Fatalf("observer saw %d changes, want 3", len(seen))
	}
	if seen[0].Content != "Hel" || seen[1].Content != "Hello" {
		t.Errorf("observed contents = %q, %q, want Hel, Hello", seen[0].Content, seen[1].Content)
	}
	last := seen[2]
	if last.Metadata.Streaming {
		t.Error("final observation still streaming")
	}

	// Observed messages are copies; mutating them must not leak back.
	last.Metadata.Tools[0] = "mutated"
	msg, _ := r.Get("msg_1")
	if msg.Metadata.Tools[0] != "search" {
		t.Errorf("Tools[0] = %q after external mutation, want search", msg.Metadata.Tools[0])
	}
}

func TestReconcilerPatch(t *testing.T) {
	r := NewReconciler(nil)

	streaming := true
	r.Upsert("msg_1", RoleAssistant, "x", Patch{
		Stage:     strPtr("retrieval"),
		Streaming: &streaming,
		AddTools:  []string{"search", "search", "fetch"},
	})
	r.Upsert("msg_1", RoleAssistant, "", Patch{AddTools: []string{"search"}})

	msg, _ := r.Get("msg_1")
	if msg.Metadata.Stage != "retrieval" {
		t.Errorf("Stage = %q, want retrieval", msg.Metadata.Stage)
	}
	if len(msg.Metadata.Tools) != 2 {
		t.Errorf("Tools = %v, want deduplicated [search fetch]", msg.Metadata.Tools)
	}
}

func TestReconcilerSnapshotOrder(t *testing.T) {
	r := NewReconciler(nil)

	r.AppendDelta("msg_b", RoleUser, "first")
	r.AppendDelta("msg_a", RoleAssistant, "second")
	r.AppendDelta("msg_c", RoleAssistant, "third")
	r.AppendDelta("msg_a", RoleAssistant, " again")

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() has %d messages, want 3", len(snap))
	}
	wantOrder := []string{"msg_b", "msg_a", "msg_c"}
	for i, id := range wantOrder {
		if snap[i].ID != id {
			t.Errorf("Snapshot()[%d].ID = %q, want %q", i, snap[i].ID, id)
		}
	}
	if snap[1].Content != "second again" {
		t.Errorf("msg_a content = %q, want %q", snap[1].Content, "second again")
	}
}

func strPtr(s string) *string { return &s }
