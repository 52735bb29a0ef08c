package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/HyphaGroup/gevulot/internal/bridge"
)

func bufEvent(text string) *bridge.StreamEvent {
	return &bridge.StreamEvent{
		Type:      bridge.StreamEventTokenDelta,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestEventBufferAppendAndAfter(t *testing.T) {
	b := NewEventBuffer("sess_buf", 10)

	for i := 0; i < 3; i++ {
		idx := b.Append(bufEvent(fmt.Sprintf("e%d", i)))
		if idx != i {
			t.Errorf("Append() index = %d, want %d", idx, i)
		}
	}

	all, err := b.After(-1)
	if err != nil {
		t.Fatalf("After(-1) error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("After(-1) returned %d events, want 3", len(all))
	}
	for i, be := range all {
		if be.Index != i {
			t.Errorf("event %d has index %d", i, be.Index)
		}
	}

	tail, err := b.After(0)
	if err != nil {
		t.Fatalf("After(0) error = %v", err)
	}
	if len(tail) != 2 || tail[0].Event.Text != "e1" {
		t.Fatalf("After(0) returned %d events starting %q, want 2 starting e1", len(tail), tail[0].Event.Text)
	}

	empty, err := b.After(2)
	if err != nil {
		t.Fatalf("After(2) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("After(2) returned %d events, want 0", len(empty))
	}
}

func TestEventBufferEmpty(t *testing.T) {
	b := NewEventBuffer("sess_buf", 0)

	if got := b.LastIndex(); got != -1 {
		t.Errorf("LastIndex() = %d, want -1", got)
	}
	if got := b.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}

	all, err := b.After(-1)
	if err != nil {
		t.Fatalf("After(-1) error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("After(-1) returned %d events, want 0", len(all))
	}
}

func TestEventBufferOverflow(t *testing.T) {
	b := NewEventBuffer("sess_buf", 3)

	for i := 0; i < 5; i++ {
		b.Append(bufEvent(fmt.Sprintf("e%d", i)))
	}

	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
	if dropped := b.Stats().DroppedEvents; dropped != 2 {
		t.Errorf("Stats().DroppedEvents = %d, want 2", dropped)
	}
	if b.LastIndex() != 4 {
		t.Errorf("LastIndex() = %d, want 4", b.LastIndex())
	}

	// The two oldest events are gone; resuming from them must fail
	if _, err := b.After(0); err == nil {
		t.Error("After(0) on a purged index returned no error")
	}

	// Indexes stay logical across the wrap
	events, err := b.After(2)
	if err != nil {
		t.Fatalf("After(2) error = %v", err)
	}
	if len(events) != 2 || events[0].Index != 3 || events[1].Index != 4 {
		t.Errorf("After(2) returned %d events starting at %d, want 2 starting at 3", len(events), events[0].Index)
	}

	all, err := b.After(-1)
	if err != nil {
		t.Fatalf("After(-1) error = %v", err)
	}
	if len(all) != 3 || all[0].Index != 2 {
		t.Errorf("After(-1) returned %d events starting at %d, want 3 starting at 2", len(all), all[0].Index)
	}
	if all[0].Event.Text != "e2" {
		t.Errorf("oldest surviving event = %q, want e2", all[0].Event.Text)
	}
}

func TestEventBufferStats(t *testing.T) {
	b := NewEventBuffer("sess_buf", 2)

	for i := 0; i < 3; i++ {
		b.Append(bufEvent(fmt.Sprintf("e%d", i)))
	}

	st := b.Stats()
	if st.SessionID != "sess_buf" {
		t.Errorf("Stats().SessionID = %q, want sess_buf", st.SessionID)
	}
	if st.CurrentSize != 2 || st.MaxSize != 2 {
		t.Errorf("Stats() size = %d/%d, want 2/2", st.CurrentSize, st.MaxSize)
	}
	if st.StartIndex != 1 || st.LastIndex != 2 {
		t.Errorf("Stats() window = [%d, %d], want [1, 2]", st.StartIndex, st.LastIndex)
	}
	if st.DroppedEvents != 1 {
		t.Errorf("Stats().DroppedEvents = %d, want 1", st.DroppedEvents)
	}
}
