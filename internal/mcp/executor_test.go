package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/HyphaGroup/gevulot/internal/schedule"
	"github.com/HyphaGroup/gevulot/internal/testutil"
)

func TestScheduleSession_ReusesPinned(t *testing.T) {
	ts := newTestServer(t)

	sess, err := ts.manager.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sched := &schedule.Schedule{
		ID:              "sched_00000001",
		SessionBehavior: schedule.SessionResume,
		SessionID:       sess.ID,
	}
	got, err := ts.scheduleSession(sched)
	if err != nil {
		t.Fatalf("scheduleSession() error = %v", err)
	}
	if got != sess {
		t.Errorf("scheduleSession() = %s, want pinned session %s", got.ID, sess.ID)
	}
}

func TestScheduleSession_FreshSession(t *testing.T) {
	ts := newTestServer(t)

	t.Run("pinned session gone", func(t *testing.T) {
		sched := &schedule.Schedule{
			ID:              "sched_00000002",
			SessionBehavior: schedule.SessionResume,
			SessionID:       "sess_0badc0de",
		}
		got, err := ts.scheduleSession(sched)
		if err != nil {
			t.Fatalf("scheduleSession() error = %v", err)
		}
		if got.ID == sched.SessionID {
			t.Error("a vanished pin should yield a fresh session")
		}
	})

	t.Run("pinned session paused", func(t *testing.T) {
		sess, err := ts.manager.Create()
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := sess.Pause(); err != nil {
			t.Fatalf("Pause() error = %v", err)
		}

		sched := &schedule.Schedule{
			ID:              "sched_00000003",
			SessionBehavior: schedule.SessionResume,
			SessionID:       sess.ID,
		}
		got, err := ts.scheduleSession(sched)
		if err != nil {
			t.Fatalf("scheduleSession() error = %v", err)
		}
		if got.ID == sess.ID {
			t.Error("a paused pin should yield a fresh session")
		}
	})

	t.Run("new behavior ignores the pin", func(t *testing.T) {
		sess, err := ts.manager.Create()
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		sched := &schedule.Schedule{
			ID:              "sched_00000004",
			SessionBehavior: schedule.SessionNew,
			SessionID:       sess.ID,
		}
		got, err := ts.scheduleSession(sched)
		if err != nil {
			t.Fatalf("scheduleSession() error = %v", err)
		}
		if got.ID == sess.ID {
			t.Error("new behavior should never reuse the pinned session")
		}
	})
}

func TestExecuteSchedule_Success(t *testing.T) {
	ts := newTestServer(t, testutil.WithResultText("nightly digest sent"))

	sched := &schedule.Schedule{
		ID:              "sched_00000005",
		Name:            "digest",
		Prompt:          "send the digest",
		SessionBehavior: schedule.SessionResume,
	}
	result, err := ts.executeSchedule(context.Background(), sched)
	if err != nil {
		t.Fatalf("executeSchedule() error = %v", err)
	}
	if result.Output != "nightly digest sent" {
		t.Errorf("Output = %q, want the digest text", result.Output)
	}
	if result.SessionID == "" {
		t.Error("SessionID should name the session the run used")
	}
	if result.JobID == "" {
		t.Error("JobID should name the submitted job")
	}

	submits := ts.fake.Submits()
	if len(submits) != 1 || submits[0].Message != "send the digest" {
		t.Errorf("submits = %+v, want the schedule prompt", submits)
	}
}

func TestExecuteSchedule_SubmitFailure(t *testing.T) {
	ts := newTestServer(t, testutil.WithSubmitFailure(500))

	sched := &schedule.Schedule{
		ID:              "sched_00000006",
		Name:            "broken",
		Prompt:          "try anyway",
		SessionBehavior: schedule.SessionNew,
	}
	result, err := ts.executeSchedule(context.Background(), sched)
	if err == nil {
		t.Fatal("executeSchedule() should fail when the submit is refused")
	}
	if !strings.Contains(err.Error(), "submit failed") {
		t.Errorf("error = %v, want submit failure", err)
	}
	if result == nil {
		t.Fatal("a failed run still reports the session it created")
	}
	if result.SessionID == "" {
		t.Error("SessionID should survive the failure for the execution record")
	}
	if result.JobID != "" {
		t.Errorf("JobID = %q, want empty when the submit never landed", result.JobID)
	}
}
