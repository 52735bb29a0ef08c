package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/testutil"
)

// submitJob plants a job on the fake orchestrator and returns its ID
func submitJob(t *testing.T, ts *testServer) string {
	t.Helper()
	ack, err := ts.orch.Submit(context.Background(), &bridge.SubmitRequest{Message: "direct submit"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return ack.JobID
}

func TestHandleJob_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		params  JobParams
		wantErr string
	}{
		{"missing action", JobParams{JobID: "job-1"}, "action is required for job tool"},
		{"missing job_id", JobParams{Action: "status"}, "job_id is required"},
		{"bad job_id", JobParams{Action: "status", JobID: "job/../etc"}, "invalid job ID format"},
		{"unknown action", JobParams{Action: "restart", JobID: "job-1"}, `unknown action "restart" for job tool`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ts.handleJob(context.Background(), nil, tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("handleJob() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandleJob_Status(t *testing.T) {
	ts := newTestServer(t, testutil.WithStatusSequence("processing", "completed"))
	jobID := submitJob(t, ts)

	result, data, err := ts.handleJob(context.Background(), nil, JobParams{Action: "status", JobID: jobID})
	if err != nil {
		t.Fatalf("handleJob(status) error = %v", err)
	}

	job, ok := data.(*bridge.Job)
	if !ok {
		t.Fatalf("data = %T, want *bridge.Job", data)
	}
	if job.ID != jobID {
		t.Errorf("job.ID = %q, want %q", job.ID, jobID)
	}
	if job.Status != bridge.JobProcessing {
		t.Errorf("job.Status = %q, want %q", job.Status, bridge.JobProcessing)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Status:    processing") {
		t.Errorf("output = %q, want the processing status", text)
	}
	if !strings.Contains(text, "Created:") {
		t.Errorf("output = %q, want a created timestamp", text)
	}
}

func TestHandleJob_StatusNotFound(t *testing.T) {
	ts := newTestServer(t)

	_, _, err := ts.handleJob(context.Background(), nil, JobParams{Action: "status", JobID: "job-deadbeef"})
	if err == nil {
		t.Fatal("handleJob(status) should fail for an unknown job")
	}
	if !strings.Contains(err.Error(), "failed to get job status") {
		t.Errorf("error = %v, want status failure context", err)
	}
}

func TestHandleJob_Result(t *testing.T) {
	ts := newTestServer(t, testutil.WithResultText("the finished payload"))
	jobID := submitJob(t, ts)

	result, data, err := ts.handleJob(context.Background(), nil, JobParams{Action: "result", JobID: jobID})
	if err != nil {
		t.Fatalf("handleJob(result) error = %v", err)
	}

	jr, ok := data.(*bridge.JobResult)
	if !ok {
		t.Fatalf("data = %T, want *bridge.JobResult", data)
	}
	if jr.Text() != "the finished payload" {
		t.Errorf("Text() = %q, want the payload", jr.Text())
	}

	text := resultText(t, result)
	if !strings.Contains(text, "the finished payload") {
		t.Errorf("output = %q, want the payload", text)
	}
	if !strings.Contains(text, "Status:  completed") {
		t.Errorf("output = %q, want the completed status", text)
	}
}

func TestHandleJob_ResultFromHistoryAfterExpiry(t *testing.T) {
	ts := newTestServer(t)

	// The orchestrator has never heard of this job, but the reconciler
	// left its result in the history store
	now := time.Now()
	if err := ts.history.CreateJob(&conversation.JobRecord{
		ID: "job-expired1", SessionID: "sess_feed1234", Mode: "ask",
		Status: "pending", CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	status, result := "completed", "the archived answer"
	if err := ts.history.UpdateJob("job-expired1", conversation.JobUpdate{Status: &status, Result: &result, Ended: true}); err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}

	res, data, err := ts.handleJob(context.Background(), nil, JobParams{Action: "result", JobID: "job-expired1"})
	if err != nil {
		t.Fatalf("handleJob(result) error = %v", err)
	}

	rec, ok := data.(*conversation.JobRecord)
	if !ok {
		t.Fatalf("data = %T, want *conversation.JobRecord", data)
	}
	if rec.Result != "the archived answer" {
		t.Errorf("rec.Result = %q, want the archived answer", rec.Result)
	}

	text := resultText(t, res)
	if !strings.Contains(text, "the archived answer") {
		t.Errorf("output = %q, want the archived result", text)
	}
	if !strings.Contains(text, "served from local history") {
		t.Errorf("output = %q, want the history provenance note", text)
	}
}

func TestHandleJob_ResultUnknownEverywhere(t *testing.T) {
	ts := newTestServer(t)

	_, _, err := ts.handleJob(context.Background(), nil, JobParams{Action: "result", JobID: "job-missing"})
	if err == nil {
		t.Fatal("handleJob(result) should fail when neither the orchestrator nor history knows the job")
	}
	if !strings.Contains(err.Error(), "failed to get job result") {
		t.Errorf("error = %v, want result failure context", err)
	}
}

func TestHandleJob_Cancel(t *testing.T) {
	ts := newTestServer(t)
	jobID := submitJob(t, ts)

	result, _, err := ts.handleJob(context.Background(), nil, JobParams{Action: "cancel", JobID: jobID})
	if err != nil {
		t.Fatalf("handleJob(cancel) error = %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "✅ Job "+jobID+" cancelled") {
		t.Errorf("output = %q, want cancel confirmation", text)
	}

	cancelled := ts.fake.Cancelled()
	if len(cancelled) != 1 || cancelled[0] != jobID {
		t.Errorf("Cancelled() = %v, want [%s]", cancelled, jobID)
	}
}
