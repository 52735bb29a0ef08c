// Package bridge provides the transport layer for the agent orchestrator.
//
// types.go - Shared types for orchestrator communication
//
// This file contains:
// - Job, SubmitAck and JobResult records mirroring the orchestrator API
// - StreamEventType and StreamEvent for normalized event streaming
//
// StreamEvent provides a common format for everything the runtime can
// observe about a request: decoded stream frames and locally synthesized
// job status snapshots share one shape so session event logs stay uniform.

package bridge

import (
	"encoding/json"
	"time"
)

// JobStatus represents the server-reported lifecycle state of a job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status permits no further transition
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Valid reports whether the status is one the orchestrator may emit
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Job is one server-tracked unit of asynchronous work.
// Progress is server-reported and not guaranteed monotonic.
type Job struct {
	ID          string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SubmitRequest is the body for both the submit and stream endpoints
type SubmitRequest struct {
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// SubmitAck is the orchestrator's acknowledgement of a submitted job
type SubmitAck struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

// JobResult carries the opaque payload of a completed job.
// Valid to fetch only once the corresponding Job is completed.
type JobResult struct {
	JobID       string          `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"result"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Text extracts the response text from the opaque payload.
// A JSON string payload is returned as-is; an object payload yields its
// final_response or response field; anything else comes back as raw JSON.
func (r *JobResult) Text() string {
	if len(r.Payload) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(r.Payload, &s); err == nil {
		return s
	}

	var obj struct {
		FinalResponse string `json:"final_response"`
		Response      string `json:"response"`
	}
	if err := json.Unmarshal(r.Payload, &obj); err == nil {
		if obj.FinalResponse != "" {
			return obj.FinalResponse
		}
		if obj.Response != "" {
			return obj.Response
		}
	}

	return string(r.Payload)
}

// StreamEventType represents the type of a normalized stream event
type StreamEventType string

const (
	StreamEventNodeProgress StreamEventType = "node_progress"
	StreamEventTokenDelta   StreamEventType = "token_delta"
	StreamEventRawChunk     StreamEventType = "raw_chunk"
	StreamEventCompletion   StreamEventType = "completion"
	StreamEventError        StreamEventType = "error"

	// StreamEventJobStatus is synthesized locally for poll-mode progress
	// snapshots; the stream endpoint never emits it.
	StreamEventJobStatus StreamEventType = "job_status"
)

// StreamEvent represents a single normalized event from a request in flight
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// Node progress fields
	Stage string `json:"stage,omitempty"`

	// Content fields
	Text      string `json:"text,omitempty"`      // token_delta fragment or error message
	FinalText string `json:"final_text,omitempty"` // completion only

	// Poll-mode snapshot
	Job *Job `json:"job,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty"` // epoch milliseconds

	// Raw data for frame-specific payloads
	Raw map[string]any `json:"-"`
}
