// Package conversation maintains the transcript assembled from job
// results and stream events.
//
// types.go - Transcript records
//
// This file contains:
// - Message and Metadata: one transcript entry and its fluid parts
// - Patch: partial metadata updates applied during reconciliation
// - Session and JobRecord: persisted history rows

package conversation

import "time"

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Metadata carries the parts of a message that change while it streams
type Metadata struct {
	Stage     string   `json:"stage,omitempty"`
	Streaming bool     `json:"streaming"`
	Tools     []string `json:"tools,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Message is one transcript entry. While Metadata.Streaming is true the
// content may only grow; after finalization it is frozen.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Timestamp time.Time `json:"timestamp"`
}

// Patch is a partial metadata update. Nil fields are left untouched;
// AddTools appends tags not already present.
type Patch struct {
	Stage     *string
	Streaming *bool
	Error     *string
	AddTools  []string
}

// Session is one persisted conversation
type Session struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// JobRecord is one persisted orchestrator job tied to a session
type JobRecord struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Mode      string     `json:"mode"`
	Status    string     `json:"status"`
	Progress  int        `json:"progress"`
	Result    string     `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StagePatch returns a Patch that only sets the stage label
func StagePatch(stage string) Patch {
	return Patch{Stage: &stage}
}

// ErrorPatch returns a Patch that records a failure message
func ErrorPatch(msg string) Patch {
	return Patch{Error: &msg}
}
