// Package conversation maintains the transcript assembled from job
// results and stream events.
//
// reconciler.go - Streaming message reconciliation
//
// This file contains:
// - Reconciler: an in-memory view of the transcript keyed by message
//   ID, absorbing out-of-order upserts from the poll and stream paths
//
// The reconciler enforces two rules. While a message is streaming its
// content may only grow: an upsert must carry the current content as a
// prefix. Finalize succeeds at most once per ID, flips Streaming off,
// and freezes the content; any later mutation fails. The reconciler
// never touches transport or timers.

package conversation

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrFinalized is returned for any mutation of a finalized message,
	// including a second Finalize
	ErrFinalized = errors.New("message already finalized")

	// ErrContentConflict is returned when an upsert would rewrite
	// already-streamed content
	ErrContentConflict = errors.New("upsert conflicts with streamed content")
)

// Observer receives a copy of every message state the reconciler applies
type Observer func(Message)

// Reconciler keeps the live transcript for one session
type Reconciler struct {
	mu        sync.Mutex
	messages  map[string]*Message
	order     []string
	finalized map[string]bool
	observer  Observer
	now       func() time.Time
}

// NewReconciler creates a reconciler. observer may be nil.
func NewReconciler(observer Observer) *Reconciler {
	return &Reconciler{
		messages:  make(map[string]*Message),
		finalized: make(map[string]bool),
		observer:  observer,
		now:       time.Now,
	}
}

// Upsert creates or updates a message. An empty content leaves the
// existing content untouched; a non-empty content must extend it.
func (r *Reconciler) Upsert(id string, role Role, content string, patch Patch) error {
	r.mu.Lock()

	msg, exists := r.messages[id]
	if exists && r.finalized[id] {
		r.mu.Unlock()
		return ErrFinalized
	}

	if !exists {
		msg = r.create(id, role, content)
	} else if content != "" {
		if len(content) < len(msg.Content) || content[:len(msg.Content)] != msg.Content {
			r.mu.Unlock()
			return ErrContentConflict
		}
		msg.Content = content
	}

	applyPatch(msg, patch)
	out := snapshotMessage(msg)
	r.mu.Unlock()

	r.notify(out)
	return nil
}

// AppendDelta appends one content fragment, creating the message on
// first use
func (r *Reconciler) AppendDelta(id string, role Role, fragment string) error {
	r.mu.Lock()

	if r.finalized[id] {
		r.mu.Unlock()
		return ErrFinalized
	}

	msg, exists := r.messages[id]
	if !exists {
		msg = r.create(id, role, "")
	}
	msg.Content += fragment
	out := snapshotMessage(msg)
	r.mu.Unlock()

	r.notify(out)
	return nil
}

// Finalize settles a message: Streaming flips off and the content
// freezes. A non-empty content replaces whatever streamed in; an empty
// one keeps the accumulated text. Creates the message when the ID is
// new, as the poll path never streams intermediate content.
func (r *Reconciler) Finalize(id string, role Role, content string, patch Patch) error {
	r.mu.Lock()

	if r.finalized[id] {
		r.mu.Unlock()
		return ErrFinalized
	}

	msg, exists := r.messages[id]
	if !exists {
		msg = r.create(id, role, content)
	} else if content != "" {
		msg.Content = content
	}

	applyPatch(msg, patch)
	msg.Metadata.Streaming = false
	r.finalized[id] = true
	out := snapshotMessage(msg)
	r.mu.Unlock()

	r.notify(out)
	return nil
}

// Get returns a copy of one message
func (r *Reconciler) Get(id string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return Message{}, false
	}
	return snapshotMessage(msg), true
}

// Finalized reports whether the message has been settled
func (r *Reconciler) Finalized(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized[id]
}

// Snapshot returns copies of all messages in insertion order
func (r *Reconciler) Snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, snapshotMessage(r.messages[id]))
	}
	return out
}

// Len returns the number of messages
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// create inserts a new streaming message; callers hold the lock
func (r *Reconciler) create(id string, role Role, content string) *Message {
	msg := &Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Metadata:  Metadata{Streaming: true},
		Timestamp: r.now(),
	}
	r.messages[id] = msg
	r.order = append(r.order, id)
	return msg
}

func (r *Reconciler) notify(msg Message) {
	if r.observer != nil {
		r.observer(msg)
	}
}

func applyPatch(msg *Message, patch Patch) {
	if patch.Stage != nil {
		msg.Metadata.Stage = *patch.Stage
	}
	if patch.Streaming != nil {
		msg.Metadata.Streaming = *patch.Streaming
	}
	if patch.Error != nil {
		msg.Metadata.Error = *patch.Error
	}
	for _, tool := range patch.AddTools {
		if !containsString(msg.Metadata.Tools, tool) {
			msg.Metadata.Tools = append(msg.Metadata.Tools, tool)
		}
	}
}

func snapshotMessage(msg *Message) Message {
	out := *msg
	if msg.Metadata.Tools != nil {
		out.Metadata.Tools = append([]string(nil), msg.Metadata.Tools...)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
