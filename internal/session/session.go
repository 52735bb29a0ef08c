// Package session ties the transport, poll and stream engines to the
// conversation transcript.
//
// session.go - Session lifecycle and request driving
//
// This file contains:
// - Session: one conversation bound to an orchestrator, with a strictly
//   monotonic lifecycle: Active -> Paused -> Destroyed
// - Request: one in-flight ask, driven to completion by a background
//   collector reading either the poll watcher or the stream consumer
//
// Lifecycle rules: a paused session keeps its transcript readable but
// accepts no new requests and never becomes active again. Destroy is
// absorbing and idempotent; once destroyed the session mutates no
// transcript, appends no event, and issues no network call.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/conversation"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/metrics"
	"github.com/HyphaGroup/gevulot/internal/poll"
	"github.com/HyphaGroup/gevulot/internal/stream"
)

// State is the unified session lifecycle state
type State string

const (
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateDestroyed State = "destroyed"
)

// Mode selects how a request is driven
type Mode string

const (
	ModePoll   Mode = "poll"
	ModeStream Mode = "stream"
)

var (
	// ErrSessionPaused is returned for new requests on a paused session
	ErrSessionPaused = errors.New("session is paused")

	// ErrSessionDestroyed is returned for any operation on a destroyed session
	ErrSessionDestroyed = errors.New("session is destroyed")

	// ErrRequestActive is returned when a request is already in flight
	ErrRequestActive = errors.New("another request is already in flight")

	// ErrNoActiveRequest is returned by CancelRequest with nothing to cancel
	ErrNoActiveRequest = errors.New("no request in flight")
)

// Orchestrator is the transport surface a session needs
type Orchestrator interface {
	Submit(ctx context.Context, req *bridge.SubmitRequest) (*bridge.SubmitAck, error)
	Status(ctx context.Context, jobID string) (*bridge.Job, error)
	Result(ctx context.Context, jobID string) (*bridge.JobResult, error)
	Cancel(ctx context.Context, jobID string) error
	OpenStream(ctx context.Context, req *bridge.SubmitRequest) (io.ReadCloser, error)
}

// Config carries the collaborators a session needs
type Config struct {
	Orchestrator Orchestrator
	Store        *conversation.Store // nil disables persistence
	Tuning       poll.Tuning
	StallTimeout time.Duration
	Clock        poll.Clock // nil means wall clock
	BufferSize   int
}

// Session is one conversation with the orchestrator
type Session struct {
	ID string

	orch   Orchestrator
	store  *conversation.Store
	rec    *conversation.Reconciler
	buffer *EventBuffer
	tuning poll.Tuning
	stall  time.Duration
	clock  poll.Clock

	mu           sync.RWMutex
	state        State
	createdAt    time.Time
	lastActivity time.Time
	current      *Request

	wg sync.WaitGroup
}

// Request is one in-flight ask
type Request struct {
	MessageID string // assistant message being assembled
	JobID     string // poll mode only
	Mode      Mode

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	text string
	err  error
}

// Done closes when the request has settled
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the final text and error. Valid once Done is closed;
// the text is best effort when the error is non-nil.
func (r *Request) Outcome() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text, r.err
}

// Wait blocks until the request settles or ctx expires
func (r *Request) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.Outcome()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Request) setOutcome(text string, err error) {
	r.mu.Lock()
	r.text = text
	r.err = err
	r.mu.Unlock()
}

// New creates an active session
func New(id string, cfg Config) *Session {
	now := time.Now()
	s := &Session{
		ID:           id,
		orch:         cfg.Orchestrator,
		store:        cfg.Store,
		buffer:       NewEventBuffer(id, cfg.BufferSize),
		tuning:       cfg.Tuning,
		stall:        cfg.StallTimeout,
		clock:        cfg.Clock,
		state:        StateActive,
		createdAt:    now,
		lastActivity: now,
	}
	s.rec = conversation.NewReconciler(s.onMessage)
	return s
}

// onMessage persists settled messages. Streaming intermediates stay in
// memory; they would churn the database once per fragment.
func (s *Session) onMessage(msg conversation.Message) {
	if s.store == nil || msg.Metadata.Streaming {
		return
	}
	if err := s.store.SaveMessage(s.ID, &msg); err != nil {
		logger.Error("session %s: failed to persist message %s: %v", s.ID, msg.ID, err)
	}
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Busy reports whether a request is in flight
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// LastActivity returns the time of the last request activity
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Transcript returns the live transcript in order
func (s *Session) Transcript() []conversation.Message {
	return s.rec.Snapshot()
}

// Events returns buffered events after the given index
func (s *Session) Events(sinceIndex int) ([]*BufferedEvent, error) {
	return s.buffer.After(sinceIndex)
}

// LastEventIndex returns the newest buffered event index, or -1
func (s *Session) LastEventIndex() int {
	return s.buffer.LastIndex()
}

// Info is a lightweight session snapshot
type Info struct {
	ID             string    `json:"session_id"`
	State          State     `json:"state"`
	Busy           bool      `json:"busy"`
	Messages       int       `json:"messages"`
	LastEventIndex int       `json:"last_event_index"`
	EventsDropped  int64     `json:"events_dropped,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// Snapshot returns the session's current Info
func (s *Session) Snapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.buffer.Stats()
	return Info{
		ID:             s.ID,
		State:          s.state,
		Busy:           s.current != nil,
		Messages:       s.rec.Len(),
		LastEventIndex: st.LastIndex,
		EventsDropped:  st.DroppedEvents,
		CreatedAt:      s.createdAt,
		LastActivity:   s.lastActivity,
	}
}

// Ask submits a message in the given mode and returns the in-flight
// request. ctx bounds only the submission; the request itself is driven
// by a detached background collector and outlives the caller.
func (s *Session) Ask(ctx context.Context, message string, mode Mode) (*Request, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message must not be empty")
	}
	if mode != ModePoll && mode != ModeStream {
		return nil, fmt.Errorf("unknown request mode %q", mode)
	}

	req := &Request{Mode: mode, done: make(chan struct{})}

	s.mu.Lock()
	switch s.state {
	case StatePaused:
		s.mu.Unlock()
		return nil, ErrSessionPaused
	case StateDestroyed:
		s.mu.Unlock()
		return nil, ErrSessionDestroyed
	}
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrRequestActive
	}
	s.current = req
	s.lastActivity = time.Now()
	s.mu.Unlock()

	reqCtx, cancel := context.WithCancel(context.Background())
	req.cancel = cancel

	var err error
	if mode == ModePoll {
		err = s.startPoll(ctx, reqCtx, req, message)
	} else {
		err = s.startStream(reqCtx, req, message)
	}
	if err != nil {
		cancel()
		s.clearCurrent(req)
		return nil, err
	}
	return req, nil
}

// AskAndWait is Ask followed by Wait
func (s *Session) AskAndWait(ctx context.Context, message string, mode Mode) (string, error) {
	req, err := s.Ask(ctx, message, mode)
	if err != nil {
		return "", err
	}
	return req.Wait(ctx)
}

// CancelRequest aborts the in-flight request. In poll mode the job is
// cancelled on the orchestrator first so it stops burning server time;
// the local watch stops regardless of what the server answered.
func (s *Session) CancelRequest(ctx context.Context) error {
	s.mu.RLock()
	state := s.state
	req := s.current
	s.mu.RUnlock()

	if state == StateDestroyed {
		return ErrSessionDestroyed
	}
	if req == nil {
		return ErrNoActiveRequest
	}

	var cancelErr error
	if req.JobID != "" {
		if err := s.orch.Cancel(ctx, req.JobID); err != nil {
			// The job may already be terminal server-side; the local
			// stop below still silences the watch.
			logger.Error("session %s: server cancel of job %s failed: %v", s.ID, req.JobID, err)
			cancelErr = err
		}
	}
	req.cancel()
	return cancelErr
}

// Pause stops the engines and freezes the session. The transcript stays
// readable. Pausing a paused session is a no-op; there is no way back
// to Active.
func (s *Session) Pause() error {
	s.mu.Lock()
	switch s.state {
	case StateDestroyed:
		s.mu.Unlock()
		return ErrSessionDestroyed
	case StatePaused:
		s.mu.Unlock()
		return nil
	}
	s.state = StatePaused
	req := s.current
	s.mu.Unlock()

	if req != nil {
		req.cancel()
	}
	s.persistState(false)
	logger.Info("session %s: paused", s.ID)
	return nil
}

// Destroy tears the session down and waits for its collectors to stop.
// Safe to call repeatedly.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}
	s.state = StateDestroyed
	req := s.current
	started := s.createdAt
	s.mu.Unlock()

	if req != nil {
		req.cancel()
	}
	s.wg.Wait()

	metrics.RecordSessionEnd(string(StateDestroyed), time.Since(started).Seconds())
	s.persistState(true)
	logger.Info("session %s: destroyed", s.ID)
}

func (s *Session) alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != StateDestroyed
}

func (s *Session) clearCurrent(req *Request) {
	s.mu.Lock()
	if s.current == req {
		s.current = nil
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) persistState(ended bool) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateSessionState(s.ID, string(s.State()), ended); err != nil && !errors.Is(err, conversation.ErrSessionNotFound) {
		logger.Error("session %s: failed to persist state: %v", s.ID, err)
	}
}

// beginTurn records the user message and creates the assistant
// placeholder the engines will fill in
func (s *Session) beginTurn(message string) (assistantID string) {
	userID := newMessageID()
	assistantID = newMessageID()

	if err := s.rec.Finalize(userID, conversation.RoleUser, message, conversation.Patch{}); err != nil {
		logger.Error("session %s: failed to record user message: %v", s.ID, err)
	}
	if err := s.rec.Upsert(assistantID, conversation.RoleAssistant, "", conversation.Patch{}); err != nil {
		logger.Error("session %s: failed to create assistant message: %v", s.ID, err)
	}
	return assistantID
}

func (s *Session) startPoll(ctx, reqCtx context.Context, req *Request, message string) error {
	ack, err := s.orch.Submit(ctx, &bridge.SubmitRequest{Message: message, SessionID: s.ID})
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	metrics.RecordSubmission(string(ModePoll))

	req.JobID = ack.JobID
	req.MessageID = s.beginTurn(message)

	if s.store != nil {
		now := time.Now()
		rec := &conversation.JobRecord{
			ID: ack.JobID, SessionID: s.ID, Mode: string(ModePoll),
			Status: string(ack.Status), CreatedAt: now, UpdatedAt: now,
		}
		if err := s.store.CreateJob(rec); err != nil {
			logger.Error("session %s: failed to record job %s: %v", s.ID, ack.JobID, err)
		}
	}

	watcher := poll.Watch(reqCtx, s.orch, ack.JobID, poll.Options{Tuning: s.tuning, Clock: s.clock})
	s.wg.Add(1)
	go s.collectPoll(req, watcher)

	logger.Info("session %s: submitted job %s", s.ID, ack.JobID)
	return nil
}

func (s *Session) startStream(reqCtx context.Context, req *Request, message string) error {
	body, err := s.orch.OpenStream(reqCtx, &bridge.SubmitRequest{Message: message, SessionID: s.ID})
	if err != nil {
		return fmt.Errorf("stream open failed: %w", err)
	}
	metrics.RecordSubmission(string(ModeStream))

	req.MessageID = s.beginTurn(message)

	consumer := stream.Consume(reqCtx, body, stream.Options{StallTimeout: s.stall})
	s.wg.Add(1)
	go s.collectStream(req, consumer)

	logger.Info("session %s: opened stream", s.ID)
	return nil
}

// collectPoll buffers status snapshots until the watch ends, then
// settles the turn from the watch outcome
func (s *Session) collectPoll(req *Request, watcher *poll.Watcher) {
	defer s.wg.Done()

	for job := range watcher.Updates() {
		if !s.alive() {
			continue
		}
		s.buffer.Append(&bridge.StreamEvent{
			Type:      bridge.StreamEventJobStatus,
			Job:       job,
			Timestamp: time.Now().UnixMilli(),
		})
		s.recordJobProgress(req.JobID, job)
	}
	<-watcher.Done()

	result, err := watcher.Result()
	s.finishPoll(req, result, err)
}

func (s *Session) recordJobProgress(jobID string, job *bridge.Job) {
	if s.store == nil {
		return
	}
	status := string(job.Status)
	progress := job.Progress
	if err := s.store.UpdateJob(jobID, conversation.JobUpdate{Status: &status, Progress: &progress}); err != nil {
		logger.Error("session %s: failed to update job %s: %v", s.ID, jobID, err)
	}
}

func (s *Session) finishPoll(req *Request, result *bridge.JobResult, err error) {
	defer close(req.done)
	defer s.clearCurrent(req)

	outcome := outcomeFor(err)
	metrics.RecordOutcome(string(ModePoll), outcome)

	if !s.alive() {
		req.setOutcome("", err)
		return
	}

	var text string
	if err == nil && result != nil {
		text = result.Text()
		s.finalizeTurn(req.MessageID, text, "")
		s.buffer.Append(&bridge.StreamEvent{
			Type: bridge.StreamEventCompletion, FinalText: text, Timestamp: time.Now().UnixMilli(),
		})
	} else {
		reason := errText(err)
		s.finalizeTurn(req.MessageID, "", reason)
		s.buffer.Append(&bridge.StreamEvent{
			Type: bridge.StreamEventError, Text: reason, Timestamp: time.Now().UnixMilli(),
		})
	}
	s.finishJobRow(req.JobID, outcome, text)
	req.setOutcome(text, err)
	logger.Info("session %s: job %s finished (%s)", s.ID, req.JobID, outcome)
}

// collectStream folds stream events into the transcript until the
// consumer ends, then settles the turn from its final state
func (s *Session) collectStream(req *Request, consumer *stream.Consumer) {
	defer s.wg.Done()

	for ev := range consumer.Events() {
		if !s.alive() {
			continue
		}
		s.buffer.Append(ev)

		switch ev.Type {
		case bridge.StreamEventTokenDelta:
			if err := s.rec.AppendDelta(req.MessageID, conversation.RoleAssistant, ev.Text); err != nil {
				logger.Error("session %s: failed to append fragment: %v", s.ID, err)
			}
		case bridge.StreamEventNodeProgress:
			if err := s.rec.Upsert(req.MessageID, conversation.RoleAssistant, "", conversation.StagePatch(ev.Stage)); err != nil {
				logger.Error("session %s: failed to record stage: %v", s.ID, err)
			}
		}
	}
	<-consumer.Done()

	final, err := consumer.Final()
	s.finishStream(req, final, err)
}

func (s *Session) finishStream(req *Request, final string, err error) {
	defer close(req.done)
	defer s.clearCurrent(req)

	outcome := outcomeFor(err)
	metrics.RecordOutcome(string(ModeStream), outcome)

	if !s.alive() {
		req.setOutcome(final, err)
		return
	}

	if err == nil {
		s.finalizeTurn(req.MessageID, final, "")
	} else {
		s.finalizeTurn(req.MessageID, final, errText(err))
	}
	req.setOutcome(final, err)
	logger.Info("session %s: stream finished (%s)", s.ID, outcome)
}

// finalizeTurn settles the assistant message; content may be empty to
// keep whatever streamed in
func (s *Session) finalizeTurn(messageID, content, errMsg string) {
	patch := conversation.Patch{}
	if errMsg != "" {
		patch = conversation.ErrorPatch(errMsg)
	}
	if err := s.rec.Finalize(messageID, conversation.RoleAssistant, content, patch); err != nil && !errors.Is(err, conversation.ErrFinalized) {
		logger.Error("session %s: failed to finalize message %s: %v", s.ID, messageID, err)
	}
}

func (s *Session) finishJobRow(jobID, outcome, result string) {
	if s.store == nil || jobID == "" {
		return
	}
	update := conversation.JobUpdate{Status: &outcome, Ended: true}
	if result != "" {
		update.Result = &result
	}
	if err := s.store.UpdateJob(jobID, update); err != nil {
		logger.Error("session %s: failed to close job %s: %v", s.ID, jobID, err)
	}
}

// outcomeFor maps a watch error to a metrics outcome label
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "completed"
	case bridge.IsTerminalJobError(err):
		var jc *bridge.JobCancelledError
		if errors.As(err, &jc) {
			return "cancelled"
		}
		return "failed"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		var te *bridge.TimeoutError
		if errors.As(err, &te) {
			return "timeout"
		}
		return "error"
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}
