// Package testutil provides an in-process orchestrator backend for tests
// that exercise the full HTTP path instead of an interface fake.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// SubmitRecord captures one request the fake orchestrator accepted.
type SubmitRecord struct {
	Message   string
	SessionID string
	Stream    bool
}

type fakeJob struct {
	id        string
	cancelled bool
	step      int
}

// FakeOrchestrator serves the orchestrator wire API from an httptest
// server. Jobs walk a scripted status sequence, results carry a scripted
// payload, and the stream endpoint replays scripted frames.
type FakeOrchestrator struct {
	Server *httptest.Server

	mu      sync.Mutex
	jobs    map[string]*fakeJob
	submits []SubmitRecord
	cancels []string

	statusSequence []string
	resultText     string
	streamFrames   []string
	submitCode     int
	frameDelay     time.Duration
}

// OrchestratorOption adjusts the scripted behavior.
type OrchestratorOption func(*FakeOrchestrator)

// WithResultText sets the final_response payload served by the result
// endpoint and by the default stream completion frame.
func WithResultText(text string) OrchestratorOption {
	return func(f *FakeOrchestrator) {
		f.resultText = text
	}
}

// WithStatusSequence scripts the statuses returned by successive status
// calls for each job. The last entry repeats once reached.
func WithStatusSequence(statuses ...string) OrchestratorOption {
	return func(f *FakeOrchestrator) {
		f.statusSequence = statuses
	}
}

// WithStreamFrames replaces the default stream script. Each frame is
// written as its own data: line.
func WithStreamFrames(frames ...string) OrchestratorOption {
	return func(f *FakeOrchestrator) {
		f.streamFrames = frames
	}
}

// WithFrameDelay inserts a pause between stream frames.
func WithFrameDelay(d time.Duration) OrchestratorOption {
	return func(f *FakeOrchestrator) {
		f.frameDelay = d
	}
}

// WithSubmitFailure makes submit and stream return the given HTTP status.
func WithSubmitFailure(code int) OrchestratorOption {
	return func(f *FakeOrchestrator) {
		f.submitCode = code
	}
}

// NewFakeOrchestrator starts the fake server and registers shutdown with
// the test's cleanup.
func NewFakeOrchestrator(t *testing.T, opts ...OrchestratorOption) *FakeOrchestrator {
	t.Helper()

	f := &FakeOrchestrator{
		jobs:           make(map[string]*fakeJob),
		statusSequence: []string{"processing", "completed"},
		resultText:     "done",
	}
	for _, opt := range opts {
		opt(f)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", f.handleSubmit)
	mux.HandleFunc("/stream", f.handleStream)
	mux.HandleFunc("/status/", f.handleStatus)
	mux.HandleFunc("/result/", f.handleResult)
	mux.HandleFunc("/cancel/", f.handleCancel)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake server.
func (f *FakeOrchestrator) URL() string {
	return f.Server.URL
}

// Submits returns a copy of every accepted submission in order.
func (f *FakeOrchestrator) Submits() []SubmitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SubmitRecord, len(f.submits))
	copy(out, f.submits)
	return out
}

// Cancelled returns the job IDs that received a cancel call.
func (f *FakeOrchestrator) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancels))
	copy(out, f.cancels)
	return out
}

func (f *FakeOrchestrator) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if f.submitCode != 0 {
		http.Error(w, "scripted submit failure", f.submitCode)
		return
	}

	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	job := &fakeJob{id: "job-" + uuid.New().String()[:8]}
	f.mu.Lock()
	f.jobs[job.id] = job
	f.submits = append(f.submits, SubmitRecord{Message: req.Message, SessionID: req.SessionID})
	f.mu.Unlock()

	writeJSON(w, map[string]any{"job_id": job.id, "status": "pending"})
}

func (f *FakeOrchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/status/")

	f.mu.Lock()
	job, ok := f.jobs[jobID]
	if !ok {
		f.mu.Unlock()
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	status := "cancelled"
	if !job.cancelled {
		status = f.statusSequence[job.step]
		if job.step < len(f.statusSequence)-1 {
			job.step++
		}
	}
	progress := job.step * 50
	f.mu.Unlock()

	writeJSON(w, map[string]any{
		"job_id":     jobID,
		"status":     status,
		"progress":   progress,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (f *FakeOrchestrator) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/result/")

	f.mu.Lock()
	_, ok := f.jobs[jobID]
	text := f.resultText
	f.mu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"job_id": jobID,
		"status": "completed",
		"result": map[string]string{"final_response": text},
	})
}

func (f *FakeOrchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/cancel/")

	f.mu.Lock()
	job, ok := f.jobs[jobID]
	if ok {
		job.cancelled = true
		f.cancels = append(f.cancels, jobID)
	}
	f.mu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{"job_id": jobID, "status": "cancelled"})
}

func (f *FakeOrchestrator) handleStream(w http.ResponseWriter, r *http.Request) {
	if f.submitCode != 0 {
		http.Error(w, "scripted stream failure", f.submitCode)
		return
	}

	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.submits = append(f.submits, SubmitRecord{Message: req.Message, SessionID: req.SessionID, Stream: true})
	frames := f.streamFrames
	text := f.resultText
	f.mu.Unlock()

	if len(frames) == 0 {
		frames = defaultStreamScript(text)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, frame := range frames {
		fmt.Fprintf(w, "data: %s\n", frame)
		if flusher != nil {
			flusher.Flush()
		}
		if f.frameDelay > 0 {
			time.Sleep(f.frameDelay)
		}
	}
}

// defaultStreamScript emits two token deltas and a completion carrying
// the scripted result text.
func defaultStreamScript(text string) []string {
	completion, _ := json.Marshal(map[string]any{
		"type": "completion",
		"data": map[string]string{"final_response": text},
	})
	return []string{
		`{"type":"chunk","data":{"updates":{"planner":{"status":"running"}}}}`,
		`{"type":"chunk","data":{"messages":["partial "]}}`,
		`{"type":"chunk","data":{"messages":["answer"]}}`,
		string(completion),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
