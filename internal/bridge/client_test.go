package bridge

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		BaseURL:     srv.URL,
		Credentials: Credentials{Token: "test-token"},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, srv
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid", "https://agents.example.com/api", false},
		{"trailing slash trimmed", "https://agents.example.com/api/", false},
		{"empty", "", true},
		{"no scheme", "agents.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(Options{BaseURL: tt.baseURL})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestClientSubmit(t *testing.T) {
	var gotPath, gotAuth, gotRequestID string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"job_id":"job-1","status":"pending","message":"queued"}`))
	}))

	ack, err := client.Submit(context.Background(), &SubmitRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if ack.JobID != "job-1" || ack.Status != JobPending {
		t.Errorf("Submit() = %+v, want job-1/pending", ack)
	}
	if gotPath != "/submit" {
		t.Errorf("path = %q, want /submit", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestClientSubmitMissingJobID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pending"}`))
	}))

	_, err := client.Submit(context.Background(), &SubmitRequest{Message: "hello"})
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Submit() error = %v, want *ProtocolError", err)
	}
}

func TestClientStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/job-7" {
			t.Errorf("path = %q, want /status/job-7", r.URL.Path)
		}
		w.Write([]byte(`{"job_id":"job-7","status":"processing","progress":55,"created_at":"2025-06-01T10:00:00Z"}`))
	}))

	job, err := client.Status(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if job.ID != "job-7" || job.Status != JobProcessing || job.Progress != 55 {
		t.Errorf("Status() = %+v, want job-7/processing/55", job)
	}
}

func TestClientResult(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/result/job-7" {
			t.Errorf("path = %q, want /result/job-7", r.URL.Path)
		}
		w.Write([]byte(`{"job_id":"job-7","status":"completed","result":"Hello world"}`))
	}))

	result, err := client.Result(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if got := result.Text(); got != "Hello world" {
		t.Errorf("Text() = %q, want %q", got, "Hello world")
	}
}

func TestClientCancel(t *testing.T) {
	var gotMethod string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.Cancel(context.Background(), "job-7"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
}

func TestClientCancelTerminalJob(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"job already completed"}`))
	}))

	err := client.Cancel(context.Background(), "job-7")
	if !IsHTTPStatus(err, http.StatusConflict) {
		t.Fatalf("Cancel() error = %v, want HTTP 409", err)
	}
	var he *HTTPError
	if errors.As(err, &he) && he.Body == "" {
		t.Error("HTTPError.Body is empty, want server detail")
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := NewClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	srv.Close()

	_, err = client.Status(context.Background(), "job-7")
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Status() error = %v, want *NetworkError", err)
	}
}

func TestClientOpenStream(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream" {
			t.Errorf("path = %q, want /stream", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		w.Write([]byte("data: {\"type\":\"completion\",\"data\":{\"final_response\":\"Done\"}}\n"))
	}))

	body, err := client.OpenStream(context.Background(), &SubmitRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer body.Close()

	line, err := bufio.NewReader(body).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	payload, ok := StripFramePrefix(line)
	if !ok {
		t.Fatalf("line %q has no frame prefix", line)
	}
	events, err := DecodeFrame([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if events[0].FinalText != "Done" {
		t.Errorf("FinalText = %q, want Done", events[0].FinalText)
	}
}

func TestClientOpenStreamRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.OpenStream(context.Background(), &SubmitRequest{Message: "hello"})
	if !IsHTTPStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("OpenStream() error = %v, want HTTP 503", err)
	}
}
