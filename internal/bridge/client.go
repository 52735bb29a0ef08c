// Package bridge provides the transport layer for the agent orchestrator.
//
// client.go - HTTP client for the orchestrator API
//
// This file contains:
// - Client with the five orchestrator operations: Submit, Status,
//   Result, Cancel and OpenStream
// - Single-attempt semantics: every method performs exactly one HTTP
//   request and classifies failures as NetworkError or HTTPError.
//   Retry and backoff decisions belong to the poll and stream layers.

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRequestTimeout bounds unary calls; streams are exempt and
	// rely on the consumer's stall watchdog instead.
	DefaultRequestTimeout = 30 * time.Second

	maxErrorBodyBytes = 8 * 1024
)

// Credentials supplies the bearer token for orchestrator calls
type Credentials struct {
	Token string
}

// Options configures a Client
type Options struct {
	// BaseURL is the orchestrator endpoint, e.g. "https://agents.example.com/api"
	BaseURL string

	// Credentials for bearer authentication; empty token sends no header
	Credentials Credentials

	// RequestTimeout bounds unary calls; zero means DefaultRequestTimeout
	RequestTimeout time.Duration

	// HTTPClient overrides the transport for unary calls, mainly for tests
	HTTPClient *http.Client
}

// Client talks to the agent orchestrator over HTTP
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	stream  *http.Client
}

// NewClient creates an orchestrator client from options
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("orchestrator base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid orchestrator base URL %q", opts.BaseURL)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	// Streams outlive any sane per-request timeout, so they get a client
	// without one. Lifetime is bounded by the request context.
	streamClient := &http.Client{}
	if opts.HTTPClient != nil {
		streamClient.Transport = opts.HTTPClient.Transport
	}

	return &Client{
		baseURL: base,
		creds:   opts.Credentials,
		http:    httpClient,
		stream:  streamClient,
	}, nil
}

// BaseURL returns the configured orchestrator endpoint
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit sends a message for asynchronous execution and returns the
// acknowledgement carrying the new job ID
func (c *Client) Submit(ctx context.Context, req *SubmitRequest) (*SubmitAck, error) {
	var ack SubmitAck
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/submit", req, &ack, "submit"); err != nil {
		return nil, err
	}
	if ack.JobID == "" {
		return nil, &ProtocolError{Op: "submit", Err: fmt.Errorf("acknowledgement has no job_id")}
	}
	return &ack, nil
}

// Status fetches the current snapshot of a job
func (c *Client) Status(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.doJSON(ctx, http.MethodGet, c.jobURL("status", jobID), nil, &job, "status"); err != nil {
		return nil, err
	}
	return &job, nil
}

// Result fetches the payload of a completed job
func (c *Client) Result(ctx context.Context, jobID string) (*JobResult, error) {
	var result JobResult
	if err := c.doJSON(ctx, http.MethodGet, c.jobURL("result", jobID), nil, &result, "result"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel requests cancellation of a job. The orchestrator rejects
// cancellation of jobs already in a terminal status.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.jobURL("cancel", jobID), nil, nil, "cancel")
}

// OpenStream submits a message for streaming execution and returns the
// raw response body. The caller owns the body and must close it; frames
// are decoded by the stream package.
func (c *Client) OpenStream(ctx context.Context, req *SubmitRequest) (io.ReadCloser, error) {
	streamURL := c.baseURL + "/stream"

	httpReq, err := c.newRequest(ctx, http.MethodPost, streamURL, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: "stream", URL: streamURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readErrorBody(resp.Body)
		resp.Body.Close()
		return nil, &HTTPError{Op: "stream", URL: streamURL, StatusCode: resp.StatusCode, Body: body}
	}

	return resp.Body, nil
}

func (c *Client) jobURL(op, jobID string) string {
	return c.baseURL + "/" + op + "/" + url.PathEscape(jobID)
}

func (c *Client) newRequest(ctx context.Context, method, u string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	}

	return req, nil
}

// doJSON performs one request and decodes a JSON response into out.
// out may be nil when the response body does not matter.
func (c *Client) doJSON(ctx context.Context, method, u string, body, out any, op string) error {
	req, err := c.newRequest(ctx, method, u, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Op: op, URL: u, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
