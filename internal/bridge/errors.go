// Package bridge provides the transport layer for the agent orchestrator.
//
// errors.go - Error taxonomy for orchestrator interactions
//
// Transport failures and job outcomes are distinct: NetworkError and
// HTTPError describe a single request attempt, while JobFailedError,
// JobCancelledError, TimeoutError and ConsecutiveFailureError describe
// how watching a job ended.

package bridge

import (
	"errors"
	"fmt"
	"time"
)

// NetworkError indicates the request never produced an HTTP response
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: network error calling %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError indicates the orchestrator answered with a non-success status
type HTTPError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s returned HTTP %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %s returned HTTP %d", e.Op, e.URL, e.StatusCode)
}

// ProtocolError indicates a response or stream frame that could not be decoded.
// Stream consumers log these and keep reading; they are never fatal on their own.
type ProtocolError struct {
	Op   string
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("%s: malformed payload %q: %v", e.Op, truncate(e.Line, 120), e.Err)
	}
	return fmt.Sprintf("%s: malformed payload: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// JobFailedError indicates the request ended in the failed status.
// JobID is empty for streamed requests, which never learn one.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	subject := "request"
	if e.JobID != "" {
		subject = "job " + e.JobID
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s failed: %s", subject, e.Reason)
	}
	return subject + " failed"
}

// JobCancelledError indicates the job reached the cancelled status
type JobCancelledError struct {
	JobID string
}

func (e *JobCancelledError) Error() string {
	return fmt.Sprintf("job %s was cancelled", e.JobID)
}

// TimeoutError indicates a watch gave up before the job reached a
// terminal status, either by attempt cap or by stream stall.
type TimeoutError struct {
	Op       string
	JobID    string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s: job %s did not finish within %d attempts (%s)", e.Op, e.JobID, e.Attempts, e.Elapsed.Round(time.Second))
	}
	return fmt.Sprintf("%s: job %s timed out after %s", e.Op, e.JobID, e.Elapsed.Round(time.Second))
}

// ConsecutiveFailureError indicates repeated status fetch failures with
// no success in between. Last holds the final underlying error.
type ConsecutiveFailureError struct {
	JobID string
	Count int
	Last  error
}

func (e *ConsecutiveFailureError) Error() string {
	return fmt.Sprintf("job %s: %d consecutive status failures: %v", e.JobID, e.Count, e.Last)
}

func (e *ConsecutiveFailureError) Unwrap() error { return e.Last }

// IsHTTPStatus reports whether err is an HTTPError with the given status code
func IsHTTPStatus(err error, code int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == code
}

// IsTerminalJobError reports whether err describes a job that ended in a
// terminal status rather than a transport or watch problem
func IsTerminalJobError(err error) bool {
	var jf *JobFailedError
	var jc *JobCancelledError
	return errors.As(err, &jf) || errors.As(err, &jc)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
